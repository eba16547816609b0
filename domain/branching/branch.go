// Package branching models named lines of snapshots within a graph.
package branching

import (
	"strings"
	"time"
	"unicode/utf8"

	"filon/domain/events"
	pkgerrors "filon/pkg/errors"

	"github.com/google/uuid"
)

// MainBranchName is reserved for the root branch of every graph
const MainBranchName = "main"

// MaxNameLength bounds branch names in characters
const MaxNameLength = 100

// BranchStatus represents the state of a branch
type BranchStatus string

const (
	StatusActive   BranchStatus = "active"
	StatusMerged   BranchStatus = "merged"
	StatusArchived BranchStatus = "archived"
)

// Branch tracks the head snapshot of a line of work in a graph
type Branch struct {
	id               string
	graphID          string
	name             string
	parentSnapshotID string
	headSnapshotID   string
	mergedInto       string
	status           BranchStatus
	createdAt        time.Time
	updatedAt        time.Time
	version          int

	events []events.DomainEvent
}

// NewMainBranch creates the root branch of a graph. An empty id is generated.
func NewMainBranch(id, graphID string) (*Branch, error) {
	if strings.TrimSpace(graphID) == "" {
		return nil, pkgerrors.NewValidationError("graphID cannot be empty")
	}
	return newBranch(id, graphID, MainBranchName, ""), nil
}

// NewBranch forks a branch from parentSnapshotID. The name "main" is
// reserved for NewMainBranch and an empty id is generated.
func NewBranch(id, graphID, name, parentSnapshotID string) (*Branch, error) {
	if strings.TrimSpace(graphID) == "" {
		return nil, pkgerrors.NewValidationError("graphID cannot be empty")
	}
	if strings.TrimSpace(parentSnapshotID) == "" {
		return nil, pkgerrors.NewValidationError("parentSnapshotID cannot be empty")
	}
	name, err := ValidateName(name)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(name, MainBranchName) {
		return nil, pkgerrors.NewValidationError("branch name is reserved").
			WithDetail("name", name)
	}
	return newBranch(id, graphID, name, parentSnapshotID), nil
}

func newBranch(id, graphID, name, parentSnapshotID string) *Branch {
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	b := &Branch{
		id:               id,
		graphID:          graphID,
		name:             name,
		parentSnapshotID: parentSnapshotID,
		headSnapshotID:   parentSnapshotID,
		status:           StatusActive,
		createdAt:        now,
		updatedAt:        now,
		version:          1,
		events:           []events.DomainEvent{},
	}
	b.addEvent(events.NewBranchCreated(b.id, graphID, name, parentSnapshotID, now))
	return b
}

// ValidateName trims name and checks its length
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", pkgerrors.NewValidationError("branch name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", pkgerrors.NewValidationError("branch name is too long").
			WithDetail("max", MaxNameLength)
	}
	return name, nil
}

// ReconstructBranch rebuilds a branch from repository data
func ReconstructBranch(
	id, graphID, name, parentSnapshotID, headSnapshotID, mergedInto string,
	status BranchStatus,
	createdAt, updatedAt time.Time,
	version int,
) (*Branch, error) {
	if id == "" || graphID == "" {
		return nil, pkgerrors.NewValidationError("branch id and graphID are required")
	}
	switch status {
	case StatusActive, StatusMerged, StatusArchived:
	default:
		return nil, pkgerrors.NewValidationError("unknown branch status").
			WithDetail("status", string(status))
	}
	return &Branch{
		id:               id,
		graphID:          graphID,
		name:             name,
		parentSnapshotID: parentSnapshotID,
		headSnapshotID:   headSnapshotID,
		mergedInto:       mergedInto,
		status:           status,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
		version:          version,
		events:           []events.DomainEvent{},
	}, nil
}

func (b *Branch) ID() string               { return b.id }
func (b *Branch) GraphID() string          { return b.graphID }
func (b *Branch) Name() string             { return b.name }
func (b *Branch) ParentSnapshotID() string { return b.parentSnapshotID }
func (b *Branch) HeadSnapshotID() string   { return b.headSnapshotID }
func (b *Branch) MergedInto() string       { return b.mergedInto }
func (b *Branch) Status() BranchStatus     { return b.status }
func (b *Branch) CreatedAt() time.Time     { return b.createdAt }
func (b *Branch) UpdatedAt() time.Time     { return b.updatedAt }
func (b *Branch) Version() int             { return b.version }

// IsMain reports whether this is the root branch of its graph
func (b *Branch) IsMain() bool { return b.name == MainBranchName }

// IsActive reports whether new snapshots may land on the branch
func (b *Branch) IsActive() bool { return b.status == StatusActive }

// Advance moves the branch head to snapshotID
func (b *Branch) Advance(snapshotID string) error {
	if snapshotID == "" {
		return pkgerrors.NewValidationError("snapshotID cannot be empty")
	}
	if err := b.requireActive(); err != nil {
		return err
	}
	b.headSnapshotID = snapshotID
	b.touch()
	return nil
}

// MarkMerged closes the branch after it was merged into target
func (b *Branch) MarkMerged(targetBranchID, mergeSnapshotID, strategy string) error {
	if err := b.requireActive(); err != nil {
		return err
	}
	if b.IsMain() {
		return pkgerrors.NewConflictError("main branch cannot be merged away").
			WithCode(pkgerrors.CodeBranchInactive)
	}
	if targetBranchID == b.id {
		return pkgerrors.NewValidationError("branch cannot be merged into itself")
	}
	b.status = StatusMerged
	b.mergedInto = targetBranchID
	b.touch()
	b.addEvent(events.NewBranchMerged(b.id, targetBranchID, mergeSnapshotID, strategy, b.version, b.updatedAt))
	return nil
}

// Archive retires the branch
func (b *Branch) Archive() error {
	if b.status == StatusArchived {
		return nil
	}
	if b.IsMain() {
		return pkgerrors.NewConflictError("main branch cannot be archived").
			WithCode(pkgerrors.CodeBranchInactive)
	}
	b.status = StatusArchived
	b.touch()
	b.addEvent(events.NewBranchArchived(b.id, b.version, b.updatedAt))
	return nil
}

// GetUncommittedEvents returns all uncommitted domain events
func (b *Branch) GetUncommittedEvents() []events.DomainEvent {
	return b.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (b *Branch) MarkEventsAsCommitted() {
	b.events = []events.DomainEvent{}
}

func (b *Branch) requireActive() error {
	if b.status != StatusActive {
		return pkgerrors.NewConflictError("branch is not active").
			WithCode(pkgerrors.CodeBranchInactive).
			WithDetail("status", string(b.status))
	}
	return nil
}

func (b *Branch) touch() {
	b.updatedAt = time.Now().UTC()
	b.version++
}

func (b *Branch) addEvent(event events.DomainEvent) {
	b.events = append(b.events, event)
}
