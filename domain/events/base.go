package events

import (
	"time"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// Event type names
const (
	TypeSnapshotSaved    = "snapshot.saved"
	TypeSnapshotRestored = "snapshot.restored"
	TypeSnapshotMerged   = "snapshot.merged"
	TypeBranchCreated    = "branch.created"
	TypeBranchMerged     = "branch.merged"
	TypeBranchArchived   = "branch.archived"
)

// Snapshot Events

// SnapshotSaved is raised when a snapshot is persisted on a branch
type SnapshotSaved struct {
	BaseEvent
	SnapshotID string `json:"snapshot_id"`
	GraphID    string `json:"graph_id"`
	BranchID   string `json:"branch_id"`
	Origin     string `json:"origin"`
	Checksum   string `json:"checksum"`
	NodeCount  int    `json:"node_count"`
	EdgeCount  int    `json:"edge_count"`
}

// NewSnapshotSaved creates a SnapshotSaved event
func NewSnapshotSaved(snapshotID, graphID, branchID, origin, checksum string, nodeCount, edgeCount, version int, timestamp time.Time) SnapshotSaved {
	return SnapshotSaved{
		BaseEvent: BaseEvent{
			AggregateID: snapshotID,
			EventType:   TypeSnapshotSaved,
			Timestamp:   timestamp,
			Version:     version,
		},
		SnapshotID: snapshotID,
		GraphID:    graphID,
		BranchID:   branchID,
		Origin:     origin,
		Checksum:   checksum,
		NodeCount:  nodeCount,
		EdgeCount:  edgeCount,
	}
}

// SnapshotRestored is raised when an older snapshot becomes a branch head again
type SnapshotRestored struct {
	BaseEvent
	SnapshotID     string `json:"snapshot_id"`
	RestoredFromID string `json:"restored_from_id"`
	BranchID       string `json:"branch_id"`
}

// NewSnapshotRestored creates a SnapshotRestored event
func NewSnapshotRestored(snapshotID, restoredFromID, branchID string, version int, timestamp time.Time) SnapshotRestored {
	return SnapshotRestored{
		BaseEvent: BaseEvent{
			AggregateID: snapshotID,
			EventType:   TypeSnapshotRestored,
			Timestamp:   timestamp,
			Version:     version,
		},
		SnapshotID:     snapshotID,
		RestoredFromID: restoredFromID,
		BranchID:       branchID,
	}
}

// SnapshotMerged is raised when two snapshots were merged into a new one
type SnapshotMerged struct {
	BaseEvent
	SnapshotID  string `json:"snapshot_id"`
	BaseID      string `json:"base_id"`
	IncomingID  string `json:"incoming_id"`
	Strategy    string `json:"strategy"`
	ChangeCount int    `json:"change_count"`
}

// NewSnapshotMerged creates a SnapshotMerged event
func NewSnapshotMerged(snapshotID, baseID, incomingID, strategy string, changeCount, version int, timestamp time.Time) SnapshotMerged {
	return SnapshotMerged{
		BaseEvent: BaseEvent{
			AggregateID: snapshotID,
			EventType:   TypeSnapshotMerged,
			Timestamp:   timestamp,
			Version:     version,
		},
		SnapshotID:  snapshotID,
		BaseID:      baseID,
		IncomingID:  incomingID,
		Strategy:    strategy,
		ChangeCount: changeCount,
	}
}

// Branch Events

// BranchCreated is raised when a branch is forked from a snapshot
type BranchCreated struct {
	BaseEvent
	BranchID         string `json:"branch_id"`
	GraphID          string `json:"graph_id"`
	Name             string `json:"name"`
	ParentSnapshotID string `json:"parent_snapshot_id,omitempty"`
}

// NewBranchCreated creates a BranchCreated event
func NewBranchCreated(branchID, graphID, name, parentSnapshotID string, timestamp time.Time) BranchCreated {
	return BranchCreated{
		BaseEvent: BaseEvent{
			AggregateID: branchID,
			EventType:   TypeBranchCreated,
			Timestamp:   timestamp,
			Version:     1,
		},
		BranchID:         branchID,
		GraphID:          graphID,
		Name:             name,
		ParentSnapshotID: parentSnapshotID,
	}
}

// BranchMerged is raised when a branch has been merged into another
type BranchMerged struct {
	BaseEvent
	BranchID        string `json:"branch_id"`
	TargetBranchID  string `json:"target_branch_id"`
	MergeSnapshotID string `json:"merge_snapshot_id"`
	Strategy        string `json:"strategy"`
}

// NewBranchMerged creates a BranchMerged event
func NewBranchMerged(branchID, targetBranchID, mergeSnapshotID, strategy string, version int, timestamp time.Time) BranchMerged {
	return BranchMerged{
		BaseEvent: BaseEvent{
			AggregateID: branchID,
			EventType:   TypeBranchMerged,
			Timestamp:   timestamp,
			Version:     version,
		},
		BranchID:        branchID,
		TargetBranchID:  targetBranchID,
		MergeSnapshotID: mergeSnapshotID,
		Strategy:        strategy,
	}
}

// BranchArchived is raised when a branch is archived
type BranchArchived struct {
	BaseEvent
	BranchID string `json:"branch_id"`
}

// NewBranchArchived creates a BranchArchived event
func NewBranchArchived(branchID string, version int, timestamp time.Time) BranchArchived {
	return BranchArchived{
		BaseEvent: BaseEvent{
			AggregateID: branchID,
			EventType:   TypeBranchArchived,
			Timestamp:   timestamp,
			Version:     version,
		},
		BranchID: branchID,
	}
}
