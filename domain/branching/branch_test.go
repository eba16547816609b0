package branching

import (
	"strings"
	"testing"
	"time"

	"filon/domain/events"
	pkgerrors "filon/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBranch(t *testing.T) {
	b, err := NewBranch("", "g1", "  experiment  ", "s1")
	require.NoError(t, err)

	assert.NotEmpty(t, b.ID())
	assert.Equal(t, "experiment", b.Name())
	assert.Equal(t, "s1", b.ParentSnapshotID())
	assert.Equal(t, "s1", b.HeadSnapshotID())
	assert.Equal(t, StatusActive, b.Status())
	assert.Equal(t, 1, b.Version())

	evts := b.GetUncommittedEvents()
	require.Len(t, evts, 1)
	created, ok := evts[0].(events.BranchCreated)
	require.True(t, ok)
	assert.Equal(t, events.TypeBranchCreated, created.GetEventType())
	assert.Equal(t, b.ID(), created.GetAggregateID())
	assert.Equal(t, "g1", created.GraphID)

	b.MarkEventsAsCommitted()
	assert.Empty(t, b.GetUncommittedEvents())
}

func TestNewBranch_Validation(t *testing.T) {
	tests := []struct {
		name     string
		graphID  string
		branch   string
		parentID string
	}{
		{"missing graph", "", "x", "s1"},
		{"missing parent", "g1", "x", ""},
		{"blank name", "g1", "   ", "s1"},
		{"too long", "g1", strings.Repeat("a", MaxNameLength+1), "s1"},
		{"reserved", "g1", "Main", "s1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBranch("", tt.graphID, tt.branch, tt.parentID)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
		})
	}

	_, err := NewBranch("", "g1", strings.Repeat("é", MaxNameLength), "s1")
	assert.NoError(t, err)
}

func TestNewBranch_CallerID(t *testing.T) {
	b, err := NewBranch("b-42", "g1", "work", "s1")
	require.NoError(t, err)
	assert.Equal(t, "b-42", b.ID())
}

func TestNewMainBranch(t *testing.T) {
	b, err := NewMainBranch("", "g1")
	require.NoError(t, err)
	assert.True(t, b.IsMain())
	assert.Empty(t, b.HeadSnapshotID())

	_, err = NewMainBranch("", "")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestAdvance(t *testing.T) {
	b, err := NewBranch("", "g1", "work", "s1")
	require.NoError(t, err)

	require.NoError(t, b.Advance("s2"))
	assert.Equal(t, "s2", b.HeadSnapshotID())
	assert.Equal(t, 2, b.Version())

	assert.True(t, pkgerrors.IsValidation(b.Advance("")))

	require.NoError(t, b.Archive())
	err = b.Advance("s3")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeBranchInactive))
	assert.Equal(t, "s2", b.HeadSnapshotID())
}

func TestMarkMerged(t *testing.T) {
	b, err := NewBranch("", "g1", "work", "s1")
	require.NoError(t, err)
	b.MarkEventsAsCommitted()

	require.Error(t, b.MarkMerged(b.ID(), "s5", "combine"))

	require.NoError(t, b.MarkMerged("target", "s5", "combine"))
	assert.Equal(t, StatusMerged, b.Status())
	assert.Equal(t, "target", b.MergedInto())

	evts := b.GetUncommittedEvents()
	require.Len(t, evts, 1)
	merged := evts[0].(events.BranchMerged)
	assert.Equal(t, "s5", merged.MergeSnapshotID)
	assert.Equal(t, "combine", merged.Strategy)

	assert.True(t, pkgerrors.IsConflict(b.MarkMerged("target", "s6", "combine")))

	main, err := NewMainBranch("", "g1")
	require.NoError(t, err)
	assert.True(t, pkgerrors.IsConflict(main.MarkMerged("target", "s5", "combine")))
}

func TestArchive(t *testing.T) {
	b, err := NewBranch("", "g1", "work", "s1")
	require.NoError(t, err)
	b.MarkEventsAsCommitted()

	require.NoError(t, b.Archive())
	require.NoError(t, b.Archive())
	assert.Equal(t, StatusArchived, b.Status())
	assert.Len(t, b.GetUncommittedEvents(), 1)

	main, err := NewMainBranch("", "g1")
	require.NoError(t, err)
	assert.True(t, pkgerrors.IsConflict(main.Archive()))
}

func TestReconstructBranch(t *testing.T) {
	at := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	b, err := ReconstructBranch("b1", "g1", "work", "s1", "s4", "", StatusActive, at, at, 4)
	require.NoError(t, err)
	assert.Equal(t, "s4", b.HeadSnapshotID())
	assert.Equal(t, 4, b.Version())
	assert.Empty(t, b.GetUncommittedEvents())

	_, err = ReconstructBranch("b1", "g1", "work", "s1", "s4", "", "frozen", at, at, 4)
	assert.True(t, pkgerrors.IsValidation(err))
}
