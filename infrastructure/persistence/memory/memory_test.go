package memory

import (
	"context"
	"testing"
	"time"

	"filon/application/ports"
	"filon/domain/branching"
	"filon/domain/events"
	"filon/domain/graphstate"
	"filon/domain/snapshot"
	pkgerrors "filon/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSnap(t *testing.T, id, branchID string, version int) *snapshot.Snapshot {
	t.Helper()
	s, err := snapshot.New(snapshot.Params{
		ID: id, GraphID: "g1", BranchID: branchID, Version: version,
		State: graphstate.New([]graphstate.Node{{ID: "n1", Data: graphstate.NodeData{Label: "Goal"}}}, nil),
	})
	require.NoError(t, err)
	return s
}

func TestSnapshotRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSnapshotRepository()

	require.NoError(t, repo.Save(ctx, newSnap(t, "s2", "b1", 2)))
	require.NoError(t, repo.Save(ctx, newSnap(t, "s1", "b1", 1)))
	require.NoError(t, repo.Save(ctx, newSnap(t, "s3", "b1", 3)))
	require.NoError(t, repo.Save(ctx, newSnap(t, "x1", "b2", 1)))

	err := repo.Save(ctx, newSnap(t, "s1", "b1", 1))
	assert.True(t, pkgerrors.IsConflict(err))

	t.Run("get returns a copy", func(t *testing.T) {
		got, err := repo.GetByID(ctx, "s1")
		require.NoError(t, err)
		got.State.Nodes[0].Data.Label = "mutated"

		again, err := repo.GetByID(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "Goal", again.State.Nodes[0].Data.Label)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "nope")
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeSnapshotNotFound))
	})

	t.Run("list and latest", func(t *testing.T) {
		snaps, err := repo.ListByBranch(ctx, "b1", ports.ListOptions{})
		require.NoError(t, err)
		require.Len(t, snaps, 3)
		assert.Equal(t, []int{1, 2, 3}, []int{snaps[0].Version, snaps[1].Version, snaps[2].Version})

		snaps, err = repo.ListByBranch(ctx, "b1", ports.ListOptions{Limit: 2, Descending: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"s3", "s2"}, []string{snaps[0].ID, snaps[1].ID})

		latest, err := repo.Latest(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, "s3", latest.ID)

		_, err = repo.Latest(ctx, "empty")
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "s2"))
		require.NoError(t, repo.Delete(ctx, "s2"))

		snaps, err := repo.ListByBranch(ctx, "b1", ports.ListOptions{})
		require.NoError(t, err)
		assert.Len(t, snaps, 2)
		_, err = repo.GetByID(ctx, "s2")
		assert.True(t, pkgerrors.IsNotFound(err))
	})
}

func TestBranchRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewBranchRepository()

	main, err := branching.NewMainBranch("b-main", "g1")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, main))

	work, err := branching.NewBranch("b-work", "g1", "work", "s1")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, work))

	other, err := branching.NewMainBranch("b-other", "g2")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, other))

	t.Run("round trip", func(t *testing.T) {
		got, err := repo.GetByID(ctx, "b-work")
		require.NoError(t, err)
		assert.Equal(t, "work", got.Name())
		assert.Equal(t, "s1", got.HeadSnapshotID())
		assert.Equal(t, branching.StatusActive, got.Status())
	})

	t.Run("optimistic versioning", func(t *testing.T) {
		first, err := repo.GetByID(ctx, "b-work")
		require.NoError(t, err)
		stale, err := repo.GetByID(ctx, "b-work")
		require.NoError(t, err)

		require.NoError(t, first.Advance("s2"))
		require.NoError(t, repo.Save(ctx, first))

		require.NoError(t, stale.Advance("s3"))
		assert.True(t, pkgerrors.IsConflict(repo.Save(ctx, stale)))

		got, err := repo.GetByID(ctx, "b-work")
		require.NoError(t, err)
		assert.Equal(t, "s2", got.HeadSnapshotID())
	})

	t.Run("list and find", func(t *testing.T) {
		branches, err := repo.ListByGraph(ctx, "g1")
		require.NoError(t, err)
		assert.Len(t, branches, 2)

		found, err := repo.FindByName(ctx, "g1", "main")
		require.NoError(t, err)
		assert.Equal(t, "b-main", found.ID())

		_, err = repo.FindByName(ctx, "g2", "work")
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeBranchNotFound))
	})
}

func TestLocker(t *testing.T) {
	ctx := context.Background()
	locker := NewLocker()
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	locker.clock = func() time.Time { return now }

	lock, err := locker.Acquire(ctx, "branch#1", "a", time.Minute)
	require.NoError(t, err)

	now = now.Add(30500 * time.Millisecond)
	_, err = locker.Acquire(ctx, "branch#1", "b", time.Minute)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeLockHeld))
	assert.Equal(t, 30, pkgerrors.GetAppError(err).Details["retryAfterSeconds"])

	_, err = locker.Acquire(ctx, "branch#2", "b", time.Minute)
	assert.NoError(t, err)

	require.NoError(t, lock.Release(ctx))
	_, err = locker.Acquire(ctx, "branch#1", "b", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = locker.Acquire(ctx, "branch#1", "c", time.Minute)
	assert.NoError(t, err, "expired leases can be taken over")

	// A stale release must not drop the new owner's lease
	require.NoError(t, lock.Release(ctx))
	_, err = locker.Acquire(ctx, "branch#1", "d", time.Minute)
	assert.Error(t, err)
}

func TestCache(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(0)
	defer cache.Close()

	require.NoError(t, cache.Set(ctx, "k", 1, 60))
	v, ok := cache.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	require.NoError(t, cache.Set(ctx, "gone", 2, -1))
	_, ok = cache.Get(ctx, "gone")
	assert.False(t, ok)

	cache.sweep(time.Now())
	assert.Equal(t, 1, cache.Len())

	require.NoError(t, cache.Delete(ctx, "k"))
	require.NoError(t, cache.Clear(ctx))
	assert.Equal(t, 0, cache.Len())
	cache.Close()
}

func TestEventLog(t *testing.T) {
	log := NewEventLog(nil)
	now := time.Now()

	require.NoError(t, log.Publish(context.Background(), events.NewBranchArchived("b1", 2, now)))
	require.NoError(t, log.PublishBatch(context.Background(), []events.DomainEvent{
		events.NewBranchCreated("b2", "g1", "work", "s1", now),
	}))

	assert.Equal(t, []string{events.TypeBranchArchived, events.TypeBranchCreated}, log.Types())
}
