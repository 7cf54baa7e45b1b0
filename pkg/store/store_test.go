package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-pepper/pkg/protocol"
	"github.com/teslashibe/go-pepper/pkg/sweep"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "sweeps.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func result(id string, started time.Time, steps ...sweep.Step) sweep.Result {
	r := sweep.Result{
		ID:       id,
		Started:  started,
		Finished: started.Add(4 * time.Second),
		Steps:    steps,
		Success:  true,
	}
	for _, s := range steps {
		if s.Outcome != sweep.Success {
			r.Success = false
			r.Error = s.Error
		}
	}
	return r
}

func TestRecordSweep_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	want := result("a", time.Unix(1700000000, 123),
		sweep.Step{Direction: protocol.Right, Outcome: sweep.Success},
		sweep.Step{Direction: protocol.Front, Outcome: sweep.CaptureFailed, Error: "camera unplugged"},
	)
	require.NoError(t, db.RecordSweep(ctx, want))

	got, err := db.Sweep(ctx, "a")
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Sweep() mismatch (-want +got):\n%s", diff)
	}
}

func TestRecentSweeps_NewestFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	for i, id := range []string{"first", "second", "third"} {
		r := result(id, base.Add(time.Duration(i)*time.Minute),
			sweep.Step{Direction: protocol.Front, Outcome: sweep.Success})
		require.NoError(t, db.RecordSweep(ctx, r))
	}

	got, err := db.RecentSweeps(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].ID)
	assert.Equal(t, "second", got[1].ID)
	assert.Len(t, got[0].Steps, 1)
}

func TestRecordSweep_DuplicateID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	r := result("dup", time.Unix(0, 0), sweep.Step{Direction: protocol.Left, Outcome: sweep.Success})
	require.NoError(t, db.RecordSweep(ctx, r))
	assert.Error(t, db.RecordSweep(ctx, r))

	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}

func TestSweep_NotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Sweep(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)

	require.NoError(t, db.RecordSweep(ctx, result("ok", time.Unix(1, 0),
		sweep.Step{Direction: protocol.Right, Outcome: sweep.Success})))
	require.NoError(t, db.RecordSweep(ctx, result("bad", time.Unix(2, 0),
		sweep.Step{Direction: protocol.Right, Outcome: sweep.LookFailed, Error: "convergence timeout"})))

	stats, err = db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 2, Succeeded: 1}, stats)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweeps.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.RecordSweep(context.Background(), result("kept", time.Unix(5, 0))))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	got, err := db.RecentSweeps(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].ID)
	assert.Empty(t, got[0].Steps)
}

func TestDB_AdHocQuery(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.RecordSweep(ctx, result("a", time.Unix(1700000000, 0),
		sweep.Step{Direction: protocol.Right, Outcome: sweep.Success},
		sweep.Step{Direction: protocol.Front, Outcome: sweep.Success},
	)))

	var n int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sweep_steps WHERE sweep_id = ?`, "a").Scan(&n))
	assert.Equal(t, 2, n)
}
