package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/mazebot/pkg/nav"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_AppliesMigrations(t *testing.T) {
	s := openTestStore(t)

	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.SaveRun(context.Background(), Run{Outcome: nav.OutcomeGoal, Path: "LSR"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err, "second open must tolerate an up-to-date schema")
	defer s.Close()

	runs, err := s.Runs(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSaveRun_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	in := Run{
		StartedAt:     started,
		FinishedAt:    started.Add(42 * time.Second),
		Outcome:       nav.OutcomeGoal,
		Path:          "LBLLSR",
		Intersections: 6,
		Ticks:         9000,
		TickStats: nav.TickStats{
			Count:  9000,
			Mean:   4 * time.Millisecond,
			StdDev: 300 * time.Microsecond,
			P99:    6 * time.Millisecond,
			Max:    11 * time.Millisecond,
		},
		BatteryMV: 4870,
	}

	saved, err := s.SaveRun(ctx, in)
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	got, err := s.Run(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.True(t, got.StartedAt.Equal(in.StartedAt))
	assert.Equal(t, 42*time.Second, got.Duration())
	assert.Equal(t, nav.OutcomeGoal, got.Outcome)
	assert.Equal(t, "LBLLSR", got.Path)
	assert.Equal(t, 6, got.Intersections)
	assert.Equal(t, in.TickStats, got.TickStats)
	assert.Equal(t, 4870, got.BatteryMV)
	assert.Empty(t, got.Error)
}

func TestRun_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Run(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestRuns_NewestFirstWithLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, path := range []string{"L", "LS", "LSR"} {
		_, err := s.SaveRun(ctx, Run{
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + time.Second),
			Outcome:    nav.OutcomeGoal,
			Path:       path,
		})
		require.NoError(t, err)
	}

	runs, err := s.Runs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "LSR", runs[0].Path)
	assert.Equal(t, "LS", runs[1].Path)

	all, err := s.Runs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSaveRun_DuplicateID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := Run{ID: NewRunID(), Outcome: nav.OutcomeAborted}
	_, err := s.SaveRun(ctx, r)
	require.NoError(t, err)
	_, err = s.SaveRun(ctx, r)
	assert.Error(t, err)
}

func TestRunFromResult(t *testing.T) {
	path := nav.NewPath(0)
	require.NoError(t, path.Append(nav.Left))
	require.NoError(t, path.Append(nav.Back))

	res := &nav.Result{
		Path:          path,
		Intersections: 2,
		Outcome:       nav.OutcomeSensorFault,
		Ticks:         120,
	}
	r := RunFromResult(res, nav.ErrSensorFault)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "LB", r.Path)
	assert.Equal(t, nav.OutcomeSensorFault, r.Outcome)
	assert.Equal(t, 2, r.Intersections)
	assert.Contains(t, r.Error, nav.ErrSensorFault.Error())

	assert.NotEqual(t, r.ID, RunFromResult(res, nil).ID, "each run gets its own ID")
}
