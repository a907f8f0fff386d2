//go:build integration

package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests for the daily task tracker.
// Run with: go test -v -tags=integration ./internal/repository/...

func TestTrackerMarkRanOncePerDay(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	day := time.Now().UTC()
	task := "test_daily_schedule_" + day.Format("150405")

	first, err := db.Tracker.MarkRan(ctx, task, day)
	require.NoError(t, err)
	assert.True(t, first, "First mark for the day should win")

	second, err := db.Tracker.MarkRan(ctx, task, day)
	require.NoError(t, err)
	assert.False(t, second, "Second mark for the same day should be a no-op")

	ran, err := db.Tracker.RanOn(ctx, task, day)
	require.NoError(t, err)
	assert.True(t, ran)

	ran, err = db.Tracker.RanOn(ctx, task, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, ran, "Tomorrow should be unmarked")
}
