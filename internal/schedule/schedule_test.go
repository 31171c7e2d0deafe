package schedule

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func newTestScheduler(t *testing.T, store Store) *Scheduler {
	t.Helper()
	s, err := New(store,
		Task{ID: TaskSensor, Interval: 5 * time.Minute},
		Task{ID: TaskWeather, Interval: 30 * time.Minute},
		Task{ID: TaskBattery, Interval: 15 * time.Minute},
	)
	require.NoError(t, err)
	return s
}

func TestUnsetLastRunIsAlwaysDue(t *testing.T) {
	s := newTestScheduler(t, NewMemStore())
	due := s.Due(t0)
	assert.Equal(t, []TaskID{TaskSensor, TaskWeather, TaskBattery}, due)
}

func TestDueAfterInterval(t *testing.T) {
	s := newTestScheduler(t, NewMemStore())
	for _, id := range s.IDs() {
		require.NoError(t, s.MarkRun(id, t0))
	}

	assert.Empty(t, s.Due(t0.Add(time.Minute)))

	// Only the sensor interval has elapsed.
	due := s.Due(t0.Add(5 * time.Minute))
	assert.Equal(t, []TaskID{TaskSensor}, due)

	// Everything has elapsed.
	due = s.Due(t0.Add(31 * time.Minute))
	assert.Len(t, due, 3)
}

func TestNextDeadlineBounds(t *testing.T) {
	s := newTestScheduler(t, NewMemStore())
	for _, id := range s.IDs() {
		require.NoError(t, s.MarkRun(id, t0))
	}

	// Deadline is now + min interval, never later, always in the future.
	d := s.NextDeadline(t0)
	assert.Equal(t, t0.Add(5*time.Minute), d)
	assert.True(t, d.After(t0))

	// Partway through: sensor has 2 minutes left.
	d = s.NextDeadline(t0.Add(3 * time.Minute))
	assert.Equal(t, t0.Add(5*time.Minute), d)
}

func TestNextDeadlineClampsToFloor(t *testing.T) {
	s := newTestScheduler(t, NewMemStore())

	// Nothing has ever run: all remaining times are zero, but the alarm
	// must still be strictly in the future.
	d := s.NextDeadline(t0)
	assert.Equal(t, t0.Add(MinDeadline), d)

	// Overdue task: still floored.
	require.NoError(t, s.MarkRun(TaskSensor, t0.Add(-time.Hour)))
	d = s.NextDeadline(t0)
	assert.True(t, d.After(t0))
	assert.Equal(t, t0.Add(MinDeadline), d)
}

func TestIntervalBackstopClamp(t *testing.T) {
	s, err := New(NewMemStore(), Task{ID: TaskSensor, Interval: -3 * time.Second})
	require.NoError(t, err)
	require.NoError(t, s.MarkRun(TaskSensor, t0))
	assert.Equal(t, t0.Add(MinDeadline), s.NextDeadline(t0))
}

func TestMarkRunPersists(t *testing.T) {
	store := NewMemStore()
	s := newTestScheduler(t, store)
	require.NoError(t, s.MarkRun(TaskWeather, t0))
	assert.Equal(t, 1, store.Saves)
	assert.Equal(t, t0, store.Last[TaskWeather])

	// A fresh scheduler over the same store sees the run.
	s2 := newTestScheduler(t, store)
	due := s2.Due(t0.Add(time.Minute))
	assert.NotContains(t, due, TaskWeather)
	assert.Contains(t, due, TaskSensor)
}

func TestNewWithBrokenStoreStartsCold(t *testing.T) {
	store := NewMemStore()
	store.Err = errors.New("flash corrupt")
	s, err := New(store,
		Task{ID: TaskSensor, Interval: 5 * time.Minute})
	assert.Error(t, err)
	require.NotNil(t, s)
	// Cold-start bias: everything runs once.
	assert.Equal(t, []TaskID{TaskSensor}, s.Due(t0))
}

func TestDuplicateTaskRejected(t *testing.T) {
	_, err := New(NewMemStore(),
		Task{ID: TaskSensor, Interval: time.Minute},
		Task{ID: TaskSensor, Interval: time.Minute})
	assert.Error(t, err)
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "lastrun.json"))

	last, err := store.LoadLastRuns()
	require.NoError(t, err)
	assert.Empty(t, last)

	require.NoError(t, store.SaveLastRuns(map[TaskID]time.Time{TaskRotate: t0}))
	last, err = store.LoadLastRuns()
	require.NoError(t, err)
	assert.True(t, last[TaskRotate].Equal(t0))
}
