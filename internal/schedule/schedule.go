// Package schedule multiplexes several recurring tasks onto the single
// one-shot RTC alarm. Each task carries an interval and a persisted
// last-run timestamp; every activation asks which tasks are due and what
// the single next wake deadline is (the minimum remaining interval across
// all tasks, floored so clock skew can never cause an alarm storm).
//
// Because RAM does not survive suspension, last-run times go through a
// Store on every MarkRun rather than living in the process.
package schedule

import (
	"fmt"
	"time"
)

// TaskID names one recurring task.
type TaskID string

const (
	TaskSensor  TaskID = "sensor"
	TaskWeather TaskID = "weather"
	TaskRotate  TaskID = "rotate"
	TaskBattery TaskID = "battery"
)

// MinDeadline is the floor on the computed wake deadline.
const MinDeadline = time.Minute

// Task is one recurring unit of work. A zero LastRun means the task has
// never run and is therefore due.
type Task struct {
	ID       TaskID
	Interval time.Duration
	LastRun  time.Time
}

// Store persists last-run timestamps across suspension.
type Store interface {
	LoadLastRuns() (map[TaskID]time.Time, error)
	SaveLastRuns(map[TaskID]time.Time) error
}

// Scheduler tracks the task set. Not safe for concurrent use; the cycle
// controller is the only caller and runs single-threaded.
type Scheduler struct {
	tasks []*Task
	store Store
}

// New builds a scheduler over the given tasks, restoring persisted
// last-run times. Intervals below MinDeadline are raised to it; config is
// supposed to have clamped them already, this is the backstop.
func New(store Store, tasks ...Task) (*Scheduler, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("schedule: no tasks registered")
	}
	s := &Scheduler{store: store}
	seen := map[TaskID]bool{}
	for _, t := range tasks {
		if seen[t.ID] {
			return nil, fmt.Errorf("schedule: duplicate task %q", t.ID)
		}
		seen[t.ID] = true
		if t.Interval < MinDeadline {
			t.Interval = MinDeadline
		}
		tc := t
		s.tasks = append(s.tasks, &tc)
	}

	last, err := store.LoadLastRuns()
	if err != nil {
		// Treat an unreadable store as a cold start: all tasks run once.
		return s, fmt.Errorf("schedule: restore last runs: %w", err)
	}
	for _, t := range s.tasks {
		if ts, ok := last[t.ID]; ok {
			t.LastRun = ts
		}
	}
	return s, nil
}

// Due returns the identifiers of every task whose interval has elapsed,
// in registration order. A task that has never run is always due.
func (s *Scheduler) Due(now time.Time) []TaskID {
	var due []TaskID
	for _, t := range s.tasks {
		if t.LastRun.IsZero() || now.Sub(t.LastRun) >= t.Interval {
			due = append(due, t.ID)
		}
	}
	return due
}

// IDs returns every registered task, in registration order. Used on cold
// boot, where all tasks are forced due regardless of persisted state.
func (s *Scheduler) IDs() []TaskID {
	ids := make([]TaskID, len(s.tasks))
	for i, t := range s.tasks {
		ids[i] = t.ID
	}
	return ids
}

// MarkRun records a completed run and persists it immediately, so a power
// loss between activations cannot replay or skip work.
func (s *Scheduler) MarkRun(id TaskID, now time.Time) error {
	t := s.find(id)
	if t == nil {
		return fmt.Errorf("schedule: unknown task %q", id)
	}
	t.LastRun = now

	last := make(map[TaskID]time.Time, len(s.tasks))
	for _, t := range s.tasks {
		if !t.LastRun.IsZero() {
			last[t.ID] = t.LastRun
		}
	}
	if err := s.store.SaveLastRuns(last); err != nil {
		return fmt.Errorf("schedule: persist last runs: %w", err)
	}
	return nil
}

// NextDeadline returns the single alarm time: now plus the smallest
// remaining interval over all tasks, never less than MinDeadline in the
// future and never in the past.
func (s *Scheduler) NextDeadline(now time.Time) time.Time {
	min := s.tasks[0].Interval
	for _, t := range s.tasks {
		remaining := t.Interval
		if !t.LastRun.IsZero() {
			remaining = t.Interval - now.Sub(t.LastRun)
		} else {
			remaining = 0
		}
		if remaining < 0 {
			remaining = 0
		}
		if remaining < min {
			min = remaining
		}
	}
	if min < MinDeadline {
		min = MinDeadline
	}
	return now.Add(min)
}

func (s *Scheduler) find(id TaskID) *Task {
	for _, t := range s.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}
