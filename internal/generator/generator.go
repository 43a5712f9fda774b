// Package generator turns a finalized course of appearance into persisted
// digitization processes. Generation runs asynchronously: the caller submits
// a (course snapshot, target) pair and never observes a return value; results
// land in the store, failures in the log.
package generator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"newscal/internal/course"
	applog "newscal/internal/log"
	"newscal/internal/store"
)

// Status of a generation job.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// ErrQueueFull is returned by Submit when the job queue is at capacity.
var ErrQueueFull = errors.New("generation queue is full")

// JobState is the externally visible state of one submitted job.
type JobState struct {
	ID           string    `json:"id"`
	Target       string    `json:"target"`
	Status       Status    `json:"status"`
	Error        string    `json:"error,omitempty"`
	ProcessCount int       `json:"process_count"`
	SubmittedAt  time.Time `json:"submitted_at"`
	FinishedAt   time.Time `json:"finished_at,omitzero"`
}

type job struct {
	id          string
	target      string
	snapshot    *course.Course
	granularity course.Granularity
}

// Manager runs generation jobs on a single background worker.
type Manager struct {
	store *store.Store
	jobs  chan job
	now   func() time.Time

	mu     sync.Mutex
	states map[string]*JobState

	wg sync.WaitGroup
}

// NewManager creates a manager persisting into st with the given queue
// capacity.
func NewManager(st *store.Store, queueSize int) *Manager {
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Manager{
		store:  st,
		jobs:   make(chan job, queueSize),
		now:    time.Now,
		states: make(map[string]*JobState),
	}
}

// Start launches the worker goroutine. It stops when ctx is canceled.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case j := <-m.jobs:
				m.run(ctx, j)
			}
		}
	}()
}

// Wait blocks until the worker has exited after Start's context was
// canceled.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Submit enqueues a generation job for the given course snapshot and target
// process title. The snapshot must not be shared with an editing session;
// callers pass Editor.Snapshot(). Submit never blocks: when the queue is
// full, ErrQueueFull is returned and nothing is enqueued.
func (m *Manager) Submit(target string, snapshot *course.Course, granularity course.Granularity) (string, error) {
	if snapshot == nil || snapshot.IsEmpty() {
		return "", errors.New("course snapshot is empty")
	}
	if granularity == "" {
		// Matches the export default: each day forms one process.
		granularity = course.GranularityDays
	}

	j := job{
		id:          uuid.NewString(),
		target:      target,
		snapshot:    snapshot,
		granularity: granularity,
	}

	m.mu.Lock()
	m.states[j.id] = &JobState{
		ID:          j.id,
		Target:      target,
		Status:      StatusPending,
		SubmittedAt: m.now(),
	}
	m.mu.Unlock()

	select {
	case m.jobs <- j:
		applog.Info("generation job submitted",
			"job_id", j.id, "target", target, "granularity", string(granularity))
		return j.id, nil
	default:
		m.mu.Lock()
		delete(m.states, j.id)
		m.mu.Unlock()
		return "", ErrQueueFull
	}
}

// Status returns the state of a submitted job.
func (m *Manager) Status(id string) (JobState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[id]
	if !ok {
		return JobState{}, false
	}
	return *state, true
}

// States returns a copy of all job states, newest first not guaranteed.
func (m *Manager) States() []JobState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]JobState, 0, len(m.states))
	for _, state := range m.states {
		out = append(out, *state)
	}
	return out
}

// PurgeFinished drops done/failed job records older than the given age and
// returns how many were removed. Wired to a cron schedule in the daemon.
func (m *Manager) PurgeFinished(olderThan time.Duration) int {
	cutoff := m.now().Add(-olderThan)
	m.mu.Lock()
	defer m.mu.Unlock()
	purged := 0
	for id, state := range m.states {
		if state.Status != StatusDone && state.Status != StatusFailed {
			continue
		}
		if state.FinishedAt.Before(cutoff) {
			delete(m.states, id)
			purged++
		}
	}
	return purged
}

func (m *Manager) setStatus(id string, update func(*JobState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.states[id]; ok {
		update(state)
	}
}

func (m *Manager) run(ctx context.Context, j job) {
	m.setStatus(j.id, func(s *JobState) { s.Status = StatusRunning })

	count, err := m.generate(ctx, j)
	finished := m.now()
	if err != nil {
		applog.Error("generation job failed", err, "job_id", j.id, "target", j.target)
		m.setStatus(j.id, func(s *JobState) {
			s.Status = StatusFailed
			s.Error = err.Error()
			s.FinishedAt = finished
		})
		return
	}

	applog.Info("generation job finished",
		"job_id", j.id, "target", j.target, "process_count", count)
	m.setStatus(j.id, func(s *JobState) {
		s.Status = StatusDone
		s.ProcessCount = count
		s.FinishedAt = finished
	})
}

// generate splits the snapshot and persists one process row per partition
// unit, all inside a single transaction.
func (m *Manager) generate(ctx context.Context, j job) (int, error) {
	j.snapshot.SplitInto(j.granularity)
	partition := j.snapshot.Processes()
	if len(partition) == 0 {
		return 0, errors.New("course produced no processes")
	}

	now := m.now()
	gen := store.Generation{
		ID:           j.id,
		Target:       j.target,
		Granularity:  string(j.granularity),
		ProcessCount: len(partition),
		CreatedAt:    now,
	}

	processes := make([]store.Process, 0, len(partition))
	for _, unit := range partition {
		first := unit[0].Date
		last := unit[len(unit)-1].Date
		processes = append(processes, store.Process{
			ID:           uuid.NewString(),
			GenerationID: j.id,
			Title:        processTitle(j.target, first, last),
			FirstDate:    first,
			LastDate:     last,
			IssueCount:   len(unit),
			CreatedAt:    now,
		})
	}

	if err := m.store.InsertGeneration(ctx, gen, processes); err != nil {
		return 0, fmt.Errorf("persisting generation %s: %w", j.id, err)
	}
	return len(partition), nil
}

// processTitle derives a stable process title from the target and the
// covered date range.
func processTitle(target string, first, last time.Time) string {
	if first.Equal(last) {
		return fmt.Sprintf("%s_%s", target, course.FormatDate(first))
	}
	return fmt.Sprintf("%s_%s-%s", target, course.FormatDate(first), course.FormatDate(last))
}
