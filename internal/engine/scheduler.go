package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tissuelab/slideflow/internal/domain"
	"github.com/tissuelab/slideflow/internal/infrastructure/monitoring"
	"github.com/tissuelab/slideflow/internal/infrastructure/storage"
)

// Scheduling limits.
const (
	// DefaultMaxWorkers caps jobs in RUNNING across all branches.
	DefaultMaxWorkers = 4

	// DefaultActiveUsersLimit caps distinct users with running work.
	DefaultActiveUsersLimit = 3

	// DefaultInterval is the pause between scheduling cycles.
	DefaultInterval = 100 * time.Millisecond
)

// Config holds the scheduler limits. Zero values fall back to the defaults.
type Config struct {
	Interval         time.Duration
	MaxWorkers       int
	ActiveUsersLimit int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = DefaultMaxWorkers
	}
	if c.ActiveUsersLimit <= 0 {
		c.ActiveUsersLimit = DefaultActiveUsersLimit
	}
	return c
}

// Scheduler is the admission loop. Each cycle it inspects every branch queue
// and the running set inside one store critical section, admits the
// head-of-queue jobs that satisfy the worker, branch, and active-user
// constraints, and launches a dispatcher per admitted job outside the
// critical section.
type Scheduler struct {
	store      *storage.MemoryStore
	dispatcher *Dispatcher
	observers  monitoring.JobObserver
	metrics    *monitoring.MetricsCollector
	cfg        Config
}

// NewScheduler creates a scheduler. observers and metrics may be nil.
func NewScheduler(store *storage.MemoryStore, dispatcher *Dispatcher, observers monitoring.JobObserver, metrics *monitoring.MetricsCollector, cfg Config) *Scheduler {
	return &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		observers:  observers,
		metrics:    metrics,
		cfg:        cfg.withDefaults(),
	}
}

// Run drives scheduling cycles until the context is cancelled. Jobs already
// dispatched keep running; Run only stops admitting new ones.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	log.Info().Int("max_workers", s.cfg.MaxWorkers).
		Int("active_users_limit", s.cfg.ActiveUsersLimit).
		Dur("interval", s.cfg.Interval).Msg("scheduler started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
		}

		for _, job := range s.Cycle() {
			view := job.View()
			log.Debug().Str("job_id", view.ID).Str("branch", view.Branch).
				Str("user_id", view.UserID).Msg("job admitted")
			if s.metrics != nil {
				s.metrics.RecordJobStarted(view.Type.String())
			}
			if s.observers != nil {
				s.observers.OnJobStarted(view)
			}
			go s.dispatcher.Dispatch(ctx, job)
		}
	}
}

// Cycle performs one scheduling pass and returns the jobs it moved to
// RUNNING, already registered in the running set and popped from their
// queues. Callers launch the dispatcher for each returned job.
func (s *Scheduler) Cycle() []*domain.Job {
	var started []*domain.Job

	s.store.Mutate(func(tx *storage.Tx) {
		if tx.RunningCount() >= s.cfg.MaxWorkers {
			return
		}

		activeUsers := tx.ActiveUsers()
		provisional := tx.RunningCount()
		var selected []*domain.Job

		for _, branch := range tx.Branches() {
			if provisional >= s.cfg.MaxWorkers {
				break
			}

			head := s.evictStaleHeads(tx, branch)
			if head == nil {
				continue
			}
			// Serial per branch: one running job per branch label.
			if tx.BranchBusy(branch) {
				continue
			}
			// Admitting a job for a new user must not open a slot past the
			// active-user cap.
			if _, active := activeUsers[head.UserID()]; !active && len(activeUsers) >= s.cfg.ActiveUsersLimit {
				continue
			}

			selected = append(selected, head)
			activeUsers[head.UserID()] = struct{}{}
			provisional++
		}

		for _, job := range selected {
			if err := job.MarkRunning(); err != nil {
				// Lost a race with cancellation before this cycle took the
				// lock; the stale entry gets evicted next pass.
				log.Warn().Err(err).Str("job_id", job.ID()).Msg("admission skipped")
				continue
			}
			if id, ok := tx.Head(job.Branch()); ok && id == job.ID() {
				tx.PopHead(job.Branch())
			}
			tx.AddRunning(job.ID())
			started = append(started, job)
		}
	})

	return started
}

// evictStaleHeads pops queue entries whose job is missing or no longer
// PENDING and returns the first live head, or nil when the queue drains.
func (s *Scheduler) evictStaleHeads(tx *storage.Tx, branch string) *domain.Job {
	for {
		id, ok := tx.Head(branch)
		if !ok {
			return nil
		}
		job, ok := tx.Job(id)
		if !ok || job.Status() != domain.JobStatusPending {
			tx.PopHead(branch)
			continue
		}
		return job
	}
}
