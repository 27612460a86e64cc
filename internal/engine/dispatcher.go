package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tissuelab/slideflow/internal/domain"
	"github.com/tissuelab/slideflow/internal/infrastructure/monitoring"
	"github.com/tissuelab/slideflow/internal/infrastructure/storage"
	"github.com/tissuelab/slideflow/internal/tasks"
)

// Archiver records terminal jobs in durable storage. Optional.
type Archiver interface {
	ArchiveJob(ctx context.Context, j *domain.Job) error
}

// Dispatcher runs a job that the scheduler has just admitted: it selects the
// task routine for the job's type, executes it, finalizes the terminal
// status, and frees the running slot.
type Dispatcher struct {
	store     *storage.MemoryStore
	registry  *tasks.Registry
	observers monitoring.JobObserver
	metrics   *monitoring.MetricsCollector
	archive   Archiver
}

// NewDispatcher creates a dispatcher. observers, metrics, and archive may be
// nil.
func NewDispatcher(store *storage.MemoryStore, registry *tasks.Registry, observers monitoring.JobObserver, metrics *monitoring.MetricsCollector, archive Archiver) *Dispatcher {
	return &Dispatcher{
		store:     store,
		registry:  registry,
		observers: observers,
		metrics:   metrics,
		archive:   archive,
	}
}

// Dispatch executes the job and finalizes it. The job must already be
// RUNNING and present in the store's running set. Dispatch never lets a task
// failure escape: any error or panic ends as a FAILED job, not a dead
// process.
func (d *Dispatcher) Dispatch(ctx context.Context, job *domain.Job) {
	start := time.Now()

	err := d.run(ctx, job)

	if err != nil {
		if markErr := job.MarkFailed(err.Error()); markErr != nil {
			log.Error().Err(markErr).Str("job_id", job.ID()).Msg("could not mark job failed")
		}
	} else if job.Status() == domain.JobStatusRunning {
		if markErr := job.MarkSucceeded(); markErr != nil {
			log.Error().Err(markErr).Str("job_id", job.ID()).Msg("could not mark job succeeded")
		}
	}

	d.store.Mutate(func(tx *storage.Tx) {
		tx.RemoveRunning(job.ID())
	})

	d.finalize(ctx, job, err, time.Since(start))
}

// run resolves and executes the task routine, converting panics to errors.
func (d *Dispatcher) run(ctx context.Context, job *domain.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()

	task, lookupErr := d.registry.Lookup(job.Type())
	if lookupErr != nil {
		return fmt.Errorf("Unsupported job type: %s", job.Type())
	}
	return task.Run(ctx, job)
}

func (d *Dispatcher) finalize(ctx context.Context, job *domain.Job, runErr error, duration time.Duration) {
	view := job.View()
	switch view.Status {
	case domain.JobStatusSucceeded:
		log.Info().Str("job_id", view.ID).Str("branch", view.Branch).
			Dur("duration", duration).Msg("job succeeded")
		if d.metrics != nil {
			d.metrics.RecordJobSucceeded(view.Type.String(), duration)
		}
		if d.observers != nil {
			d.observers.OnJobSucceeded(view, duration)
		}
	case domain.JobStatusFailed:
		log.Error().Err(runErr).Str("job_id", view.ID).Str("branch", view.Branch).
			Dur("duration", duration).Msg("job failed")
		if d.metrics != nil {
			d.metrics.RecordJobFailed(view.Type.String(), duration)
		}
		if d.observers != nil {
			d.observers.OnJobFailed(view, runErr, duration)
		}
	}

	if d.archive != nil {
		if err := d.archive.ArchiveJob(ctx, job); err != nil {
			log.Error().Err(err).Str("job_id", view.ID).Msg("job archive write failed")
		}
	}
}
