// Package slideflow is a branch-aware workflow scheduler for long-running
// slide analysis jobs. Workflows group jobs submitted by a user; the
// scheduler dispatches queued jobs through a bounded worker pool while
// keeping each branch serial and capping how many distinct users run at
// once.
package slideflow

import (
	"github.com/tissuelab/slideflow/internal/domain"
	"github.com/tissuelab/slideflow/internal/engine"
	"github.com/tissuelab/slideflow/internal/infrastructure/monitoring"
	"github.com/tissuelab/slideflow/internal/infrastructure/storage"
	"github.com/tissuelab/slideflow/internal/tasks"
)

// Job statuses.
const (
	JobStatusPending   = domain.JobStatusPending
	JobStatusRunning   = domain.JobStatusRunning
	JobStatusSucceeded = domain.JobStatusSucceeded
	JobStatusFailed    = domain.JobStatusFailed
	JobStatusCancelled = domain.JobStatusCancelled
)

// Job types.
const (
	JobTypeCellSegmentation = domain.JobTypeCellSegmentation
	JobTypeTissueMask       = domain.JobTypeTissueMask
)

// JobStatus is the lifecycle state of a job.
type JobStatus = domain.JobStatus

// JobType is the kind of slide processing a job performs.
type JobType = domain.JobType

// Job is the unit of schedulable work.
type Job = domain.Job

// JobView is an immutable snapshot of a job.
type JobView = domain.JobView

// Workflow is a user-owned grouping of jobs.
type Workflow = domain.Workflow

// Store is the in-memory state store the scheduler runs against.
type Store = storage.MemoryStore

// Scheduler is the admission loop.
type Scheduler = engine.Scheduler

// SchedulerConfig holds the scheduler limits.
type SchedulerConfig = engine.Config

// Dispatcher executes admitted jobs.
type Dispatcher = engine.Dispatcher

// TaskRegistry maps job types to task routines.
type TaskRegistry = tasks.Registry

// JobObserver receives job lifecycle events.
type JobObserver = monitoring.JobObserver

// ObserverManager fans job events out to registered observers.
type ObserverManager = monitoring.ObserverManager

// MetricsCollector aggregates per-type job metrics.
type MetricsCollector = monitoring.MetricsCollector
