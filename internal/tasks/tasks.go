// Package tasks contains the per-job-type execution routines that drive a
// single job through the tiled processing pipeline.
package tasks

import (
	"context"
	"fmt"

	"github.com/tissuelab/slideflow/internal/domain"
)

// Slide processing parameters shared by both routines.
const (
	// TissueIntensityThreshold marks a pixel as tissue when its mean channel
	// brightness falls below it.
	TissueIntensityThreshold = 240

	// MinTissueRatio is the minimum tissue-pixel fraction for a tile to be
	// worth running inference on.
	MinTissueRatio = 0.05

	// MaxConcurrentInference bounds in-flight inference calls per job.
	MaxConcurrentInference = 4
)

// ProgressFunc is called after each tile advances a job's progress.
type ProgressFunc func(job *domain.Job)

// Task executes one job to completion. A returned error is fatal to the job;
// tile-scoped problems are absorbed inside the task.
type Task interface {
	Run(ctx context.Context, job *domain.Job) error
}

// Registry maps job types to their task routines.
type Registry struct {
	tasks map[domain.JobType]Task
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[domain.JobType]Task)}
}

// Register binds a task to a job type, replacing any previous binding.
func (r *Registry) Register(jobType domain.JobType, t Task) {
	r.tasks[jobType] = t
}

// Lookup resolves the task for a job type.
func (r *Registry) Lookup(jobType domain.JobType) (Task, error) {
	t, ok := r.tasks[jobType]
	if !ok {
		return nil, fmt.Errorf("unsupported job type: %s", jobType)
	}
	return t, nil
}

// advanceProgress sets job progress from the processed/total tile counts and
// fires the progress callback.
func advanceProgress(job *domain.Job, processed, total int, onProgress ProgressFunc) {
	job.SetProgress(float64(processed) / float64(total) * 100.0)
	if onProgress != nil {
		onProgress(job)
	}
}
