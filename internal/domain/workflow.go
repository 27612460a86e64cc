package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Workflow is a user-owned grouping of jobs. It carries no scheduling
// semantics of its own; its progress is derived from member jobs.
type Workflow struct {
	id        string
	userID    string
	createdAt time.Time

	mu   sync.RWMutex
	jobs []*Job
}

// NewWorkflow creates an empty workflow for the given user.
func NewWorkflow(userID string) *Workflow {
	return &Workflow{
		id:        uuid.New().String(),
		userID:    userID,
		createdAt: time.Now(),
	}
}

func (w *Workflow) ID() string     { return w.id }
func (w *Workflow) UserID() string { return w.userID }
func (w *Workflow) CreatedAt() time.Time {
	return w.createdAt
}

// AddJob appends a job to the workflow, ignoring duplicates by id.
func (w *Workflow) AddJob(job *Job) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, j := range w.jobs {
		if j.ID() == job.ID() {
			return
		}
	}
	w.jobs = append(w.jobs, job)
}

// Jobs returns the member jobs in submission order.
func (w *Workflow) Jobs() []*Job {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*Job, len(w.jobs))
	copy(out, w.jobs)
	return out
}

// Progress is the arithmetic mean of member-job progress, 0 when empty.
// The values are whatever each job reports at the instant of the read; no
// cross-job snapshot is taken.
func (w *Workflow) Progress() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.jobs) == 0 {
		return 0.0
	}
	var total float64
	for _, j := range w.jobs {
		total += j.Progress()
	}
	return total / float64(len(w.jobs))
}
