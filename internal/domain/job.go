package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tissuelab/slideflow/internal/domain/errors"
)

// Job is the unit of schedulable work: one slide-processing task owned by a
// user, serialized against other jobs on the same branch.
//
// Identity fields are immutable after construction. The mutable fields
// (status, progress, errorMessage) are guarded by the job's own lock: while a
// job is RUNNING its task runner is the only writer, and readers may observe
// progress between tile updates.
type Job struct {
	id         string
	workflowID string
	userID     string
	branch     string
	jobType    JobType
	slidePath  string

	mu           sync.RWMutex
	status       JobStatus
	progress     float64
	errorMessage string
	createdAt    time.Time
	finishedAt   time.Time
}

// NewJob creates a PENDING job with a generated id.
func NewJob(workflowID, userID, branch string, jobType JobType, slidePath string) *Job {
	return &Job{
		id:         uuid.New().String(),
		workflowID: workflowID,
		userID:     userID,
		branch:     branch,
		jobType:    jobType,
		slidePath:  slidePath,
		status:     JobStatusPending,
		createdAt:  time.Now(),
	}
}

// RestoreJob reconstructs a job with an explicit id and status.
func RestoreJob(id, workflowID, userID, branch string, jobType JobType, slidePath string, status JobStatus, progress float64) *Job {
	return &Job{
		id:         id,
		workflowID: workflowID,
		userID:     userID,
		branch:     branch,
		jobType:    jobType,
		slidePath:  slidePath,
		status:     status,
		progress:   progress,
		createdAt:  time.Now(),
	}
}

func (j *Job) ID() string         { return j.id }
func (j *Job) WorkflowID() string { return j.workflowID }
func (j *Job) UserID() string     { return j.userID }
func (j *Job) Branch() string     { return j.branch }
func (j *Job) Type() JobType      { return j.jobType }
func (j *Job) SlidePath() string  { return j.slidePath }
func (j *Job) CreatedAt() time.Time {
	return j.createdAt
}

// Status returns the current lifecycle state.
func (j *Job) Status() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Progress returns the current progress in [0, 100].
func (j *Job) Progress() float64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.progress
}

// ErrorMessage returns the failure message, empty unless the job FAILED.
func (j *Job) ErrorMessage() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.errorMessage
}

// FinishedAt returns the time the job reached a terminal state, zero before that.
func (j *Job) FinishedAt() time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.finishedAt
}

// SetProgress advances progress. Values are clamped to [0, 100] and progress
// never moves backwards for the lifetime of a run.
func (j *Job) SetProgress(p float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if p > 100.0 {
		p = 100.0
	}
	if p > j.progress {
		j.progress = p
	}
}

// MarkRunning transitions PENDING -> RUNNING.
func (j *Job) MarkRunning() error {
	return j.transition(JobStatusRunning, JobStatusPending)
}

// MarkSucceeded transitions RUNNING -> SUCCEEDED and pins progress to 100.
func (j *Job) MarkSucceeded() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != JobStatusRunning {
		return &errors.StateError{JobID: j.id, From: j.status.String(), To: JobStatusSucceeded.String()}
	}
	j.status = JobStatusSucceeded
	j.progress = 100.0
	j.finishedAt = time.Now()
	return nil
}

// MarkFailed transitions PENDING or RUNNING -> FAILED and records the message.
func (j *Job) MarkFailed(message string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != JobStatusRunning && j.status != JobStatusPending {
		return &errors.StateError{JobID: j.id, From: j.status.String(), To: JobStatusFailed.String()}
	}
	j.status = JobStatusFailed
	j.errorMessage = message
	j.finishedAt = time.Now()
	return nil
}

// MarkCancelled transitions PENDING -> CANCELLED. Jobs past admission cannot
// be cancelled.
func (j *Job) MarkCancelled() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != JobStatusPending {
		return errors.ErrJobNotCancellable
	}
	j.status = JobStatusCancelled
	j.finishedAt = time.Now()
	return nil
}

func (j *Job) transition(to JobStatus, from ...JobStatus) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, f := range from {
		if j.status == f {
			j.status = to
			if to.IsTerminal() {
				j.finishedAt = time.Now()
			}
			return nil
		}
	}
	return &errors.StateError{JobID: j.id, From: j.status.String(), To: to.String()}
}

// JobView is an immutable snapshot of a job, safe to hand to API layers.
type JobView struct {
	ID           string    `json:"job_id"`
	WorkflowID   string    `json:"workflow_id"`
	UserID       string    `json:"user_id"`
	Branch       string    `json:"branch"`
	Type         JobType   `json:"job_type"`
	SlidePath    string    `json:"slide_path"`
	Status       JobStatus `json:"status"`
	Progress     float64   `json:"progress"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// View returns a consistent snapshot of the job's fields.
func (j *Job) View() JobView {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return JobView{
		ID:           j.id,
		WorkflowID:   j.workflowID,
		UserID:       j.userID,
		Branch:       j.branch,
		Type:         j.jobType,
		SlidePath:    j.slidePath,
		Status:       j.status,
		Progress:     j.progress,
		ErrorMessage: j.errorMessage,
	}
}
