package websocket

import (
	"time"

	"github.com/tissuelab/slideflow/internal/domain"
	"github.com/tissuelab/slideflow/internal/infrastructure/monitoring"
)

// Ensure SocketObserver implements JobObserver
var _ monitoring.JobObserver = (*SocketObserver)(nil)

// SocketObserver implements monitoring.JobObserver and broadcasts job events
// to WebSocket clients through the Broadcaster interface.
type SocketObserver struct {
	hub Broadcaster
}

// NewSocketObserver creates a new SocketObserver
func NewSocketObserver(hub Broadcaster) *SocketObserver {
	return &SocketObserver{
		hub: hub,
	}
}

func (so *SocketObserver) event(eventType string, job domain.JobView) *WSEvent {
	ev := NewWSEvent(eventType, job.WorkflowID, job.ID)
	ev.Branch = job.Branch
	ev.JobType = job.Type.String()
	ev.Status = job.Status.String()
	ev.Progress = job.Progress
	return ev
}

// OnJobStarted broadcasts a job admission.
func (so *SocketObserver) OnJobStarted(job domain.JobView) {
	so.hub.Broadcast(job.UserID, job.WorkflowID, job.ID, so.event(EventJobStarted, job))
}

// OnJobProgress broadcasts a progress update.
func (so *SocketObserver) OnJobProgress(job domain.JobView) {
	so.hub.Broadcast(job.UserID, job.WorkflowID, job.ID, so.event(EventJobProgress, job))
}

// OnJobSucceeded broadcasts a successful completion.
func (so *SocketObserver) OnJobSucceeded(job domain.JobView, duration time.Duration) {
	ev := so.event(EventJobSucceeded, job)
	ev.DurationMs = duration.Milliseconds()
	so.hub.Broadcast(job.UserID, job.WorkflowID, job.ID, ev)
}

// OnJobFailed broadcasts a fatal failure.
func (so *SocketObserver) OnJobFailed(job domain.JobView, err error, duration time.Duration) {
	ev := so.event(EventJobFailed, job)
	ev.DurationMs = duration.Milliseconds()
	if err != nil {
		ev.Error = err.Error()
	} else if job.ErrorMessage != "" {
		ev.Error = job.ErrorMessage
	}
	so.hub.Broadcast(job.UserID, job.WorkflowID, job.ID, ev)
}

// OnJobCancelled broadcasts a cancellation.
func (so *SocketObserver) OnJobCancelled(job domain.JobView) {
	so.hub.Broadcast(job.UserID, job.WorkflowID, job.ID, so.event(EventJobCancelled, job))
}
