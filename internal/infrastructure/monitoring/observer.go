package monitoring

import (
	"sync"
	"time"

	"github.com/tissuelab/slideflow/internal/domain"
)

// JobObserver defines the interface for observing job lifecycle events.
// Implementations can use this to monitor, log, stream, or react to jobs as
// the scheduler drives them.
type JobObserver interface {
	// OnJobStarted is called when the scheduler admits a job to RUNNING
	OnJobStarted(job domain.JobView)

	// OnJobProgress is called after a task runner advances job progress.
	// Called from the runner's tile loop; implementations must be cheap.
	OnJobProgress(job domain.JobView)

	// OnJobSucceeded is called when a job completes successfully
	OnJobSucceeded(job domain.JobView, duration time.Duration)

	// OnJobFailed is called when a job fails fatally
	OnJobFailed(job domain.JobView, err error, duration time.Duration)

	// OnJobCancelled is called when a pending job is cancelled
	OnJobCancelled(job domain.JobView)
}

// ObserverManager fans events out to registered observers.
type ObserverManager struct {
	mu        sync.RWMutex
	observers []JobObserver
}

// NewObserverManager creates an empty manager.
func NewObserverManager() *ObserverManager {
	return &ObserverManager{}
}

// Register adds an observer.
func (m *ObserverManager) Register(o JobObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

func (m *ObserverManager) snapshot() []JobObserver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]JobObserver, len(m.observers))
	copy(out, m.observers)
	return out
}

// OnJobStarted notifies all observers.
func (m *ObserverManager) OnJobStarted(job domain.JobView) {
	for _, o := range m.snapshot() {
		o.OnJobStarted(job)
	}
}

// OnJobProgress notifies all observers.
func (m *ObserverManager) OnJobProgress(job domain.JobView) {
	for _, o := range m.snapshot() {
		o.OnJobProgress(job)
	}
}

// OnJobSucceeded notifies all observers.
func (m *ObserverManager) OnJobSucceeded(job domain.JobView, duration time.Duration) {
	for _, o := range m.snapshot() {
		o.OnJobSucceeded(job, duration)
	}
}

// OnJobFailed notifies all observers.
func (m *ObserverManager) OnJobFailed(job domain.JobView, err error, duration time.Duration) {
	for _, o := range m.snapshot() {
		o.OnJobFailed(job, err, duration)
	}
}

// OnJobCancelled notifies all observers.
func (m *ObserverManager) OnJobCancelled(job domain.JobView) {
	for _, o := range m.snapshot() {
		o.OnJobCancelled(job)
	}
}

var _ JobObserver = (*ObserverManager)(nil)
