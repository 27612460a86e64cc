package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tissuelab/slideflow/internal/domain"
	"github.com/tissuelab/slideflow/internal/infrastructure/storage"
	"github.com/tissuelab/slideflow/internal/tasks"
)

// funcTask adapts a function into a tasks.Task for testing.
type funcTask struct {
	fn func(ctx context.Context, job *domain.Job) error
}

func (t *funcTask) Run(ctx context.Context, job *domain.Job) error {
	return t.fn(ctx, job)
}

// admit moves a pending job into RUNNING and the running set, the way the
// scheduler does before handing it to the dispatcher.
func admit(t *testing.T, store *storage.MemoryStore, job *domain.Job) {
	t.Helper()
	require.NoError(t, job.MarkRunning())
	store.Mutate(func(tx *storage.Tx) {
		tx.AddRunning(job.ID())
	})
}

func runningCount(store *storage.MemoryStore) int {
	var n int
	store.Mutate(func(tx *storage.Tx) {
		n = tx.RunningCount()
	})
	return n
}

func TestDispatcher_Success(t *testing.T) {
	store := storage.NewMemoryStore()
	registry := tasks.NewRegistry()
	registry.Register(domain.JobTypeTissueMask, &funcTask{fn: func(ctx context.Context, job *domain.Job) error {
		job.SetProgress(50.0)
		return nil
	}})
	d := NewDispatcher(store, registry, nil, nil, nil)

	job := domain.NewJob("wf", "u1", "main", domain.JobTypeTissueMask, "slide.png")
	require.NoError(t, store.AddJob(context.Background(), job))
	admit(t, store, job)

	d.Dispatch(context.Background(), job)

	assert.Equal(t, domain.JobStatusSucceeded, job.Status())
	assert.Equal(t, 100.0, job.Progress())
	assert.Equal(t, 0, runningCount(store))
}

func TestDispatcher_FatalError(t *testing.T) {
	store := storage.NewMemoryStore()
	registry := tasks.NewRegistry()
	registry.Register(domain.JobTypeTissueMask, &funcTask{fn: func(ctx context.Context, job *domain.Job) error {
		return errors.New("cannot open slide")
	}})
	d := NewDispatcher(store, registry, nil, nil, nil)

	job := domain.NewJob("wf", "u1", "main", domain.JobTypeTissueMask, "missing.png")
	require.NoError(t, store.AddJob(context.Background(), job))
	admit(t, store, job)

	d.Dispatch(context.Background(), job)

	assert.Equal(t, domain.JobStatusFailed, job.Status())
	assert.Equal(t, "cannot open slide", job.ErrorMessage())
	assert.Less(t, job.Progress(), 100.0)
	assert.Equal(t, 0, runningCount(store))
}

func TestDispatcher_UnknownJobType(t *testing.T) {
	store := storage.NewMemoryStore()
	d := NewDispatcher(store, tasks.NewRegistry(), nil, nil, nil)

	job := domain.NewJob("wf", "u1", "main", domain.JobType("SPECTRAL_UNMIXING"), "slide.png")
	require.NoError(t, store.AddJob(context.Background(), job))
	admit(t, store, job)

	d.Dispatch(context.Background(), job)

	assert.Equal(t, domain.JobStatusFailed, job.Status())
	assert.Equal(t, "Unsupported job type: SPECTRAL_UNMIXING", job.ErrorMessage())
	assert.Equal(t, 0, runningCount(store))
}

func TestDispatcher_PanicBecomesFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	registry := tasks.NewRegistry()
	registry.Register(domain.JobTypeCellSegmentation, &funcTask{fn: func(ctx context.Context, job *domain.Job) error {
		panic("index out of range")
	}})
	d := NewDispatcher(store, registry, nil, nil, nil)

	job := domain.NewJob("wf", "u1", "main", domain.JobTypeCellSegmentation, "slide.png")
	require.NoError(t, store.AddJob(context.Background(), job))
	admit(t, store, job)

	d.Dispatch(context.Background(), job)

	assert.Equal(t, domain.JobStatusFailed, job.Status())
	assert.Contains(t, job.ErrorMessage(), "task panic")
	assert.Equal(t, 0, runningCount(store))
}

func TestDispatcher_TerminalFieldsStable(t *testing.T) {
	store := storage.NewMemoryStore()
	registry := tasks.NewRegistry()
	registry.Register(domain.JobTypeTissueMask, &funcTask{fn: func(ctx context.Context, job *domain.Job) error {
		return nil
	}})
	d := NewDispatcher(store, registry, nil, nil, nil)

	job := domain.NewJob("wf", "u1", "main", domain.JobTypeTissueMask, "slide.png")
	require.NoError(t, store.AddJob(context.Background(), job))
	admit(t, store, job)
	d.Dispatch(context.Background(), job)

	first := job.View()
	second := job.View()
	assert.Equal(t, first, second)

	// terminal jobs reject further transitions
	assert.Error(t, job.MarkRunning())
	assert.Error(t, job.MarkCancelled())
}
