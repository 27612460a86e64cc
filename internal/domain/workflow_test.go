package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkflow_ProgressIsMeanOfJobs(t *testing.T) {
	w := NewWorkflow("u1")
	assert.Equal(t, 0.0, w.Progress())

	j1 := NewJob(w.ID(), "u1", "a", JobTypeCellSegmentation, "a.png")
	j2 := NewJob(w.ID(), "u1", "b", JobTypeTissueMask, "b.png")
	w.AddJob(j1)
	w.AddJob(j2)

	assert.Equal(t, 0.0, w.Progress())

	j1.SetProgress(50.0)
	assert.InDelta(t, 25.0, w.Progress(), 1e-9)

	j2.SetProgress(100.0)
	assert.InDelta(t, 75.0, w.Progress(), 1e-9)
}

func TestWorkflow_AddJobIgnoresDuplicates(t *testing.T) {
	w := NewWorkflow("u1")
	j := NewJob(w.ID(), "u1", "a", JobTypeTissueMask, "a.png")
	w.AddJob(j)
	w.AddJob(j)
	assert.Len(t, w.Jobs(), 1)
}

func TestWorkflow_JobsPreserveSubmissionOrder(t *testing.T) {
	w := NewWorkflow("u1")
	j1 := NewJob(w.ID(), "u1", "a", JobTypeTissueMask, "a.png")
	j2 := NewJob(w.ID(), "u1", "a", JobTypeTissueMask, "b.png")
	j3 := NewJob(w.ID(), "u1", "b", JobTypeTissueMask, "c.png")
	w.AddJob(j1)
	w.AddJob(j2)
	w.AddJob(j3)

	jobs := w.Jobs()
	assert.Equal(t, []string{j1.ID(), j2.ID(), j3.ID()}, []string{jobs[0].ID(), jobs[1].ID(), jobs[2].ID()})
}
