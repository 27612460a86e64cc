package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/tissuelab/slideflow/internal/domain"
	derrors "github.com/tissuelab/slideflow/internal/domain/errors"
)

// CreateJobRequest represents one job in a workflow creation request
type CreateJobRequest struct {
	Branch    string `json:"branch"`
	JobType   string `json:"job_type"`
	SlidePath string `json:"slide_path"`
}

// CreateWorkflowRequest represents the request body for creating a workflow
type CreateWorkflowRequest struct {
	Jobs []CreateJobRequest `json:"jobs"`
}

// WorkflowResponse represents the response for a workflow
type WorkflowResponse struct {
	WorkflowID string           `json:"workflow_id"`
	UserID     string           `json:"user_id"`
	Jobs       []domain.JobView `json:"jobs"`
	Progress   float64          `json:"progress"`
}

func validateJobRequest(i int, jr CreateJobRequest) error {
	field := "jobs[" + strconv.Itoa(i) + "]"
	if jr.Branch == "" {
		return &derrors.ValidationError{Field: field + ".branch", Message: "required"}
	}
	if !domain.JobType(jr.JobType).IsValid() {
		return &derrors.ValidationError{Field: field + ".job_type", Message: "unknown job type " + jr.JobType}
	}
	if jr.SlidePath == "" {
		return &derrors.ValidationError{Field: field + ".slide_path", Message: "required"}
	}
	return nil
}

func workflowResponse(w *domain.Workflow) WorkflowResponse {
	jobs := w.Jobs()
	views := make([]domain.JobView, len(jobs))
	for i, j := range jobs {
		views[i] = j.View()
	}
	return WorkflowResponse{
		WorkflowID: w.ID(),
		UserID:     w.UserID(),
		Jobs:       views,
		Progress:   w.Progress(),
	}
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req CreateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	for i, jr := range req.Jobs {
		if err := validateJobRequest(i, jr); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	}

	workflow := domain.NewWorkflow(uid)
	jobs := make([]*domain.Job, 0, len(req.Jobs))
	for _, jr := range req.Jobs {
		job := domain.NewJob(workflow.ID(), uid, jr.Branch, domain.JobType(jr.JobType), jr.SlidePath)
		workflow.AddJob(job)
		jobs = append(jobs, job)
	}

	// Register the workflow with its full job list before any job becomes
	// schedulable, so no read ever sees a half-populated workflow.
	ctx := r.Context()
	if err := s.store.AddWorkflow(ctx, workflow); err != nil {
		writeError(w, http.StatusInternalServerError, "could not register workflow")
		return
	}
	for _, job := range jobs {
		if err := s.store.Enqueue(ctx, job); err != nil {
			writeError(w, http.StatusInternalServerError, "could not enqueue job")
			return
		}
	}

	writeJSON(w, http.StatusOK, workflowResponse(workflow))
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	workflows, err := s.store.ListUserWorkflows(r.Context(), uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list workflows")
		return
	}

	out := make([]WorkflowResponse, 0, len(workflows))
	for _, wf := range workflows {
		out = append(out, workflowResponse(wf))
	}
	writeJSON(w, http.StatusOK, out)
}

// getOwnedWorkflow fetches a workflow and hides other users' workflows
// behind 404.
func (s *Server) getOwnedWorkflow(w http.ResponseWriter, r *http.Request, uid string) (*domain.Workflow, bool) {
	workflow, err := s.store.GetWorkflow(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, derrors.ErrWorkflowNotFound) {
			writeError(w, http.StatusNotFound, "Workflow not found")
		} else {
			writeError(w, http.StatusInternalServerError, "could not fetch workflow")
		}
		return nil, false
	}
	if workflow.UserID() != uid {
		writeError(w, http.StatusNotFound, "Workflow not found")
		return nil, false
	}
	return workflow, true
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	workflow, ok := s.getOwnedWorkflow(w, r, uid)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, workflowResponse(workflow))
}

func (s *Server) handleGetWorkflowJobs(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	workflow, ok := s.getOwnedWorkflow(w, r, uid)
	if !ok {
		return
	}
	jobs := workflow.Jobs()
	views := make([]domain.JobView, len(jobs))
	for i, j := range jobs {
		views[i] = j.View()
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetWorkflowProgress(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	workflow, ok := s.getOwnedWorkflow(w, r, uid)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workflow_id": workflow.ID(),
		"progress":    workflow.Progress(),
	})
}
