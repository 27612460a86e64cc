package websocket

import (
	"time"
)

// Event types (server -> client)
const (
	EventJobStarted   = "job.started"
	EventJobProgress  = "job.progress"
	EventJobSucceeded = "job.succeeded"
	EventJobFailed    = "job.failed"
	EventJobCancelled = "job.cancelled"
)

// Command types (client -> server)
const (
	CmdSubscribe   = "subscribe"
	CmdUnsubscribe = "unsubscribe"
)

// WSEvent represents an event sent from server to client
type WSEvent struct {
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
	JobID      string    `json:"job_id"`

	// Job-specific fields (optional)
	Branch     string  `json:"branch,omitempty"`
	JobType    string  `json:"job_type,omitempty"`
	Status     string  `json:"status,omitempty"`
	Progress   float64 `json:"progress"`
	DurationMs int64   `json:"duration_ms,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// WSCommand represents a command sent from client to server
type WSCommand struct {
	Action     string `json:"action"`
	JobID      string `json:"job_id,omitempty"`
	WorkflowID string `json:"workflow_id,omitempty"`
}

// WSResponse represents a response to a client command
type WSResponse struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewWSEvent creates a new WSEvent with the given type and IDs
func NewWSEvent(eventType, workflowID, jobID string) *WSEvent {
	return &WSEvent{
		Type:       eventType,
		Timestamp:  time.Now(),
		WorkflowID: workflowID,
		JobID:      jobID,
	}
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(responseType, message string) *WSResponse {
	return &WSResponse{
		Type:    responseType,
		Success: true,
		Message: message,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(responseType, errorMsg string) *WSResponse {
	return &WSResponse{
		Type:    responseType,
		Success: false,
		Error:   errorMsg,
	}
}
