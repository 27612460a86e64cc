// Package workflow provides the public submission types for composing slide
// processing workflows programmatically.
package workflow

// JobDef describes one job in a workflow submission.
type JobDef struct {
	Branch    string `json:"branch" yaml:"branch"`
	Type      string `json:"job_type" yaml:"job_type"`
	SlidePath string `json:"slide_path" yaml:"slide_path"`
}

// Definition describes a workflow submission: the set of jobs a user wants
// scheduled on their behalf.
type Definition struct {
	UserID string   `json:"user_id" yaml:"user_id"`
	Jobs   []JobDef `json:"jobs" yaml:"jobs"`
}
