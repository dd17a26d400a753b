package domain

import "time"

// ArtifactEvent announces a file written by a pipeline stage.
type ArtifactEvent struct {
	RunID     string    `json:"run_id"`
	Stage     string    `json:"stage"`
	Variable  string    `json:"variable"`
	Product   string    `json:"product"`
	Path      string    `json:"path"`
	SHA256    string    `json:"sha256"`
	Bytes     int64     `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}
