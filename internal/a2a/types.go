// Package a2a implements the A2A client: JSON-RPC 2.0 over HTTP
// to remote agent endpoints, with an in-memory user-scoped task store
// and observe/wait polling semantics.
package a2a

import "time"

// ServiceConfig is one entry of config.A2A.Services.
type ServiceConfig struct {
	Name     string
	Endpoint string
	Headers  map[string]string
	Auth     map[string]string // "bearer_token"|"token"|"api_key"
	TimeoutS int
}

// TaskSnapshot is the stored view of one remote task.
type TaskSnapshot struct {
	TaskID       string
	ContextID    string
	Status       string
	Endpoint     string
	ServiceName  string
	Answer       string
	UpdatedTime  time.Time
	RefreshError string
}

var terminalStatuses = map[string]bool{
	"completed": true,
	"failed":    true,
	"cancelled": true,
	"rejected":  true,
}

// IsTerminal reports whether status is a terminal task status.
func IsTerminal(status string) bool {
	return terminalStatuses[status]
}
