package application

import (
	"context"
	"strings"
	"time"
)

// Agent is a calendar-owning participant known to the service.
type Agent struct {
	ID           string
	Name         string
	RegisteredAt time.Time
}

// NewAgent creates a validated directory entry.
func NewAgent(id, name string) (Agent, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Agent{}, ErrEmptyAgentID
	}
	if name == "" {
		name = id
	}
	return Agent{ID: id, Name: name, RegisteredAt: time.Now().UTC()}, nil
}

// Directory tracks registered agents. Scheduling does not require
// registration; the directory exists for discovery and the agent endpoints.
type Directory interface {
	Register(ctx context.Context, agent Agent) error
	Get(ctx context.Context, id string) (Agent, error)
	List(ctx context.Context) ([]Agent, error)
}
