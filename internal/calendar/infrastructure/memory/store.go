// Package memory provides an in-process calendar backend. It is the default
// backend for development and the fixture store for tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/accord/internal/calendar/application"
)

// Store keeps events per participant, guarded by a single mutex. An event
// appears on the calendar of each of its attendees under the same id.
type Store struct {
	mu       sync.RWMutex
	byID     map[string]application.Event
	byAgent  map[string][]string // participant -> event ids
	agents   map[string]application.Agent
	agentIDs []string // registration order
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		byID:    make(map[string]application.Event),
		byAgent: make(map[string][]string),
		agents:  make(map[string]application.Agent),
	}
}

var (
	_ application.Client    = (*Store)(nil)
	_ application.Directory = (*Store)(nil)
)

// Events returns the participant's events intersecting [start, end).
func (s *Store) Events(_ context.Context, participant string, start, end time.Time) ([]application.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := normalize(participant)
	var events []application.Event
	for _, id := range s.byAgent[key] {
		event := s.byID[id]
		if event.Overlaps(start, end) {
			events = append(events, cloneEvent(event))
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	return events, nil
}

// Create places the event on every attendee's calendar.
func (s *Store) Create(_ context.Context, event application.Event) error {
	if event.ID == "" {
		return fmt.Errorf("create event: id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[event.ID]; exists {
		return fmt.Errorf("create event %s: %w", event.ID, application.ErrDuplicateEvent)
	}

	s.byID[event.ID] = cloneEvent(event)
	for _, attendee := range event.Attendees {
		key := normalize(attendee)
		s.byAgent[key] = append(s.byAgent[key], event.ID)
	}
	return nil
}

// Delete removes the event from every calendar it appears on.
func (s *Store) Delete(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.byID[eventID]
	if !ok {
		return fmt.Errorf("delete event %s: %w", eventID, application.ErrEventNotFound)
	}

	delete(s.byID, eventID)
	for _, attendee := range event.Attendees {
		key := normalize(attendee)
		ids := s.byAgent[key]
		for i, id := range ids {
			if id == eventID {
				s.byAgent[key] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
	}
	return nil
}

// Register adds an agent to the directory. Re-registering updates the name.
func (s *Store) Register(_ context.Context, agent application.Agent) error {
	if agent.ID == "" {
		return application.ErrEmptyAgentID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalize(agent.ID)
	if _, exists := s.agents[key]; !exists {
		s.agentIDs = append(s.agentIDs, key)
	}
	s.agents[key] = agent
	return nil
}

// Get returns a registered agent.
func (s *Store) Get(_ context.Context, id string) (application.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agent, ok := s.agents[normalize(id)]
	if !ok {
		return application.Agent{}, fmt.Errorf("agent %s: %w", id, application.ErrAgentNotFound)
	}
	return agent, nil
}

// List returns all registered agents in registration order.
func (s *Store) List(_ context.Context) ([]application.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agents := make([]application.Agent, 0, len(s.agentIDs))
	for _, id := range s.agentIDs {
		agents = append(agents, s.agents[id])
	}
	return agents, nil
}

func normalize(participant string) string {
	return strings.ToLower(strings.TrimSpace(participant))
}

func cloneEvent(e application.Event) application.Event {
	e.Attendees = append([]string(nil), e.Attendees...)
	return e
}
