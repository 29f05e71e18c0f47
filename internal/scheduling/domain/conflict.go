package domain

// Conflict describes an existing event that overlaps a requested slot and
// would need to be relocated for the request to be placed there.
type Conflict struct {
	EventID   string
	Summary   string
	Original  TimeRange
	Relocated *TimeRange // set once the negotiation engine finds a new slot
	Attendees []string
	Priority  int
}

// Clone returns a deep copy so proposals never share relocation state.
func (c Conflict) Clone() Conflict {
	cp := c
	cp.Attendees = append([]string(nil), c.Attendees...)
	if c.Relocated != nil {
		relocated := *c.Relocated
		cp.Relocated = &relocated
	}
	return cp
}

// ConflictSet is an insertion-ordered collection of conflicts keyed by event
// id. Adding a conflict whose event id is already present merges the attendee
// sets instead of producing a duplicate entry; two records for the same event
// are a correctness bug, not a display nicety.
type ConflictSet struct {
	order []string
	byID  map[string]*Conflict
}

// NewConflictSet creates an empty conflict set.
func NewConflictSet() *ConflictSet {
	return &ConflictSet{byID: make(map[string]*Conflict)}
}

// Add inserts a conflict or merges it into the existing entry for its event id.
func (s *ConflictSet) Add(c Conflict) {
	existing, ok := s.byID[c.EventID]
	if !ok {
		clone := c.Clone()
		s.byID[c.EventID] = &clone
		s.order = append(s.order, c.EventID)
		return
	}

	for _, attendee := range c.Attendees {
		if !containsString(existing.Attendees, attendee) {
			existing.Attendees = append(existing.Attendees, attendee)
		}
	}
	if existing.Relocated == nil && c.Relocated != nil {
		relocated := *c.Relocated
		existing.Relocated = &relocated
	}
}

// AddAll inserts every conflict in order.
func (s *ConflictSet) AddAll(conflicts []Conflict) {
	for _, c := range conflicts {
		s.Add(c)
	}
}

// Get returns the conflict for an event id, if present.
func (s *ConflictSet) Get(eventID string) (Conflict, bool) {
	c, ok := s.byID[eventID]
	if !ok {
		return Conflict{}, false
	}
	return c.Clone(), true
}

// Len returns the number of distinct conflicting events.
func (s *ConflictSet) Len() int {
	return len(s.order)
}

// Conflicts returns the merged conflicts in insertion order.
func (s *ConflictSet) Conflicts() []Conflict {
	out := make([]Conflict, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// Attendees returns the unique union of all conflict attendees, in first-seen order.
func (s *ConflictSet) Attendees() []string {
	var union []string
	for _, id := range s.order {
		for _, attendee := range s.byID[id].Attendees {
			if !containsString(union, attendee) {
				union = append(union, attendee)
			}
		}
	}
	return union
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
