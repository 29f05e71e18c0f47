// Package caldav backs the calendar port with a CalDAV server (Radicale,
// Nextcloud, Fastmail, etc.). Each participant owns one calendar collection
// under a configurable path template.
package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	caldavproto "github.com/emersion/go-webdav/caldav"

	"github.com/felixgeelhaar/accord/internal/calendar/application"
)

// PropXAccord marks events created by this service.
const PropXAccord = "X-ACCORD"

// PropXAccordPriority carries the 1-5 priority on the VEVENT.
const PropXAccordPriority = "X-ACCORD-PRIORITY"

// Config holds the CalDAV connection settings.
type Config struct {
	BaseURL      string
	Username     string
	Password     string
	PathTemplate string        // e.g. "/calendars/%s/default/", %s is the participant
	Timeout      time.Duration // per-request HTTP timeout
}

// DefaultConfig returns settings suitable for a local Radicale instance.
func DefaultConfig() Config {
	return Config{
		BaseURL:      "http://localhost:5232",
		PathTemplate: "/calendars/%s/default/",
		Timeout:      30 * time.Second,
	}
}

// Client implements the calendar port against a CalDAV server. Delete scans
// the calendars of all known participants, so it needs a participant lister
// (normally the agent directory).
type Client struct {
	config       Config
	logger       *slog.Logger
	participants func(ctx context.Context) ([]string, error)

	mu    sync.RWMutex
	paths map[string][]string // event id -> object paths written by us
}

var _ application.Client = (*Client)(nil)

// NewClient creates a CalDAV-backed calendar client.
func NewClient(config Config, participants func(ctx context.Context) ([]string, error), logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config:       config,
		logger:       logger,
		participants: participants,
		paths:        make(map[string][]string),
	}
}

// Events returns the participant's events intersecting [start, end).
func (c *Client) Events(ctx context.Context, participant string, start, end time.Time) ([]application.Event, error) {
	client, err := c.dial()
	if err != nil {
		return nil, err
	}

	query := &caldavproto.CalendarQuery{
		CompRequest: caldavproto.CalendarCompRequest{
			Name:  "VCALENDAR",
			Props: []string{"VERSION"},
			Comps: []caldavproto.CalendarCompRequest{
				{
					Name: "VEVENT",
					Props: []string{
						"SUMMARY", "DTSTART", "DTEND", "UID", "DESCRIPTION",
						"ORGANIZER", "ATTENDEE", "RRULE", PropXAccordPriority,
					},
				},
			},
		},
		CompFilter: caldavproto.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldavproto.CompFilter{
				{
					Name:  "VEVENT",
					Start: start,
					End:   end,
				},
			},
		},
	}

	objects, err := client.QueryCalendar(ctx, c.calendarPath(participant), query)
	if err != nil {
		return nil, fmt.Errorf("query caldav calendar for %s: %w", participant, err)
	}

	var events []application.Event
	for i := range objects {
		event, ok := parseCalendarObject(&objects[i])
		if !ok {
			continue
		}
		if event.Overlaps(start, end) {
			events = append(events, event)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	return events, nil
}

// Create writes the event into every attendee's calendar under the same UID.
func (c *Client) Create(ctx context.Context, event application.Event) error {
	client, err := c.dial()
	if err != nil {
		return err
	}

	cal := toICalendar(event)
	var written []string
	for _, attendee := range event.Attendees {
		path := c.objectPath(attendee, event.ID)
		if _, err := client.PutCalendarObject(ctx, path, cal); err != nil {
			// Roll back partial placement so the event is all-or-nothing.
			for _, p := range written {
				if rmErr := client.RemoveAll(ctx, p); rmErr != nil {
					c.logger.Warn("caldav create rollback failed", "path", p, "error", rmErr)
				}
			}
			return fmt.Errorf("put caldav event %s for %s: %w", event.ID, attendee, err)
		}
		written = append(written, path)
	}

	c.mu.Lock()
	c.paths[event.ID] = written
	c.mu.Unlock()
	return nil
}

// Delete removes the event from every calendar it appears on. Events created
// by this client are removed by their recorded paths; anything else falls
// back to scanning the known participants' calendars.
func (c *Client) Delete(ctx context.Context, eventID string) error {
	client, err := c.dial()
	if err != nil {
		return err
	}

	c.mu.RLock()
	recorded := append([]string(nil), c.paths[eventID]...)
	c.mu.RUnlock()

	if len(recorded) > 0 {
		for _, path := range recorded {
			if err := client.RemoveAll(ctx, path); err != nil {
				return fmt.Errorf("remove caldav event %s: %w", eventID, err)
			}
		}
		c.mu.Lock()
		delete(c.paths, eventID)
		c.mu.Unlock()
		return nil
	}

	participants, err := c.participants(ctx)
	if err != nil {
		return fmt.Errorf("list participants for caldav delete: %w", err)
	}

	removed := 0
	for _, participant := range participants {
		path := c.objectPath(participant, eventID)
		if _, err := client.GetCalendarObject(ctx, path); err != nil {
			continue
		}
		if err := client.RemoveAll(ctx, path); err != nil {
			return fmt.Errorf("remove caldav event %s for %s: %w", eventID, participant, err)
		}
		removed++
	}
	if removed == 0 {
		return fmt.Errorf("delete caldav event %s: %w", eventID, application.ErrEventNotFound)
	}
	return nil
}

func (c *Client) dial() (*caldavproto.Client, error) {
	httpClient := &http.Client{Timeout: c.config.Timeout}
	client, err := caldavproto.NewClient(
		webdav.HTTPClientWithBasicAuth(httpClient, c.config.Username, c.config.Password),
		c.config.BaseURL,
	)
	if err != nil {
		return nil, fmt.Errorf("create caldav client: %w", err)
	}
	return client, nil
}

func (c *Client) calendarPath(participant string) string {
	return fmt.Sprintf(c.config.PathTemplate, strings.ToLower(strings.TrimSpace(participant)))
}

func (c *Client) objectPath(participant, eventID string) string {
	return c.calendarPath(participant) + eventID + ".ics"
}

// toICalendar converts an event to a single-VEVENT calendar.
func toICalendar(event application.Event) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//Accord//Meeting Negotiation//EN")

	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, event.ID)
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	vevent.Props.SetDateTime(ical.PropDateTimeStart, event.Start.UTC())
	vevent.Props.SetDateTime(ical.PropDateTimeEnd, event.End.UTC())
	vevent.Props.SetText(ical.PropSummary, event.Title)
	if event.Description != "" {
		vevent.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Organizer != "" {
		vevent.Props.SetText(ical.PropOrganizer, "mailto:"+event.Organizer)
	}
	for _, attendee := range event.Attendees {
		prop := ical.NewProp(ical.PropAttendee)
		prop.Value = "mailto:" + attendee
		vevent.Props[ical.PropAttendee] = append(vevent.Props[ical.PropAttendee], *prop)
	}
	if event.Recurring {
		vevent.Props.SetText(ical.PropRecurrenceRule, "FREQ=WEEKLY")
	}

	priorityProp := ical.NewProp(PropXAccordPriority)
	priorityProp.Value = fmt.Sprintf("%d", event.Priority)
	vevent.Props[PropXAccordPriority] = []ical.Prop{*priorityProp}

	accordProp := ical.NewProp(PropXAccord)
	accordProp.Value = "1"
	vevent.Props[PropXAccord] = []ical.Prop{*accordProp}

	cal.Children = append(cal.Children, vevent.Component)
	return cal
}

// parseCalendarObject extracts an event from the first VEVENT of an object.
func parseCalendarObject(obj *caldavproto.CalendarObject) (application.Event, bool) {
	if obj == nil || obj.Data == nil {
		return application.Event{}, false
	}

	for _, child := range obj.Data.Children {
		if child.Name != ical.CompEvent {
			continue
		}

		event := application.Event{ID: obj.Path}
		if props := child.Props[ical.PropUID]; len(props) > 0 {
			event.ID = props[0].Value
		}
		if props := child.Props[ical.PropSummary]; len(props) > 0 {
			event.Title = props[0].Value
		}
		if props := child.Props[ical.PropDescription]; len(props) > 0 {
			event.Description = props[0].Value
		}
		if props := child.Props[ical.PropOrganizer]; len(props) > 0 {
			event.Organizer = stripMailto(props[0].Value)
		}
		for _, prop := range child.Props[ical.PropAttendee] {
			event.Attendees = append(event.Attendees, stripMailto(prop.Value))
		}
		if props := child.Props[ical.PropRecurrenceRule]; len(props) > 0 {
			event.Recurring = true
		}
		event.Priority = 3
		if props := child.Props[PropXAccordPriority]; len(props) > 0 {
			fmt.Sscanf(props[0].Value, "%d", &event.Priority)
		}

		icalEvent := &ical.Event{Component: child}
		start, err := icalEvent.DateTimeStart(time.UTC)
		if err != nil {
			return application.Event{}, false
		}
		end, err := icalEvent.DateTimeEnd(time.UTC)
		if err != nil {
			return application.Event{}, false
		}
		event.Start, event.End = start, end
		return event, true
	}
	return application.Event{}, false
}

func stripMailto(value string) string {
	return strings.TrimPrefix(strings.ToLower(value), "mailto:")
}
