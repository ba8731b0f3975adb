package core

import (
	"time"
)

// Response statuses used by the calendar service for attendees.
const (
	ResponseAccepted    = "accepted"
	ResponseDeclined    = "declined"
	ResponseTentative   = "tentative"
	ResponseNeedsAction = "needsAction"
)

// AccessOwner is the only calendar access role synced.
const AccessOwner = "owner"

// CalendarRef identifies a calendar discovered during a sync.
type CalendarRef struct {
	ID         string
	Summary    string
	AccessRole string
}

// Person is an organizer or creator of an event.
type Person struct {
	Email       string
	DisplayName string
	Self        bool
}

// Attendee is a single invitee. The sync only asks for the viewer's own entry.
type Attendee struct {
	Email          string
	DisplayName    string
	ResponseStatus string
	Self           bool
}

// EntryPoint is one way of joining a conference (video, phone, more).
type EntryPoint struct {
	Type  string
	URI   string
	Label string
}

// Conference holds the conferencing details attached to an event.
type Conference struct {
	// For example "Google Meet" or "Zoom Meeting"
	SolutionName string
	// Provider logo, fetched lazily through the icon cache
	IconURI     string
	EntryPoints []EntryPoint
}

// VideoURI returns the first video entry point, or "".
func (c *Conference) VideoURI() string {
	if c == nil {
		return ""
	}
	for _, ep := range c.EntryPoints {
		if ep.Type == "video" {
			return ep.URI
		}
	}
	return ""
}

// Event is a validated calendar event for the current sync cycle.
// Adapters convert their API items to this format at ingestion.
type Event struct {
	ID         string
	CalendarID string
	Summary    string
	// Calendar event page URL
	HTMLLink  string
	EventType string
	// Start and End keep the zone the service reported them in.
	Start time.Time
	End   time.Time
	// At most one entry: the viewer's own attendance.
	Attendees   []Attendee
	Organizer   *Person
	Creator     *Person
	Location    string
	Description string
	Conference  *Conference
	Created     time.Time
	Updated     time.Time
}

// Duration returns the length of the event.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// InProgress checks if the event is happening right now.
func (e Event) InProgress(now time.Time) bool {
	return !now.Before(e.Start) && now.Before(e.End)
}

// Declined reports whether the first listed attendee declined.
func (e Event) Declined() bool {
	return len(e.Attendees) > 0 && e.Attendees[0].ResponseStatus == ResponseDeclined
}

// Window is the half-open range of instants a sync asks for.
type Window struct {
	Min time.Time
	Max time.Time
}

// DayWindow returns the rest of now's UTC day: from now until 23:59:59.999999.
func DayWindow(now time.Time) Window {
	now = now.UTC()
	y, m, d := now.Date()
	return Window{
		Min: now,
		Max: time.Date(y, m, d, 23, 59, 59, 999999000, time.UTC),
	}
}
