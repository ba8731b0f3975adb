package google

import (
	"errors"
	"fmt"
	"time"

	"github.com/theakshaypant/today/internal/core"

	"google.golang.org/api/calendar/v3"
)

var (
	errNoSummary = errors.New("missing summary")
	errNoStart   = errors.New("missing start.dateTime")
	errNoEnd     = errors.New("missing end.dateTime")
)

// ParseEvent validates an API item and converts it to core.Event. Items
// without a summary or a timed start and end are rejected; all-day entries
// therefore never reach the live set.
func ParseEvent(item *calendar.Event, calendarID string) (core.Event, error) {
	if item == nil {
		return core.Event{}, errors.New("nil event")
	}
	if item.Summary == "" {
		return core.Event{}, errNoSummary
	}
	if item.Start == nil || item.Start.DateTime == "" {
		return core.Event{}, errNoStart
	}
	if item.End == nil || item.End.DateTime == "" {
		return core.Event{}, errNoEnd
	}

	start, err := parseDateTime(item.Start)
	if err != nil {
		return core.Event{}, fmt.Errorf("start: %w", err)
	}
	end, err := parseDateTime(item.End)
	if err != nil {
		return core.Event{}, fmt.Errorf("end: %w", err)
	}

	var attendees []core.Attendee
	for _, a := range item.Attendees {
		if a == nil {
			continue
		}
		attendees = append(attendees, core.Attendee{
			Email:          a.Email,
			DisplayName:    a.DisplayName,
			ResponseStatus: a.ResponseStatus,
			Self:           a.Self,
		})
	}

	ev := core.Event{
		ID:          item.Id,
		CalendarID:  calendarID,
		Summary:     item.Summary,
		HTMLLink:    item.HtmlLink,
		EventType:   item.EventType,
		Start:       start,
		End:         end,
		Attendees:   attendees,
		Location:    item.Location,
		Description: item.Description,
		Conference:  parseConference(item),
		Created:     parseStamp(item.Created),
		Updated:     parseStamp(item.Updated),
	}
	if o := item.Organizer; o != nil {
		ev.Organizer = &core.Person{Email: o.Email, DisplayName: o.DisplayName, Self: o.Self}
	}
	if c := item.Creator; c != nil {
		ev.Creator = &core.Person{Email: c.Email, DisplayName: c.DisplayName, Self: c.Self}
	}
	return ev, nil
}

// parseDateTime keeps the event's own zone when the service names one.
func parseDateTime(dt *calendar.EventDateTime) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, dt.DateTime)
	if err != nil {
		return time.Time{}, err
	}
	if dt.TimeZone != "" {
		if loc, err := time.LoadLocation(dt.TimeZone); err == nil {
			t = t.In(loc)
		}
	}
	return t, nil
}

func parseStamp(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseConference(item *calendar.Event) *core.Conference {
	cd := item.ConferenceData
	if cd == nil {
		// Legacy Hangouts link without conference data
		if item.HangoutLink != "" {
			return &core.Conference{
				SolutionName: "Google Meet",
				EntryPoints:  []core.EntryPoint{{Type: "video", URI: item.HangoutLink}},
			}
		}
		return nil
	}

	conf := &core.Conference{}
	if sol := cd.ConferenceSolution; sol != nil {
		conf.SolutionName = sol.Name
		conf.IconURI = sol.IconUri
	}
	for _, ep := range cd.EntryPoints {
		if ep == nil {
			continue
		}
		conf.EntryPoints = append(conf.EntryPoints, core.EntryPoint{
			Type:  ep.EntryPointType,
			URI:   ep.Uri,
			Label: ep.Label,
		})
	}
	return conf
}
