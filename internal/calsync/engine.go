// Package calsync builds today's live event set: it discovers owned
// calendars, pages through each one's events and filters the result.
package calsync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/theakshaypant/today/internal/core"
	"github.com/theakshaypant/today/internal/paging"

	"k8s.io/utils/clock"
)

// API is the remote calendar service as seen by one refresh.
type API interface {
	// ListCalendars returns one page of calendars the viewer owns.
	ListCalendars(ctx context.Context, pageToken string) ([]core.CalendarRef, string, error)
	// ListEvents returns one page of expanded, start-ordered events of a
	// calendar within w. Items that fail validation are already dropped.
	ListEvents(ctx context.Context, calendarID string, w core.Window, pageToken string) ([]core.Event, string, error)
}

// Connector hands out an API bound to a valid session.
type Connector interface {
	Connect(ctx context.Context) (API, error)
}

// Options bound paging; zero values mean no cap and no per-call timeout.
type Options struct {
	MaxPages    int
	CallTimeout time.Duration
}

// Engine performs full refreshes. It holds no event state between calls.
type Engine struct {
	connector Connector
	clock     clock.PassiveClock
	opts      Options
	logger    *slog.Logger
}

func NewEngine(connector Connector, clk clock.PassiveClock, opts Options, logger *slog.Logger) *Engine {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{connector: connector, clock: clk, opts: opts, logger: logger}
}

// Refresh returns the rest of today's events across owned calendars, in
// calendar enumeration order and by start time within each calendar.
// It is all-or-nothing: any listing failure discards everything fetched.
func (e *Engine) Refresh(ctx context.Context) ([]core.Event, error) {
	api, err := e.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}

	calendars, err := paging.FetchAll(ctx, api.ListCalendars, e.pagingOptions("list calendars")...)
	if err != nil {
		return nil, err
	}

	window := core.DayWindow(e.clock.Now())

	var events []core.Event
	for _, cal := range calendars {
		if cal.AccessRole != core.AccessOwner {
			continue
		}

		calID := cal.ID
		query := func(ctx context.Context, token string) ([]core.Event, string, error) {
			return api.ListEvents(ctx, calID, window, token)
		}
		items, err := paging.FetchAll(ctx, query, e.pagingOptions("list events "+calID)...)
		if err != nil {
			return nil, err
		}

		kept := 0
		for _, ev := range items {
			if ev.Declined() {
				continue
			}
			events = append(events, ev)
			kept++
		}
		e.logger.Debug("calendar synced", "calendar", calID, "fetched", len(items), "kept", kept)
	}

	e.logger.Info("refresh complete",
		"calendars", len(calendars),
		"events", len(events),
		"window", fmt.Sprintf("%s..%s", window.Min.Format(time.RFC3339), window.Max.Format(time.RFC3339)),
	)
	return events, nil
}

// Calendars lists owned calendars without fetching events.
func (e *Engine) Calendars(ctx context.Context) ([]core.CalendarRef, error) {
	api, err := e.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	all, err := paging.FetchAll(ctx, api.ListCalendars, e.pagingOptions("list calendars")...)
	if err != nil {
		return nil, err
	}
	owned := all[:0]
	for _, c := range all {
		if c.AccessRole == core.AccessOwner {
			owned = append(owned, c)
		}
	}
	return owned, nil
}

func (e *Engine) pagingOptions(op string) []paging.Option {
	return []paging.Option{
		paging.WithOp(op),
		paging.WithMaxPages(e.opts.MaxPages),
		paging.WithCallTimeout(e.opts.CallTimeout),
	}
}
