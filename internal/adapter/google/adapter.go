package google

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/theakshaypant/today/internal/auth"
	"github.com/theakshaypant/today/internal/calsync"
	"github.com/theakshaypant/today/internal/core"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// SessionSource is satisfied by *auth.Authenticator.
type SessionSource interface {
	EnsureSession(ctx context.Context) (*auth.Session, error)
}

// Connector builds one calendar service per session and rebuilds it when
// the authenticator hands out a new one.
type Connector struct {
	sessions SessionSource
	opts     []option.ClientOption
	logger   *slog.Logger

	mu      sync.Mutex
	session *auth.Session
	client  *Client
}

// NewConnector creates a Connector. Extra options are appended after the
// session's HTTP client, which lets tests point at a local endpoint.
func NewConnector(sessions SessionSource, logger *slog.Logger, opts ...option.ClientOption) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{sessions: sessions, opts: opts, logger: logger}
}

func (c *Connector) Connect(ctx context.Context) (calsync.API, error) {
	s, err := c.sessions.EnsureSession(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil && c.session == s {
		return c.client, nil
	}

	opts := append([]option.ClientOption{option.WithHTTPClient(s.Client)}, c.opts...)
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	c.session = s
	c.client = NewClient(service, c.logger)
	c.logger.Debug("calendar service created")
	return c.client, nil
}

// Client adapts calendar.Service to calsync.API.
type Client struct {
	service *calendar.Service
	logger  *slog.Logger
}

func NewClient(service *calendar.Service, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{service: service, logger: logger}
}

func (c *Client) ListCalendars(ctx context.Context, pageToken string) ([]core.CalendarRef, string, error) {
	req := c.service.CalendarList.List().
		MinAccessRole(core.AccessOwner).
		Context(ctx)
	if pageToken != "" {
		req = req.PageToken(pageToken)
	}

	list, err := req.Do()
	if err != nil {
		return nil, "", err
	}

	refs := make([]core.CalendarRef, 0, len(list.Items))
	for _, item := range list.Items {
		refs = append(refs, core.CalendarRef{
			ID:         item.Id,
			Summary:    item.Summary,
			AccessRole: item.AccessRole,
		})
	}
	return refs, list.NextPageToken, nil
}

func (c *Client) ListEvents(ctx context.Context, calendarID string, w core.Window, pageToken string) ([]core.Event, string, error) {
	req := c.service.Events.List(calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(w.Min.Format(time.RFC3339Nano)).
		TimeMax(w.Max.Format(time.RFC3339Nano)).
		OrderBy("startTime").
		MaxAttendees(1).
		Context(ctx)
	if pageToken != "" {
		req = req.PageToken(pageToken)
	}

	result, err := req.Do()
	if err != nil {
		return nil, "", err
	}

	events := make([]core.Event, 0, len(result.Items))
	for _, item := range result.Items {
		ev, err := ParseEvent(item, calendarID)
		if err != nil {
			c.logger.Warn("skipping event", "calendar", calendarID, "id", item.Id, "err", err)
			continue
		}
		events = append(events, ev)
	}
	return events, result.NextPageToken, nil
}
