// Package gsuite wraps the Google Calendar and Gmail APIs with the simple
// record shapes the rest of hisho exchanges with the agents.
package gsuite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/hisho-bot/hisho/internal/models"
)

// JST anchors all calendar windows; the assistant serves Japanese users.
var JST = time.FixedZone("JST", 9*60*60)

const defaultCalendarID = "primary"

// Calendar wraps the Calendar API for a single user's credentials.
type Calendar struct {
	svc *calendar.Service
}

// NewCalendar builds a Calendar wrapper on the given token source.
func NewCalendar(ctx context.Context, ts oauth2.TokenSource) (*Calendar, error) {
	svc, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &Calendar{svc: svc}, nil
}

// ListEvents returns upcoming events within the given date range. Empty
// bounds default to now and one week out.
func (c *Calendar) ListEvents(ctx context.Context, dateFrom, dateTo string, maxResults int64) ([]models.CalendarEvent, error) {
	now := time.Now().In(JST)
	timeMin := now.Format(time.RFC3339)
	if dateFrom != "" {
		timeMin = dateFrom + "T00:00:00+09:00"
	}
	timeMax := now.AddDate(0, 0, 7).Format(time.RFC3339)
	if dateTo != "" {
		timeMax = dateTo + "T23:59:59+09:00"
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	res, err := c.svc.Events.List(defaultCalendarID).
		TimeMin(timeMin).
		TimeMax(timeMax).
		MaxResults(maxResults).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]models.CalendarEvent, 0, len(res.Items))
	for _, item := range res.Items {
		events = append(events, parseEvent(item))
	}
	return events, nil
}

// GetEvent returns one event by ID.
func (c *Calendar) GetEvent(ctx context.Context, eventID string) (*models.CalendarEvent, error) {
	item, err := c.svc.Events.Get(defaultCalendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", eventID, err)
	}
	ev := parseEvent(item)
	return &ev, nil
}

// CreateEvent inserts a new event.
func (c *Calendar) CreateEvent(ctx context.Context, summary, start, end string) (*models.CalendarEvent, error) {
	body := &calendar.Event{
		Summary: summary,
		Start:   buildDateTime(start),
		End:     buildDateTime(end),
	}
	item, err := c.svc.Events.Insert(defaultCalendarID, body).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	slog.Info("gsuite: created event", "eventID", item.Id)
	ev := parseEvent(item)
	return &ev, nil
}

// UpdateEvent patches an existing event. Empty fields keep their current
// values.
func (c *Calendar) UpdateEvent(ctx context.Context, eventID, summary, start, end string) (*models.CalendarEvent, error) {
	patch := &calendar.Event{}
	if summary != "" {
		patch.Summary = summary
	}
	if start != "" {
		patch.Start = buildDateTime(start)
	}
	if end != "" {
		patch.End = buildDateTime(end)
	}
	item, err := c.svc.Events.Patch(defaultCalendarID, eventID, patch).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to update event %s: %w", eventID, err)
	}
	slog.Info("gsuite: updated event", "eventID", eventID)
	ev := parseEvent(item)
	return &ev, nil
}

// InviteAttendees adds attendees to an event and sends them invitations.
func (c *Calendar) InviteAttendees(ctx context.Context, eventID string, emails []string) (*models.CalendarEvent, error) {
	item, err := c.svc.Events.Get(defaultCalendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", eventID, err)
	}
	for _, email := range emails {
		item.Attendees = append(item.Attendees, &calendar.EventAttendee{Email: email})
	}
	updated, err := c.svc.Events.Update(defaultCalendarID, eventID, item).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to invite attendees to event %s: %w", eventID, err)
	}
	ev := parseEvent(updated)
	return &ev, nil
}

// DeleteEvent removes an event by ID.
func (c *Calendar) DeleteEvent(ctx context.Context, eventID string) error {
	if err := c.svc.Events.Delete(defaultCalendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete event %s: %w", eventID, err)
	}
	slog.Info("gsuite: deleted event", "eventID", eventID)
	return nil
}

// FreeBusy returns the busy intervals within the given date range.
func (c *Calendar) FreeBusy(ctx context.Context, dateFrom, dateTo string) ([]models.BusySlot, error) {
	req := &calendar.FreeBusyRequest{
		TimeMin: dateFrom + "T00:00:00+09:00",
		TimeMax: dateTo + "T23:59:59+09:00",
		Items:   []*calendar.FreeBusyRequestItem{{Id: defaultCalendarID}},
	}
	res, err := c.svc.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("free/busy query failed: %w", err)
	}

	var slots []models.BusySlot
	if cal, ok := res.Calendars[defaultCalendarID]; ok {
		for _, period := range cal.Busy {
			slots = append(slots, models.BusySlot{Start: period.Start, End: period.End})
		}
	}
	return slots, nil
}

func buildDateTime(s string) *calendar.EventDateTime {
	// A bare YYYY-MM-DD means an all-day event.
	if len(s) == len("2006-01-02") {
		return &calendar.EventDateTime{Date: s}
	}
	return &calendar.EventDateTime{DateTime: s, TimeZone: "Asia/Tokyo"}
}

func parseEvent(item *calendar.Event) models.CalendarEvent {
	summary := item.Summary
	if summary == "" {
		summary = "(タイトルなし)"
	}
	attendees := make([]string, 0, len(item.Attendees))
	for _, a := range item.Attendees {
		attendees = append(attendees, a.Email)
	}
	return models.CalendarEvent{
		ID:          item.Id,
		Summary:     summary,
		Start:       eventTime(item.Start),
		End:         eventTime(item.End),
		Location:    item.Location,
		Description: item.Description,
		Attendees:   attendees,
		HTMLLink:    item.HtmlLink,
	}
}

func eventTime(t *calendar.EventDateTime) string {
	if t == nil {
		return ""
	}
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}
