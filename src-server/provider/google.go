package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const googleWireTimeLayout = "2006-01-02T15:04:05Z"

// Google talks to the Google Calendar API for a single calendar.
type Google struct {
	service    *calendar.Service
	calendarID string
}

var _ CalendarProvider = (*Google)(nil)

// NewGoogle builds an authenticated client from an OAuth credentials file and
// a previously-obtained token file.
func NewGoogle(ctx context.Context, credentialsFile, tokenFile, calendarID string) (*Google, error) {
	raw, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("NewGoogle: can't read credentials file: %w", err)
	}
	config, err := google.ConfigFromJSON(raw, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("NewGoogle: can't parse credentials file: %w", err)
	}
	token, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("NewGoogle: %w", err)
	}
	service, err := calendar.NewService(ctx, option.WithHTTPClient(config.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("NewGoogle: can't create calendar service: %w", err)
	}
	return &Google{service: service, calendarID: calendarID}, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tokenFromFile: %w", err)
	}
	defer f.Close()
	token := new(oauth2.Token)
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("tokenFromFile: %w", err)
	}
	return token, nil
}

func (g *Google) ListUpcoming(ctx context.Context, max int64) ([]Event, error) {
	result, err := g.service.Events.List(g.calendarID).
		TimeMin(time.Now().UTC().Format(time.RFC3339)).
		MaxResults(max).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("(*Google).ListUpcoming: %w", err)
	}
	return fromGoogleEvents(result.Items)
}

func (g *Google) ListRange(ctx context.Context, from, to time.Time) ([]Event, error) {
	result, err := g.service.Events.List(g.calendarID).
		TimeMin(from.UTC().Format(time.RFC3339)).
		TimeMax(to.UTC().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("(*Google).ListRange: %w", err)
	}
	return fromGoogleEvents(result.Items)
}

func (g *Google) Get(ctx context.Context, eventID string) (Event, error) {
	item, err := g.service.Events.Get(g.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return Event{}, fmt.Errorf("(*Google).Get: %w", err)
	}
	return fromGoogleEvent(item)
}

func (g *Google) Insert(ctx context.Context, event Event) (Event, error) {
	inserted, err := g.service.Events.Insert(g.calendarID, toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return Event{}, fmt.Errorf("(*Google).Insert: %w", err)
	}
	if inserted.Id == "" {
		return Event{}, fmt.Errorf("(*Google).Insert: provider returned no event id")
	}
	return fromGoogleEvent(inserted)
}

func (g *Google) Update(ctx context.Context, eventID string, event Event) (Event, error) {
	updated, err := g.service.Events.Update(g.calendarID, eventID, toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return Event{}, fmt.Errorf("(*Google).Update: %w", err)
	}
	return fromGoogleEvent(updated)
}

func (g *Google) Delete(ctx context.Context, eventID string) error {
	if err := g.service.Events.Delete(g.calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("(*Google).Delete: %w", err)
	}
	return nil
}

// Timezone reads the calendar's own timezone, used as the session default.
func (g *Google) Timezone(ctx context.Context) (string, error) {
	info, err := g.service.Calendars.Get(g.calendarID).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("(*Google).Timezone: %w", err)
	}
	return info.TimeZone, nil
}

// parseWireTime handles both shapes the provider sends: RFC3339 date-times
// and bare dates for all-day events.
func parseWireTime(edt *calendar.EventDateTime) (time.Time, error) {
	if edt == nil {
		return time.Time{}, fmt.Errorf("parseWireTime: missing time field")
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return time.Time{}, fmt.Errorf("parseWireTime: %w", err)
		}
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, edt.Date, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parseWireTime: %w", err)
	}
	return t, nil
}

func fromGoogleEvent(item *calendar.Event) (Event, error) {
	start, err := parseWireTime(item.Start)
	if err != nil {
		return Event{}, fmt.Errorf("fromGoogleEvent: start of %q: %w", item.Id, err)
	}
	end, err := parseWireTime(item.End)
	if err != nil {
		return Event{}, fmt.Errorf("fromGoogleEvent: end of %q: %w", item.Id, err)
	}

	attendees := make([]string, 0, len(item.Attendees))
	for _, attendee := range item.Attendees {
		if attendee.Email != "" {
			attendees = append(attendees, attendee.Email)
		}
	}
	status := item.Status
	if status == "" {
		status = "confirmed"
	}
	summary := item.Summary
	if summary == "" {
		summary = "No title"
	}

	return Event{
		ID:          item.Id,
		Summary:     summary,
		Description: item.Description,
		Location:    item.Location,
		Start:       start,
		End:         end,
		Attendees:   attendees,
		Status:      status,
		HtmlLink:    item.HtmlLink,
	}, nil
}

func fromGoogleEvents(items []*calendar.Event) ([]Event, error) {
	events := make([]Event, 0, len(items))
	for _, item := range items {
		event, err := fromGoogleEvent(item)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func toGoogleEvent(event Event) *calendar.Event {
	out := &calendar.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Start: &calendar.EventDateTime{
			DateTime: event.Start.UTC().Format(googleWireTimeLayout),
			TimeZone: "UTC",
		},
		End: &calendar.EventDateTime{
			DateTime: event.End.UTC().Format(googleWireTimeLayout),
			TimeZone: "UTC",
		},
	}
	for _, email := range event.Attendees {
		out.Attendees = append(out.Attendees, &calendar.EventAttendee{Email: email})
	}
	return out
}
