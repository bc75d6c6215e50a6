package handler_test

import (
	"caltalk/src-server/handler"
	"caltalk/src-server/llm"
	"caltalk/src-server/provider"
	"caltalk/src-server/session"
	"caltalk/src-server/utils"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// scriptedCompleter routes each agent's prompt to a canned reply so a whole
// pipeline run can be driven without the real model.
type scriptedCompleter struct {
	intent        string
	createJSON    string
	modifyJSON    string
	cancelJSON    string
	sqlReply      string
	respond       string
	validation    string
	sawValidation bool
	lastUser      string
}

func (s *scriptedCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string, opts llm.CompleteOptions) (string, error) {
	switch {
	case strings.Contains(systemPrompt, "You classify"):
		return s.intent, nil
	case strings.Contains(systemPrompt, "You extract event details"):
		return s.createJSON, nil
	case strings.Contains(systemPrompt, "wants to change"):
		return s.modifyJSON, nil
	case strings.Contains(systemPrompt, "wants to cancel"):
		return s.cancelJSON, nil
	case strings.Contains(systemPrompt, "SQLite SELECT"):
		return s.sqlReply, nil
	case strings.Contains(systemPrompt, "Clashing events"):
		return "That time is already taken.", nil
	case strings.Contains(systemPrompt, "You check whether"):
		s.sawValidation = true
		s.lastUser = userPrompt
		if s.validation != "" {
			return s.validation, nil
		}
		return `{"valid": true, "message": ""}`, nil
	case strings.Contains(systemPrompt, "friendly calendar assistant"):
		if s.respond != "" {
			return s.respond, nil
		}
		return "", errors.New("no canned response")
	}
	return "", errors.New("unexpected prompt")
}

// fakeProvider is a minimal in-memory calendar.
type fakeProvider struct {
	events            map[string]provider.Event
	nextID            int
	listUpcomingCalls int
}

func newFakeProvider(events ...provider.Event) *fakeProvider {
	f := &fakeProvider{events: map[string]provider.Event{}}
	for _, event := range events {
		f.events[event.ID] = event
	}
	return f
}

func (f *fakeProvider) ListUpcoming(ctx context.Context, max int64) ([]provider.Event, error) {
	f.listUpcomingCalls++
	events := []provider.Event{}
	for _, event := range f.events {
		events = append(events, event)
	}
	return events, nil
}

func (f *fakeProvider) ListRange(ctx context.Context, from, to time.Time) ([]provider.Event, error) {
	events := []provider.Event{}
	for _, event := range f.events {
		if from.Before(event.End) && to.After(event.Start) {
			events = append(events, event)
		}
	}
	return events, nil
}

func (f *fakeProvider) Get(ctx context.Context, eventID string) (provider.Event, error) {
	event, ok := f.events[eventID]
	if !ok {
		return provider.Event{}, errors.New("event not found")
	}
	return event, nil
}

func (f *fakeProvider) Insert(ctx context.Context, event provider.Event) (provider.Event, error) {
	f.nextID++
	event.ID = fmt.Sprintf("fake-%d", f.nextID)
	f.events[event.ID] = event
	return event, nil
}

func (f *fakeProvider) Update(ctx context.Context, eventID string, event provider.Event) (provider.Event, error) {
	if _, ok := f.events[eventID]; !ok {
		return provider.Event{}, errors.New("event not found")
	}
	event.ID = eventID
	f.events[eventID] = event
	return event, nil
}

func (f *fakeProvider) Delete(ctx context.Context, eventID string) error {
	if _, ok := f.events[eventID]; !ok {
		return errors.New("event not found")
	}
	delete(f.events, eventID)
	return nil
}

func (f *fakeProvider) Timezone(ctx context.Context) (string, error) {
	return "UTC", nil
}

func newTestHandler(t *testing.T, completer llm.Completer, fake *fakeProvider) (*handler.Handler, *session.Bundle) {
	t.Helper()
	t.Setenv("GROQ_API_KEY", "test-key")
	t.Setenv("TIMEZONE", "America/New_York")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "events.db"))
	appState := utils.NewAppState()

	// keep metric sends from ever blocking
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })
	for _, ch := range []chan float64{
		appState.MetricChans.DatabaseRead,
		appState.MetricChans.DatabaseWrite,
		appState.MetricChans.LLMRequest,
		appState.MetricChans.ProviderRequest,
	} {
		go func(ch chan float64) {
			for {
				select {
				case <-ch:
				case <-done:
					return
				}
			}
		}(ch)
	}

	registry := session.NewRegistry(appState, fake)
	bundle, err := registry.GetOrCreate(context.Background(), "test-session")
	if err != nil {
		t.Fatal(err)
	}
	return handler.New(appState, registry, completer, fake), bundle
}

func utc(day, hour, minute int) time.Time {
	return time.Date(2026, 9, day, hour, minute, 0, 0, time.UTC)
}

func TestPipelineCreate(t *testing.T) {
	local := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	completer := &scriptedCompleter{
		intent:     "create",
		createJSON: fmt.Sprintf(`{"summary": "Lunch with Sam", "start_time": "%s 12:00", "end_time": "%s 13:00"}`, local, local),
	}
	fake := newFakeProvider()
	h, bundle := newTestHandler(t, completer, fake)

	outcome := h.Handle(context.Background(), bundle, "lunch with Sam tomorrow at noon")
	if !outcome.Success {
		t.Fatal("create should succeed:", outcome.Response)
	}
	if outcome.Intent != llm.IntentCreate {
		t.Error("wrong intent:", outcome.Intent)
	}
	if !strings.Contains(outcome.Response, "Lunch with Sam") {
		t.Error("response should name the event, got", outcome.Response)
	}
	if len(fake.events) != 1 {
		t.Fatal("provider should hold the new event")
	}

	// the cache was refreshed: the event is queryable without another resync
	count, err := bundle.BunDB.NewSelect().Table("events").Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Error("cache should hold exactly one row, got", count)
	}
}

func TestPipelineCreateConflict(t *testing.T) {
	tomorrow := time.Now().UTC().AddDate(0, 0, 1)
	noon := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 16, 0, 0, 0, time.UTC)
	fake := newFakeProvider(provider.Event{
		ID: "evt-existing", Summary: "Board meeting", Start: noon, End: noon.Add(2 * time.Hour),
	})

	local := tomorrow.Format("2006-01-02")
	completer := &scriptedCompleter{
		intent:     "create",
		createJSON: fmt.Sprintf(`{"summary": "Lunch with Sam", "start_time": "%s 12:00", "end_time": "%s 13:00"}`, local, local),
	}
	h, bundle := newTestHandler(t, completer, fake)

	// noon New York is 16:00/17:00 UTC depending on DST, either way inside
	// the two hour board meeting
	outcome := h.Handle(context.Background(), bundle, "lunch with Sam tomorrow at noon")
	if outcome.Success {
		t.Fatal("overlapping create must be refused")
	}
	if len(fake.events) != 1 {
		t.Error("nothing new should reach the provider")
	}
	if outcome.Response != "That time is already taken." {
		t.Error("conflict message should come from the composer, got", outcome.Response)
	}
}

func TestPipelineQuery(t *testing.T) {
	start := time.Now().UTC().Add(2 * time.Hour)
	fake := newFakeProvider(provider.Event{
		ID: "evt-1", Summary: "Standup", Start: start, End: start.Add(time.Hour),
	})
	completer := &scriptedCompleter{
		intent:   "query",
		sqlReply: "SELECT * FROM events ORDER BY start_time",
		respond:  "You have Standup coming up.",
	}
	h, bundle := newTestHandler(t, completer, fake)
	if err := h.Resync(context.Background(), bundle); err != nil {
		t.Fatal(err)
	}

	outcome := h.Handle(context.Background(), bundle, "what's on my calendar?")
	if !outcome.Success {
		t.Fatal("query should succeed:", outcome.Response)
	}
	if outcome.Response != "You have Standup coming up." {
		t.Error("wrong response:", outcome.Response)
	}
	if len(outcome.Events) != 1 || outcome.Events[0].Summary != "Standup" {
		t.Error("outcome should carry the matched events, got", outcome.Events)
	}
	if completer.sawValidation {
		t.Error("query turns change nothing, so there is nothing to validate")
	}
}

func TestPipelineQueryFallsBackToLiveCalendar(t *testing.T) {
	start := time.Now().UTC().Add(2 * time.Hour)
	fake := newFakeProvider(provider.Event{
		ID: "evt-1", Summary: "Standup", Start: start, End: start.Add(time.Hour),
	})
	completer := &scriptedCompleter{
		intent:   "query",
		sqlReply: "DROP TABLE events", // rejected, forcing the live path
		respond:  "You have Standup coming up.",
	}
	h, bundle := newTestHandler(t, completer, fake)

	outcome := h.Handle(context.Background(), bundle, "what's coming up?")
	if !outcome.Success {
		t.Fatal("live fallback should still answer:", outcome.Response)
	}
	if len(outcome.Events) != 1 {
		t.Error("fallback should list from the provider, got", outcome.Events)
	}
	// no time window in the utterance, so the upcoming list answers it
	if fake.listUpcomingCalls == 0 {
		t.Error("a windowless question should list upcoming events")
	}
}

func TestPipelineModifyKeepsDuration(t *testing.T) {
	// 90 minute event; only the start moves
	fake := newFakeProvider(provider.Event{
		ID: "evt-1", Summary: "Standup", Start: utc(14, 9, 0), End: utc(14, 10, 30),
	})
	completer := &scriptedCompleter{
		intent:     "modify",
		modifyJSON: `{"event_id": "evt-1", "start_time": "2026-09-15 05:00"}`,
	}
	h, bundle := newTestHandler(t, completer, fake)
	if err := h.Resync(context.Background(), bundle); err != nil {
		t.Fatal(err)
	}

	outcome := h.Handle(context.Background(), bundle, "move standup to tuesday 5am")
	if !outcome.Success {
		t.Fatal("modify should succeed:", outcome.Response)
	}
	moved := fake.events["evt-1"]
	if moved.End.Sub(moved.Start) != 90*time.Minute {
		t.Error("duration must survive a start-only move, got", moved.End.Sub(moved.Start))
	}
	// 5am New York on 2026-09-15 is 09:00 UTC (DST)
	if !moved.Start.Equal(utc(15, 9, 0)) {
		t.Error("start should be 5am in the user's zone, got", moved.Start)
	}
}

func TestPipelineCancel(t *testing.T) {
	fake := newFakeProvider(provider.Event{
		ID: "evt-1", Summary: "Standup", Start: utc(14, 9, 0), End: utc(14, 10, 0),
	})
	completer := &scriptedCompleter{
		intent:     "cancel",
		cancelJSON: `{"event_id": "evt-1"}`,
	}
	h, bundle := newTestHandler(t, completer, fake)
	if err := h.Resync(context.Background(), bundle); err != nil {
		t.Fatal(err)
	}

	outcome := h.Handle(context.Background(), bundle, "cancel my standup")
	if !outcome.Success {
		t.Fatal("cancel should succeed:", outcome.Response)
	}
	if len(fake.events) != 0 {
		t.Error("event should be gone from the provider")
	}
	count, err := bundle.BunDB.NewSelect().Table("events").Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Error("cache should be refreshed after the cancel, got", count, "rows")
	}
}

func TestPipelineQuit(t *testing.T) {
	completer := &scriptedCompleter{intent: "quit"}
	h, bundle := newTestHandler(t, completer, newFakeProvider())

	outcome := h.Handle(context.Background(), bundle, "bye")
	if !outcome.Success || outcome.Intent != llm.IntentQuit {
		t.Error("quit should short-circuit, got", outcome)
	}
}

func TestPipelineValidationNeverBlocks(t *testing.T) {
	local := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	completer := &scriptedCompleter{
		intent:     "create",
		createJSON: fmt.Sprintf(`{"summary": "Lunch with Sam", "start_time": "%s 12:00", "end_time": "%s 13:00"}`, local, local),
		validation: `{"valid": false, "message": "suspicious"}`,
	}
	h, bundle := newTestHandler(t, completer, newFakeProvider())

	outcome := h.Handle(context.Background(), bundle, "lunch with Sam tomorrow at noon")
	if !outcome.Success {
		t.Error("a failed validation must not block the response")
	}
	if !completer.sawValidation {
		t.Fatal("a successful create should be validated")
	}
	// the checker sees the stored event, not just the reply text
	if !strings.Contains(completer.lastUser, "Lunch with Sam") {
		t.Error("checker prompt should carry the cached event, got", completer.lastUser)
	}
}

func TestPipelineCancelValidatesRemoval(t *testing.T) {
	fake := newFakeProvider(provider.Event{
		ID: "evt-1", Summary: "Standup", Start: utc(14, 9, 0), End: utc(14, 10, 0),
	})
	completer := &scriptedCompleter{
		intent:     "cancel",
		cancelJSON: `{"event_id": "evt-1"}`,
	}
	h, bundle := newTestHandler(t, completer, fake)
	if err := h.Resync(context.Background(), bundle); err != nil {
		t.Fatal(err)
	}

	outcome := h.Handle(context.Background(), bundle, "cancel my standup")
	if !outcome.Success {
		t.Fatal("cancel should succeed:", outcome.Response)
	}
	if !completer.sawValidation {
		t.Fatal("a successful cancel should be validated")
	}
	if !strings.Contains(completer.lastUser, "(none)") {
		t.Error("checker should see that the event is gone, got", completer.lastUser)
	}
}
