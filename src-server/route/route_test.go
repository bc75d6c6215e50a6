package route_test

import (
	"caltalk/src-server/handler"
	"caltalk/src-server/llm"
	"caltalk/src-server/provider"
	"caltalk/src-server/route"
	"caltalk/src-server/session"
	"caltalk/src-server/utils"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// quitCompleter ends every conversation immediately, which keeps route tests
// off the mutation paths entirely.
type quitCompleter struct{}

func (quitCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string, opts llm.CompleteOptions) (string, error) {
	if strings.Contains(systemPrompt, "You classify") {
		return "quit", nil
	}
	return `{"valid": true, "message": ""}`, nil
}

// emptyProvider is a calendar with nothing on it.
type emptyProvider struct{}

func (emptyProvider) ListUpcoming(ctx context.Context, max int64) ([]provider.Event, error) {
	return nil, nil
}

func (emptyProvider) ListRange(ctx context.Context, from, to time.Time) ([]provider.Event, error) {
	return nil, nil
}

func (emptyProvider) Get(ctx context.Context, eventID string) (provider.Event, error) {
	return provider.Event{}, errors.New("event not found")
}

func (emptyProvider) Insert(ctx context.Context, event provider.Event) (provider.Event, error) {
	return provider.Event{}, errors.New("read only")
}

func (emptyProvider) Update(ctx context.Context, eventID string, event provider.Event) (provider.Event, error) {
	return provider.Event{}, errors.New("read only")
}

func (emptyProvider) Delete(ctx context.Context, eventID string) error {
	return errors.New("read only")
}

func (emptyProvider) Timezone(ctx context.Context) (string, error) {
	return "UTC", nil
}

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	t.Setenv("GROQ_API_KEY", "test-key")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "events.db"))
	as := utils.NewAppState()
	registry := session.NewRegistry(as, emptyProvider{})
	h := handler.New(as, registry, quitCompleter{}, emptyProvider{})

	muxer := http.NewServeMux()
	route.Query(muxer, as, h)
	route.Events(muxer, as, h)
	route.Timezone(muxer, as, h)
	route.TTS(muxer, as, nil)
	return muxer
}

func TestQueryRoute(t *testing.T) {
	muxer := newTestMux(t)

	recorder := httptest.NewRecorder()
	muxer.ServeHTTP(recorder, httptest.NewRequest("POST", "/api/query",
		strings.NewReader(`{"query": "bye"}`)))
	if recorder.Code != http.StatusOK {
		t.Fatal("expected 200, got", recorder.Code, recorder.Body.String())
	}

	var respBody struct {
		Success   bool   `json:"success"`
		Intent    string `json:"intent"`
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &respBody); err != nil {
		t.Fatal(err)
	}
	if !respBody.Success || respBody.Intent != "quit" {
		t.Error("unexpected outcome:", recorder.Body.String())
	}
	if respBody.SessionID == "" {
		t.Error("a fresh session id should be minted and returned")
	}

	// the minted session is reusable
	recorder = httptest.NewRecorder()
	muxer.ServeHTTP(recorder, httptest.NewRequest("POST", "/api/query",
		strings.NewReader(`{"query": "bye", "sessionId": "`+respBody.SessionID+`"}`)))
	if recorder.Code != http.StatusOK {
		t.Fatal("expected 200, got", recorder.Code)
	}
}

func TestQueryRouteRejectsBlankQuery(t *testing.T) {
	muxer := newTestMux(t)

	recorder := httptest.NewRecorder()
	muxer.ServeHTTP(recorder, httptest.NewRequest("POST", "/api/query", strings.NewReader(`{}`)))
	if recorder.Code != http.StatusBadRequest {
		t.Error("blank query should 400, got", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	muxer.ServeHTTP(recorder, httptest.NewRequest("POST", "/api/query", strings.NewReader("not json")))
	if recorder.Code != http.StatusBadRequest {
		t.Error("bad body should 400, got", recorder.Code)
	}
}

func TestTimezoneRoute(t *testing.T) {
	muxer := newTestMux(t)

	recorder := httptest.NewRecorder()
	muxer.ServeHTTP(recorder, httptest.NewRequest("POST", "/api/timezone",
		strings.NewReader(`{"timezone": "Asia/Kolkata", "sessionId": "s1"}`)))
	if recorder.Code != http.StatusOK {
		t.Fatal("expected 200, got", recorder.Code, recorder.Body.String())
	}
	if !strings.Contains(recorder.Body.String(), "Asia/Kolkata") {
		t.Error("response should echo the new timezone:", recorder.Body.String())
	}

	recorder = httptest.NewRecorder()
	muxer.ServeHTTP(recorder, httptest.NewRequest("POST", "/api/timezone",
		strings.NewReader(`{"timezone": "Mars/Olympus", "sessionId": "s1"}`)))
	if recorder.Code != http.StatusBadRequest {
		t.Error("unknown timezone should 400, got", recorder.Code)
	}
}

func TestEventsRoute(t *testing.T) {
	muxer := newTestMux(t)

	recorder := httptest.NewRecorder()
	muxer.ServeHTTP(recorder, httptest.NewRequest("GET", "/api/events", nil))
	if recorder.Code != http.StatusOK {
		t.Fatal("expected 200, got", recorder.Code, recorder.Body.String())
	}

	var respBody struct {
		Events    []struct{} `json:"events"`
		SessionID string     `json:"sessionId"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &respBody); err != nil {
		t.Fatal(err)
	}
	if len(respBody.Events) != 0 {
		t.Error("empty calendar should list no events")
	}
	if respBody.SessionID == "" {
		t.Error("a fresh session id should be minted and returned")
	}
}

func TestTTSRouteUnconfigured(t *testing.T) {
	muxer := newTestMux(t)

	recorder := httptest.NewRecorder()
	muxer.ServeHTTP(recorder, httptest.NewRequest("POST", "/api/tts",
		strings.NewReader(`{"text": "hello"}`)))
	if recorder.Code != http.StatusServiceUnavailable {
		t.Error("missing synthesizer should 503, got", recorder.Code)
	}
}
