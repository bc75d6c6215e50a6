package session_test

import (
	"caltalk/src-server/provider"
	"caltalk/src-server/session"
	"caltalk/src-server/utils"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// zonedProvider only answers the timezone question, for seeding sessions.
type zonedProvider struct {
	zone string
}

func (p *zonedProvider) ListUpcoming(ctx context.Context, max int64) ([]provider.Event, error) {
	return nil, errors.New("not available")
}

func (p *zonedProvider) ListRange(ctx context.Context, from, to time.Time) ([]provider.Event, error) {
	return nil, errors.New("not available")
}

func (p *zonedProvider) Get(ctx context.Context, eventID string) (provider.Event, error) {
	return provider.Event{}, errors.New("not available")
}

func (p *zonedProvider) Insert(ctx context.Context, event provider.Event) (provider.Event, error) {
	return provider.Event{}, errors.New("not available")
}

func (p *zonedProvider) Update(ctx context.Context, eventID string, event provider.Event) (provider.Event, error) {
	return provider.Event{}, errors.New("not available")
}

func (p *zonedProvider) Delete(ctx context.Context, eventID string) error {
	return errors.New("not available")
}

func (p *zonedProvider) Timezone(ctx context.Context) (string, error) {
	if p.zone == "" {
		return "", errors.New("not available")
	}
	return p.zone, nil
}

func newTestAppState(t *testing.T) *utils.AppState {
	t.Helper()
	t.Setenv("GROQ_API_KEY", "test-key")
	t.Setenv("TIMEZONE", "America/New_York")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "events.db"))
	return utils.NewAppState()
}

func TestRegistrySessionIsolation(t *testing.T) {
	appState := newTestAppState(t)
	registry := session.NewRegistry(appState, nil)

	first, err := registry.GetOrCreate(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	second, err := registry.GetOrCreate(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == second.ID {
		t.Fatal("blank session ids must mint distinct sessions")
	}

	// each session writes to its own suffixed database file
	for _, bundle := range []*session.Bundle{first, second} {
		path := appState.Config.GetSqlitePath() + "." + bundle.ID
		if _, err := os.Stat(path); err != nil {
			t.Errorf("session %s should own %s: %v", bundle.ID, path, err)
		}
	}

	again, err := registry.GetOrCreate(context.Background(), first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again != first {
		t.Error("an existing id must return the same bundle")
	}
}

func TestRegistryBundleDefaults(t *testing.T) {
	appState := newTestAppState(t)
	registry := session.NewRegistry(appState, nil)

	bundle, err := registry.GetOrCreate(context.Background(), "fixed-id")
	if err != nil {
		t.Fatal(err)
	}
	if bundle.Timezone.Name() != "America/New_York" {
		t.Error("session should start in the configured timezone, got", bundle.Timezone.Name())
	}
	if bundle.BunDB == nil || bundle.Mutator == nil {
		t.Error("bundle should carry a cache database and a mutator")
	}

	// the schema is created eagerly; inserting through it must work
	if _, err := bundle.BunDB.NewSelect().Table("events").Count(context.Background()); err != nil {
		t.Error("events table should exist:", err)
	}
}

func TestRegistryTimezoneFromCalendar(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "test-key")
	t.Setenv("TIMEZONE", "")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "events.db"))
	appState := utils.NewAppState()
	registry := session.NewRegistry(appState, &zonedProvider{zone: "Asia/Tokyo"})

	bundle, err := registry.GetOrCreate(context.Background(), "zoned")
	if err != nil {
		t.Fatal(err)
	}
	if bundle.Timezone.Name() != "Asia/Tokyo" {
		t.Error("unset TIMEZONE should defer to the calendar's zone, got", bundle.Timezone.Name())
	}

	// an unreachable calendar still yields a working session
	registry = session.NewRegistry(appState, &zonedProvider{})
	bundle, err = registry.GetOrCreate(context.Background(), "zoneless")
	if err != nil {
		t.Fatal(err)
	}
	if bundle.Timezone.Name() != "UTC" {
		t.Error("timezone should fall back to UTC, got", bundle.Timezone.Name())
	}
}

func TestRegistryConcurrentUse(t *testing.T) {
	appState := newTestAppState(t)
	registry := session.NewRegistry(appState, nil)

	bundle, err := registry.GetOrCreate(context.Background(), "busy")
	if err != nil {
		t.Fatal(err)
	}

	// turns touch the bundle while lookups and the sweeper read its
	// timestamps; run with -race
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bundle.Touch()
				if bundle.NeedsResync() {
					bundle.MarkResynced()
				}
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if registry.Get("busy") == nil {
					t.Error("live session must stay registered")
					return
				}
				bundle.IdleFor()
			}
		}()
	}
	wg.Wait()

	if bundle.IdleFor() > time.Minute {
		t.Error("touched bundle should read as recently used")
	}
}

func TestRegistryEvict(t *testing.T) {
	appState := newTestAppState(t)
	registry := session.NewRegistry(appState, nil)

	bundle, err := registry.GetOrCreate(context.Background(), "doomed")
	if err != nil {
		t.Fatal(err)
	}
	registry.Evict("doomed")
	if registry.Get("doomed") != nil {
		t.Error("evicted session must be gone")
	}
	if err := bundle.BunDB.Ping(); err == nil {
		t.Error("evicted session's database should be closed")
	}

	// evicting twice is a no-op
	registry.Evict("doomed")
}
