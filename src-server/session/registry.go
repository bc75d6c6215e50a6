// Package session keeps per-conversation state: each session owns its own
// SQLite event cache and timezone so concurrent conversations never see each
// other's data.
package session

import (
	"caltalk/src-server/model"
	"caltalk/src-server/provider"
	"caltalk/src-server/utils"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// Bundle is everything one conversation owns. The cache database lives next
// to the configured path, suffixed with the session id.
type Bundle struct {
	ID       string
	Timezone *utils.Timezone
	BunDB    *bun.DB
	Mutator  *provider.Mutator

	rawDB     *sql.DB
	createdAt time.Time

	// mu guards the timestamps: concurrent turns Touch while the sweeper
	// reads idle time
	mu         sync.Mutex
	lastSeen   time.Time
	lastResync time.Time
}

// Touch marks the session as recently used so the sweeper keeps it alive.
func (b *Bundle) Touch() {
	b.mu.Lock()
	b.lastSeen = time.Now()
	b.mu.Unlock()
}

// IdleFor reports how long ago the session was last used.
func (b *Bundle) IdleFor() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Since(b.lastSeen)
}

// NeedsResync reports whether the cache has never been filled. The first
// utterance of a session triggers the initial sync lazily.
func (b *Bundle) NeedsResync() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastResync.IsZero()
}

// MarkResynced records a completed cache rebuild.
func (b *Bundle) MarkResynced() {
	b.mu.Lock()
	b.lastResync = time.Now()
	b.mu.Unlock()
}

// Registry hands out session bundles and evicts idle ones. The calendar
// provider is shared; everything else is per-session.
type Registry struct {
	mu       sync.Mutex
	bundles  map[string]*Bundle
	appState *utils.AppState
	provider provider.CalendarProvider
	ttl      time.Duration
}

func NewRegistry(appState *utils.AppState, calendarProvider provider.CalendarProvider) *Registry {
	registry := &Registry{
		bundles:  make(map[string]*Bundle),
		appState: appState,
		provider: calendarProvider,
		ttl:      appState.Config.GetSessionTTL(),
	}

	gracefulShutdownChan := appState.CreateGracefulShutdownChan()
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				registry.sweep()
			case <-*gracefulShutdownChan:
				registry.closeAll()
				return
			}
		}
	}()

	return registry
}

// GetOrCreate returns the bundle for sessionID, creating it (and its cache
// database) on first use. A blank sessionID starts a fresh session.
func (r *Registry) GetOrCreate(ctx context.Context, sessionID string) (*Bundle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if bundle, ok := r.bundles[sessionID]; ok {
		bundle.Touch()
		return bundle, nil
	}

	zoneName := r.appState.Config.GetTimezone()
	if zoneName == "" && r.provider != nil {
		zone, err := r.provider.Timezone(ctx)
		if err != nil {
			slog.Warn("(*Registry).GetOrCreate: cannot read calendar timezone", "error", err)
		} else {
			zoneName = zone
		}
	}
	tz, err := utils.NewTimezone(zoneName)
	if err != nil {
		return nil, fmt.Errorf("(*Registry).GetOrCreate: %w", err)
	}

	dbPath := r.appState.Config.GetSqlitePath() + "." + sessionID
	rawDB, err := sql.Open(sqliteshim.ShimName, dbPath+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("(*Registry).GetOrCreate: cannot open sqlite database: %w", err)
	}
	rawDB.SetMaxIdleConns(8)

	bunDB := bun.NewDB(rawDB, sqlitedialect.New())
	bunDB.AddQueryHook(bundebug.NewQueryHook(
		bundebug.FromEnv("BUNDEBUG"),
	))
	if err := model.CreateSchema(ctx, bunDB); err != nil {
		rawDB.Close()
		return nil, fmt.Errorf("(*Registry).GetOrCreate: %w", err)
	}

	bundle := &Bundle{
		ID:        sessionID,
		Timezone:  tz,
		BunDB:     bunDB,
		Mutator:   provider.NewMutator(r.provider),
		rawDB:     rawDB,
		createdAt: time.Now(),
		lastSeen:  time.Now(),
	}
	r.bundles[sessionID] = bundle
	slog.Info("session created", "sessionID", sessionID, "dbPath", dbPath)
	return bundle, nil
}

// Get returns an existing bundle or nil.
func (r *Registry) Get(sessionID string) *Bundle {
	r.mu.Lock()
	defer r.mu.Unlock()
	bundle, ok := r.bundles[sessionID]
	if !ok {
		return nil
	}
	bundle.Touch()
	return bundle
}

// Active returns the live bundles, for the periodic resync job.
func (r *Registry) Active() []*Bundle {
	r.mu.Lock()
	defer r.mu.Unlock()
	bundles := make([]*Bundle, 0, len(r.bundles))
	for _, bundle := range r.bundles {
		bundles = append(bundles, bundle)
	}
	return bundles
}

// Evict closes a session's cache database and forgets it.
func (r *Registry) Evict(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bundle, ok := r.bundles[sessionID]
	if !ok {
		return
	}
	delete(r.bundles, sessionID)
	if err := bundle.rawDB.Close(); err != nil {
		slog.Warn("(*Registry).Evict: cannot close session database", "sessionID", sessionID, "error", err)
	}
	slog.Info("session evicted", "sessionID", sessionID)
}

func (r *Registry) sweep() {
	r.mu.Lock()
	expired := []string{}
	for sessionID, bundle := range r.bundles {
		if bundle.IdleFor() > r.ttl {
			expired = append(expired, sessionID)
		}
	}
	r.mu.Unlock()
	for _, sessionID := range expired {
		r.Evict(sessionID)
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sessionID, bundle := range r.bundles {
		if err := bundle.rawDB.Close(); err != nil {
			slog.Warn("(*Registry).closeAll: cannot close session database", "sessionID", sessionID, "error", err)
		}
		delete(r.bundles, sessionID)
	}
}
