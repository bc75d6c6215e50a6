package utils

import (
	"fmt"
	"sync"
	"time"
)

const (
	// timestamps are stored in the cache as UTC strings in this format
	StorageTimeLayout = "2006-01-02 15:04:05"
	// wall-clock times coming out of the LLM extractors
	WallTimeLayout = "2006-01-02 15:04"
)

// Timezone converts between the user's civil timezone and UTC. All cache
// writes go through FormatForStorage (UTC strings), all reads through
// ParseFromStorage (user zone). The zero value behaves as UTC.
type Timezone struct {
	mu  sync.RWMutex
	loc *time.Location
}

func NewTimezone(name string) (*Timezone, error) {
	tz := &Timezone{loc: time.UTC}
	if name == "" {
		return tz, nil
	}
	if err := tz.Set(name); err != nil {
		return nil, err
	}
	return tz, nil
}

// Set swaps the user zone. An unknown zone name returns an error and leaves
// the previously-set zone unchanged.
func (tz *Timezone) Set(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("(*Timezone).Set: unknown timezone %q: %w", name, err)
	}
	tz.mu.Lock()
	tz.loc = loc
	tz.mu.Unlock()
	return nil
}

func (tz *Timezone) Location() *time.Location {
	tz.mu.RLock()
	defer tz.mu.RUnlock()
	if tz.loc == nil {
		return time.UTC
	}
	return tz.loc
}

func (tz *Timezone) Name() string {
	return tz.Location().String()
}

// ToUserZone projects an instant into the user zone. Idempotent.
func (tz *Timezone) ToUserZone(t time.Time) time.Time {
	return t.In(tz.Location())
}

// ToUTC projects an instant to UTC.
func (tz *Timezone) ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// ParseWall interprets a zone-naive "YYYY-MM-DD HH:MM" string as a wall-clock
// time in the user zone.
func (tz *Timezone) ParseWall(s string) (time.Time, error) {
	t, err := time.ParseInLocation(WallTimeLayout, s, tz.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("(*Timezone).ParseWall: %w", err)
	}
	return t, nil
}

// FormatForStorage renders an instant as the cache's sortable UTC string key.
func (tz *Timezone) FormatForStorage(t time.Time) string {
	return t.UTC().Format(StorageTimeLayout)
}

// ParseFromStorage is the inverse of FormatForStorage, yielding an instant in
// the user zone. It also accepts RFC3339 strings with an offset, which older
// cache files used.
func (tz *Timezone) ParseFromStorage(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(StorageTimeLayout, s, time.UTC); err == nil {
		return t.In(tz.Location()), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("(*Timezone).ParseFromStorage: %q: %w", s, err)
	}
	return t.In(tz.Location()), nil
}

func (tz *Timezone) Now() time.Time {
	return time.Now().In(tz.Location())
}

// Today is the current date in the user zone, "YYYY-MM-DD".
func (tz *Timezone) Today() string {
	return tz.Now().Format(time.DateOnly)
}

// OffsetModifier returns the user zone's current UTC offset as a SQLite
// datetime modifier, e.g. "-5 hours" or "+5 hours, +30 minutes". The offset
// is computed once from the current moment; queries spanning a DST transition
// bucket events near the boundary under the old offset.
func (tz *Timezone) OffsetModifier() string {
	_, offsetSec := time.Now().In(tz.Location()).Zone()
	sign := "+"
	if offsetSec < 0 {
		sign = "-"
		offsetSec = -offsetSec
	}
	hours := offsetSec / 3600
	minutes := (offsetSec % 3600) / 60
	if minutes == 0 {
		return fmt.Sprintf("%s%d hours", sign, hours)
	}
	return fmt.Sprintf("%s%d hours, %s%d minutes", sign, hours, sign, minutes)
}
