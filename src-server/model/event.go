package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/uptrace/bun"
)

// Event is one row of the local mirror of the provider's calendar. The
// provider is the source of truth; this table is a disposable projection
// rebuilt wholesale after every mutation. Timestamps are UTC strings in
// utils.StorageTimeLayout so they sort lexicographically.
type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID          string `bun:"id,pk"`           // provider-assigned, required
	Summary     string `bun:"summary,notnull"` // required
	Description string `bun:"description"`
	StartTime   string `bun:"start_time,notnull"` // required
	EndTime     string `bun:"end_time,notnull"`   // required
	Location    string `bun:"location"`
	Attendees   string `bun:"attendees"` // JSON-encoded list of emails
	Status      string `bun:"status"`
	HtmlLink    string `bun:"html_link"`
	CreatedAt   string `bun:"created_at,notnull"`
	UpdatedAt   string `bun:"updated_at,notnull"`
}

func (e *Event) SetAttendees(attendees []string) error {
	if attendees == nil {
		attendees = []string{}
	}
	raw, err := json.Marshal(attendees)
	if err != nil {
		return fmt.Errorf("(*Event).SetAttendees: %w", err)
	}
	e.Attendees = string(raw)
	return nil
}

func (e *Event) GetAttendees() []string {
	if e.Attendees == "" {
		return []string{}
	}
	var attendees []string
	if err := json.Unmarshal([]byte(e.Attendees), &attendees); err != nil {
		return []string{}
	}
	return attendees
}

// Upsert inserts the event or, when the id already exists, overwrites every
// column except created_at. First write wins for the creation timestamp, last
// write wins for everything else.
func (e *Event) Upsert(ctx context.Context, db bun.IDB) error {
	switch {
	case e.ID == "":
		return fmt.Errorf("(*Event).Upsert: event id is blank")
	case e.Summary == "":
		return fmt.Errorf("(*Event).Upsert: summary is blank")
	case e.StartTime == "":
		return fmt.Errorf("(*Event).Upsert: start time is blank")
	case e.EndTime == "":
		return fmt.Errorf("(*Event).Upsert: end time is blank")
	case e.CreatedAt == "":
		return fmt.Errorf("(*Event).Upsert: created at is blank")
	}
	if e.UpdatedAt == "" {
		e.UpdatedAt = e.CreatedAt
	}

	if _, err := db.NewInsert().
		Model(e).
		On("CONFLICT (id) DO UPDATE").
		Set("summary = EXCLUDED.summary").
		Set("description = EXCLUDED.description").
		Set("start_time = EXCLUDED.start_time").
		Set("end_time = EXCLUDED.end_time").
		Set("location = EXCLUDED.location").
		Set("attendees = EXCLUDED.attendees").
		Set("status = EXCLUDED.status").
		Set("html_link = EXCLUDED.html_link").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx); err != nil {
		return fmt.Errorf("(*Event).Upsert: %w", err)
	}

	return nil
}

// ClearEvents truncates the whole table. Only ever called right before a full
// resync, never incrementally.
func ClearEvents(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewDelete().
		Model((*Event)(nil)).
		Where("1 = 1").
		Exec(ctx); err != nil {
		return fmt.Errorf("ClearEvents: %w", err)
	}
	return nil
}
