package provider

import (
	"context"
	"time"
)

// Event is a provider event with both instants in UTC. The all-day variant
// (date-only strings on the wire) is normalized to midnight UTC.
type Event struct {
	ID          string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Attendees   []string
	Status      string
	HtmlLink    string
}

// CalendarProvider is the external event store holding the authoritative
// records. Implementations do one remote round trip per call and never retry;
// a retried create would duplicate an event.
type CalendarProvider interface {
	ListUpcoming(ctx context.Context, max int64) ([]Event, error)
	ListRange(ctx context.Context, from, to time.Time) ([]Event, error)
	Get(ctx context.Context, eventID string) (Event, error)
	Insert(ctx context.Context, event Event) (Event, error)
	Update(ctx context.Context, eventID string, event Event) (Event, error)
	Delete(ctx context.Context, eventID string) error
	Timezone(ctx context.Context) (string, error)
}
