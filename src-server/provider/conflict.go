package provider

import (
	"context"
	"log/slog"
	"time"
)

// Conflict is a transient projection of an overlapping event, only produced
// during overlap testing and never persisted.
type Conflict struct {
	ID       string
	Summary  string
	Start    time.Time
	End      time.Time
	Location string
}

// FindConflicts returns provider events overlapping [start, end), excluding
// excludeID when set (so a modified event doesn't flag itself). The overlap
// test is half-open: ranges that merely touch at an endpoint do not conflict.
// Conflict detection is best-effort — any provider error degrades to an empty
// list instead of blocking the primary action.
func FindConflicts(ctx context.Context, prov CalendarProvider, start, end time.Time, excludeID string) []Conflict {
	events, err := prov.ListRange(ctx, start, end)
	if err != nil {
		slog.Warn("FindConflicts: provider error, skipping conflict check", "error", err)
		return []Conflict{}
	}

	conflicts := []Conflict{}
	for _, event := range events {
		if excludeID != "" && event.ID == excludeID {
			continue
		}
		if start.Before(event.End) && end.After(event.Start) {
			conflicts = append(conflicts, Conflict{
				ID:       event.ID,
				Summary:  event.Summary,
				Start:    event.Start,
				End:      event.End,
				Location: event.Location,
			})
		}
	}
	return conflicts
}
