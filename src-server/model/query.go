package model

import (
	"caltalk/src-server/utils"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// CachedEvent is a cache row with its timestamps projected into the user
// zone, ready for prompting and display.
type CachedEvent struct {
	ID          string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Location    string
	Attendees   []string
	Status      string
	HtmlLink    string
}

// RunQuery executes a translated SELECT against the cache and scans whatever
// columns it returns. Non-SELECT statements are rejected; any execution error
// degrades to an empty result set rather than failing the turn.
func RunQuery(ctx context.Context, db *bun.DB, query string, tz *utils.Timezone) []CachedEvent {
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT") {
		slog.Warn("RunQuery: refusing non-SELECT statement", "query", query)
		return []CachedEvent{}
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		slog.Error("RunQuery: can't execute query", "query", query, "error", err)
		return []CachedEvent{}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		slog.Error("RunQuery: can't read columns", "error", err)
		return []CachedEvent{}
	}

	events := make([]CachedEvent, 0)
	for rows.Next() {
		values := make([]sql.NullString, len(columns))
		scanTargets := make([]interface{}, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			slog.Error("RunQuery: can't scan row", "error", err)
			return []CachedEvent{}
		}

		row := make(map[string]string, len(columns))
		for i, column := range columns {
			if values[i].Valid {
				row[column] = values[i].String
			}
		}

		event := CachedEvent{
			ID:          row["id"],
			Summary:     row["summary"],
			Description: row["description"],
			Location:    row["location"],
			Status:      row["status"],
			HtmlLink:    row["html_link"],
			Attendees:   (&Event{Attendees: row["attendees"]}).GetAttendees(),
		}
		if raw, ok := row["start_time"]; ok {
			start, err := tz.ParseFromStorage(raw)
			if err != nil {
				slog.Warn("RunQuery: can't parse start time", "value", raw, "error", err)
				continue
			}
			event.Start = start
		}
		if raw, ok := row["end_time"]; ok {
			end, err := tz.ParseFromStorage(raw)
			if err != nil {
				slog.Warn("RunQuery: can't parse end time", "value", raw, "error", err)
				continue
			}
			event.End = end
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		slog.Error("RunQuery: row iteration failed", "error", err)
		return []CachedEvent{}
	}

	return events
}

// Schema renders the live table layout for the query-translation prompt.
func Schema(ctx context.Context, db *bun.DB) (string, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info(events)")
	if err != nil {
		return "", fmt.Errorf("Schema: %w", err)
	}
	defer rows.Close()

	var sb strings.Builder
	sb.WriteString("Table: events\nColumns:\n")
	for rows.Next() {
		var (
			cid          int
			name, ctype  string
			notNull      int
			defaultValue sql.NullString
			pk           int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &defaultValue, &pk); err != nil {
			return "", fmt.Errorf("Schema: can't scan pragma row: %w", err)
		}
		sb.WriteString("- " + name + " (" + ctype)
		if notNull != 0 {
			sb.WriteString(" NOT NULL")
		}
		if defaultValue.Valid {
			sb.WriteString(" DEFAULT " + defaultValue.String)
		}
		if pk != 0 {
			sb.WriteString(" PRIMARY KEY")
		}
		sb.WriteString(")\n")
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("Schema: %w", err)
	}

	return sb.String(), nil
}
