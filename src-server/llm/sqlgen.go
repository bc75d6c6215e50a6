package llm

import (
	"context"
	"fmt"
	"strings"
)

const sqlSystemPrompt = `You translate a calendar question into a single SQLite SELECT statement.

%s

Timestamps in the table are stored in UTC as 'YYYY-MM-DD HH:MM:SS'. The user is in a timezone offset from UTC by: %s. Today's date in the user's timezone is %s.

To compare against the user's local day, shift stored times with datetime(), e.g.:
- events today:    SELECT * FROM events WHERE date(datetime(start_time, '%s')) = '%s' ORDER BY start_time
- events tomorrow: SELECT * FROM events WHERE date(datetime(start_time, '%s')) = date('%s', '+1 day') ORDER BY start_time
- next 7 days:     SELECT * FROM events WHERE datetime(start_time, '%s') BETWEEN datetime('now', '%s') AND datetime('now', '%s', '+7 days') ORDER BY start_time

Rules:
- Respond with the SELECT statement only, no prose, no code fences.
- Never write anything other than a SELECT.
- Always ORDER BY start_time.`

// ToSQL turns the utterance into a SELECT over the local event cache. The
// schema is introspected live so the prompt never drifts from the table, and
// the timezone offset modifier lets the model compare against the user's
// local day.
func ToSQL(ctx context.Context, completer Completer, utterance, schema, offsetModifier, userToday string) (string, error) {
	raw, err := completer.Complete(ctx,
		fmt.Sprintf(sqlSystemPrompt,
			schema,
			offsetModifier, userToday,
			offsetModifier, userToday,
			offsetModifier, userToday,
			offsetModifier, offsetModifier, offsetModifier,
		),
		utterance,
		CompleteOptions{Temperature: 0.3, MaxTokens: 200},
	)
	if err != nil {
		return "", fmt.Errorf("ToSQL: %w", err)
	}
	query := StripFences(raw)
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT") {
		return "", fmt.Errorf("ToSQL: not a SELECT statement: %q", query)
	}
	return query, nil
}
