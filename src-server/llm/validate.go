package llm

import (
	"caltalk/src-server/model"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

const validateSystemPrompt = `You check whether a calendar change actually did what the user asked. You are given the user's request, the kind of change (create, modify or cancel) and the event as it now stands in the calendar, or (none) when no such event remains. Minor wording differences are fine; flag only changes that contradict the request, such as a wrong time, a wrong event or a cancel that left the event in place.

Respond with a JSON object only: {"valid": bool, "message": string}
message is a short reason, empty when valid.`

// Validate asks the model to sanity-check a calendar change against the
// request that caused it. event is the row read back from the cache after the
// change, nil when the event no longer exists (the expected state after a
// cancel). Validation is advisory: any failure reports valid so a checker
// outage never blocks a response.
func Validate(ctx context.Context, completer Completer, utterance string, action Intent, event *model.CachedEvent) (bool, string) {
	eventLine := "(none)"
	if event != nil {
		eventLine = fmt.Sprintf("%s from %s to %s",
			event.Summary,
			event.Start.Format("2006-01-02 03:04 PM"),
			event.End.Format("2006-01-02 03:04 PM"))
	}
	raw, err := completer.Complete(ctx,
		validateSystemPrompt,
		fmt.Sprintf("Request: %s\nAction: %s\nEvent: %s", utterance, action, eventLine),
		CompleteOptions{Temperature: 0.1, MaxTokens: 100},
	)
	if err != nil {
		slog.Warn("Validate: skipping validation", "error", err)
		return true, ""
	}
	var parsed struct {
		Valid   bool   `json:"valid"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(StripFences(raw)), &parsed); err != nil {
		slog.Warn("Validate: skipping validation", "error", err)
		return true, ""
	}
	return parsed.Valid, parsed.Message
}
