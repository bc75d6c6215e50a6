package llm

import (
	"caltalk/src-server/model"
	"caltalk/src-server/provider"
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// maxEventsForQA caps how many live events are shown to the question
// answering prompt.
const maxEventsForQA = 20

const respondSystemPrompt = `You are a friendly calendar assistant. The user asked a question and the matching events are listed below. Answer in one or two conversational sentences. Mention times in a natural way. If the list is empty, say so plainly.

Events:
%s`

// Respond composes a conversational answer from the events a query matched.
// When the model is unavailable the caller still gets a usable plain summary.
func Respond(ctx context.Context, completer Completer, utterance string, events []model.CachedEvent) string {
	raw, err := completer.Complete(ctx,
		fmt.Sprintf(respondSystemPrompt, FormatEventLines(events, maxEventsForQA)),
		utterance,
		CompleteOptions{Temperature: 0.3, MaxTokens: 200},
	)
	if err != nil {
		slog.Warn("Respond: falling back to plain summary", "error", err)
		return plainSummary(events)
	}
	return strings.TrimSpace(raw)
}

func plainSummary(events []model.CachedEvent) string {
	if len(events) == 0 {
		return "Found 0 event(s) matching your query."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d event(s) matching your query:\n", len(events))
	for _, event := range events {
		fmt.Fprintf(&sb, "- %s on %s\n", event.Summary, event.Start.Format("2006-01-02 03:04 PM"))
	}
	return strings.TrimRight(sb.String(), "\n")
}

const conflictSystemPrompt = `You are a friendly calendar assistant. The user tried to schedule "%s" but it overlaps with the events below. Tell them about the clash in one or two sentences and suggest they pick another time. Do not invent alternatives.

Clashing events:
%s`

// ConflictMessage explains a scheduling clash. Falls back to a templated
// message when the model is unavailable.
func ConflictMessage(ctx context.Context, completer Completer, summary string, conflicts []provider.Conflict) string {
	lines := make([]string, 0, len(conflicts))
	for _, conflict := range conflicts {
		lines = append(lines, fmt.Sprintf("- %s from %s to %s",
			conflict.Summary,
			conflict.Start.Format("2006-01-02 03:04 PM"),
			conflict.End.Format("03:04 PM"),
		))
	}
	raw, err := completer.Complete(ctx,
		fmt.Sprintf(conflictSystemPrompt, summary, strings.Join(lines, "\n")),
		"explain the clash",
		CompleteOptions{Temperature: 0.3, MaxTokens: 200},
	)
	if err != nil {
		slog.Warn("ConflictMessage: falling back to plain summary", "error", err)
		return fmt.Sprintf("'%s' clashes with:\n%s\nPlease pick another time.", summary, strings.Join(lines, "\n"))
	}
	return strings.TrimSpace(raw)
}
