package llm

import (
	"context"
	"log/slog"
	"strings"
)

type Intent string

const (
	IntentQuery  Intent = "query"
	IntentCreate Intent = "create"
	IntentModify Intent = "modify"
	IntentCancel Intent = "cancel"
	IntentQuit   Intent = "quit"
)

const intentSystemPrompt = `You classify a user's calendar request into exactly one intent label.

Labels:
- query: the user asks about existing events ("what's on my calendar tomorrow?")
- create: the user wants a new event ("schedule lunch with Sam at noon")
- modify: the user wants to change an existing event ("move my standup to 10am")
- cancel: the user wants to remove an existing event ("cancel my dentist appointment")
- quit: the user wants to end the conversation ("bye", "exit", "that's all")

Respond with the label only, nothing else.`

// ClassifyIntent labels the utterance with one of the five intents. Any
// failure, or a label outside the known set, falls back to query so the
// pipeline always has a safe read-only path.
func ClassifyIntent(ctx context.Context, completer Completer, utterance string) Intent {
	raw, err := completer.Complete(ctx, intentSystemPrompt, utterance, CompleteOptions{
		Temperature: 0.1,
		MaxTokens:   10,
	})
	if err != nil {
		slog.Warn("ClassifyIntent: falling back to query", "error", err)
		return IntentQuery
	}
	switch label := Intent(strings.ToLower(strings.TrimSpace(StripFences(raw)))); label {
	case IntentQuery, IntentCreate, IntentModify, IntentCancel, IntentQuit:
		return label
	default:
		slog.Warn("ClassifyIntent: unknown label, falling back to query", "label", label)
		return IntentQuery
	}
}
