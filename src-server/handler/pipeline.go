package handler

import (
	"caltalk/src-server/llm"
	"caltalk/src-server/model"
	"caltalk/src-server/provider"
	"caltalk/src-server/session"
	"context"
	"log/slog"
	"time"
)

// Outcome is what one utterance produced, in a shape every intent shares.
type Outcome struct {
	Success  bool                `json:"success"`
	Intent   llm.Intent          `json:"intent"`
	Response string              `json:"response"`
	Events   []model.CachedEvent `json:"events,omitempty"`
}

// Handle runs one utterance through the full pipeline for the given session.
// It never returns an error: every failure mode degrades into an Outcome the
// user can read.
func (h *Handler) Handle(ctx context.Context, bundle *session.Bundle, utterance string) Outcome {
	bundle.Touch()
	if bundle.NeedsResync() {
		if err := h.Resync(ctx, bundle); err != nil {
			slog.Warn("initial cache sync failed", "sessionID", bundle.ID, "error", err)
		}
	}

	startTimer := time.Now()
	intent := llm.ClassifyIntent(ctx, h.completer, utterance)
	h.appState.MetricChans.LLMRequest <- float64(time.Since(startTimer).Microseconds())
	slog.Info("utterance classified", "sessionID", bundle.ID, "intent", intent)

	switch intent {
	case llm.IntentQuit:
		return Outcome{Success: true, Intent: intent, Response: "Goodbye! Let me know if you need your calendar again."}
	case llm.IntentCreate:
		return h.handleCreate(ctx, bundle, utterance)
	case llm.IntentModify:
		return h.handleModify(ctx, bundle, utterance)
	case llm.IntentCancel:
		return h.handleCancel(ctx, bundle, utterance)
	default:
		return h.handleQuery(ctx, bundle, utterance)
	}
}

func (h *Handler) handleQuery(ctx context.Context, bundle *session.Bundle, utterance string) Outcome {
	// #region | generate and run SQL over the cache
	startTimer := time.Now()
	schema, err := model.Schema(ctx, bundle.BunDB)
	h.appState.MetricChans.DatabaseRead <- float64(time.Since(startTimer).Microseconds())
	if err != nil {
		slog.Warn("cannot introspect schema", "sessionID", bundle.ID, "error", err)
		return h.answerLive(ctx, bundle, utterance)
	}

	query, err := llm.ToSQL(ctx, h.completer, utterance, schema, bundle.Timezone.OffsetModifier(), bundle.Timezone.Today())
	if err != nil {
		slog.Warn("cannot generate SQL, answering from the live calendar", "sessionID", bundle.ID, "error", err)
		return h.answerLive(ctx, bundle, utterance)
	}

	startTimer = time.Now()
	events := model.RunQuery(ctx, bundle.BunDB, query, bundle.Timezone)
	h.appState.MetricChans.DatabaseRead <- float64(time.Since(startTimer).Microseconds())
	// #endregion

	response := llm.Respond(ctx, h.completer, utterance, events)
	return Outcome{Success: true, Intent: llm.IntentQuery, Response: response, Events: events}
}

// answerLive is the query fallback when the cache path is unusable: parse a
// time window out of the utterance and list that window straight from the
// provider, or list the next upcoming events when no window is named, then
// answer over the result.
func (h *Handler) answerLive(ctx context.Context, bundle *session.Bundle, utterance string) Outcome {
	var liveEvents []provider.Event
	var err error
	startTimer := time.Now()
	if parsed, perr := h.appState.When.Parse(utterance, time.Now()); perr == nil && parsed != nil {
		day := parsed.Time.In(bundle.Timezone.Location())
		from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, bundle.Timezone.Location())
		liveEvents, err = h.provider.ListRange(ctx, from.UTC(), from.Add(24*time.Hour).UTC())
	} else {
		liveEvents, err = h.provider.ListUpcoming(ctx, 20)
	}
	h.appState.MetricChans.ProviderRequest <- float64(time.Since(startTimer).Microseconds())
	if err != nil {
		slog.Error("cannot list events from the provider", "sessionID", bundle.ID, "error", err)
		return Outcome{
			Success:  false,
			Intent:   llm.IntentQuery,
			Response: "Sorry, I couldn't reach your calendar just now. Please try again.",
		}
	}

	events := make([]model.CachedEvent, 0, len(liveEvents))
	for _, event := range liveEvents {
		events = append(events, model.CachedEvent{
			ID:        event.ID,
			Summary:   event.Summary,
			Start:     bundle.Timezone.ToUserZone(event.Start),
			End:       bundle.Timezone.ToUserZone(event.End),
			Location:  event.Location,
			Attendees: event.Attendees,
			Status:    event.Status,
			HtmlLink:  event.HtmlLink,
		})
	}
	response := llm.Respond(ctx, h.completer, utterance, events)
	return Outcome{Success: true, Intent: llm.IntentQuery, Response: response, Events: events}
}

func (h *Handler) handleCreate(ctx context.Context, bundle *session.Bundle, utterance string) Outcome {
	startTimer := time.Now()
	params, err := llm.ExtractCreate(ctx, h.completer, utterance, bundle.Timezone)
	h.appState.MetricChans.LLMRequest <- float64(time.Since(startTimer).Microseconds())
	if err != nil {
		slog.Warn("cannot extract event details", "sessionID", bundle.ID, "error", err)
		return Outcome{
			Success:  false,
			Intent:   llm.IntentCreate,
			Response: "I couldn't work out the event details. Could you give me a title and a time?",
		}
	}

	if conflicts := provider.FindConflicts(ctx, h.provider, params.Start.UTC(), params.End.UTC(), ""); len(conflicts) > 0 {
		return Outcome{
			Success:  false,
			Intent:   llm.IntentCreate,
			Response: llm.ConflictMessage(ctx, h.completer, params.Summary, conflicts),
		}
	}

	startTimer = time.Now()
	result := bundle.Mutator.Create(ctx, provider.Event{
		Summary:     params.Summary,
		Description: params.Description,
		Start:       params.Start.UTC(),
		End:         params.End.UTC(),
		Location:    params.Location,
		Attendees:   params.Attendees,
	})
	h.appState.MetricChans.ProviderRequest <- float64(time.Since(startTimer).Microseconds())

	return h.finishMutation(ctx, bundle, llm.IntentCreate, utterance, result)
}

func (h *Handler) handleModify(ctx context.Context, bundle *session.Bundle, utterance string) Outcome {
	recent := h.recentEvents(ctx, bundle)

	startTimer := time.Now()
	params, err := llm.ExtractModify(ctx, h.completer, utterance, recent, bundle.Timezone)
	h.appState.MetricChans.LLMRequest <- float64(time.Since(startTimer).Microseconds())
	if err != nil {
		slog.Warn("cannot resolve event to modify", "sessionID", bundle.ID, "error", err)
		return Outcome{
			Success:  false,
			Intent:   llm.IntentModify,
			Response: "I couldn't work out which event you meant. Could you be more specific?",
		}
	}

	// #region | conflict check against the rescheduled window
	if params.Start != nil || params.End != nil {
		original, err := h.provider.Get(ctx, params.EventID)
		if err == nil {
			newStart, newEnd := original.Start, original.End
			if params.Start != nil {
				newStart = params.Start.UTC()
				if params.End == nil {
					newEnd = newStart.Add(original.End.Sub(original.Start))
				}
			}
			if params.End != nil {
				newEnd = params.End.UTC()
			}
			if conflicts := provider.FindConflicts(ctx, h.provider, newStart, newEnd, params.EventID); len(conflicts) > 0 {
				return Outcome{
					Success:  false,
					Intent:   llm.IntentModify,
					Response: llm.ConflictMessage(ctx, h.completer, original.Summary, conflicts),
				}
			}
		}
	}
	// #endregion

	patch := provider.Patch{
		Summary:     params.Summary,
		Description: params.Description,
		Location:    params.Location,
		Attendees:   params.Attendees,
	}
	if params.Start != nil {
		start := params.Start.UTC()
		patch.Start = &start
	}
	if params.End != nil {
		end := params.End.UTC()
		patch.End = &end
	}

	startTimer = time.Now()
	result := bundle.Mutator.Modify(ctx, params.EventID, patch)
	h.appState.MetricChans.ProviderRequest <- float64(time.Since(startTimer).Microseconds())

	return h.finishMutation(ctx, bundle, llm.IntentModify, utterance, result)
}

func (h *Handler) handleCancel(ctx context.Context, bundle *session.Bundle, utterance string) Outcome {
	recent := h.recentEvents(ctx, bundle)

	startTimer := time.Now()
	eventID, err := llm.ExtractCancel(ctx, h.completer, utterance, recent)
	h.appState.MetricChans.LLMRequest <- float64(time.Since(startTimer).Microseconds())
	if err != nil {
		slog.Warn("cannot resolve event to cancel", "sessionID", bundle.ID, "error", err)
		return Outcome{
			Success:  false,
			Intent:   llm.IntentCancel,
			Response: "I couldn't work out which event to cancel. Could you be more specific?",
		}
	}

	startTimer = time.Now()
	result := bundle.Mutator.Cancel(ctx, eventID)
	h.appState.MetricChans.ProviderRequest <- float64(time.Since(startTimer).Microseconds())

	return h.finishMutation(ctx, bundle, llm.IntentCancel, utterance, result)
}

// finishMutation turns a mutator result into an outcome and, on success,
// refreshes the cache so the next query sees the change, then validates the
// refreshed state against the request.
func (h *Handler) finishMutation(ctx context.Context, bundle *session.Bundle, intent llm.Intent, utterance string, result provider.ActionResult) Outcome {
	if !result.Success {
		slog.Warn("calendar mutation failed", "sessionID", bundle.ID, "intent", intent, "error", result.Err)
		return Outcome{Success: false, Intent: intent, Response: result.Message}
	}
	if err := h.Resync(ctx, bundle); err != nil {
		// the mutation itself succeeded; the periodic resync will catch up
		slog.Error("cannot refresh cache after mutation", "sessionID", bundle.ID, "error", err)
	}

	// advisory only; a suspicious mutation is logged, never blocked. A
	// cancelled event reads back as nil, which is the expected state.
	if valid, message := llm.Validate(ctx, h.completer, utterance, intent, h.cachedEvent(ctx, bundle, result.EventID)); !valid {
		slog.Warn("mutation flagged by validation", "sessionID", bundle.ID, "intent", intent, "reason", message)
	}
	return Outcome{Success: true, Intent: intent, Response: result.Message}
}

// cachedEvent reads one event back from the cache; nil when no such row
// exists.
func (h *Handler) cachedEvent(ctx context.Context, bundle *session.Bundle, eventID string) *model.CachedEvent {
	var stored model.Event
	startTimer := time.Now()
	err := bundle.BunDB.NewSelect().Model(&stored).Where("id = ?", eventID).Scan(ctx)
	h.appState.MetricChans.DatabaseRead <- float64(time.Since(startTimer).Microseconds())
	if err != nil {
		return nil
	}
	start, err := bundle.Timezone.ParseFromStorage(stored.StartTime)
	if err != nil {
		return nil
	}
	end, err := bundle.Timezone.ParseFromStorage(stored.EndTime)
	if err != nil {
		return nil
	}
	return &model.CachedEvent{
		ID:          stored.ID,
		Summary:     stored.Summary,
		Description: stored.Description,
		Start:       start,
		End:         end,
		Location:    stored.Location,
		Attendees:   stored.GetAttendees(),
		Status:      stored.Status,
		HtmlLink:    stored.HtmlLink,
	}
}

func (h *Handler) recentEvents(ctx context.Context, bundle *session.Bundle) []model.CachedEvent {
	startTimer := time.Now()
	events := model.RunQuery(ctx, bundle.BunDB,
		"SELECT * FROM events ORDER BY start_time LIMIT 10",
		bundle.Timezone)
	h.appState.MetricChans.DatabaseRead <- float64(time.Since(startTimer).Microseconds())
	return events
}
