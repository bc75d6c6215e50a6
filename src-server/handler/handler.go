// Package handler runs utterances through the assistant pipeline: classify
// the intent, extract parameters, mutate the calendar, refresh the session's
// cache and compose a reply.
package handler

import (
	"caltalk/src-server/llm"
	"caltalk/src-server/provider"
	"caltalk/src-server/session"
	"caltalk/src-server/utils"
)

type Handler struct {
	appState  *utils.AppState
	registry  *session.Registry
	completer llm.Completer
	provider  provider.CalendarProvider
}

func New(appState *utils.AppState, registry *session.Registry, completer llm.Completer, calendarProvider provider.CalendarProvider) *Handler {
	return &Handler{
		appState:  appState,
		registry:  registry,
		completer: completer,
		provider:  calendarProvider,
	}
}

// Registry exposes the session registry for the routes and the scheduler.
func (h *Handler) Registry() *session.Registry {
	return h.registry
}
