package route

import (
	"caltalk/src-server/handler"
	"caltalk/src-server/model"
	"caltalk/src-server/utils"
	"encoding/json"
	"fmt"
	"net/http"
)

// Events lists a session's cached events, refreshed from the provider first
// so the caller always sees the provider's current state.
func Events(muxer *http.ServeMux, as *utils.AppState, h *handler.Handler) {
	type EventsRespBody struct {
		Events    []model.CachedEvent `json:"events"`
		SessionID string              `json:"sessionId"`
	}

	muxer.HandleFunc("GET /api/events", func(w http.ResponseWriter, r *http.Request) {
		bundle, err := h.Registry().GetOrCreate(r.Context(), r.URL.Query().Get("sessionId"))
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(fmt.Sprintf("Can't create session: %s", err.Error())))
			return
		}

		if err := h.Resync(r.Context(), bundle); err != nil {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(fmt.Sprintf("Can't reach the calendar provider: %s", err.Error())))
			return
		}

		events := model.RunQuery(r.Context(), bundle.BunDB,
			"SELECT * FROM events ORDER BY start_time", bundle.Timezone)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(EventsRespBody{
			Events:    events,
			SessionID: bundle.ID,
		}); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(fmt.Sprintf("Can't encode response: %s", err.Error())))
			return
		}
	})
}
