package route

import (
	"caltalk/src-server/handler"
	"caltalk/src-server/utils"
	"encoding/json"
	"fmt"
	"net/http"
)

// Timezone switches a session's timezone for everything that follows.
func Timezone(muxer *http.ServeMux, as *utils.AppState, h *handler.Handler) {
	type TimezoneReqBody struct {
		Timezone  string `json:"timezone"`
		SessionID string `json:"sessionId"`
	}

	type TimezoneRespBody struct {
		Timezone  string `json:"timezone"`
		SessionID string `json:"sessionId"`
	}

	muxer.HandleFunc("POST /api/timezone", func(w http.ResponseWriter, r *http.Request) {
		var reqBody TimezoneReqBody
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(fmt.Sprintf("Can't decode request body: %s", err.Error())))
			return
		}

		bundle, err := h.Registry().GetOrCreate(r.Context(), reqBody.SessionID)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(fmt.Sprintf("Can't create session: %s", err.Error())))
			return
		}

		if err := bundle.Timezone.Set(reqBody.Timezone); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(fmt.Sprintf("Can't set timezone: %s", err.Error())))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(TimezoneRespBody{
			Timezone:  bundle.Timezone.Name(),
			SessionID: bundle.ID,
		}); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(fmt.Sprintf("Can't encode response: %s", err.Error())))
			return
		}
	})
}
