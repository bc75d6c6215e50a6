// Package route wires the HTTP API onto a ServeMux.
package route

import (
	"caltalk/src-server/handler"
	"caltalk/src-server/llm"
	"caltalk/src-server/model"
	"caltalk/src-server/utils"
	"encoding/json"
	"fmt"
	"net/http"
)

// Query handles one conversational turn: classify, act, reply.
func Query(muxer *http.ServeMux, as *utils.AppState, h *handler.Handler) {
	type QueryReqBody struct {
		Query     string `json:"query"`
		SessionID string `json:"sessionId"`
	}

	type QueryRespBody struct {
		Success   bool                `json:"success"`
		Response  string              `json:"response"`
		Intent    llm.Intent          `json:"intent"`
		Events    []model.CachedEvent `json:"events,omitempty"`
		SessionID string              `json:"sessionId"`
	}

	muxer.HandleFunc("POST /api/query", func(w http.ResponseWriter, r *http.Request) {
		var reqBody QueryReqBody
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(fmt.Sprintf("Can't decode request body: %s", err.Error())))
			return
		}
		if reqBody.Query == "" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("Query is required"))
			return
		}

		bundle, err := h.Registry().GetOrCreate(r.Context(), reqBody.SessionID)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(fmt.Sprintf("Can't create session: %s", err.Error())))
			return
		}

		outcome := h.Handle(r.Context(), bundle, reqBody.Query)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(QueryRespBody{
			Success:   outcome.Success,
			Response:  outcome.Response,
			Intent:    outcome.Intent,
			Events:    outcome.Events,
			SessionID: bundle.ID,
		}); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(fmt.Sprintf("Can't encode response: %s", err.Error())))
			return
		}
	})
}
