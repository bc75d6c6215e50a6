package route

import (
	"caltalk/src-server/llm"
	"caltalk/src-server/utils"
	"encoding/json"
	"fmt"
	"net/http"
)

// TTS reads a reply aloud. Registered with a nil synthesizer when no
// ElevenLabs key is configured, in which case it answers 503.
func TTS(muxer *http.ServeMux, as *utils.AppState, tts *llm.TTS) {
	type TTSReqBody struct {
		Text string `json:"text"`
	}

	muxer.HandleFunc("POST /api/tts", func(w http.ResponseWriter, r *http.Request) {
		if tts == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Text-to-speech is not configured"))
			return
		}

		var reqBody TTSReqBody
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(fmt.Sprintf("Can't decode request body: %s", err.Error())))
			return
		}
		if reqBody.Text == "" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("Text is required"))
			return
		}

		audio, err := tts.Speak(r.Context(), reqBody.Text)
		if err != nil {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(fmt.Sprintf("Can't synthesize speech: %s", err.Error())))
			return
		}

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(audio)
	})
}
