package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const elevenLabsEndpoint = "https://api.elevenlabs.io/v1/text-to-speech"

// TTS synthesizes speech through the ElevenLabs API. The whole feature is
// optional; a nil *TTS means no api key was configured.
type TTS struct {
	endpoint   string
	apiKey     string
	voiceID    string
	model      string
	httpClient *http.Client
}

func NewTTS(apiKey, voiceID, model string) (*TTS, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("NewTTS: api key is blank")
	}
	return &TTS{
		endpoint:   elevenLabsEndpoint,
		apiKey:     apiKey,
		voiceID:    voiceID,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// SetEndpoint points the client at a different base URL, used by tests.
func (t *TTS) SetEndpoint(endpoint string) {
	t.endpoint = endpoint
}

// Speak returns MP3 audio for the text.
func (t *TTS) Speak(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("(*TTS).Speak: text is blank")
	}
	reqBody := struct {
		Text          string `json:"text"`
		ModelID       string `json:"model_id"`
		VoiceSettings struct {
			Stability       float64 `json:"stability"`
			SimilarityBoost float64 `json:"similarity_boost"`
		} `json:"voice_settings"`
	}{
		Text:    text,
		ModelID: t.model,
	}
	reqBody.VoiceSettings.Stability = 0.5
	reqBody.VoiceSettings.SimilarityBoost = 0.5
	reqBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("(*TTS).Speak: failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.endpoint+"/"+t.voiceID, bytes.NewBuffer(reqBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("(*TTS).Speak: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", t.apiKey)
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("(*TTS).Speak: failed to do request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("(*TTS).Speak: bad status code: %d", resp.StatusCode)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("(*TTS).Speak: failed to read body: %w", err)
	}
	return audio, nil
}
