package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const defaultASRBase = "https://translation-api.ghananlp.org/asr/v1"

// GhanaNLP transcribes Twi (and other Ghanaian languages) through the
// GhanaNLP ASR API. The API returns either a bare JSON string or an object
// carrying a "message" field on error; the error payload is reported as an
// empty transcript, not a Go error, because the pipeline treats both the
// same way.
type GhanaNLP struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewGhanaNLP(apiKey string) *GhanaNLP {
	return &GhanaNLP{apiKey: apiKey, baseURL: defaultASRBase, client: http.DefaultClient}
}

// SetBaseURL overrides the API endpoint; used in tests.
func (g *GhanaNLP) SetBaseURL(u string) { g.baseURL = u }

func (g *GhanaNLP) Close() error { return nil }

func (g *GhanaNLP) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	if language == "" {
		language = "tw"
	}
	u := fmt.Sprintf("%s/transcribe?language=%s", g.baseURL, url.QueryEscape(language))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "audio/wav")
	req.Header.Set("Ocp-Apim-Subscription-Key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ghananlp asr: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return parseTranscript(body), nil
}

func parseTranscript(body []byte) string {
	var asString string
	if err := json.Unmarshal(body, &asString); err == nil {
		return strings.TrimSpace(asString)
	}
	var asObject struct {
		Text          string `json:"text"`
		Transcription string `json:"transcription"`
		Message       string `json:"message"`
	}
	if err := json.Unmarshal(body, &asObject); err == nil {
		if asObject.Message != "" {
			return ""
		}
		if asObject.Text != "" {
			return strings.TrimSpace(asObject.Text)
		}
		return strings.TrimSpace(asObject.Transcription)
	}
	return strings.TrimSpace(string(body))
}
