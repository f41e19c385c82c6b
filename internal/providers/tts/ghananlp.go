package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultTTSBase = "https://translation-api.ghananlp.org/tts/v1"

type GhanaNLP struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewGhanaNLP(apiKey string) *GhanaNLP {
	return &GhanaNLP{apiKey: apiKey, baseURL: defaultTTSBase, client: http.DefaultClient}
}

func (g *GhanaNLP) SetBaseURL(u string) { g.baseURL = u }

func (g *GhanaNLP) Close() error { return nil }

func (g *GhanaNLP) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	if language == "" {
		language = "tw"
	}
	payload, err := json.Marshal(map[string]string{"text": text, "language": language})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/tts", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ghananlp tts: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	// A JSON object here is the API's structured error shape, not audio.
	if msg := errorMessage(resp.Header.Get("Content-Type"), body); msg != "" {
		return nil, fmt.Errorf("ghananlp tts: %s", msg)
	}
	return body, nil
}

func errorMessage(contentType string, body []byte) string {
	if !strings.Contains(contentType, "application/json") && !bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
