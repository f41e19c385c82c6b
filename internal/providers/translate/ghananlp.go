package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultTranslateBase = "https://translation-api.ghananlp.org/v1"

type GhanaNLP struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewGhanaNLP(apiKey string) *GhanaNLP {
	return &GhanaNLP{apiKey: apiKey, baseURL: defaultTranslateBase, client: http.DefaultClient}
}

func (g *GhanaNLP) SetBaseURL(u string) { g.baseURL = u }

func (g *GhanaNLP) Close() error { return nil }

func (g *GhanaNLP) Translate(ctx context.Context, text, pair string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	payload, err := json.Marshal(map[string]string{"in": text, "lang": pair})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/translate", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
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
		return "", fmt.Errorf("ghananlp translate %s: status %d: %s", pair, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	// The API answers with a bare JSON string; some variants wrap it.
	var asString string
	if err := json.Unmarshal(body, &asString); err == nil {
		return strings.TrimSpace(asString), nil
	}
	var asObject struct {
		Translation string `json:"translation"`
		Text        string `json:"text"`
	}
	if err := json.Unmarshal(body, &asObject); err == nil {
		if asObject.Translation != "" {
			return strings.TrimSpace(asObject.Translation), nil
		}
		return strings.TrimSpace(asObject.Text), nil
	}
	return strings.TrimSpace(string(body)), nil
}
