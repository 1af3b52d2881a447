package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// EvolutionClient sends text replies through a self-hosted Evolution API instance.
type EvolutionClient struct {
	baseURL    string
	apiKey     string
	instance   string
	httpClient *http.Client
}

func NewEvolutionClient(baseURL, apiKey, instance string, timeout time.Duration) *EvolutionClient {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &EvolutionClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		instance:   instance,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (e *EvolutionClient) SendMessage(ctx context.Context, to, content string) (string, error) {
	if e.baseURL == "" || e.instance == "" {
		return "", fmt.Errorf("evolution: base url or instance not configured")
	}
	endpoint := fmt.Sprintf("%s/message/sendText/%s", e.baseURL, url.PathEscape(e.instance))
	data, err := json.Marshal(map[string]string{"number": to, "text": content})
	if err != nil {
		return "", fmt.Errorf("encode evolution payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build evolution request: %w", err)
	}
	req.Header.Set("apikey", e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("evolution send: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("evolution send: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out struct {
		Key struct {
			ID string `json:"id"`
		} `json:"key"`
	}
	_ = json.Unmarshal(body, &out)
	return out.Key.ID, nil
}
