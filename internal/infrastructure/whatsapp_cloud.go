package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const graphBaseURL = "https://graph.facebook.com"

// WhatsAppCloudClient sends text replies through the WhatsApp Cloud (Graph) API.
type WhatsAppCloudClient struct {
	BaseURL       string
	APIVersion    string
	accessToken   string
	phoneNumberID string
	httpClient    *http.Client
}

func NewWhatsAppCloudClient(accessToken, phoneNumberID, apiVersion string, timeout time.Duration) *WhatsAppCloudClient {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &WhatsAppCloudClient{
		BaseURL:       graphBaseURL,
		APIVersion:    apiVersion,
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

type graphSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendMessage posts a text message and returns the wamid of the accepted message.
func (w *WhatsAppCloudClient) SendMessage(ctx context.Context, to, content string) (string, error) {
	if w.accessToken == "" || w.phoneNumberID == "" {
		return "", fmt.Errorf("whatsapp cloud: access token or phone number id not configured")
	}
	url := fmt.Sprintf("%s/%s/%s/messages", strings.TrimRight(w.BaseURL, "/"), w.APIVersion, w.phoneNumberID)
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "text",
		"text": map[string]any{
			"preview_url": false,
			"body":        content,
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode whatsapp payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build whatsapp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whatsapp send: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read whatsapp response: %w", err)
	}
	var out graphSendResponse
	_ = json.Unmarshal(body, &out)

	if resp.StatusCode >= 300 {
		if out.Error != nil && out.Error.Message != "" {
			return "", fmt.Errorf("whatsapp send: status %d: %s (code %d)", resp.StatusCode, out.Error.Message, out.Error.Code)
		}
		return "", fmt.Errorf("whatsapp send: status %d", resp.StatusCode)
	}
	if len(out.Messages) == 0 {
		return "", nil
	}
	return out.Messages[0].ID, nil
}
