// Package ocr is the HTTP client for the page-image text recognition
// service.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/liuwen-dev/studyforge/internal/ai"
)

// Client implements ai.OCR against a JSON recognize endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

var _ ai.OCR = (*Client)(nil)

// NewClient creates an OCR client.
func NewClient(baseURL, apiKey string, log *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		log: log.With("component", "ocr-client"),
	}
}

type recognizeRequest struct {
	Image    string `json:"image"` // base64-encoded PNG
	Encoding string `json:"encoding"`
}

type recognizeResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Text    string `json:"text"`
}

// Recognize submits one page image and returns the recognized text.
func (c *Client) Recognize(ctx context.Context, image []byte) (string, error) {
	body, err := json.Marshal(recognizeRequest{
		Image:    base64.StdEncoding.EncodeToString(image),
		Encoding: "png",
	})
	if err != nil {
		return "", fmt.Errorf("marshal ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/recognize", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("ocr request: status %d: %s", resp.StatusCode, string(respBody))
	}

	var out recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ocr response: %w", err)
	}
	if out.Code != 0 {
		return "", fmt.Errorf("ocr error: code %d: %s", out.Code, out.Message)
	}
	return out.Text, nil
}
