// Package asr is the HTTP client for the long-form speech transcription
// service. Transcription is order-based: the audio file is uploaded to
// create an order, then the order is polled until the transcript is
// ready. Results are rendered as "[HH:MM:SS] text" lines so downstream
// chunking can keep time alignment.
package asr

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/liuwen-dev/studyforge/internal/ai"
)

// ErrTimeout is returned when the order does not finish within the
// configured polling budget.
var ErrTimeout = errors.New("asr: transcription order timed out")

// Order status codes reported by the service.
const (
	orderFailed   = -1
	orderFinished = 4
)

// Config holds connection settings for the transcription service.
type Config struct {
	BaseURL      string
	AppID        string
	SecretKey    string
	PollInterval time.Duration
	MaxPolls     int
}

// Client implements ai.Transcriber against the remote service.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

var _ ai.Transcriber = (*Client)(nil)

// NewClient creates a transcription client.
func NewClient(cfg Config, log *slog.Logger) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 90
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		log: log.With("component", "asr-client"),
	}
}

type uploadResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Content struct {
		OrderID string `json:"order_id"`
	} `json:"content"`
}

type resultResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Content struct {
		OrderInfo struct {
			Status int `json:"status"`
		} `json:"order_info"`
		Segments []resultSegment `json:"segments"`
	} `json:"content"`
}

type resultSegment struct {
	BeginMs int64  `json:"begin_ms"`
	Text    string `json:"text"`
}

// Transcribe uploads the audio file, polls the order to completion and
// returns the timestamped transcript.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	orderID, err := c.upload(ctx, audioPath)
	if err != nil {
		return "", err
	}
	c.log.Info("transcription order created", "order_id", orderID, "file", filepath.Base(audioPath))

	segments, err := c.poll(ctx, orderID)
	if err != nil {
		return "", err
	}
	return renderTranscript(segments), nil
}

func (c *Client) upload(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat audio file: %w", err)
	}

	q := url.Values{}
	c.sign(q)
	q.Set("fileName", filepath.Base(audioPath))
	q.Set("fileSize", strconv.FormatInt(info.Size(), 10))
	// Rough duration for mono 16 kHz 16-bit PCM; the service tolerates
	// an inexact value.
	q.Set("duration", strconv.FormatInt(info.Size()/32000+1, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/upload?"+q.Encode(), f)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = info.Size()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("upload audio: status %d: %s", resp.StatusCode, string(body))
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if out.Code != 0 || out.Content.OrderID == "" {
		return "", fmt.Errorf("upload rejected: code %d: %s", out.Code, out.Message)
	}
	return out.Content.OrderID, nil
}

func (c *Client) poll(ctx context.Context, orderID string) ([]resultSegment, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < c.cfg.MaxPolls; attempt++ {
		result, err := c.fetchResult(ctx, orderID)
		if err != nil {
			return nil, err
		}
		switch result.Content.OrderInfo.Status {
		case orderFinished:
			return result.Content.Segments, nil
		case orderFailed:
			return nil, fmt.Errorf("asr: order %s failed: %s", orderID, result.Message)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
	return nil, fmt.Errorf("%w: order %s after %d polls", ErrTimeout, orderID, c.cfg.MaxPolls)
}

func (c *Client) fetchResult(ctx context.Context, orderID string) (*resultResponse, error) {
	q := url.Values{}
	c.sign(q)
	q.Set("orderId", orderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/getResult?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create result request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch result: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("fetch result: status %d: %s", resp.StatusCode, string(body))
	}

	var out resultResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode result response: %w", err)
	}
	if out.Code != 0 {
		return nil, fmt.Errorf("asr: result error: code %d: %s", out.Code, out.Message)
	}
	return &out, nil
}

// sign adds the appId/ts/signa authentication triple. The signature is
// HMAC-SHA1 over the MD5 hex of appId+ts, base64 encoded.
func (c *Client) sign(q url.Values) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sum := md5.Sum([]byte(c.cfg.AppID + ts))
	digest := fmt.Sprintf("%x", sum)

	mac := hmac.New(sha1.New, []byte(c.cfg.SecretKey))
	mac.Write([]byte(digest))

	q.Set("appId", c.cfg.AppID)
	q.Set("ts", ts)
	q.Set("signa", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
}

func renderTranscript(segments []resultSegment) string {
	var sb strings.Builder
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		seconds := seg.BeginMs / 1000
		fmt.Fprintf(&sb, "[%02d:%02d:%02d] %s", seconds/3600, (seconds%3600)/60, seconds%60, text)
	}
	return sb.String()
}
