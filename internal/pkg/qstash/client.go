package qstash

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fndlabs/foundation/internal/pkg/config"
)

// DefaultRetries is the delivery retry budget handed to the queue service on
// every submission. The queue performs the retries; this process never does.
const DefaultRetries = 3

// PublishOptions tunes a single message submission.
type PublishOptions struct {
	Retries      int
	DelaySeconds int
}

// BatchMessage is one entry of a batch submission.
type BatchMessage struct {
	Destination string
	Body        []byte
	Retries     int
}

type publishResponse struct {
	MessageID string `json:"messageId"`
}

// Client submits messages to the push-based queue service over HTTP. The
// service delivers them to the destination URL with its own retry policy.
type Client struct {
	BaseURL string
	Token   string

	HTTPClient *http.Client
}

// NewClient creates a queue client from configuration.
func NewClient(cfg config.QStash) *Client {
	return &Client{
		BaseURL: strings.TrimRight(cfg.URL, "/"),
		Token:   cfg.Token,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Publish submits one message for delivery to destination. The returned id
// identifies the submission, not the delivery outcome.
func (c *Client) Publish(ctx context.Context, destination string, body []byte, opts PublishOptions) (string, error) {
	if strings.TrimSpace(c.Token) == "" {
		return "", errors.New("QSTASH_TOKEN is not configured")
	}
	if strings.TrimSpace(destination) == "" {
		return "", errors.New("destination url is required")
	}

	retries := opts.Retries
	if retries <= 0 {
		retries = DefaultRetries
	}

	url := c.BaseURL + "/v2/publish/" + destination
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Upstash-Retries", strconv.Itoa(retries))
	if opts.DelaySeconds > 0 {
		req.Header.Set("Upstash-Delay", fmt.Sprintf("%ds", opts.DelaySeconds))
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("publish rejected with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed publishResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode publish response: %w", err)
	}
	return parsed.MessageID, nil
}

// PublishBatch submits several messages in one call. A rejected batch is
// equivalent to every message in it failing; callers must not assume partial
// submission.
func (c *Client) PublishBatch(ctx context.Context, messages []BatchMessage) error {
	if len(messages) == 0 {
		return nil
	}
	if strings.TrimSpace(c.Token) == "" {
		return errors.New("QSTASH_TOKEN is not configured")
	}

	type batchEntry struct {
		Destination string            `json:"destination"`
		Body        json.RawMessage   `json:"body"`
		Headers     map[string]string `json:"headers,omitempty"`
	}
	entries := make([]batchEntry, 0, len(messages))
	for _, m := range messages {
		retries := m.Retries
		if retries <= 0 {
			retries = DefaultRetries
		}
		entries = append(entries, batchEntry{
			Destination: m.Destination,
			Body:        json.RawMessage(m.Body),
			Headers: map[string]string{
				"Upstash-Retries": strconv.Itoa(retries),
			},
		})
	}

	payload, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v2/batch", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return fmt.Errorf("batch publish rejected with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}
