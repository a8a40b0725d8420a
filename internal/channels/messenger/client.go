// Package messenger sends replies through the Facebook Graph API.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultAPIBase = "https://graph.facebook.com/v19.0"

// Client posts messages to the Send API on behalf of one page.
type Client struct {
	apiBase   string
	pageToken string
	http      *http.Client
	limiter   *rate.Limiter
}

// New creates a Messenger client. rps bounds outbound sends per second;
// zero or negative falls back to 5.
func New(apiBase, pageToken string, rps float64) *Client {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		apiBase:   strings.TrimRight(apiBase, "/"),
		pageToken: pageToken,
		http:      &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (c *Client) Name() string { return "messenger" }

type sendRequest struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
	MessagingType string `json:"messaging_type"`
}

// SendText delivers a text message to a PSID. Blocks on the rate
// limiter; honors ctx cancellation while waiting.
func (c *Client) SendText(ctx context.Context, recipientID, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var sr sendRequest
	sr.Recipient.ID = recipientID
	sr.Message.Text = text
	sr.MessagingType = "RESPONSE"

	body, err := json.Marshal(sr)
	if err != nil {
		return fmt.Errorf("encode send request: %w", err)
	}

	url := c.apiBase + "/me/messages?access_token=" + c.pageToken
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("messenger send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("messenger send: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
