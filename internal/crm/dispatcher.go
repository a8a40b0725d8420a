// Package crm delivers lead records to the CRM's upsert endpoint.
// Deduplication by phone/email is the CRM's job, not ours.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nextlevelbuilder/leadflow/internal/engine"
	"github.com/nextlevelbuilder/leadflow/internal/queue"
)

// Dispatcher pushes leads to the CRM, falling back to the durable retry
// queue on any failure. Push never lets an error escape its boundary.
type Dispatcher struct {
	url    string
	apiKey string
	client *http.Client
	retry  queue.RetryQueue
}

// New creates a CRM dispatcher.
func New(url, apiKey string, timeout time.Duration, retry queue.RetryQueue) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
		retry:  retry,
	}
}

type upsertResponse struct {
	DealID string `json:"deal_id"`
}

// Push upserts one lead. Returns true on 200/201. Every other outcome —
// non-success status, transport failure, even encoding trouble — lands
// the serialized lead on the retry queue and returns false.
func (d *Dispatcher) Push(ctx context.Context, lead *engine.LeadRecord) bool {
	body, err := json.Marshal(lead)
	if err != nil {
		// LeadRecord is plain data; this should be unreachable.
		slog.Error("crm: lead encode failed, dropping", "error", err, "user", lead.PlatformUID)
		return false
	}

	if err := d.send(ctx, body); err != nil {
		slog.Warn("crm: delivery failed, enqueueing retry", "error", err, "user", lead.PlatformUID)
		d.enqueueRetry(ctx, body, lead.PlatformUID)
		return false
	}
	return true
}

// PushRaw replays an already-serialized retry entry.
func (d *Dispatcher) PushRaw(ctx context.Context, body []byte) bool {
	if err := d.send(ctx, body); err != nil {
		slog.Warn("crm: retry delivery failed, re-enqueueing", "error", err)
		d.enqueueRetry(ctx, body, "")
		return false
	}
	return true
}

func (d *Dispatcher) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var ur upsertResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err == nil && ur.DealID != "" {
		slog.Info("crm: lead delivered", "deal_id", ur.DealID)
	} else {
		slog.Info("crm: lead delivered")
	}
	return nil
}

// enqueueRetry appends the serialized lead to the durable retry queue.
// A failure here is the single place data loss is possible: surfaced
// loudly with the full payload, never swallowed.
func (d *Dispatcher) enqueueRetry(ctx context.Context, body []byte, userID string) {
	if err := d.retry.Enqueue(ctx, body); err != nil {
		slog.Error("crm: RETRY ENQUEUE FAILED, LEAD LOST",
			"error", err, "user", userID, "lead", string(body))
	}
}
