// Package notify dispatches alert transition events to the external
// notification collaborator. Transports behind the dispatcher (Slack,
// PagerDuty, email) are out of scope; this package only delivers the event
// at-least-once to a single HTTP endpoint.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/slogate/slogate/internal/alert"
	"github.com/slogate/slogate/internal/log"
	"github.com/slogate/slogate/internal/metrics"
)

// Config holds webhook dispatcher configuration.
type Config struct {
	URL            string
	Timeout        time.Duration
	MaxConcurrency int64
	RetryCount     int
	RetryDelay     time.Duration
}

// DefaultConfig returns default dispatcher configuration.
func DefaultConfig(url string) Config {
	return Config{
		URL:            url,
		Timeout:        10 * time.Second,
		MaxConcurrency: 10,
		RetryCount:     2,
		RetryDelay:     200 * time.Millisecond,
	}
}

// Webhook POSTs events as JSON to the configured dispatcher URL with
// bounded retry and a concurrency cap.
type Webhook struct {
	config Config
	client *http.Client
	sem    *semaphore.Weighted
}

// NewWebhook creates a webhook notifier.
func NewWebhook(config Config) *Webhook {
	return &Webhook{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		sem: semaphore.NewWeighted(config.MaxConcurrency),
	}
}

// Notify implements alert.Notifier. The event ID is assigned here so every
// delivery attempt of one transition carries the same ID.
func (w *Webhook) Notify(ctx context.Context, ev alert.Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	if err := w.sem.Acquire(ctx, 1); err != nil {
		metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
		return fmt.Errorf("semaphore acquire: %w", err)
	}
	defer w.sem.Release(1)

	var lastErr error
	for attempt := 0; attempt <= w.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				metrics.NotificationsTotal.WithLabelValues("failed").Inc()
				return fmt.Errorf("dispatch canceled: %w", ctx.Err())
			case <-time.After(w.config.RetryDelay):
			}
		}

		if err := w.post(ctx, payload); err != nil {
			lastErr = err
			continue
		}
		metrics.NotificationsTotal.WithLabelValues("ok").Inc()
		return nil
	}

	metrics.NotificationsTotal.WithLabelValues("failed").Inc()
	return fmt.Errorf("dispatch failed after %d attempts: %w", w.config.RetryCount+1, lastErr)
}

// post performs a single delivery attempt.
func (w *Webhook) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// LogNotifier writes events to the log. It is the default when no
// dispatcher URL is configured.
type LogNotifier struct {
	Logger log.Logger
}

// Notify implements alert.Notifier.
func (n LogNotifier) Notify(_ context.Context, ev alert.Event) error {
	n.Logger.WithValues(log.Kv{
		"rule":     ev.RuleName,
		"service":  ev.Service,
		"severity": ev.Severity,
		"value":    ev.Value,
	}).Infof("alert %s", ev.Status)
	metrics.NotificationsTotal.WithLabelValues("logged").Inc()
	return nil
}
