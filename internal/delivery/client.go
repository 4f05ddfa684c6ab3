// Package delivery batches rendered summaries and POSTs them to the
// vector-indexing endpoint with bounded concurrency and per-item retry.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vitalstream/health-ingest/internal/models"
)

const (
	// PrintMode is the sentinel endpoint that turns delivery into a local
	// dry-run print.
	PrintMode = "PRINT_MODE"

	maxAttempts     = 3
	retryStep       = 500 * time.Millisecond
	connectTimeout  = 10 * time.Second
	attemptTimeout  = 60 * time.Second
	printPreviewLen = 150
)

// Item is one deliverable summary.
type Item struct {
	UserID  string
	Date    string
	Summary string
}

// Client accumulates items into batches and dispatches each batch through a
// bounded worker pool. Add and Flush must be called from a single goroutine;
// the workers spawned per batch share no mutable state beyond the counters.
type Client struct {
	endpoint      string
	batchSize     int
	maxConcurrent int
	httpClient    *http.Client
	log           *zap.Logger
	tracer        trace.Tracer

	// step is the retry ramp unit, overridable in tests.
	step time.Duration

	batch     []Item
	delivered atomic.Int64
	failed    atomic.Int64
}

// NewClient creates a delivery client for the given endpoint.
func NewClient(endpoint string, batchSize, maxConcurrent int, log *zap.Logger) *Client {
	return &Client{
		endpoint:      endpoint,
		batchSize:     batchSize,
		maxConcurrent: maxConcurrent,
		httpClient: &http.Client{
			Timeout: attemptTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: connectTimeout,
				}).DialContext,
			},
		},
		log:    log,
		tracer: otel.Tracer("health-ingest/delivery"),
		step:   retryStep,
		batch:  make([]Item, 0, batchSize),
	}
}

// Add queues one summary for delivery, dispatching the current batch once it
// reaches the configured size.
func (c *Client) Add(ctx context.Context, item Item) {
	c.batch = append(c.batch, item)
	if len(c.batch) >= c.batchSize {
		c.dispatch(ctx, c.batch)
		c.batch = make([]Item, 0, c.batchSize)
	}
}

// Flush dispatches any partially filled batch. Call once at end-of-input.
func (c *Client) Flush(ctx context.Context) {
	if len(c.batch) == 0 {
		return
	}
	c.dispatch(ctx, c.batch)
	c.batch = make([]Item, 0, c.batchSize)
}

// Delivered returns the number of summaries acknowledged by the endpoint.
func (c *Client) Delivered() int64 { return c.delivered.Load() }

// Failed returns the number of summaries dropped after exhausting retries.
func (c *Client) Failed() int64 { return c.failed.Load() }

// dispatch drains one batch through a worker pool of at most maxConcurrent
// goroutines, so no more than maxConcurrent requests are in flight at any
// instant. It returns only when every item in the batch has been resolved.
func (c *Client) dispatch(ctx context.Context, batch []Item) {
	ctx, span := c.tracer.Start(ctx, "delivery.batch",
		trace.WithAttributes(attribute.Int("batch.size", len(batch))))
	defer span.End()

	c.log.Info("dispatching batch", zap.Int("size", len(batch)))

	workers := c.maxConcurrent
	if len(batch) < workers {
		workers = len(batch)
	}

	items := make(chan Item)
	var wg sync.WaitGroup
	var ok, bad int64

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range items {
				if c.deliver(ctx, item) {
					c.delivered.Add(1)
					atomic.AddInt64(&ok, 1)
				} else {
					c.failed.Add(1)
					atomic.AddInt64(&bad, 1)
				}
			}
		}()
	}

	for _, item := range batch {
		items <- item
	}
	close(items)
	wg.Wait()

	c.log.Info("batch completed",
		zap.Int64("delivered", atomic.LoadInt64(&ok)),
		zap.Int64("failed", atomic.LoadInt64(&bad)),
	)
}

// deliver performs the retried delivery of a single item and reports whether
// it was acknowledged.
func (c *Client) deliver(ctx context.Context, item Item) bool {
	if c.endpoint == PrintMode {
		preview := item.Summary
		if len(preview) > printPreviewLen {
			preview = preview[:printPreviewLen]
		}
		fmt.Printf("[%s - %s] %s...\n", item.UserID, item.Date, preview)
		return true
	}

	body, err := json.Marshal(models.NewEnvelope(item.UserID, item.Date, item.Summary))
	if err != nil {
		c.log.Error("failed to encode summary envelope",
			zap.String("user_id", item.UserID),
			zap.String("date", item.Date),
			zap.Error(err),
		)
		return false
	}

	requestID := uuid.NewString()
	attempt := 0
	operation := func() error {
		attempt++
		return c.post(ctx, body, requestID)
	}

	policy := backoff.WithContext(&linearBackOff{step: c.step}, ctx)
	notify := func(err error, wait time.Duration) {
		c.log.Warn("retrying delivery",
			zap.String("user_id", item.UserID),
			zap.String("date", item.Date),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}

	err = backoff.RetryNotify(operation, backoff.WithMaxRetries(policy, maxAttempts-1), notify)
	if err != nil {
		c.log.Error("delivery failed",
			zap.String("user_id", item.UserID),
			zap.String("date", item.Date),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
		return false
	}
	return true
}

// post performs one HTTP delivery attempt. Success requires a 200 or 201
// status and a JSON body carrying "status": "ok".
func (c *Client) post(ctx context.Context, body []byte, requestID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	// A 2xx with a malformed or non-ok body is not retried: the endpoint
	// accepted the request but rejected the document.
	var ack struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return backoff.Permanent(fmt.Errorf("invalid response body: %w", err))
	}
	if ack.Status != "ok" {
		return backoff.Permanent(fmt.Errorf("endpoint answered status %q", ack.Status))
	}
	return nil
}

// linearBackOff ramps linearly: step, 2×step, 3×step, ...
type linearBackOff struct {
	step time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.step
}

func (b *linearBackOff) Reset() {
	b.n = 0
}
