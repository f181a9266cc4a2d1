// Package webhook delivers leads and reports to an HTTP endpoint as signed JSON.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/leadflow/internal/logging"
	"github.com/aretw0/leadflow/pkg/domain"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the body when a secret is set.
	SignatureHeader = "X-Leadflow-Signature"
	// IdempotencyHeader carries "<type>:<session ID>" so receivers can
	// deduplicate retries without confusing a lead with its report.
	IdempotencyHeader = "Idempotency-Key"
)

// Payload is the body posted to the endpoint.
type Payload struct {
	Type   string             `json:"type"` // "lead" or "report"
	Lead   *domain.LeadRecord `json:"lead,omitempty"`
	Report *domain.Report     `json:"report,omitempty"`
}

// Sender implements ports.LeadSink and ports.ReportSender.
type Sender struct {
	url         string
	secret      string
	client      *http.Client
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
}

// Option configures a Sender.
type Option func(*Sender)

// WithSecret signs every body with HMAC-SHA256.
func WithSecret(secret string) Option {
	return func(s *Sender) { s.secret = secret }
}

// WithHTTPClient replaces the default client (15s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) { s.client = c }
}

// WithRetry sets the attempt count and the initial backoff, doubled per retry.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(s *Sender) {
		if attempts > 0 {
			s.maxAttempts = attempts
		}
		if backoff > 0 {
			s.backoff = backoff
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sender) { s.logger = l }
}

// New creates a Sender posting to url.
func New(url string, opts ...Option) *Sender {
	s := &Sender{
		url:         url,
		client:      &http.Client{Timeout: 15 * time.Second},
		maxAttempts: 3,
		backoff:     500 * time.Millisecond,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit posts the lead. Retries reuse the same idempotency key.
func (s *Sender) Submit(ctx context.Context, lead *domain.LeadRecord) error {
	return s.post(ctx, lead.Profile.SessionID, Payload{Type: "lead", Lead: lead})
}

// SendReport posts the rendered report.
func (s *Sender) SendReport(ctx context.Context, report *domain.Report) error {
	return s.post(ctx, report.Lead.Profile.SessionID, Payload{Type: "report", Report: report})
}

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook responded status=%d body=%s", e.Status, e.Body)
}

func (s *Sender) post(ctx context.Context, key string, payload Payload) error {
	blob, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", payload.Type, err)
	}

	backoff := s.backoff
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		lastErr = s.do(ctx, payload.Type+":"+key, blob)
		if lastErr == nil {
			s.logger.Debug("webhook delivered", "type", payload.Type, "session_id", key, "attempt", attempt)
			return nil
		}
		if !retryable(lastErr) || attempt == s.maxAttempts {
			break
		}
		s.logger.Warn("webhook delivery failed, retrying", "type", payload.Type, "session_id", key, "attempt", attempt, "error", lastErr)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return fmt.Errorf("deliver %s %s: %w", payload.Type, key, lastErr)
}

func (s *Sender) do(ctx context.Context, key string, blob []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(blob))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(IdempotencyHeader, key)
	if s.secret != "" {
		req.Header.Set(SignatureHeader, Sign(s.secret, blob))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Status: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// retryable reports whether a delivery error may succeed on a later attempt:
// transport errors, 429 and 5xx.
func retryable(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return true
	}
	return se.Status == http.StatusTooManyRequests || se.Status >= 500
}

// Sign returns the hex HMAC-SHA256 of payload.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
