// Package guestbook forwards guestbook messages to the remote aggregator and
// reads them back for display.
package guestbook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"wedding-invites/internal/metrics"

	"github.com/rs/zerolog"
)

var (
	ErrNotConfigured = errors.New("guestbook endpoint not configured")
	ErrEmptyMessage  = errors.New("message is empty")
)

// Message is one guestbook entry. The aggregator script names the link field "lien".
type Message struct {
	Name    string `json:"name" form:"name"`
	Link    string `json:"lien" form:"lien"`
	Message string `json:"message" form:"message"`
}

// Session is the per-visitor state the relay consults before submitting.
type Session struct {
	MessageSent bool `json:"message_sent"`
}

// Status is the outcome of a relay call.
type Status string

const (
	StatusOK          Status = "ok"
	StatusAlreadySent Status = "already_sent"
	StatusFailed      Status = "failed"
)

// Result reports a relay outcome; Cause is set when Status is StatusFailed.
type Result struct {
	Status Status
	Cause  error
}

func (r Result) OK() bool {
	return r.Status == StatusOK
}

type Relay struct {
	url    string
	client *http.Client
	log    zerolog.Logger
}

// NewRelay creates a relay for the aggregator at url
func NewRelay(url string, timeout time.Duration, logger zerolog.Logger) *Relay {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Relay{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: timeout},
		log:    logger.With().Str("component", "Guestbook").Logger(),
	}
}

// Submit posts msg unless the session already sent one. On success the session
// is marked as sent; the caller persists it.
func (r *Relay) Submit(ctx context.Context, sess *Session, msg Message) Result {
	if sess != nil && sess.MessageSent {
		metrics.RelayRequests.WithLabelValues("submit", string(StatusAlreadySent)).Inc()
		return Result{Status: StatusAlreadySent}
	}
	if strings.TrimSpace(msg.Message) == "" {
		return r.failed("submit", ErrEmptyMessage)
	}
	if r.url == "" {
		return r.failed("submit", ErrNotConfigured)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return r.failed("submit", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return r.failed("submit", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return r.failed("submit", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return r.failed("submit", fmt.Errorf("guestbook error: status=%d body=%s", resp.StatusCode, string(b)))
	}

	if sess != nil {
		sess.MessageSent = true
	}
	metrics.RelayRequests.WithLabelValues("submit", string(StatusOK)).Inc()
	r.log.Info().Str("name", msg.Name).Msg("Guestbook message relayed")
	return Result{Status: StatusOK}
}

// FetchAll returns the current messages, or an empty slice with a failed Result.
func (r *Relay) FetchAll(ctx context.Context) ([]Message, Result) {
	if r.url == "" {
		return []Message{}, r.failed("fetch", ErrNotConfigured)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return []Message{}, r.failed("fetch", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return []Message{}, r.failed("fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return []Message{}, r.failed("fetch", fmt.Errorf("guestbook error: status=%d", resp.StatusCode))
	}

	var messages []Message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return []Message{}, r.failed("fetch", fmt.Errorf("failed to decode messages: %w", err))
	}
	if messages == nil {
		messages = []Message{}
	}

	metrics.RelayRequests.WithLabelValues("fetch", string(StatusOK)).Inc()
	return messages, Result{Status: StatusOK}
}

func (r *Relay) failed(op string, cause error) Result {
	metrics.RelayRequests.WithLabelValues(op, string(StatusFailed)).Inc()
	r.log.Warn().Err(cause).Str("op", op).Msg("Guestbook relay failed")
	return Result{Status: StatusFailed, Cause: cause}
}
