// Package dispatch builds monthly summary texts and hands them to an
// external messaging capability, recording the send in the rollover marker.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrDeliveryUnavailable marks a failed invocation of the external composer.
// The rollover marker is never updated when delivery is unavailable.
var ErrDeliveryUnavailable = errors.New("delivery unavailable")

// Composer opens an external message composer pre-filled with text addressed
// to a recipient identity. Fire-and-forget: actual delivery is never
// confirmed, only the invocation can fail.
type Composer interface {
	Compose(ctx context.Context, recipient, text string) error
}

// WhatsAppDeepLink builds the wa.me link that opens an external WhatsApp
// composer pre-filled with text. The recipient is reduced to its digits.
func WhatsAppDeepLink(recipient, text string) (string, error) {
	digits := recipientDigits(recipient)
	if digits == "" {
		return "", fmt.Errorf("%w: no recipient identity configured", ErrDeliveryUnavailable)
	}
	return "https://wa.me/" + digits + "?text=" + url.QueryEscape(text), nil
}

func recipientDigits(recipient string) string {
	var b strings.Builder
	for _, r := range recipient {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LinkComposer implements Composer by producing a deep link for the caller
// to open. Invocation means the link was built; the view layer opens it.
type LinkComposer struct {
	mu       sync.Mutex
	lastLink string
}

func NewLinkComposer() *LinkComposer {
	return &LinkComposer{}
}

func (c *LinkComposer) Compose(_ context.Context, recipient, text string) error {
	link, err := WhatsAppDeepLink(recipient, text)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.lastLink = link
	c.mu.Unlock()
	return nil
}

// LastLink returns the most recently composed deep link.
func (c *LinkComposer) LastLink() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastLink
}

// APIComposer implements Composer against a WASender-style HTTP send API.
type APIComposer struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func NewAPIComposer(baseURL, apiKey string) *APIComposer {
	return &APIComposer{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *APIComposer) Compose(ctx context.Context, recipient, text string) error {
	digits := recipientDigits(recipient)
	if digits == "" {
		return fmt.Errorf("%w: no recipient identity configured", ErrDeliveryUnavailable)
	}

	payload, err := json.Marshal(map[string]any{
		"to":   digits,
		"text": text,
	})
	if err != nil {
		return fmt.Errorf("marshal send payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: send API returned %d", ErrDeliveryUnavailable, resp.StatusCode)
	}
	return nil
}
