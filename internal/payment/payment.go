// Package payment abstracts the checkout provider. Real gateways stay
// outside this repo; the sandbox provider backs development and tests.
package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("payment session not found")

// SessionParams describes one checkout to create.
type SessionParams struct {
	AmountCents int64
	Currency    string
	Purpose     string            // "deposit" or "subscription"
	Metadata    map[string]string // carries account_id for confirm-time ownership checks
	SuccessURL  string
	CancelURL   string
}

// Session is the provider's view of one checkout. Handlers return it
// as-is, so the json tags are part of the API.
type Session struct {
	ID          string            `json:"id"`
	URL         string            `json:"url"`
	Paid        bool              `json:"paid"`
	AmountCents int64             `json:"amount_cents"`
	Currency    string            `json:"currency"`
	Purpose     string            `json:"purpose"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Provider creates checkout sessions and reports their state. The
// server never trusts a session id alone; confirm handlers re-check the
// metadata against the authenticated caller.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, params SessionParams) (*Session, error)
	RetrieveSession(ctx context.Context, id string) (*Session, error)
}

// Sandbox keeps sessions in memory and issues uuid ids. MarkPaid
// simulates the shopper completing the checkout.
type Sandbox struct {
	mu       sync.Mutex
	sessions map[string]*Session
	baseURL  string
}

func NewSandbox(baseURL string) *Sandbox {
	return &Sandbox{
		sessions: make(map[string]*Session),
		baseURL:  baseURL,
	}
}

func (s *Sandbox) CreateCheckoutSession(_ context.Context, params SessionParams) (*Session, error) {
	if params.AmountCents <= 0 {
		return nil, fmt.Errorf("checkout amount must be positive, got %d", params.AmountCents)
	}

	id := "cs_sandbox_" + uuid.NewString()
	session := &Session{
		ID:          id,
		URL:         fmt.Sprintf("%s/sandbox/checkout/%s", s.baseURL, id),
		AmountCents: params.AmountCents,
		Currency:    params.Currency,
		Purpose:     params.Purpose,
		Metadata:    copyMetadata(params.Metadata),
	}

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	return snapshot(session), nil
}

func (s *Sandbox) RetrieveSession(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return snapshot(session), nil
}

// MarkPaid flips a session to paid, standing in for the gateway's
// checkout page.
func (s *Sandbox) MarkPaid(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	session.Paid = true
	return nil
}

func snapshot(session *Session) *Session {
	out := *session
	out.Metadata = copyMetadata(session.Metadata)
	return &out
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
