package handlers

import (
	"net/http"

	"github.com/nexar-gg/nexar-server/internal/services"
)

// SubscriptionHandler exposes the Nexar Plus membership endpoints.
type SubscriptionHandler struct {
	Service *services.SubscriptionService
}

func NewSubscriptionHandler(service *services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{Service: service}
}

// GetSubscriptionHandler returns the caller's membership state. The
// active flag reflects the renewal date, not just the stored toggle.
func (h *SubscriptionHandler) GetSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	subscription, active, err := h.Service.GetSubscription(r.Context(), caller)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"subscription": subscription,
		"active":       active,
	})
}

// CreateCheckoutHandler opens a payment session for a membership term.
func (h *SubscriptionHandler) CreateCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	session, err := h.Service.CreateCheckoutSession(r.Context(), caller)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, session)
}

// ConfirmCheckoutHandler activates the membership once the provider
// reports the session paid.
func (h *SubscriptionHandler) ConfirmCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var input struct {
		SessionID string `json:"session_id"`
	}
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, r, err)
		return
	}

	account, err := h.Service.ConfirmCheckout(r.Context(), caller, input.SessionID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "subscription active",
		"subscription": account.Subscription,
	})
}

// CancelHandler ends the membership immediately.
func (h *SubscriptionHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	account, err := h.Service.Cancel(r.Context(), caller)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "subscription cancelled",
		"subscription": account.Subscription,
	})
}
