package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/nexar-gg/nexar-server/internal/services"
)

// WalletHandler exposes balance, deposit and purchase endpoints.
type WalletHandler struct {
	Service *services.WalletService
}

func NewWalletHandler(service *services.WalletService) *WalletHandler {
	return &WalletHandler{Service: service}
}

// GetBalanceHandler returns the caller's current balance.
func (h *WalletHandler) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	balance, err := h.Service.GetBalance(r.Context(), caller)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]int64{"balance_cents": balance})
}

// GetTransactionsHandler lists the caller's wallet history, newest first.
// An optional ?limit= caps the page size.
func (h *WalletHandler) GetTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	transactions, err := h.Service.GetTransactions(r.Context(), caller, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, transactions)
}

// GetLibraryHandler lists the catalog entries the caller owns.
func (h *WalletHandler) GetLibraryHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	library, err := h.Service.GetLibrary(r.Context(), caller)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, library)
}

// CreateDepositSessionHandler opens a payment-provider session for a
// wallet top-up. The client completes payment against the provider and
// then confirms the session here.
func (h *WalletHandler) CreateDepositSessionHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var input struct {
		AmountCents int64 `json:"amount_cents"`
	}
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, r, err)
		return
	}

	session, err := h.Service.CreateDepositSession(r.Context(), caller, input.AmountCents)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, session)
}

// ConfirmDepositHandler credits the wallet once the provider reports the
// session as paid. Replaying a session is rejected.
func (h *WalletHandler) ConfirmDepositHandler(w http.ResponseWriter, r *http.Request) {
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

	account, err := h.Service.ConfirmDeposit(r.Context(), caller, input.SessionID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "deposit confirmed",
		"balance_cents": account.BalanceCents,
	})
}

// PurchaseGameHandler buys the catalog game in the path for the caller.
func (h *WalletHandler) PurchaseGameHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	gameID := mux.Vars(r)["id"]

	account, tx, err := h.Service.PurchaseGame(r.Context(), caller, gameID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "purchase complete",
		"balance_cents": account.BalanceCents,
		"transaction":   tx,
	})
}

// QuotePriceHandler returns the effective price of a catalog game for
// the caller, with any membership discount applied.
func (h *WalletHandler) QuotePriceHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	gameID := mux.Vars(r)["id"]

	quote, err := h.Service.QuotePrice(r.Context(), caller, gameID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, quote)
}

// AdminRefundHandler reverses a purchase transaction for the account in
// the path. Mounted behind the admin role check.
func (h *WalletHandler) AdminRefundHandler(w http.ResponseWriter, r *http.Request) {
	accountHex := mux.Vars(r)["userID"]

	var input struct {
		TransactionID string `json:"transaction_id"`
	}
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, r, err)
		return
	}

	account, err := h.Service.RefundPurchase(r.Context(), accountHex, input.TransactionID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "refund issued",
		"balance_cents": account.BalanceCents,
	})
}
