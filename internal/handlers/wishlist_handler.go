package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nexar-gg/nexar-server/internal/apperr"
	"github.com/nexar-gg/nexar-server/internal/services"
)

// WishlistHandler exposes the caller's wishlist.
type WishlistHandler struct {
	Service *services.WishlistService
}

func NewWishlistHandler(service *services.WishlistService) *WishlistHandler {
	return &WishlistHandler{Service: service}
}

// GetWishlistHandler lists the caller's wishlist, newest first, with a
// live price quote per game.
func (h *WishlistHandler) GetWishlistHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	entries, err := h.Service.GetWishlist(r.Context(), caller)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, entries)
}

// AddToWishlistHandler pins the game in the path to the caller's
// wishlist. The body is optional and may carry a note.
func (h *WishlistHandler) AddToWishlistHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	gameID := mux.Vars(r)["gameID"]

	var input struct {
		Note string `json:"note"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, r, apperr.Validation("invalid request payload"))
		return
	}

	entry, err := h.Service.AddToWishlist(r.Context(), caller, gameID, input.Note)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, entry)
}

// RemoveFromWishlistHandler drops the game in the path from the
// caller's wishlist.
func (h *WishlistHandler) RemoveFromWishlistHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	gameID := mux.Vars(r)["gameID"]

	if err := h.Service.RemoveFromWishlist(r.Context(), caller, gameID); err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "game removed from wishlist"})
}
