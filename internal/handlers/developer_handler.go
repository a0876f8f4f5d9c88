package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nexar-gg/nexar-server/internal/models"
	"github.com/nexar-gg/nexar-server/internal/services"
)

// DeveloperHandler covers the developer program: applications, listing
// management and the admin review queues.
type DeveloperHandler struct {
	Service *services.DeveloperService
}

func NewDeveloperHandler(service *services.DeveloperService) *DeveloperHandler {
	return &DeveloperHandler{Service: service}
}

// ApplyHandler files a developer application for the caller.
func (h *DeveloperHandler) ApplyHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var input struct {
		StudioName   string `json:"studio_name"`
		ContactEmail string `json:"contact_email"`
	}
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, r, err)
		return
	}

	account, err := h.Service.ApplyAsDeveloper(r.Context(), caller, input.StudioName, input.ContactEmail)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, account.DeveloperProfile)
}

// ListMyGamesHandler returns every listing owned by the caller.
func (h *DeveloperHandler) ListMyGamesHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	games, err := h.Service.ListMyGames(r.Context(), caller)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, games)
}

// CreateListingHandler opens a new draft listing.
func (h *DeveloperHandler) CreateListingHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var input services.ListingInput
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, r, err)
		return
	}

	game, err := h.Service.CreateListing(r.Context(), caller, input)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, game)
}

// UpdateListingHandler edits a draft or rejected listing.
func (h *DeveloperHandler) UpdateListingHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	gameID := mux.Vars(r)["id"]

	var patch models.ListingPatch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, r, err)
		return
	}

	game, err := h.Service.UpdateListing(r.Context(), caller, gameID, patch)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, game)
}

// SubmitListingHandler moves a listing into the review queue.
func (h *DeveloperHandler) SubmitListingHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	gameID := mux.Vars(r)["id"]

	game, err := h.Service.SubmitListing(r.Context(), caller, gameID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, game)
}

// AdminListApplicationsHandler returns accounts with a pending
// developer application.
func (h *DeveloperHandler) AdminListApplicationsHandler(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Service.ListApplications(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, accounts)
}

// AdminReviewApplicationHandler approves or rejects the application of
// the account in the path.
func (h *DeveloperHandler) AdminReviewApplicationHandler(w http.ResponseWriter, r *http.Request) {
	accountHex := mux.Vars(r)["userID"]

	var input struct {
		Approve bool   `json:"approve"`
		Note    string `json:"note"`
	}
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, r, err)
		return
	}

	account, err := h.Service.ReviewDeveloperApplication(r.Context(), accountHex, input.Approve, input.Note)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, account.DeveloperProfile)
}

// AdminListPendingGamesHandler returns the listing review queue.
func (h *DeveloperHandler) AdminListPendingGamesHandler(w http.ResponseWriter, r *http.Request) {
	games, err := h.Service.ListPendingGames(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, games)
}

// AdminReviewListingHandler approves or rejects a submitted listing.
func (h *DeveloperHandler) AdminReviewListingHandler(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]

	var input struct {
		Approve bool   `json:"approve"`
		Note    string `json:"note"`
	}
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, r, err)
		return
	}

	game, err := h.Service.ReviewListing(r.Context(), gameID, input.Approve, input.Note)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, game)
}
