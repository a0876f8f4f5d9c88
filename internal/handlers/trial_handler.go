package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nexar-gg/nexar-server/internal/services"
)

// TrialHandler exposes trial eligibility and metering.
type TrialHandler struct {
	Service *services.TrialService
}

func NewTrialHandler(service *services.TrialService) *TrialHandler {
	return &TrialHandler{Service: service}
}

// CheckTrialHandler reports the caller's trial state for one game.
func (h *TrialHandler) CheckTrialHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	gameID := mux.Vars(r)["gameID"]

	status, err := h.Service.CheckTrial(r.Context(), caller, gameID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, status)
}

// RecordMinutesHandler meters played trial minutes for one game.
func (h *TrialHandler) RecordMinutesHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	gameID := mux.Vars(r)["gameID"]

	var input struct {
		Minutes int `json:"minutes"`
	}
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, r, err)
		return
	}

	status, err := h.Service.RecordTrialMinutes(r.Context(), caller, gameID, input.Minutes)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, status)
}
