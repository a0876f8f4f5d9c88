package handlers

import (
	"net/http"

	"github.com/nexar-gg/nexar-server/internal/models"
	"github.com/nexar-gg/nexar-server/internal/services"
)

// ParentalHandler exposes the guardian-managed control block.
type ParentalHandler struct {
	Service *services.ParentalService
}

func NewParentalHandler(service *services.ParentalService) *ParentalHandler {
	return &ParentalHandler{Service: service}
}

// GetStatusHandler returns the control block with the PIN hash stripped.
func (h *ParentalHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	controls, err := h.Service.GetSettings(r.Context(), caller)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, controls)
}

// EnableHandler turns controls on with a fresh PIN.
func (h *ParentalHandler) EnableHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var input struct {
		PIN string `json:"pin"`
	}
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, r, err)
		return
	}

	controls, err := h.Service.Enable(r.Context(), caller, input.PIN)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, controls)
}

// DisableHandler turns controls off. The whole block resets, so a later
// enable starts from defaults.
func (h *ParentalHandler) DisableHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var input struct {
		PIN string `json:"pin"`
	}
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.Service.Disable(r.Context(), caller, input.PIN); err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "parental controls disabled"})
}

// UpdateSettingsHandler applies a partial settings change. Every
// mutation requires the plaintext PIN.
func (h *ParentalHandler) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var input struct {
		PIN   string                       `json:"pin"`
		Patch models.ParentalSettingsPatch `json:"settings"`
	}
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, r, err)
		return
	}

	controls, err := h.Service.UpdateSettings(r.Context(), caller, input.PIN, input.Patch)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, controls)
}

// LogPlaytimeHandler records played minutes against today's log.
func (h *ParentalHandler) LogPlaytimeHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var input struct {
		Minutes int `json:"minutes"`
	}
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, r, err)
		return
	}

	controls, err := h.Service.LogPlaytime(r.Context(), caller, input.Minutes)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, controls)
}

// CheckAccessHandler answers whether the caller may launch the game in
// ?game_id=. The check never mutates anything.
func (h *ParentalHandler) CheckAccessHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	gameID := r.URL.Query().Get("game_id")

	decision, err := h.Service.CheckAccess(r.Context(), caller, gameID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, decision)
}
