package handlers

import (
	"net/http"

	"github.com/nexar-gg/nexar-server/internal/services"
)

// AchievementHandler serves the achievement catalog and per-account
// unlock lists.
type AchievementHandler struct {
	Service *services.AchievementService
}

func NewAchievementHandler(service *services.AchievementService) *AchievementHandler {
	return &AchievementHandler{Service: service}
}

// ListCatalogHandler returns every achievement definition. Public.
func (h *AchievementHandler) ListCatalogHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Service.ListCatalog())
}

// GetMyAchievementsHandler returns the caller's unlocks joined with
// their catalog details.
func (h *AchievementHandler) GetMyAchievementsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	unlocked, err := h.Service.GetUnlockedAchievements(r.Context(), caller)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, unlocked)
}
