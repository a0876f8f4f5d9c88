package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nexar-gg/nexar-server/internal/catalog"
	"github.com/nexar-gg/nexar-server/internal/services"
)

// StoreHandler serves the public storefront pages.
type StoreHandler struct {
	Catalog   *catalog.Catalog
	Developer *services.DeveloperService
}

func NewStoreHandler(cat *catalog.Catalog, developer *services.DeveloperService) *StoreHandler {
	return &StoreHandler{Catalog: cat, Developer: developer}
}

// ListGamesHandler returns the first-party catalog alongside approved
// community listings.
func (h *StoreHandler) ListGamesHandler(w http.ResponseWriter, r *http.Request) {
	community, err := h.Developer.ListApprovedGames(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"games":     h.Catalog.Games(),
		"community": community,
	})
}

// GetGameHandler returns one catalog entry.
func (h *StoreHandler) GetGameHandler(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]

	game, ok := h.Catalog.Game(gameID)
	if !ok {
		http.Error(w, "Game not found", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, game)
}
