package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreListingIsPublic(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/store/games", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Games []struct {
			ID         string `json:"id"`
			Name       string `json:"name"`
			PriceCents int64  `json:"price_cents"`
		} `json:"games"`
		Community []struct{} `json:"community"`
	}
	decode(t, rec, &out)
	assert.Len(t, out.Games, 5)
	assert.Empty(t, out.Community)

	seen := make(map[string]bool)
	for _, game := range out.Games {
		seen[game.ID] = true
	}
	assert.True(t, seen["nova-drift"])
	assert.True(t, seen["starfall-arena"])
	assert.True(t, seen["iron-dominion"])
	assert.True(t, seen["pixel-farm"])
	assert.True(t, seen["midnight-protocol"])
}

func TestStoreGameDetail(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/store/games/pixel-farm", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var game struct {
		Name       string `json:"name"`
		PriceCents int64  `json:"price_cents"`
		Rating     string `json:"rating"`
	}
	decode(t, rec, &game)
	assert.Equal(t, "Pixel Farm", game.Name)
	assert.Equal(t, int64(1499), game.PriceCents)

	rec = app.do(t, http.MethodGet, "/store/games/half-life-3", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAchievementCatalogIsPublic(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/achievements", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var defs []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	decode(t, rec, &defs)
	assert.Len(t, defs, 7)
}

func TestMyAchievementsEndpoint(t *testing.T) {
	app := newTestApp(t)

	_, token := app.signup(t, "achiever")

	rec := app.do(t, http.MethodGet, "/achievements/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Registration grants first_login.
	var unlocked []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	decode(t, rec, &unlocked)
	require.Len(t, unlocked, 1)
	assert.Equal(t, "first_login", unlocked[0].ID)
	assert.Equal(t, "First Login", unlocked[0].Name)

	rec = app.do(t, http.MethodGet, "/achievements/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
