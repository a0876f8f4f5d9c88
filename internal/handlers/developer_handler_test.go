package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeveloperProgramFlow(t *testing.T) {
	app := newTestApp(t)

	dev, devToken := app.signup(t, "studio_lead")
	_, adminToken := app.signupAdmin(t, "dev_admin")

	// Listings are closed until an application is approved.
	rec := app.do(t, http.MethodPost, "/developer/games", devToken, map[string]interface{}{
		"title":  "Voidrunner",
		"rating": "Everyone",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, http.MethodPost, "/developer/apply", devToken, map[string]string{
		"studio_name":   "Studio Lead Games",
		"contact_email": "biz@studiolead.gg",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var profile struct {
		StudioName string `json:"studio_name"`
		Status     string `json:"status"`
		ReviewNote string `json:"review_note"`
	}
	decode(t, rec, &profile)
	assert.Equal(t, "pending", profile.Status)

	rec = app.do(t, http.MethodGet, "/admin/developer/applications", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var applicants []struct {
		ID string `json:"id"`
	}
	decode(t, rec, &applicants)
	require.Len(t, applicants, 1)
	assert.Equal(t, dev.ID.Hex(), applicants[0].ID)

	rec = app.do(t, http.MethodPost, "/admin/developer/applications/"+dev.ID.Hex()+"/review", adminToken, map[string]interface{}{
		"approve": true,
		"note":    "welcome aboard",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &profile)
	assert.Equal(t, "approved", profile.Status)

	rec = app.do(t, http.MethodPost, "/developer/games", devToken, map[string]interface{}{
		"title":       "Voidrunner",
		"description": "Outrun the void.",
		"genre":       "action",
		"price_cents": 2499,
		"rating":      "Everyone",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var listing struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Status string `json:"status"`
		Rating string `json:"rating"`
	}
	decode(t, rec, &listing)
	assert.Equal(t, "draft", listing.Status)
	assert.Equal(t, "E", listing.Rating)

	rec = app.do(t, http.MethodPut, "/developer/games/"+listing.ID, devToken, map[string]interface{}{
		"price_cents": 1999,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodPost, "/developer/games/"+listing.ID+"/submit", devToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &listing)
	assert.Equal(t, "pending", listing.Status)

	// Pending listings are frozen for the developer.
	rec = app.do(t, http.MethodPut, "/developer/games/"+listing.ID, devToken, map[string]interface{}{
		"title": "Voidrunner 2",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, http.MethodGet, "/admin/developer/games", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var queue []struct {
		ID string `json:"id"`
	}
	decode(t, rec, &queue)
	require.Len(t, queue, 1)

	rec = app.do(t, http.MethodPost, "/admin/developer/games/"+listing.ID+"/review", adminToken, map[string]interface{}{
		"approve": true,
		"note":    "ship it",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &listing)
	assert.Equal(t, "approved", listing.Status)

	// The approved title shows up in the public store.
	rec = app.do(t, http.MethodGet, "/store/games", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var storefront struct {
		Community []struct {
			Title string `json:"title"`
		} `json:"community"`
	}
	decode(t, rec, &storefront)
	require.Len(t, storefront.Community, 1)
	assert.Equal(t, "Voidrunner", storefront.Community[0].Title)

	// First approval also earns the creator achievement.
	rec = app.do(t, http.MethodGet, "/achievements/me", devToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var unlocked []struct {
		ID string `json:"id"`
	}
	decode(t, rec, &unlocked)
	ids := make(map[string]bool, len(unlocked))
	for _, u := range unlocked {
		ids[u.ID] = true
	}
	assert.True(t, ids["developer"])
}

func TestDeveloperEndpointsRequireAdminForReview(t *testing.T) {
	app := newTestApp(t)

	_, playerToken := app.signup(t, "nosy_player")

	rec := app.do(t, http.MethodGet, "/admin/developer/applications", playerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodGet, "/admin/developer/games", playerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListingRejectionOverHTTP(t *testing.T) {
	app := newTestApp(t)

	dev, devToken := app.signup(t, "rough_drafts")
	_, adminToken := app.signupAdmin(t, "picky_admin")

	rec := app.do(t, http.MethodPost, "/developer/apply", devToken, map[string]string{
		"studio_name":   "Rough Drafts",
		"contact_email": "hello@roughdrafts.gg",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = app.do(t, http.MethodPost, "/admin/developer/applications/"+dev.ID.Hex()+"/review", adminToken, map[string]interface{}{
		"approve": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodPost, "/developer/games", devToken, map[string]interface{}{
		"title":  "Bugfest",
		"rating": "T",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var listing struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		ReviewNote string `json:"review_note"`
	}
	decode(t, rec, &listing)

	rec = app.do(t, http.MethodPost, "/developer/games/"+listing.ID+"/submit", devToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodPost, "/admin/developer/games/"+listing.ID+"/review", adminToken, map[string]interface{}{
		"approve": false,
		"note":    "needs polish",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &listing)
	assert.Equal(t, "rejected", listing.Status)
	assert.Equal(t, "needs polish", listing.ReviewNote)

	// Rejected listings are editable and resubmittable.
	rec = app.do(t, http.MethodPut, "/developer/games/"+listing.ID, devToken, map[string]interface{}{
		"title": "Bugfest: Polished",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodPost, "/developer/games/"+listing.ID+"/submit", devToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &listing)
	assert.Equal(t, "pending", listing.Status)

	// Nothing rejected reaches the storefront.
	rec = app.do(t, http.MethodGet, "/store/games", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var storefront struct {
		Community []struct{} `json:"community"`
	}
	decode(t, rec, &storefront)
	assert.Empty(t, storefront.Community)
}
