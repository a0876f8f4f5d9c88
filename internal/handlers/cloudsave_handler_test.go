package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloudSaveRoundTrip(t *testing.T) {
	app := newTestApp(t)

	_, token := app.signup(t, "saver")

	payload := []byte("save-data-v1")
	rec := app.do(t, http.MethodPut, "/saves/slot1.sav", token, payload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var save struct {
		Filename  string `json:"filename"`
		SizeBytes int64  `json:"size_bytes"`
	}
	decode(t, rec, &save)
	assert.Equal(t, "slot1.sav", save.Filename)
	assert.Equal(t, int64(len(payload)), save.SizeBytes)
	assert.NotContains(t, rec.Body.String(), "payload")

	rec = app.do(t, http.MethodGet, "/saves", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var saves []struct {
		Filename string `json:"filename"`
	}
	decode(t, rec, &saves)
	require.Len(t, saves, 1)

	rec = app.do(t, http.MethodGet, "/saves/slot1.sav", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, payload, rec.Body.Bytes())

	// Re-uploading the same slot replaces it.
	rec = app.do(t, http.MethodPut, "/saves/slot1.sav", token, []byte("save-data-v2"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = app.do(t, http.MethodGet, "/saves/slot1.sav", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "save-data-v2", rec.Body.String())

	rec = app.do(t, http.MethodGet, "/saves", token, nil)
	decode(t, rec, &saves)
	assert.Len(t, saves, 1)

	rec = app.do(t, http.MethodDelete, "/saves/slot1.sav", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/saves/slot1.sav", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCloudSaveLimits(t *testing.T) {
	app := newTestApp(t)

	_, token := app.signup(t, "hoarder")

	oversized := make([]byte, app.cfg.MaxSaveBytes+2)
	rec := app.do(t, http.MethodPut, "/saves/huge.sav", token, oversized)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Exactly at the limit still lands in the service's own check.
	atLimit := make([]byte, app.cfg.MaxSaveBytes)
	rec = app.do(t, http.MethodPut, "/saves/max.sav", token, atLimit)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodPut, "/saves/empty.sav", token, []byte{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCloudSavesAreOwnerScoped(t *testing.T) {
	app := newTestApp(t)

	_, ownerToken := app.signup(t, "save_owner")
	_, otherToken := app.signup(t, "save_other")

	rec := app.do(t, http.MethodPut, "/saves/secret.sav", ownerToken, []byte("top secret"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = app.do(t, http.MethodGet, "/saves/secret.sav", otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, http.MethodGet, "/saves", otherToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var saves []struct{}
	decode(t, rec, &saves)
	assert.Empty(t, saves)
}
