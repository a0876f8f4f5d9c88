package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/nexar-gg/nexar-server/internal/services"
)

// CloudSaveHandler stores and serves raw save-file payloads. Uploads
// PUT the file body directly; downloads stream it back.
type CloudSaveHandler struct {
	Service  *services.CloudSaveService
	MaxBytes int64
}

func NewCloudSaveHandler(service *services.CloudSaveService, maxBytes int64) *CloudSaveHandler {
	return &CloudSaveHandler{Service: service, MaxBytes: maxBytes}
}

// ListSavesHandler returns the caller's save metadata, newest first.
func (h *CloudSaveHandler) ListSavesHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	saves, err := h.Service.ListSaves(r.Context(), caller)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, saves)
}

// UploadSaveHandler stores the request body under the path filename,
// replacing any previous upload.
func (h *CloudSaveHandler) UploadSaveHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	filename := mux.Vars(r)["filename"]

	// One byte of headroom so a payload right at the limit reaches the
	// size check instead of dying in the reader.
	body := http.MaxBytesReader(w, r.Body, h.MaxBytes+1)
	defer body.Close()

	payload, err := io.ReadAll(body)
	if err != nil {
		http.Error(w, "Save file too large", http.StatusBadRequest)
		return
	}

	save, err := h.Service.Upload(r.Context(), caller, filename, payload)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, save)
}

// DownloadSaveHandler streams the stored payload back.
func (h *CloudSaveHandler) DownloadSaveHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	filename := mux.Vars(r)["filename"]

	save, err := h.Service.Download(r.Context(), caller, filename)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(save.SizeBytes, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(save.Payload)
}

// DeleteSaveHandler removes one save file.
func (h *CloudSaveHandler) DeleteSaveHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	filename := mux.Vars(r)["filename"]

	if err := h.Service.DeleteSave(r.Context(), caller, filename); err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "save deleted"})
}
