package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nexar-gg/nexar-server/internal/services"
)

type NotificationHandler struct {
	Service *services.NotificationService
}

func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{Service: service}
}

// GetNotificationsHandler lists the caller's notifications, newest
// first. ?unread=true narrows to unread ones.
func (h *NotificationHandler) GetNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	unreadOnly := r.URL.Query().Get("unread") == "true"

	notifications, err := h.Service.GetUserNotifications(r.Context(), caller, unreadOnly)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, notifications)
}

// MarkAsReadHandler marks one of the caller's notifications read.
func (h *NotificationHandler) MarkAsReadHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	notifID := mux.Vars(r)["id"]

	if err := h.Service.MarkNotificationAsRead(r.Context(), caller, notifID); err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "notification marked as read"})
}

// MarkAllAsReadHandler marks everything read and reports the count.
func (h *NotificationHandler) MarkAllAsReadHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	marked, err := h.Service.MarkAllAsRead(r.Context(), caller)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{"marked": marked})
}
