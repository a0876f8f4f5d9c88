package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/nexar-gg/nexar-server/internal/services"
)

// FriendHandler manages the friend graph endpoints.
type FriendHandler struct {
	Service *services.FriendService
}

func NewFriendHandler(service *services.FriendService) *FriendHandler {
	return &FriendHandler{Service: service}
}

// SendFriendRequestHandler opens a pending edge towards another player.
func (h *FriendHandler) SendFriendRequestHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	receiverHex := mux.Vars(r)["id"]

	request, err := h.Service.SendFriendRequest(r.Context(), caller, receiverHex)
	if err != nil {
		respondError(w, r, err)
		return
	}

	log.WithFields(log.Fields{
		"senderID":   caller.Hex(),
		"receiverID": receiverHex,
	}).Info("Friend request sent")
	respondJSON(w, http.StatusCreated, request)
}

// GetPendingRequestsHandler lists the caller's incoming requests.
func (h *FriendHandler) GetPendingRequestsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	requests, err := h.Service.GetPendingRequests(r.Context(), caller)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, requests)
}

// RespondToFriendRequestHandler accepts or rejects a pending request.
// Only the receiver may resolve it.
func (h *FriendHandler) RespondToFriendRequestHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	requestHex := mux.Vars(r)["id"]

	var body struct {
		Accept bool `json:"accept"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, r, err)
		return
	}

	request, err := h.Service.RespondToRequest(r.Context(), caller, requestHex, body.Accept)
	if err != nil {
		respondError(w, r, err)
		return
	}

	log.WithFields(log.Fields{
		"requestID": requestHex,
		"accepted":  body.Accept,
	}).Info("Friend request resolved")
	respondJSON(w, http.StatusOK, request)
}

// GetFriendsHandler returns the caller's friends as public profiles.
func (h *FriendHandler) GetFriendsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	friends, err := h.Service.GetFriends(r.Context(), caller)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, friends)
}

// UnfriendHandler removes an accepted edge. Either side may do it.
func (h *FriendHandler) UnfriendHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	otherHex := mux.Vars(r)["id"]

	if err := h.Service.Unfriend(r.Context(), caller, otherHex); err != nil {
		respondError(w, r, err)
		return
	}

	log.WithFields(log.Fields{
		"accountID": caller.Hex(),
		"otherID":   otherHex,
	}).Info("Friendship removed")
	respondJSON(w, http.StatusOK, map[string]string{"message": "friend removed"})
}
