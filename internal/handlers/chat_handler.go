package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/nexar-gg/nexar-server/internal/services"
)

// ChatHandler serves the REST chat endpoints and the websocket upgrade.
type ChatHandler struct {
	Service   *services.ChatService
	JWTSecret string
}

func NewChatHandler(service *services.ChatService, jwtSecret string) *ChatHandler {
	return &ChatHandler{Service: service, JWTSecret: jwtSecret}
}

// GetConversationsHandler returns the caller's inbox, most recent
// exchange first.
func (h *ChatHandler) GetConversationsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	conversations, err := h.Service.GetConversations(r.Context(), caller)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, conversations)
}

// GetChatHandler returns the message history with one friend.
func (h *ChatHandler) GetChatHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	friendHex := mux.Vars(r)["friendID"]

	messages, err := h.Service.GetChat(r.Context(), caller, friendHex)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, messages)
}

// SendMessageHandler stores a message over plain HTTP. The websocket
// path is preferred; this covers clients without one.
func (h *ChatHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	friendHex := mux.Vars(r)["friendID"]

	var body struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, r, err)
		return
	}

	message, err := h.Service.SendMessage(r.Context(), caller, friendHex, body.Text)
	if err != nil {
		respondError(w, r, err)
		return
	}

	log.WithFields(log.Fields{
		"senderID":   caller.Hex(),
		"receiverID": friendHex,
	}).Info("Message sent")

	deliverToSocket(message)
	respondJSON(w, http.StatusCreated, message)
}
