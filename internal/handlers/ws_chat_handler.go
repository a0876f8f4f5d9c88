package handlers

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nexar-gg/nexar-server/internal/models"
	jwtutil "github.com/nexar-gg/nexar-server/pkg/jwt"
)

// WSMessage is the frame exchanged over the chat socket. Only text
// messages persist; typing and status frames are transient.
type WSMessage struct {
	Type       string `json:"type"` // "text", "typing", "status", "error"
	ReceiverID string `json:"receiver_id,omitempty"`
	SenderID   string `json:"sender_id,omitempty"`
	Text       string `json:"text,omitempty"`
	Typing     bool   `json:"typing,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// The connected-clients hub. One socket per account; a reconnect
// replaces the previous entry.
var (
	clients   = make(map[string]*websocket.Conn)
	clientsMu sync.Mutex
)

func broadcastStatus(accountID, status string) {
	clientsMu.Lock()
	defer clientsMu.Unlock()
	for _, conn := range clients {
		_ = conn.WriteJSON(map[string]interface{}{
			"type":   "status",
			"userId": accountID,
			"status": status, // "online" or "offline"
		})
	}
}

// deliverToSocket pushes a freshly stored message to the receiver's
// live connection, if any. REST sends reuse it so socket listeners see
// messages regardless of the path they arrived on.
func deliverToSocket(message *models.Message) {
	clientsMu.Lock()
	defer clientsMu.Unlock()

	conn, ok := clients[message.ReceiverID.Hex()]
	if !ok {
		return
	}
	_ = conn.WriteJSON(map[string]interface{}{
		"type":        "text",
		"id":          message.ID.Hex(),
		"sender_id":   message.SenderID.Hex(),
		"receiver_id": message.ReceiverID.Hex(),
		"text":        message.Text,
		"created_at":  message.CreatedAt,
	})
}

// ChatWebSocketHandler upgrades the connection and pumps chat frames.
// Browsers cannot set headers on websocket dials, so the JWT arrives as
// a query parameter.
func (h *ChatHandler) ChatWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}
	claims, err := jwtutil.ValidateToken(token, h.JWTSecret)
	if err != nil {
		log.WithError(err).Warn("Websocket auth failed")
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}
	accountID := claims.UserID

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	log.WithField("accountID", accountID).Info("Websocket connected")

	clientsMu.Lock()
	if old, ok := clients[accountID]; ok {
		old.Close()
	}
	clients[accountID] = conn
	clientsMu.Unlock()
	broadcastStatus(accountID, "online")

	defer func() {
		clientsMu.Lock()
		if clients[accountID] == conn {
			delete(clients, accountID)
		}
		clientsMu.Unlock()
		broadcastStatus(accountID, "offline")
		conn.Close()
		log.WithField("accountID", accountID).Info("Websocket disconnected")
	}()

	caller, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return
	}

	for {
		var frame WSMessage
		if err := conn.ReadJSON(&frame); err != nil {
			break // client went away
		}

		switch frame.Type {
		case "typing":
			clientsMu.Lock()
			if receiver, ok := clients[frame.ReceiverID]; ok {
				_ = receiver.WriteJSON(WSMessage{
					Type:     "typing",
					SenderID: accountID,
					Typing:   frame.Typing,
				})
			}
			clientsMu.Unlock()

		case "", "text":
			message, err := h.Service.SendMessage(r.Context(), caller, frame.ReceiverID, frame.Text)
			if err != nil {
				clientsMu.Lock()
				_ = conn.WriteJSON(map[string]interface{}{
					"type":  "error",
					"error": err.Error(),
				})
				clientsMu.Unlock()
				continue
			}

			deliverToSocket(message)

			// Echo back so the sender's other tabs stay in sync.
			clientsMu.Lock()
			_ = conn.WriteJSON(map[string]interface{}{
				"type":        "text",
				"id":          message.ID.Hex(),
				"sender_id":   accountID,
				"receiver_id": frame.ReceiverID,
				"text":        message.Text,
				"created_at":  message.CreatedAt,
			})
			clientsMu.Unlock()
		}
	}
}
