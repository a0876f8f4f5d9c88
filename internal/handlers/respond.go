package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nexar-gg/nexar-server/internal/apperr"
	"github.com/nexar-gg/nexar-server/pkg/middleware"
)

// respondJSON writes v as the response body with the given status.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

// respondError translates a service error into a status and JSON body.
// Client-facing messages come from the error kind; wrapped causes stay
// in the logs. Insufficient-funds responses carry the numbers a client
// needs to render a top-up prompt.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)

	entry := log.WithFields(log.Fields{"method": r.Method, "path": r.URL.Path})
	if status >= http.StatusInternalServerError {
		entry.WithError(err).Error("Request failed")
	} else {
		entry.WithError(err).Warn("Request rejected")
	}

	body := map[string]interface{}{"error": "internal server error"}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		body["error"] = appErr.Message()
	} else if status < http.StatusInternalServerError {
		body["error"] = err.Error()
	}

	var funds *apperr.FundsError
	if errors.As(err, &funds) {
		body["error"] = "insufficient funds"
		body["balance_cents"] = funds.BalanceCents
		body["required_cents"] = funds.RequiredCents
	}

	respondJSON(w, status, body)
}

// decodeJSON reads the request body into dst.
func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Validation("invalid request payload")
	}
	return nil
}

// callerID extracts the authenticated account id from the request
// context. It writes a 401 and returns false when the request carries
// no usable identity.
func callerID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		log.WithField("userID", claims.UserID).Warn("Malformed account id in token")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return primitive.NilObjectID, false
	}
	return id, true
}
