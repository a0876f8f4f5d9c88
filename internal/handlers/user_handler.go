package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/nexar-gg/nexar-server/internal/apperr"
	"github.com/nexar-gg/nexar-server/internal/config"
	"github.com/nexar-gg/nexar-server/internal/models"
	"github.com/nexar-gg/nexar-server/internal/services"
	jwtutil "github.com/nexar-gg/nexar-server/pkg/jwt"
	"github.com/nexar-gg/nexar-server/pkg/middleware"
)

// UserHandler handles registration, login and profile endpoints.
type UserHandler struct {
	Service *services.UserService
	Config  *config.Config
}

func NewUserHandler(service *services.UserService, cfg *config.Config) *UserHandler {
	return &UserHandler{
		Service: service,
		Config:  cfg,
	}
}

// RegisterUserHandler creates a new account and mails the verification
// token.
func (h *UserHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var input services.RegisterInput
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, r, err)
		return
	}

	account, err := h.Service.RegisterUser(r.Context(), input)
	if err != nil {
		respondError(w, r, err)
		return
	}

	log.WithField("accountID", account.ID.Hex()).Info("Account registered")
	respondJSON(w, http.StatusCreated, account)
}

// VerifyEmailHandler consumes the token from the verification link.
func (h *UserHandler) VerifyEmailHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if err := h.Service.VerifyEmail(r.Context(), token); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "email verified"})
}

// LoginUserHandler authenticates credentials and issues a JWT.
func (h *UserHandler) LoginUserHandler(w http.ResponseWriter, r *http.Request) {
	var credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &credentials); err != nil {
		respondError(w, r, err)
		return
	}

	account, err := h.Service.AuthenticateUser(r.Context(), credentials.Email, credentials.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}

	token, err := jwtutil.GenerateToken(account.ID.Hex(), account.Email, account.Role, h.Config.JWTSecret, h.Config.TokenExpiry)
	if err != nil {
		log.WithError(err).Error("Failed to generate JWT token")
		respondError(w, r, err)
		return
	}

	log.WithField("accountID", account.ID.Hex()).Info("Account logged in")
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  account,
	})
}

// RequestPasswordResetHandler mails a reset token. The response never
// reveals whether the address exists.
func (h *UserHandler) RequestPasswordResetHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.Service.RequestPasswordReset(r.Context(), body.Email); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "if the address is registered, a reset link is on its way",
	})
}

// ResetPasswordHandler sets a new password from a reset token.
func (h *UserHandler) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.Service.ResetPassword(r.Context(), body.Token, body.NewPassword); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// GetMeHandler returns the authenticated account.
func (h *UserHandler) GetMeHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	account, err := h.Service.GetAccount(r.Context(), caller.Hex())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, account)
}

// GetUserHandler returns an account by id. Players may only read their
// own account through this endpoint.
func (h *UserHandler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	requestedID := mux.Vars(r)["id"]

	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if requestedID != claims.UserID {
		log.WithFields(log.Fields{
			"requestedID": requestedID,
			"callerID":    claims.UserID,
		}).Warn("Forbidden profile access attempt")
		http.Error(w, "Forbidden: you can only access your own profile", http.StatusForbidden)
		return
	}

	account, err := h.Service.GetAccount(r.Context(), requestedID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, account)
}

// UpdateProfileHandler applies a partial profile edit.
func (h *UserHandler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	requestedID := mux.Vars(r)["id"]

	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var patch models.ProfilePatch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, r, err)
		return
	}

	account, err := h.Service.UpdateProfile(r.Context(), caller, requestedID, patch)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnauthorized {
			http.Error(w, "Forbidden: you can only update your own profile", http.StatusForbidden)
			return
		}
		respondError(w, r, err)
		return
	}

	log.WithField("accountID", account.ID.Hex()).Info("Profile updated")
	respondJSON(w, http.StatusOK, account)
}

// AdminGetAllUsersHandler lists every account. Mounted behind the admin
// role check.
func (h *UserHandler) AdminGetAllUsersHandler(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Service.GetAllAccounts(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	log.WithField("count", len(accounts)).Info("Admin fetched account list")
	respondJSON(w, http.StatusOK, accounts)
}
