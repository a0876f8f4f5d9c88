package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nexar-gg/nexar-server/internal/apperr"
	"github.com/nexar-gg/nexar-server/internal/catalog"
	"github.com/nexar-gg/nexar-server/internal/models"
	"github.com/nexar-gg/nexar-server/internal/repository"
	"github.com/nexar-gg/nexar-server/internal/store"
	"github.com/nexar-gg/nexar-server/pkg/email"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// UserService encapsulates the business logic for account operations.
type UserService struct {
	repo         *repository.AccountRepository
	achievements *AchievementService
	notifier     email.Notifier
}

// NewUserService creates a new instance of UserService.
func NewUserService(repo *repository.AccountRepository, achievements *AchievementService, notifier email.Notifier) *UserService {
	return &UserService{
		repo:         repo,
		achievements: achievements,
		notifier:     notifier,
	}
}

// RegisterInput carries the registration form.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterUser creates an unverified account, fires the first_login
// unlock and sends the verification email.
func (s *UserService) RegisterUser(ctx context.Context, input RegisterInput) (*models.Account, error) {
	logrus.Info("Registering new account")

	if input.Email == "" || input.Username == "" || input.Password == "" {
		logrus.Warn("Missing required fields during registration")
		return nil, apperr.Validation("email, username and password are required")
	}
	if !emailRegex.MatchString(input.Email) {
		logrus.WithField("email", input.Email).Warn("Invalid email format during registration")
		return nil, apperr.Validation("invalid email format")
	}
	if len(input.Username) < 3 || len(input.Username) > 32 {
		return nil, apperr.Validation("username must be between 3 and 32 characters")
	}
	if len(input.Password) < 8 {
		return nil, apperr.Validation("password must be at least 8 characters")
	}

	// The unique indexes still catch races past these checks.
	if existing, _ := s.repo.GetAccountByEmail(ctx, input.Email); existing != nil {
		logrus.WithField("email", input.Email).Warn("Email already in use")
		return nil, apperr.Conflict("email already in use")
	}
	if existing, _ := s.repo.GetAccountByUsername(ctx, input.Username); existing != nil {
		logrus.WithField("username", input.Username).Warn("Username already taken")
		return nil, apperr.Conflict("username already taken")
	}

	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		logrus.WithError(err).Error("Password hashing failed")
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &models.Account{
		Username:         input.Username,
		Email:            input.Email,
		HashedPassword:   string(hashedPwd),
		Role:             models.RoleUser,
		IsVerified:       false,
		VerifyToken:      uuid.NewString(),
		ParentalControls: models.DefaultParentalControls(),
	}

	created, err := s.repo.CreateAccount(ctx, account)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, apperr.Conflict("email or username already in use")
		}
		logrus.WithError(err).Error("Account registration failed")
		return nil, fmt.Errorf("failed to register account: %w", err)
	}

	if _, err := s.achievements.TryUnlock(ctx, created.ID, catalog.AchFirstLogin); err != nil {
		logrus.WithError(err).Warn("Failed to unlock first_login")
	}

	go func() {
		if err := s.notifier.SendVerificationEmail(created.Email, created.Username, created.VerifyToken); err != nil {
			logrus.WithError(err).Error("Failed to send verification email")
		}
	}()

	logrus.WithFields(logrus.Fields{
		"accountID": created.ID.Hex(),
		"role":      created.Role,
	}).Info("Account registered successfully")
	return created, nil
}

// VerifyEmail flips the verification flag exactly once; the token is
// burned with the same write.
func (s *UserService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return apperr.Validation("verification token is required")
	}

	account, err := s.repo.GetAccountByVerifyToken(ctx, token)
	if err != nil {
		return apperr.Validation("invalid or expired verification token")
	}

	if _, err := s.repo.MarkVerified(ctx, account.ID); err != nil {
		return fmt.Errorf("failed to update verification status: %w", err)
	}
	return nil
}

// RequestPasswordReset issues a reset token and mails it. An unknown
// email returns success quietly so the endpoint cannot be used to probe
// for accounts.
func (s *UserService) RequestPasswordReset(ctx context.Context, userEmail string) error {
	account, err := s.repo.GetAccountByEmail(ctx, userEmail)
	if err != nil {
		logrus.WithField("email", userEmail).Info("Password reset requested for unknown email")
		return nil
	}

	resetToken := uuid.NewString()
	expiration := time.Now().UTC().Add(1 * time.Hour)

	if _, err := s.repo.SetResetToken(ctx, account.ID, resetToken, expiration); err != nil {
		return fmt.Errorf("failed to save reset token: %w", err)
	}

	go func() {
		if err := s.notifier.SendPasswordResetEmail(account.Email, account.Username, resetToken); err != nil {
			logrus.WithError(err).Error("Failed to send password reset email")
		}
	}()

	logrus.WithField("accountID", account.ID.Hex()).Info("Password reset token issued")
	return nil
}

func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return apperr.Validation("reset token is required")
	}
	if len(newPassword) < 8 {
		return apperr.Validation("password must be at least 8 characters")
	}

	account, err := s.repo.GetAccountByResetToken(ctx, token)
	if err != nil {
		return apperr.Validation("invalid or expired reset token")
	}
	if time.Now().After(account.ResetTokenExp) {
		return apperr.Validation("reset token has expired")
	}

	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if _, err := s.repo.UpdatePassword(ctx, account.ID, string(hashedPwd)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// AuthenticateUser verifies the credentials and returns the account.
// Only verified accounts may log in.
func (s *UserService) AuthenticateUser(ctx context.Context, userEmail, password string) (*models.Account, error) {
	logrus.WithField("email", userEmail).Info("Authenticating account")

	account, err := s.repo.GetAccountByEmail(ctx, userEmail)
	if err != nil {
		logrus.WithField("email", userEmail).Warn("Account not found during login")
		return nil, apperr.Unauthorized("invalid credentials")
	}

	if !account.IsVerified {
		logrus.WithField("email", userEmail).Warn("Login attempt with unverified email")
		return nil, apperr.Unauthorized("email not verified, please check your inbox")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.HashedPassword), []byte(password)); err != nil {
		logrus.WithField("email", userEmail).Warn("Invalid credentials")
		return nil, apperr.Unauthorized("invalid credentials")
	}

	logrus.WithField("accountID", account.ID.Hex()).Info("Account authenticated")
	return account, nil
}

// GetAccount retrieves an account by id.
func (s *UserService) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.Validation("invalid account id")
	}

	account, err := s.repo.GetAccountByID(ctx, objID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("account not found")
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// UpdateProfile applies a typed patch to the caller's own profile and
// re-checks the profile_complete achievement afterwards.
func (s *UserService) UpdateProfile(ctx context.Context, callerID primitive.ObjectID, id string, patch models.ProfilePatch) (*models.Account, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.Validation("invalid account id")
	}
	if objID != callerID {
		return nil, apperr.Unauthorized("cannot update another account's profile")
	}

	if patch.Username != nil {
		if len(*patch.Username) < 3 || len(*patch.Username) > 32 {
			return nil, apperr.Validation("username must be between 3 and 32 characters")
		}
		existing, err := s.repo.GetAccountByUsername(ctx, *patch.Username)
		if err == nil && existing.ID != objID {
			return nil, apperr.Conflict("username already taken")
		}
	}

	updated, err := s.repo.UpdateProfile(ctx, objID, patch)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, apperr.Conflict("username already taken")
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("account not found")
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	if updated.AvatarURL != "" && updated.Bio != "" {
		if _, err := s.achievements.TryUnlock(ctx, updated.ID, catalog.AchProfileComplete); err != nil {
			logrus.WithError(err).Warn("Failed to unlock profile_complete")
		}
	}

	logrus.WithField("accountID", updated.ID.Hex()).Info("Profile updated")
	return updated, nil
}

// UpdateLastActive refreshes the activity timestamp; called from
// middleware on every authenticated request.
func (s *UserService) UpdateLastActive(ctx context.Context, id primitive.ObjectID) error {
	return s.repo.TouchLastActive(ctx, id)
}

func (s *UserService) GetAllAccounts(ctx context.Context) ([]models.Account, error) {
	return s.repo.GetAllAccounts(ctx)
}
