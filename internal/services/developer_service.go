package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nexar-gg/nexar-server/internal/apperr"
	"github.com/nexar-gg/nexar-server/internal/catalog"
	"github.com/nexar-gg/nexar-server/internal/models"
	"github.com/nexar-gg/nexar-server/internal/repository"
	"github.com/nexar-gg/nexar-server/internal/store"
	"github.com/nexar-gg/nexar-server/pkg/keylock"
)

// DeveloperService runs the developer program: applications, listings
// and the review queue.
type DeveloperService struct {
	accounts      *repository.AccountRepository
	games         *repository.GameRepository
	achievements  *AchievementService
	notifications *NotificationService
	locker        keylock.Locker
}

func NewDeveloperService(accounts *repository.AccountRepository, games *repository.GameRepository, achievements *AchievementService, notifications *NotificationService, locker keylock.Locker) *DeveloperService {
	return &DeveloperService{
		accounts:      accounts,
		games:         games,
		achievements:  achievements,
		notifications: notifications,
		locker:        locker,
	}
}

// ApplyAsDeveloper files a developer program application. A rejected
// applicant may apply again; a pending or approved one may not.
func (s *DeveloperService) ApplyAsDeveloper(ctx context.Context, accountID primitive.ObjectID, studioName, contactEmail string) (*models.Account, error) {
	studioName = strings.TrimSpace(studioName)
	if studioName == "" {
		return nil, apperr.Validation("studio name is required")
	}
	if !emailRegex.MatchString(contactEmail) {
		return nil, apperr.Validation("invalid contact email")
	}

	unlock, err := s.locker.Lock(ctx, AccountLockKey(accountID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	defer unlock()

	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("account not found")
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if profile := account.DeveloperProfile; profile != nil {
		switch profile.Status {
		case models.ApplicationPending:
			return nil, apperr.Conflict("a developer application is already pending")
		case models.ApplicationApproved:
			return nil, apperr.Conflict("account is already a developer")
		}
	}

	profile := &models.DeveloperProfile{
		StudioName:   studioName,
		ContactEmail: contactEmail,
		Status:       models.ApplicationPending,
		AppliedAt:    time.Now().UTC(),
	}
	updated, err := s.accounts.SetDeveloperProfile(ctx, accountID, profile)
	if err != nil {
		return nil, fmt.Errorf("failed to save application: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"accountID": accountID.Hex(),
		"studio":    studioName,
	}).Info("Developer application filed")
	return updated, nil
}

// ListApplications returns the accounts whose developer application is
// awaiting review, oldest first.
func (s *DeveloperService) ListApplications(ctx context.Context) ([]models.Account, error) {
	return s.accounts.GetAccountsByDeveloperStatus(ctx, models.ApplicationPending)
}

// ReviewDeveloperApplication resolves a pending application. Approval
// promotes the account to the developer role.
func (s *DeveloperService) ReviewDeveloperApplication(ctx context.Context, accountHex string, approve bool, note string) (*models.Account, error) {
	accountID, err := primitive.ObjectIDFromHex(accountHex)
	if err != nil {
		return nil, apperr.Validation("invalid account id")
	}

	unlock, err := s.locker.Lock(ctx, AccountLockKey(accountID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	defer unlock()

	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("account not found")
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if account.DeveloperProfile == nil {
		return nil, apperr.NotFound("no developer application on file")
	}
	if account.DeveloperProfile.Status != models.ApplicationPending {
		return nil, apperr.Conflict("application has already been reviewed")
	}

	profile := *account.DeveloperProfile
	profile.ReviewNote = note
	profile.Status = models.ApplicationRejected
	title := "Developer application rejected"
	if approve {
		profile.Status = models.ApplicationApproved
		title = "Developer application approved"
	}

	updated, err := s.accounts.SetDeveloperProfile(ctx, accountID, &profile)
	if err != nil {
		return nil, fmt.Errorf("failed to save review: %w", err)
	}
	if approve {
		updated, err = s.accounts.SetRole(ctx, accountID, models.RoleDeveloper)
		if err != nil {
			return nil, fmt.Errorf("failed to promote account: %w", err)
		}
	}

	if err := s.notifications.CreateNotification(ctx, accountID, models.NotifDeveloperReviewed, title, note, nil); err != nil {
		logrus.WithError(err).Warn("Failed to create review notification")
	}

	logrus.WithFields(logrus.Fields{
		"accountID": accountID.Hex(),
		"status":    profile.Status,
	}).Info("Developer application reviewed")
	return updated, nil
}

// ListingInput carries the fields for a new store listing.
type ListingInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Genre       string   `json:"genre"`
	Tags        []string `json:"tags"`
	PriceCents  int64    `json:"price_cents"`
	Rating      string   `json:"rating"`
	CoverURL    string   `json:"cover_url"`
}

// CreateListing opens a new draft listing. Only accounts with an
// approved developer application may list games.
func (s *DeveloperService) CreateListing(ctx context.Context, developerID primitive.ObjectID, input ListingInput) (*models.DeveloperGame, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, apperr.Validation("title is required")
	}
	if input.PriceCents < 0 {
		return nil, apperr.Validation("price cannot be negative")
	}
	rating, ok := NormalizeRating(input.Rating)
	if !ok {
		return nil, apperr.Validation("unknown rating %q", input.Rating)
	}

	account, err := s.accounts.GetAccountByID(ctx, developerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("account not found")
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account.DeveloperProfile == nil || account.DeveloperProfile.Status != models.ApplicationApproved {
		return nil, apperr.Unauthorized("an approved developer account is required")
	}

	game := &models.DeveloperGame{
		DeveloperID: developerID,
		Title:       input.Title,
		Description: input.Description,
		Genre:       input.Genre,
		Tags:        input.Tags,
		PriceCents:  input.PriceCents,
		Rating:      rating,
		CoverURL:    input.CoverURL,
		Status:      models.ListingDraft,
	}
	created, err := s.games.CreateGame(ctx, game)
	if err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"developerID": developerID.Hex(),
		"gameID":      created.ID.Hex(),
	}).Info("Listing created")
	return created, nil
}

func (s *DeveloperService) getOwnedListing(ctx context.Context, developerID primitive.ObjectID, gameHex string) (*models.DeveloperGame, error) {
	gameID, err := primitive.ObjectIDFromHex(gameHex)
	if err != nil {
		return nil, apperr.Validation("invalid game id")
	}

	game, err := s.games.GetGameByID(ctx, gameID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("listing not found")
		}
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}
	if game.DeveloperID != developerID {
		return nil, apperr.Unauthorized("listing belongs to another developer")
	}
	return game, nil
}

// UpdateListing edits a draft or rejected listing.
func (s *DeveloperService) UpdateListing(ctx context.Context, developerID primitive.ObjectID, gameHex string, patch models.ListingPatch) (*models.DeveloperGame, error) {
	game, err := s.getOwnedListing(ctx, developerID, gameHex)
	if err != nil {
		return nil, err
	}
	if !game.Editable() {
		return nil, apperr.Conflict("listing cannot be edited while %s", game.Status)
	}

	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, apperr.Validation("title cannot be empty")
	}
	if patch.PriceCents != nil && *patch.PriceCents < 0 {
		return nil, apperr.Validation("price cannot be negative")
	}
	if patch.Rating != nil {
		rating, ok := NormalizeRating(*patch.Rating)
		if !ok {
			return nil, apperr.Validation("unknown rating %q", *patch.Rating)
		}
		patch.Rating = &rating
	}

	updated, err := s.games.UpdateGame(ctx, game.ID, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update listing: %w", err)
	}
	return updated, nil
}

// SubmitListing moves a draft or rejected listing into the review
// queue.
func (s *DeveloperService) SubmitListing(ctx context.Context, developerID primitive.ObjectID, gameHex string) (*models.DeveloperGame, error) {
	game, err := s.getOwnedListing(ctx, developerID, gameHex)
	if err != nil {
		return nil, err
	}
	if !game.Editable() {
		return nil, apperr.Conflict("listing cannot be submitted while %s", game.Status)
	}

	updated, err := s.games.SetStatus(ctx, game.ID, models.ListingPending, "")
	if err != nil {
		return nil, fmt.Errorf("failed to submit listing: %w", err)
	}

	logrus.WithField("gameID", game.ID.Hex()).Info("Listing submitted for review")
	return updated, nil
}

// ReviewListing resolves a pending listing. The first approval earns
// the developer the creator achievement.
func (s *DeveloperService) ReviewListing(ctx context.Context, gameHex string, approve bool, note string) (*models.DeveloperGame, error) {
	gameID, err := primitive.ObjectIDFromHex(gameHex)
	if err != nil {
		return nil, apperr.Validation("invalid game id")
	}

	game, err := s.games.GetGameByID(ctx, gameID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("listing not found")
		}
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}
	if game.Status != models.ListingPending {
		return nil, apperr.Conflict("listing is not awaiting review")
	}

	status := models.ListingRejected
	title := "Your game was rejected"
	if approve {
		status = models.ListingApproved
		title = "Your game is live on the Nexar store"
	}

	updated, err := s.games.SetStatus(ctx, gameID, status, note)
	if err != nil {
		return nil, fmt.Errorf("failed to save review: %w", err)
	}

	if approve {
		if _, err := s.achievements.TryUnlock(ctx, game.DeveloperID, catalog.AchDeveloper); err != nil {
			logrus.WithError(err).Warn("Failed to unlock developer achievement")
		}
	}
	if err := s.notifications.CreateNotification(ctx, game.DeveloperID, models.NotifListingReviewed, title, note, &game.ID); err != nil {
		logrus.WithError(err).Warn("Failed to create listing review notification")
	}

	logrus.WithFields(logrus.Fields{
		"gameID": gameID.Hex(),
		"status": status,
	}).Info("Listing reviewed")
	return updated, nil
}

// GetListing returns one listing for its owner.
func (s *DeveloperService) GetListing(ctx context.Context, developerID primitive.ObjectID, gameHex string) (*models.DeveloperGame, error) {
	return s.getOwnedListing(ctx, developerID, gameHex)
}

// ListMyGames returns every listing the developer owns.
func (s *DeveloperService) ListMyGames(ctx context.Context, developerID primitive.ObjectID) ([]models.DeveloperGame, error) {
	return s.games.GetGamesByDeveloper(ctx, developerID)
}

// ListApprovedGames returns the community titles shown in the store.
func (s *DeveloperService) ListApprovedGames(ctx context.Context) ([]models.DeveloperGame, error) {
	return s.games.GetGamesByStatus(ctx, models.ListingApproved)
}

// ListPendingGames returns the admin review queue.
func (s *DeveloperService) ListPendingGames(ctx context.Context) ([]models.DeveloperGame, error) {
	return s.games.GetGamesByStatus(ctx, models.ListingPending)
}
