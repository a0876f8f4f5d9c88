package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nexar-gg/nexar-server/internal/apperr"
	"github.com/nexar-gg/nexar-server/internal/catalog"
	"github.com/nexar-gg/nexar-server/internal/models"
	"github.com/nexar-gg/nexar-server/internal/repository"
	"github.com/nexar-gg/nexar-server/internal/store"
)

// AchievementService owns the unlock rules. Unlocks fire as side
// effects of other operations; idempotency rests on the stored row's
// existence check backed by the unique index, not on locks.
type AchievementService struct {
	repo          *repository.AchievementRepository
	catalog       *catalog.Catalog
	notifications *NotificationService
}

func NewAchievementService(repo *repository.AchievementRepository, cat *catalog.Catalog, notifications *NotificationService) *AchievementService {
	return &AchievementService{
		repo:          repo,
		catalog:       cat,
		notifications: notifications,
	}
}

// TryUnlock grants an achievement once. It returns the definition on a
// fresh unlock and nil when the account already earned it.
func (s *AchievementService) TryUnlock(ctx context.Context, userID primitive.ObjectID, achievementID string) (*catalog.AchievementDef, error) {
	def, ok := s.catalog.Achievement(achievementID)
	if !ok {
		return nil, apperr.NotFound("unknown achievement %q", achievementID)
	}

	unlocked, err := s.repo.HasUnlock(ctx, userID, achievementID)
	if err != nil {
		return nil, fmt.Errorf("checking unlock: %w", err)
	}
	if unlocked {
		return nil, nil
	}

	if _, err := s.repo.CreateUnlock(ctx, userID, achievementID); err != nil {
		// A concurrent trigger stored the row first; same outcome.
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, nil
		}
		return nil, fmt.Errorf("storing unlock: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"userID":      userID.Hex(),
		"achievement": achievementID,
	}).Info("Achievement unlocked")

	err = s.notifications.CreateNotification(ctx, userID, models.NotifAchievementUnlock,
		"Achievement unlocked!", fmt.Sprintf("You earned %q.", def.Name), nil)
	if err != nil {
		logrus.WithError(err).Warn("Failed to create unlock notification")
	}

	return &def, nil
}

// GetUnlockedAchievements joins the account's unlock rows with their
// catalog definitions. Rows whose definition left the catalog are
// skipped rather than failing the listing.
func (s *AchievementService) GetUnlockedAchievements(ctx context.Context, userID primitive.ObjectID) ([]models.UnlockedAchievement, error) {
	rows, err := s.repo.GetUnlocksForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetching unlocks: %w", err)
	}

	out := make([]models.UnlockedAchievement, 0, len(rows))
	for _, row := range rows {
		def, ok := s.catalog.Achievement(row.AchievementID)
		if !ok {
			continue
		}
		out = append(out, models.UnlockedAchievement{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
			Icon:        def.Icon,
			UnlockedAt:  row.UnlockedAt,
		})
	}
	return out, nil
}

// ListCatalog returns every achievement definition for the public
// catalog page.
func (s *AchievementService) ListCatalog() []catalog.AchievementDef {
	return s.catalog.Achievements()
}
