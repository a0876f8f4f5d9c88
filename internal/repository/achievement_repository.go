package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nexar-gg/nexar-server/internal/models"
	"github.com/nexar-gg/nexar-server/internal/store"
)

// AchievementRepository persists unlock rows. A unique index on
// (user_id, achievement_id) backs the idempotency check.
type AchievementRepository struct {
	store store.Store
}

func NewAchievementRepository(s store.Store) *AchievementRepository {
	return &AchievementRepository{store: s}
}

// HasUnlock reports whether the account already earned the achievement.
func (r *AchievementRepository) HasUnlock(ctx context.Context, userID primitive.ObjectID, achievementID string) (bool, error) {
	filter := bson.M{"user_id": userID, "achievement_id": achievementID}

	var unlock models.AchievementUnlock
	err := r.store.FindOne(ctx, store.AchievementUnlocks, filter, &unlock)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check unlock: %w", err)
	}
	return true, nil
}

// CreateUnlock inserts the unlock row. Callers treat ErrDuplicateKey as
// "already unlocked", not a failure.
func (r *AchievementRepository) CreateUnlock(ctx context.Context, userID primitive.ObjectID, achievementID string) (*models.AchievementUnlock, error) {
	unlock := &models.AchievementUnlock{
		UserID:        userID,
		AchievementID: achievementID,
		UnlockedAt:    time.Now().UTC(),
	}

	id, err := r.store.InsertOne(ctx, store.AchievementUnlocks, unlock)
	if err != nil {
		return nil, fmt.Errorf("failed to create unlock: %w", err)
	}
	unlock.ID = id
	return unlock, nil
}

// GetUnlocksForUser fetches every unlock row, oldest first.
func (r *AchievementRepository) GetUnlocksForUser(ctx context.Context, userID primitive.ObjectID) ([]models.AchievementUnlock, error) {
	var unlocks []models.AchievementUnlock
	err := r.store.FindMany(ctx, store.AchievementUnlocks, bson.M{"user_id": userID}, &unlocks, store.Sort("unlocked_at", true))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unlocks: %w", err)
	}
	return unlocks, nil
}
