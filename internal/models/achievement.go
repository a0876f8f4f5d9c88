package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AchievementUnlock records that an account earned one achievement.
// At most one row exists per (user, achievement).
type AchievementUnlock struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID        primitive.ObjectID `bson:"user_id" json:"user_id"`
	AchievementID string             `bson:"achievement_id" json:"achievement_id"`
	UnlockedAt    time.Time          `bson:"unlocked_at" json:"unlocked_at"`
}

// UnlockedAchievement joins an unlock row with its catalog definition
// for API responses.
type UnlockedAchievement struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon,omitempty"`
	UnlockedAt  time.Time `json:"unlocked_at"`
}
