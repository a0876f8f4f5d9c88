package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	NotifFriendRequest       = "friend_request"
	NotifFriendAccepted      = "friend_accepted"
	NotifAchievementUnlock   = "achievement_unlocked"
	NotifListingReviewed     = "listing_reviewed"
	NotifDeveloperReviewed   = "developer_reviewed"
	NotifSubscriptionExpired = "subscription_expired"
)

// NotificationTTL bounds how long a row stays before the purge job
// removes it.
const NotificationTTL = 30 * 24 * time.Hour

type Notification struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID  `bson:"user_id" json:"user_id"`
	Type      string              `bson:"type" json:"type"` // e.g. "friend_request", "achievement_unlocked"
	Title     string              `bson:"title" json:"title"`
	Message   string              `bson:"message" json:"message"`
	Read      bool                `bson:"read" json:"read"`
	TargetID  *primitive.ObjectID `bson:"target_id,omitempty" json:"target_id,omitempty"` // request, unlock or listing id
	CreatedAt time.Time           `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time           `bson:"expires_at" json:"expires_at"` // purged by the maintenance job
}
