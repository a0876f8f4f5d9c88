package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WishlistItem pins one catalog game to an account's wishlist. At most
// one row exists per (user, game).
type WishlistItem struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID  primitive.ObjectID `bson:"user_id" json:"user_id"`
	GameID  string             `bson:"game_id" json:"game_id"`
	Note    string             `bson:"note,omitempty" json:"note,omitempty"`
	AddedAt time.Time          `bson:"added_at" json:"added_at"`
}
