package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nexar-gg/nexar-server/internal/models"
	"github.com/nexar-gg/nexar-server/internal/store"
)

// WishlistRepository persists wishlist rows keyed by (owner, game).
type WishlistRepository struct {
	store store.Store
}

func NewWishlistRepository(s store.Store) *WishlistRepository {
	return &WishlistRepository{store: s}
}

func wishlistFilter(userID primitive.ObjectID, gameID string) bson.M {
	return bson.M{"user_id": userID, "game_id": gameID}
}

// AddItem inserts a wishlist row. A second add of the same game trips
// the unique index and surfaces store.ErrDuplicateKey.
func (r *WishlistRepository) AddItem(ctx context.Context, userID primitive.ObjectID, gameID, note string) (*models.WishlistItem, error) {
	item := &models.WishlistItem{
		UserID:  userID,
		GameID:  gameID,
		Note:    note,
		AddedAt: time.Now().UTC(),
	}
	id, err := r.store.InsertOne(ctx, store.WishlistItems, item)
	if err != nil {
		return nil, fmt.Errorf("failed to add wishlist item: %w", err)
	}
	item.ID = id
	return item, nil
}

// ListByUser returns the account's wishlist, newest addition first.
func (r *WishlistRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.WishlistItem, error) {
	var items []models.WishlistItem
	err := r.store.FindMany(ctx, store.WishlistItems, bson.M{"user_id": userID}, &items, store.Sort("added_at", false))
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist: %w", err)
	}
	return items, nil
}

// RemoveItem deletes one wishlist row and reports whether it existed.
func (r *WishlistRepository) RemoveItem(ctx context.Context, userID primitive.ObjectID, gameID string) (bool, error) {
	removed, err := r.store.DeleteOne(ctx, store.WishlistItems, wishlistFilter(userID, gameID))
	if err != nil {
		return false, fmt.Errorf("failed to remove wishlist item: %w", err)
	}
	return removed, nil
}
