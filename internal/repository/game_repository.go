package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nexar-gg/nexar-server/internal/models"
	"github.com/nexar-gg/nexar-server/internal/store"
)

// GameRepository persists developer store listings.
type GameRepository struct {
	store store.Store
}

func NewGameRepository(s store.Store) *GameRepository {
	return &GameRepository{store: s}
}

// CreateGame inserts a new listing in draft state.
func (r *GameRepository) CreateGame(ctx context.Context, game *models.DeveloperGame) (*models.DeveloperGame, error) {
	now := time.Now().UTC()
	game.Status = models.ListingDraft
	game.CreatedAt = now
	game.UpdatedAt = now

	id, err := r.store.InsertOne(ctx, store.DeveloperGames, game)
	if err != nil {
		logrus.WithError(err).Error("Failed to insert game listing")
		return nil, fmt.Errorf("failed to insert game: %w", err)
	}
	game.ID = id

	logrus.WithFields(logrus.Fields{
		"gameID":      game.ID.Hex(),
		"developerID": game.DeveloperID.Hex(),
	}).Info("Game listing created")
	return game, nil
}

func (r *GameRepository) GetGameByID(ctx context.Context, id primitive.ObjectID) (*models.DeveloperGame, error) {
	var game models.DeveloperGame
	if err := r.store.FindOne(ctx, store.DeveloperGames, bson.M{"_id": id}, &game); err != nil {
		return nil, fmt.Errorf("failed to find game: %w", err)
	}
	return &game, nil
}

// UpdateGame applies the developer-editable fields.
func (r *GameRepository) UpdateGame(ctx context.Context, id primitive.ObjectID, patch models.ListingPatch) (*models.DeveloperGame, error) {
	fields := bson.M{}
	if patch.Title != nil {
		fields["title"] = *patch.Title
	}
	if patch.Description != nil {
		fields["description"] = *patch.Description
	}
	if patch.Genre != nil {
		fields["genre"] = *patch.Genre
	}
	if patch.Tags != nil {
		fields["tags"] = *patch.Tags
	}
	if patch.PriceCents != nil {
		fields["price_cents"] = *patch.PriceCents
	}
	if patch.Rating != nil {
		fields["rating"] = *patch.Rating
	}
	if patch.CoverURL != nil {
		fields["cover_url"] = *patch.CoverURL
	}
	if len(fields) == 0 {
		return r.GetGameByID(ctx, id)
	}
	fields["updated_at"] = time.Now().UTC()

	var game models.DeveloperGame
	if err := r.store.UpdateOne(ctx, store.DeveloperGames, bson.M{"_id": id}, fields, &game); err != nil {
		return nil, fmt.Errorf("failed to update game: %w", err)
	}
	return &game, nil
}

// SetStatus moves the listing through the review lifecycle.
func (r *GameRepository) SetStatus(ctx context.Context, id primitive.ObjectID, status, reviewNote string) (*models.DeveloperGame, error) {
	fields := bson.M{
		"status":      status,
		"review_note": reviewNote,
		"updated_at":  time.Now().UTC(),
	}

	var game models.DeveloperGame
	if err := r.store.UpdateOne(ctx, store.DeveloperGames, bson.M{"_id": id}, fields, &game); err != nil {
		return nil, fmt.Errorf("failed to set game status: %w", err)
	}
	return &game, nil
}

func (r *GameRepository) GetGamesByDeveloper(ctx context.Context, developerID primitive.ObjectID) ([]models.DeveloperGame, error) {
	var games []models.DeveloperGame
	err := r.store.FindMany(ctx, store.DeveloperGames, bson.M{"developer_id": developerID}, &games, store.Sort("created_at", false))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch developer games: %w", err)
	}
	return games, nil
}

func (r *GameRepository) GetGamesByStatus(ctx context.Context, status string) ([]models.DeveloperGame, error) {
	var games []models.DeveloperGame
	err := r.store.FindMany(ctx, store.DeveloperGames, bson.M{"status": status}, &games, store.Sort("created_at", true))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch games by status: %w", err)
	}
	return games, nil
}
