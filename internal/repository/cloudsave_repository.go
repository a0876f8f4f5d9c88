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

// CloudSaveRepository persists save files keyed by (owner, filename).
type CloudSaveRepository struct {
	store store.Store
}

func NewCloudSaveRepository(s store.Store) *CloudSaveRepository {
	return &CloudSaveRepository{store: s}
}

func saveFilter(userID primitive.ObjectID, filename string) bson.M {
	return bson.M{"user_id": userID, "filename": filename}
}

// Upsert stores the payload, replacing any previous upload of the same
// filename. A concurrent first upload loses the insert race to the
// unique index and lands on the update path.
func (r *CloudSaveRepository) Upsert(ctx context.Context, userID primitive.ObjectID, filename string, payload []byte) (*models.CloudSave, error) {
	patch := bson.M{
		"payload":     payload,
		"size_bytes":  int64(len(payload)),
		"uploaded_at": time.Now().UTC(),
	}

	var save models.CloudSave
	err := r.store.UpdateOne(ctx, store.CloudSaves, saveFilter(userID, filename), patch, &save)
	if err == nil {
		return &save, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to replace save: %w", err)
	}

	fresh := &models.CloudSave{
		UserID:     userID,
		Filename:   filename,
		Payload:    payload,
		SizeBytes:  int64(len(payload)),
		UploadedAt: time.Now().UTC(),
	}
	id, err := r.store.InsertOne(ctx, store.CloudSaves, fresh)
	if err == nil {
		fresh.ID = id
		return fresh, nil
	}
	if !errors.Is(err, store.ErrDuplicateKey) {
		return nil, fmt.Errorf("failed to store save: %w", err)
	}

	if err := r.store.UpdateOne(ctx, store.CloudSaves, saveFilter(userID, filename), patch, &save); err != nil {
		return nil, fmt.Errorf("failed to replace save after insert race: %w", err)
	}
	return &save, nil
}

func (r *CloudSaveRepository) GetSave(ctx context.Context, userID primitive.ObjectID, filename string) (*models.CloudSave, error) {
	var save models.CloudSave
	if err := r.store.FindOne(ctx, store.CloudSaves, saveFilter(userID, filename), &save); err != nil {
		return nil, fmt.Errorf("failed to find save: %w", err)
	}
	return &save, nil
}

// ListSaves returns the account's saves, newest upload first.
func (r *CloudSaveRepository) ListSaves(ctx context.Context, userID primitive.ObjectID) ([]models.CloudSave, error) {
	var saves []models.CloudSave
	err := r.store.FindMany(ctx, store.CloudSaves, bson.M{"user_id": userID}, &saves, store.Sort("uploaded_at", false))
	if err != nil {
		return nil, fmt.Errorf("failed to list saves: %w", err)
	}
	return saves, nil
}

func (r *CloudSaveRepository) DeleteSave(ctx context.Context, userID primitive.ObjectID, filename string) (bool, error) {
	removed, err := r.store.DeleteOne(ctx, store.CloudSaves, saveFilter(userID, filename))
	if err != nil {
		return false, fmt.Errorf("failed to delete save: %w", err)
	}
	return removed, nil
}
