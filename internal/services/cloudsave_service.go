package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nexar-gg/nexar-server/internal/apperr"
	"github.com/nexar-gg/nexar-server/internal/models"
	"github.com/nexar-gg/nexar-server/internal/repository"
	"github.com/nexar-gg/nexar-server/internal/store"
)

const maxFilenameLen = 128

// CloudSaveService stores game save files. Saves are private to the
// uploading account and a re-upload of the same filename replaces the
// previous payload.
type CloudSaveService struct {
	repo     *repository.CloudSaveRepository
	maxBytes int64
}

func NewCloudSaveService(repo *repository.CloudSaveRepository, maxBytes int64) *CloudSaveService {
	return &CloudSaveService{repo: repo, maxBytes: maxBytes}
}

func validFilename(name string) bool {
	if name == "" || len(name) > maxFilenameLen {
		return false
	}
	return !strings.ContainsAny(name, "/\\")
}

// Upload stores or replaces a save file.
func (s *CloudSaveService) Upload(ctx context.Context, accountID primitive.ObjectID, filename string, payload []byte) (*models.CloudSave, error) {
	if !validFilename(filename) {
		return nil, apperr.Validation("invalid filename")
	}
	if len(payload) == 0 {
		return nil, apperr.Validation("save payload is empty")
	}
	if int64(len(payload)) > s.maxBytes {
		return nil, apperr.Validation("save exceeds the %d byte limit", s.maxBytes)
	}

	save, err := s.repo.Upsert(ctx, accountID, filename, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to upload save: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"accountID": accountID.Hex(),
		"filename":  filename,
		"sizeBytes": save.SizeBytes,
	}).Info("Cloud save uploaded")
	return save, nil
}

// Download returns the save with its payload.
func (s *CloudSaveService) Download(ctx context.Context, accountID primitive.ObjectID, filename string) (*models.CloudSave, error) {
	save, err := s.repo.GetSave(ctx, accountID, filename)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("save %q not found", filename)
		}
		return nil, fmt.Errorf("failed to load save: %w", err)
	}
	return save, nil
}

// ListSaves returns the account's save metadata, newest first.
func (s *CloudSaveService) ListSaves(ctx context.Context, accountID primitive.ObjectID) ([]models.CloudSave, error) {
	return s.repo.ListSaves(ctx, accountID)
}

// DeleteSave removes one save file.
func (s *CloudSaveService) DeleteSave(ctx context.Context, accountID primitive.ObjectID, filename string) error {
	removed, err := s.repo.DeleteSave(ctx, accountID, filename)
	if err != nil {
		return fmt.Errorf("failed to delete save: %w", err)
	}
	if !removed {
		return apperr.NotFound("save %q not found", filename)
	}

	logrus.WithFields(logrus.Fields{
		"accountID": accountID.Hex(),
		"filename":  filename,
	}).Info("Cloud save deleted")
	return nil
}
