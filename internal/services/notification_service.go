package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nexar-gg/nexar-server/internal/apperr"
	"github.com/nexar-gg/nexar-server/internal/models"
	"github.com/nexar-gg/nexar-server/internal/repository"
	"github.com/nexar-gg/nexar-server/internal/store"
)

// NotificationService records and serves in-app notifications. Trigger
// sites treat creation as fire-and-forget: a failed notification is
// logged by the caller and never fails the operation that caused it.
type NotificationService struct {
	repo *repository.NotificationRepository
}

func NewNotificationService(repo *repository.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

// CreateNotification logs a new notification for a user.
func (s *NotificationService) CreateNotification(ctx context.Context, userID primitive.ObjectID, notifType, title, message string, targetID *primitive.ObjectID) error {
	notif := &models.Notification{
		UserID:   userID,
		Type:     notifType,
		Title:    title,
		Message:  message,
		Read:     false,
		TargetID: targetID,
	}
	return s.repo.CreateNotification(ctx, notif)
}

// GetUserNotifications returns the account's notifications, newest
// first.
func (s *NotificationService) GetUserNotifications(ctx context.Context, userID primitive.ObjectID, unreadOnly bool) ([]models.Notification, error) {
	return s.repo.GetUserNotifications(ctx, userID, unreadOnly)
}

// MarkNotificationAsRead flips the read flag on one of the caller's
// notifications.
func (s *NotificationService) MarkNotificationAsRead(ctx context.Context, userID primitive.ObjectID, notifID string) error {
	id, err := primitive.ObjectIDFromHex(notifID)
	if err != nil {
		return apperr.Validation("invalid notification id")
	}

	if err := s.repo.MarkAsRead(ctx, userID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("notification not found")
		}
		return fmt.Errorf("marking notification read: %w", err)
	}
	return nil
}

// MarkAllAsRead flips every unread notification and reports how many.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID primitive.ObjectID) (int, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

// DeleteExpiredNotifications is called by the maintenance scheduler.
func (s *NotificationService) DeleteExpiredNotifications(ctx context.Context) error {
	_, err := s.repo.DeleteExpired(ctx)
	return err
}
