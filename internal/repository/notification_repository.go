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

type NotificationRepository struct {
	store store.Store
}

func NewNotificationRepository(s store.Store) *NotificationRepository {
	return &NotificationRepository{store: s}
}

// CreateNotification inserts a new notification with the standard TTL.
func (r *NotificationRepository) CreateNotification(ctx context.Context, notif *models.Notification) error {
	notif.CreatedAt = time.Now().UTC()
	notif.ExpiresAt = notif.CreatedAt.Add(models.NotificationTTL)

	if _, err := r.store.InsertOne(ctx, store.Notifications, notif); err != nil {
		logrus.WithError(err).Error("Failed to insert notification")
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// GetUserNotifications returns the account's live notifications, newest
// first. Expired rows are filtered here; the purge job removes them.
func (r *NotificationRepository) GetUserNotifications(ctx context.Context, userID primitive.ObjectID, unreadOnly bool) ([]models.Notification, error) {
	filter := bson.M{"user_id": userID}
	if unreadOnly {
		filter["read"] = false
	}

	var rows []models.Notification
	if err := r.store.FindMany(ctx, store.Notifications, filter, &rows, store.Sort("created_at", false)); err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}

	now := time.Now().UTC()
	live := make([]models.Notification, 0, len(rows))
	for _, n := range rows {
		if n.ExpiresAt.After(now) {
			live = append(live, n)
		}
	}
	return live, nil
}

// MarkAsRead sets the read flag on one of the account's notifications.
func (r *NotificationRepository) MarkAsRead(ctx context.Context, userID, id primitive.ObjectID) error {
	filter := bson.M{"_id": id, "user_id": userID}
	if err := r.store.UpdateOne(ctx, store.Notifications, filter, bson.M{"read": true}, nil); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead flips every unread notification of the account.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int, error) {
	var rows []models.Notification
	filter := bson.M{"user_id": userID, "read": false}
	if err := r.store.FindMany(ctx, store.Notifications, filter, &rows); err != nil {
		return 0, fmt.Errorf("failed to fetch unread notifications: %w", err)
	}

	for _, n := range rows {
		if err := r.store.UpdateOne(ctx, store.Notifications, bson.M{"_id": n.ID}, bson.M{"read": true}, nil); err != nil {
			return 0, fmt.Errorf("failed to mark notification read: %w", err)
		}
	}
	return len(rows), nil
}

// DeleteExpired removes every notification past its expiry and reports
// how many went.
func (r *NotificationRepository) DeleteExpired(ctx context.Context) (int, error) {
	var rows []models.Notification
	if err := r.store.FindMany(ctx, store.Notifications, bson.M{}, &rows); err != nil {
		return 0, fmt.Errorf("failed to fetch notifications: %w", err)
	}

	now := time.Now().UTC()
	deleted := 0
	for _, n := range rows {
		if n.ExpiresAt.After(now) {
			continue
		}
		removed, err := r.store.DeleteOne(ctx, store.Notifications, bson.M{"_id": n.ID})
		if err != nil {
			return deleted, fmt.Errorf("failed to delete expired notification: %w", err)
		}
		if removed {
			deleted++
		}
	}

	if deleted > 0 {
		logrus.Infof("Deleted %d expired notifications", deleted)
	}
	return deleted, nil
}
