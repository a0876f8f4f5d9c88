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

// ChatRepository persists chat messages. Rows are append-only.
type ChatRepository struct {
	store store.Store
}

func NewChatRepository(s store.Store) *ChatRepository {
	return &ChatRepository{store: s}
}

func (r *ChatRepository) SendMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	msg.CreatedAt = time.Now().UTC()

	id, err := r.store.InsertOne(ctx, store.Messages, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}
	msg.ID = id
	return msg, nil
}

// GetChat returns the full exchange between two accounts, oldest first.
func (r *ChatRepository) GetChat(ctx context.Context, userID, friendID primitive.ObjectID) ([]models.Message, error) {
	filter := bson.M{
		"$or": []bson.M{
			{"sender_id": userID, "receiver_id": friendID},
			{"sender_id": friendID, "receiver_id": userID},
		},
	}

	var messages []models.Message
	if err := r.store.FindMany(ctx, store.Messages, filter, &messages, store.Sort("created_at", true)); err != nil {
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}
	return messages, nil
}

// GetMessagesForUser returns every message the account sent or
// received, newest first, for the inbox aggregation.
func (r *ChatRepository) GetMessagesForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Message, error) {
	filter := bson.M{
		"$or": []bson.M{
			{"sender_id": userID},
			{"receiver_id": userID},
		},
	}

	var messages []models.Message
	if err := r.store.FindMany(ctx, store.Messages, filter, &messages, store.Sort("created_at", false)); err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return messages, nil
}

// CountBySender reports how many messages the account has sent, for the
// chat achievement thresholds.
func (r *ChatRepository) CountBySender(ctx context.Context, userID primitive.ObjectID) (int, error) {
	var messages []models.Message
	if err := r.store.FindMany(ctx, store.Messages, bson.M{"sender_id": userID}, &messages); err != nil {
		return 0, fmt.Errorf("failed to count sent messages: %w", err)
	}
	return len(messages), nil
}
