package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nexar-gg/nexar-server/internal/apperr"
	"github.com/nexar-gg/nexar-server/internal/catalog"
	"github.com/nexar-gg/nexar-server/internal/models"
	"github.com/nexar-gg/nexar-server/internal/repository"
)

// Message length cap, in characters.
const maxMessageLen = 2000

// chatMasterThreshold is the sent-message count that unlocks chat_master.
const chatMasterThreshold = 50

// ChatService handles direct messages between friends.
type ChatService struct {
	repo         *repository.ChatRepository
	accountRepo  *repository.AccountRepository
	friends      *FriendService
	achievements *AchievementService
}

func NewChatService(repo *repository.ChatRepository, accountRepo *repository.AccountRepository, friends *FriendService, achievements *AchievementService) *ChatService {
	return &ChatService{
		repo:         repo,
		accountRepo:  accountRepo,
		friends:      friends,
		achievements: achievements,
	}
}

// SendMessage stores a message after checking the pair is friends.
func (s *ChatService) SendMessage(ctx context.Context, senderID primitive.ObjectID, receiverHex, text string) (*models.Message, error) {
	receiverID, err := primitive.ObjectIDFromHex(receiverHex)
	if err != nil {
		return nil, apperr.Validation("invalid receiver id")
	}
	if receiverID == senderID {
		return nil, apperr.Validation("cannot message yourself")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation("message text is required")
	}
	if len(text) > maxMessageLen {
		return nil, apperr.Validation("message text exceeds %d characters", maxMessageLen)
	}

	friends, err := s.friends.AreFriends(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if !friends {
		return nil, apperr.Unauthorized("you can only message friends")
	}

	msg := &models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
	}
	created, err := s.repo.SendMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	s.checkChatAchievements(ctx, senderID)

	logrus.WithFields(logrus.Fields{
		"senderID":   senderID.Hex(),
		"receiverID": receiverID.Hex(),
	}).Info("Message sent")
	return created, nil
}

// checkChatAchievements fires messenger and, at the threshold,
// chat_master using a fresh sent count.
func (s *ChatService) checkChatAchievements(ctx context.Context, senderID primitive.ObjectID) {
	if _, err := s.achievements.TryUnlock(ctx, senderID, catalog.AchMessenger); err != nil {
		logrus.WithError(err).Warn("Failed to unlock messenger")
	}

	count, err := s.repo.CountBySender(ctx, senderID)
	if err != nil {
		logrus.WithError(err).Warn("Failed to count sent messages")
		return
	}
	if count >= chatMasterThreshold {
		if _, err := s.achievements.TryUnlock(ctx, senderID, catalog.AchChatMaster); err != nil {
			logrus.WithError(err).Warn("Failed to unlock chat_master")
		}
	}
}

// GetChat returns the full exchange with one friend, oldest first.
// Reading is gated the same way as sending.
func (s *ChatService) GetChat(ctx context.Context, callerID primitive.ObjectID, friendHex string) ([]models.Message, error) {
	friendID, err := primitive.ObjectIDFromHex(friendHex)
	if err != nil {
		return nil, apperr.Validation("invalid friend id")
	}

	friends, err := s.friends.AreFriends(ctx, callerID, friendID)
	if err != nil {
		return nil, err
	}
	if !friends {
		return nil, apperr.Unauthorized("you can only view chats with friends")
	}

	messages, err := s.repo.GetChat(ctx, callerID, friendID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}
	return messages, nil
}

// GetConversations builds the inbox view: one entry per partner with
// the latest message, newest conversation first.
func (s *ChatService) GetConversations(ctx context.Context, callerID primitive.ObjectID) ([]models.Conversation, error) {
	messages, err := s.repo.GetMessagesForUser(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	latest := make(map[primitive.ObjectID]models.Message)
	for _, msg := range messages {
		partner := msg.SenderID
		if partner == callerID {
			partner = msg.ReceiverID
		}
		if existing, ok := latest[partner]; !ok || msg.CreatedAt.After(existing.CreatedAt) {
			latest[partner] = msg
		}
	}

	if len(latest) == 0 {
		return []models.Conversation{}, nil
	}

	partnerIDs := make([]primitive.ObjectID, 0, len(latest))
	for id := range latest {
		partnerIDs = append(partnerIDs, id)
	}
	partners, err := s.accountRepo.GetAccountsByIDs(ctx, partnerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load partners: %w", err)
	}

	conversations := make([]models.Conversation, 0, len(partners))
	for _, partner := range partners {
		conversations = append(conversations, models.Conversation{
			Partner:     partner.Public(),
			LastMessage: latest[partner.ID],
		})
	}
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LastMessage.CreatedAt.After(conversations[j].LastMessage.CreatedAt)
	})
	return conversations, nil
}
