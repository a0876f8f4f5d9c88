package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nexar-gg/nexar-server/internal/apperr"
	"github.com/nexar-gg/nexar-server/internal/catalog"
	"github.com/nexar-gg/nexar-server/internal/models"
	"github.com/nexar-gg/nexar-server/internal/repository"
	"github.com/nexar-gg/nexar-server/internal/store"
)

// socialButterflyThreshold is the accepted-friend count that unlocks
// the social_butterfly achievement.
const socialButterflyThreshold = 5

// FriendService handles business logic for managing friendships.
type FriendService struct {
	friendRepo    *repository.FriendRepository
	accountRepo   *repository.AccountRepository
	achievements  *AchievementService
	notifications *NotificationService
}

// NewFriendService creates a new FriendService.
func NewFriendService(friendRepo *repository.FriendRepository, accountRepo *repository.AccountRepository, achievements *AchievementService, notifications *NotificationService) *FriendService {
	return &FriendService{
		friendRepo:    friendRepo,
		accountRepo:   accountRepo,
		achievements:  achievements,
		notifications: notifications,
	}
}

// SendFriendRequest creates a pending edge from sender to receiver.
// At most one edge exists per pair of accounts, whatever its status.
func (s *FriendService) SendFriendRequest(ctx context.Context, senderID primitive.ObjectID, receiverHex string) (*models.FriendRequest, error) {
	receiverID, err := primitive.ObjectIDFromHex(receiverHex)
	if err != nil {
		return nil, apperr.Validation("invalid receiver id")
	}
	if receiverID == senderID {
		return nil, apperr.Validation("cannot send a friend request to yourself")
	}

	receiver, err := s.accountRepo.GetAccountByID(ctx, receiverID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("receiver not found")
		}
		return nil, fmt.Errorf("failed to look up receiver: %w", err)
	}

	existing, err := s.friendRepo.GetEdgeBetween(ctx, senderID, receiverID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing edge: %w", err)
	}
	if existing != nil {
		if existing.Status == models.FriendStatusAccepted {
			return nil, apperr.Conflict("already friends")
		}
		return nil, apperr.Conflict("a friend request already exists between these accounts")
	}

	request := &models.FriendRequest{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     models.FriendStatusPending,
	}
	created, err := s.friendRepo.CreateRequest(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("failed to create friend request: %w", err)
	}

	err = s.notifications.CreateNotification(ctx, receiver.ID, models.NotifFriendRequest,
		"New friend request", "You have a new friend request.", &created.ID)
	if err != nil {
		logrus.WithError(err).Warn("Failed to create friend request notification")
	}

	logrus.WithFields(logrus.Fields{
		"senderID":   senderID.Hex(),
		"receiverID": receiverID.Hex(),
	}).Info("Friend request sent")
	return created, nil
}

// GetPendingRequests fetches all pending requests for the receiver.
func (s *FriendService) GetPendingRequests(ctx context.Context, receiverID primitive.ObjectID) ([]models.FriendRequest, error) {
	return s.friendRepo.GetRequestsByReceiver(ctx, receiverID)
}

// RespondToRequest lets the receiver accept or reject a pending
// request. A request is resolved exactly once.
func (s *FriendService) RespondToRequest(ctx context.Context, callerID primitive.ObjectID, requestHex string, accept bool) (*models.FriendRequest, error) {
	requestID, err := primitive.ObjectIDFromHex(requestHex)
	if err != nil {
		return nil, apperr.Validation("invalid request id")
	}

	request, err := s.friendRepo.GetRequestByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("friend request not found")
		}
		return nil, fmt.Errorf("could not find request: %w", err)
	}

	if request.ReceiverID != callerID {
		return nil, apperr.Unauthorized("only the receiver can respond to a friend request")
	}
	if request.Status != models.FriendStatusPending {
		return nil, apperr.Conflict("request already responded to")
	}

	status := models.FriendStatusRejected
	if accept {
		status = models.FriendStatusAccepted
	}

	updated, err := s.friendRepo.UpdateRequestStatus(ctx, requestID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to update friend request: %w", err)
	}

	if accept {
		err = s.notifications.CreateNotification(ctx, request.SenderID, models.NotifFriendAccepted,
			"Friend request accepted", "Your friend request was accepted.", &updated.ID)
		if err != nil {
			logrus.WithError(err).Warn("Failed to create acceptance notification")
		}
		s.checkFriendAchievements(ctx, request.SenderID)
		s.checkFriendAchievements(ctx, request.ReceiverID)
	}

	logrus.WithFields(logrus.Fields{
		"requestID": requestID.Hex(),
		"status":    status,
	}).Info("Friend request resolved")
	return updated, nil
}

// checkFriendAchievements fires the friendship unlocks with a fresh
// count so near-simultaneous accepts cannot skip the threshold.
func (s *FriendService) checkFriendAchievements(ctx context.Context, accountID primitive.ObjectID) {
	if _, err := s.achievements.TryUnlock(ctx, accountID, catalog.AchFirstFriend); err != nil {
		logrus.WithError(err).Warn("Failed to unlock first_friend")
	}

	count, err := s.friendRepo.CountAcceptedFriends(ctx, accountID)
	if err != nil {
		logrus.WithError(err).Warn("Failed to count friends")
		return
	}
	if count >= socialButterflyThreshold {
		if _, err := s.achievements.TryUnlock(ctx, accountID, catalog.AchSocialButterfly); err != nil {
			logrus.WithError(err).Warn("Failed to unlock social_butterfly")
		}
	}
}

// GetFriends returns the public profiles of every accepted friend.
// Edges pointing at deleted accounts are skipped.
func (s *FriendService) GetFriends(ctx context.Context, accountID primitive.ObjectID) ([]models.PublicUser, error) {
	friendIDs, err := s.friendRepo.GetFriendIDs(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get friend IDs: %w", err)
	}

	if len(friendIDs) == 0 {
		return []models.PublicUser{}, nil
	}

	accounts, err := s.accountRepo.GetAccountsByIDs(ctx, friendIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get accounts: %w", err)
	}

	publicFriends := make([]models.PublicUser, 0, len(accounts))
	for _, account := range accounts {
		publicFriends = append(publicFriends, account.Public())
	}
	return publicFriends, nil
}

// AreFriends reports whether an accepted edge exists between the pair.
func (s *FriendService) AreFriends(ctx context.Context, a, b primitive.ObjectID) (bool, error) {
	edge, err := s.friendRepo.GetEdgeBetween(ctx, a, b)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check friendship: %w", err)
	}
	return edge.Status == models.FriendStatusAccepted, nil
}

// Unfriend deletes the accepted edge so either side may send a fresh
// request later.
func (s *FriendService) Unfriend(ctx context.Context, callerID primitive.ObjectID, otherHex string) error {
	otherID, err := primitive.ObjectIDFromHex(otherHex)
	if err != nil {
		return apperr.Validation("invalid account id")
	}

	deleted, err := s.friendRepo.DeleteAcceptedEdge(ctx, callerID, otherID)
	if err != nil {
		return fmt.Errorf("failed to remove friendship: %w", err)
	}
	if !deleted {
		return apperr.NotFound("friendship not found")
	}

	logrus.WithFields(logrus.Fields{
		"accountID": callerID.Hex(),
		"friendID":  otherID.Hex(),
	}).Info("Friendship removed")
	return nil
}
