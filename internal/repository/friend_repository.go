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

// FriendRepository persists friend edges. The accepted edges ARE the
// friend graph; nothing else stores friendship.
type FriendRepository struct {
	store store.Store
}

func NewFriendRepository(s store.Store) *FriendRepository {
	return &FriendRepository{store: s}
}

func (r *FriendRepository) CreateRequest(ctx context.Context, req *models.FriendRequest) (*models.FriendRequest, error) {
	req.CreatedAt = time.Now().UTC()
	req.Status = models.FriendStatusPending

	id, err := r.store.InsertOne(ctx, store.FriendRequests, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create friend request: %w", err)
	}
	req.ID = id
	return req, nil
}

func (r *FriendRepository) GetRequestByID(ctx context.Context, id primitive.ObjectID) (*models.FriendRequest, error) {
	var request models.FriendRequest
	if err := r.store.FindOne(ctx, store.FriendRequests, bson.M{"_id": id}, &request); err != nil {
		return nil, fmt.Errorf("failed to find friend request: %w", err)
	}
	return &request, nil
}

// GetEdgeBetween returns the edge for the unordered pair, whichever
// direction it was sent in.
func (r *FriendRepository) GetEdgeBetween(ctx context.Context, a, b primitive.ObjectID) (*models.FriendRequest, error) {
	filter := bson.M{"$or": []bson.M{
		{"sender_id": a, "receiver_id": b},
		{"sender_id": b, "receiver_id": a},
	}}

	var edge models.FriendRequest
	if err := r.store.FindOne(ctx, store.FriendRequests, filter, &edge); err != nil {
		return nil, fmt.Errorf("failed to find edge: %w", err)
	}
	return &edge, nil
}

func (r *FriendRepository) GetRequestsByReceiver(ctx context.Context, receiverID primitive.ObjectID) ([]models.FriendRequest, error) {
	filter := bson.M{"receiver_id": receiverID, "status": models.FriendStatusPending}

	var requests []models.FriendRequest
	if err := r.store.FindMany(ctx, store.FriendRequests, filter, &requests, store.Sort("created_at", false)); err != nil {
		return nil, fmt.Errorf("failed to find friend requests: %w", err)
	}
	return requests, nil
}

func (r *FriendRepository) UpdateRequestStatus(ctx context.Context, id primitive.ObjectID, status string) (*models.FriendRequest, error) {
	var request models.FriendRequest
	err := r.store.UpdateOne(ctx, store.FriendRequests, bson.M{"_id": id}, bson.M{"status": status}, &request)
	if err != nil {
		return nil, fmt.Errorf("failed to update request status: %w", err)
	}
	return &request, nil
}

func acceptedEdgeFilter(userID primitive.ObjectID) bson.M {
	return bson.M{"$or": []bson.M{
		{"sender_id": userID, "status": models.FriendStatusAccepted},
		{"receiver_id": userID, "status": models.FriendStatusAccepted},
	}}
}

// GetFriendIDs derives the friend list from accepted edges.
func (r *FriendRepository) GetFriendIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	var edges []models.FriendRequest
	if err := r.store.FindMany(ctx, store.FriendRequests, acceptedEdgeFilter(userID), &edges); err != nil {
		return nil, fmt.Errorf("failed to retrieve friends: %w", err)
	}

	friends := make([]primitive.ObjectID, 0, len(edges))
	for _, edge := range edges {
		friends = append(friends, edge.Other(userID))
	}
	return friends, nil
}

func (r *FriendRepository) CountAcceptedFriends(ctx context.Context, userID primitive.ObjectID) (int, error) {
	var edges []models.FriendRequest
	if err := r.store.FindMany(ctx, store.FriendRequests, acceptedEdgeFilter(userID), &edges); err != nil {
		return 0, fmt.Errorf("failed to count friends: %w", err)
	}
	return len(edges), nil
}

// DeleteAcceptedEdge removes the friendship between the pair and
// reports whether one existed.
func (r *FriendRepository) DeleteAcceptedEdge(ctx context.Context, a, b primitive.ObjectID) (bool, error) {
	filter := bson.M{
		"status": models.FriendStatusAccepted,
		"$or": []bson.M{
			{"sender_id": a, "receiver_id": b},
			{"sender_id": b, "receiver_id": a},
		},
	}

	removed, err := r.store.DeleteOne(ctx, store.FriendRequests, filter)
	if err != nil {
		return false, fmt.Errorf("failed to delete edge: %w", err)
	}
	return removed, nil
}
