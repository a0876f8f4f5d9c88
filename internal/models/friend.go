package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	FriendStatusPending  = "pending"
	FriendStatusAccepted = "accepted"
	FriendStatusRejected = "rejected"
)

// FriendRequest is the single edge kept per pair of accounts. The
// receiver resolves it exactly once; an accepted edge is the friendship
// itself and deleting it is the unfriend.
type FriendRequest struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SenderID   primitive.ObjectID `bson:"sender_id" json:"sender_id"`
	ReceiverID primitive.ObjectID `bson:"receiver_id" json:"receiver_id"`
	Status     string             `bson:"status" json:"status"` // "pending", "accepted", "rejected"
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

// Other returns the participant that is not the given account.
func (fr *FriendRequest) Other(accountID primitive.ObjectID) primitive.ObjectID {
	if fr.SenderID == accountID {
		return fr.ReceiverID
	}
	return fr.SenderID
}
