// Package store is the persistence surface of the platform. Services
// and repositories speak to named collections through the Store
// interface and never touch a database driver directly.
//
// Filters are bson.M documents restricted to field equality (dotted
// paths allowed), $in, $ne, and $or of sub-filters. Patches are flat
// $set documents whose keys are top-level fields; embedded blocks are
// written whole. Both backends implement the same semantics, so every
// service test runs against the in-memory backend.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collection names, one per record kind.
const (
	Users              = "users"
	FriendRequests     = "friend_requests"
	Messages           = "messages"
	AchievementUnlocks = "achievement_unlocks"
	CloudSaves         = "cloud_saves"
	WalletTransactions = "wallet_transactions"
	DeveloperGames     = "developer_games"
	Notifications      = "notifications"
	WishlistItems      = "wishlist_items"
)

var (
	// ErrNotFound is returned when no record matches the filter.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidRecord is returned when a record cannot carry an id.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrDuplicateKey is returned when a write violates a unique index.
	ErrDuplicateKey = errors.New("duplicate key")
)

// Store reads and writes records in named collections. Writes are
// atomic per record; nothing here spans records, which is why
// read-modify-write sequences serialize through pkg/keylock.
type Store interface {
	// FindOne decodes the first matching record into out.
	FindOne(ctx context.Context, collection string, filter bson.M, out interface{}) error

	// FindMany decodes every matching record into out (a pointer to a
	// slice). Order is insertion order unless a Sort option is given.
	FindMany(ctx context.Context, collection string, filter bson.M, out interface{}, opts ...FindOption) error

	// InsertOne stores a new record and returns its id, assigning a
	// fresh ObjectID when the record carries none.
	InsertOne(ctx context.Context, collection string, record interface{}) (primitive.ObjectID, error)

	// UpdateOne merges patch into the first matching record, replacing
	// the named top-level fields and leaving the rest untouched. When
	// out is non-nil the post-merge record is decoded into it.
	UpdateOne(ctx context.Context, collection string, filter bson.M, patch bson.M, out interface{}) error

	// DeleteOne removes at most one record and reports whether one was
	// removed. When several match, the oldest goes; callers should pass
	// filters that identify a single record.
	DeleteOne(ctx context.Context, collection string, filter bson.M) (bool, error)
}

// FindOption tweaks a FindMany call.
type FindOption func(*findOptions)

type findOptions struct {
	sortField string
	sortAsc   bool
	limit     int64
}

// Sort orders results by one field.
func Sort(field string, ascending bool) FindOption {
	return func(o *findOptions) {
		o.sortField = field
		o.sortAsc = ascending
	}
}

// Limit caps the number of results.
func Limit(n int64) FindOption {
	return func(o *findOptions) {
		o.limit = n
	}
}

func applyOptions(opts []FindOption) findOptions {
	var o findOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
