package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoStore struct {
	db *mongo.Database
}

// NewMongo wraps a connected Mongo database.
func NewMongo(db *mongo.Database) Store {
	return &mongoStore{db: db}
}

func (s *mongoStore) FindOne(ctx context.Context, collection string, filter bson.M, out interface{}) error {
	err := s.db.Collection(collection).FindOne(ctx, filter).Decode(out)
	if err == mongo.ErrNoDocuments {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("finding record in %s: %w", collection, err)
	}
	return nil
}

func (s *mongoStore) FindMany(ctx context.Context, collection string, filter bson.M, out interface{}, opts ...FindOption) error {
	o := applyOptions(opts)

	findOpts := options.Find()
	if o.sortField != "" {
		order := 1
		if !o.sortAsc {
			order = -1
		}
		findOpts.SetSort(bson.D{{Key: o.sortField, Value: order}})
	}
	if o.limit > 0 {
		findOpts.SetLimit(o.limit)
	}

	cursor, err := s.db.Collection(collection).Find(ctx, filter, findOpts)
	if err != nil {
		return fmt.Errorf("finding records in %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("decoding records from %s: %w", collection, err)
	}
	return nil
}

func (s *mongoStore) InsertOne(ctx context.Context, collection string, record interface{}) (primitive.ObjectID, error) {
	res, err := s.db.Collection(collection).InsertOne(ctx, record)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, fmt.Errorf("inserting into %s: %w", collection, ErrDuplicateKey)
		}
		return primitive.NilObjectID, fmt.Errorf("inserting into %s: %w", collection, err)
	}

	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, fmt.Errorf("inserting into %s: %w", collection, ErrInvalidRecord)
	}
	return id, nil
}

func (s *mongoStore) UpdateOne(ctx context.Context, collection string, filter bson.M, patch bson.M, out interface{}) error {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	res := s.db.Collection(collection).FindOneAndUpdate(ctx, filter, bson.M{"$set": patch}, opts)

	if err := res.Err(); err != nil {
		if err == mongo.ErrNoDocuments {
			return ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("updating record in %s: %w", collection, ErrDuplicateKey)
		}
		return fmt.Errorf("updating record in %s: %w", collection, err)
	}

	if out != nil {
		if err := res.Decode(out); err != nil {
			return fmt.Errorf("decoding updated record from %s: %w", collection, err)
		}
	}
	return nil
}

func (s *mongoStore) DeleteOne(ctx context.Context, collection string, filter bson.M) (bool, error) {
	res, err := s.db.Collection(collection).DeleteOne(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("deleting record from %s: %w", collection, err)
	}
	return res.DeletedCount > 0, nil
}

// EnsureIndexes creates the unique and lookup indexes the platform
// relies on. Safe to call on every startup.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		Users: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		AchievementUnlocks: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "achievement_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		CloudSaves: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "filename", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		WalletTransactions: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			// Deposit rows carry a globally unique payment session id.
			{Keys: bson.D{{Key: "external_ref", Value: 1}}, Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"type": "deposit"})},
		},
		FriendRequests: {
			{Keys: bson.D{{Key: "sender_id", Value: 1}}},
			{Keys: bson.D{{Key: "receiver_id", Value: 1}}},
		},
		Messages: {
			{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}}},
		},
		DeveloperGames: {
			{Keys: bson.D{{Key: "developer_id", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		Notifications: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		WishlistItems: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "game_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for collection, models := range indexes {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("creating indexes for %s: %w", collection, err)
		}
	}
	return nil
}
