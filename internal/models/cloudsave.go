package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CloudSave holds one save file. Re-uploading the same filename replaces
// the payload.
type CloudSave struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"user_id" json:"user_id"`
	Filename   string             `bson:"filename" json:"filename"`
	Payload    []byte             `bson:"payload" json:"-"`
	SizeBytes  int64              `bson:"size_bytes" json:"size_bytes"`
	UploadedAt time.Time          `bson:"uploaded_at" json:"uploaded_at"`
}
