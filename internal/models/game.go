package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ListingDraft    = "draft"
	ListingPending  = "pending"
	ListingApproved = "approved"
	ListingRejected = "rejected"
)

// DeveloperGame is a store listing submitted by a developer account. It
// only appears in the public store once an admin approves it.
type DeveloperGame struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DeveloperID primitive.ObjectID `bson:"developer_id" json:"developer_id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Genre       string             `bson:"genre,omitempty" json:"genre,omitempty"`
	Tags        []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	PriceCents  int64              `bson:"price_cents" json:"price_cents"`
	Rating      string             `bson:"rating,omitempty" json:"rating,omitempty"`
	CoverURL    string             `bson:"cover_url,omitempty" json:"cover_url,omitempty"`
	Status      string             `bson:"status" json:"status"` // "draft", "pending", "approved", "rejected"
	ReviewNote  string             `bson:"review_note,omitempty" json:"review_note,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// Editable reports whether the developer may still change the listing.
func (g *DeveloperGame) Editable() bool {
	return g.Status == ListingDraft || g.Status == ListingRejected
}

// ListingPatch carries the listing fields a developer may edit. Nil
// fields are left untouched.
type ListingPatch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Genre       *string   `json:"genre,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	PriceCents  *int64    `json:"price_cents,omitempty"`
	Rating      *string   `json:"rating,omitempty"`
	CoverURL    *string   `json:"cover_url,omitempty"`
}
