package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	TxDeposit  = "deposit"
	TxPurchase = "purchase"
	TxRefund   = "refund"
)

// WalletTransaction is one append-only ledger row. AmountCents is
// signed: deposits and refunds are positive, purchases negative.
type WalletTransaction struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID            primitive.ObjectID `bson:"user_id" json:"user_id"`
	Type              string             `bson:"type" json:"type"` // "deposit", "purchase", "refund"
	AmountCents       int64              `bson:"amount_cents" json:"amount_cents"`
	BalanceAfterCents int64              `bson:"balance_after_cents" json:"balance_after_cents"`
	Description       string             `bson:"description" json:"description"`
	ExternalRef       string             `bson:"external_ref,omitempty" json:"external_ref,omitempty"` // payment session id, game id
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
}
