package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nexar-gg/nexar-server/internal/models"
	"github.com/nexar-gg/nexar-server/internal/store"
)

// TransactionRepository persists the wallet ledger. Rows are append
// only; nothing updates or deletes them.
type TransactionRepository struct {
	store store.Store
}

func NewTransactionRepository(s store.Store) *TransactionRepository {
	return &TransactionRepository{store: s}
}

// Append inserts a new ledger row.
func (r *TransactionRepository) Append(ctx context.Context, tx *models.WalletTransaction) (*models.WalletTransaction, error) {
	tx.CreatedAt = time.Now().UTC()

	id, err := r.store.InsertOne(ctx, store.WalletTransactions, tx)
	if err != nil {
		logrus.WithError(err).Error("Failed to append wallet transaction")
		return nil, fmt.Errorf("failed to append transaction: %w", err)
	}
	tx.ID = id
	return tx, nil
}

// GetUserTransactions fetches the account's ledger, newest first.
func (r *TransactionRepository) GetUserTransactions(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.WalletTransaction, error) {
	opts := []store.FindOption{store.Sort("created_at", false)}
	if limit > 0 {
		opts = append(opts, store.Limit(int64(limit)))
	}

	var txs []models.WalletTransaction
	if err := r.store.FindMany(ctx, store.WalletTransactions, bson.M{"user_id": userID}, &txs, opts...); err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	return txs, nil
}

// GetDepositByExternalRef looks a deposit up by its payment session id.
// The lookup is global: a session must credit at most one wallet ever.
func (r *TransactionRepository) GetDepositByExternalRef(ctx context.Context, externalRef string) (*models.WalletTransaction, error) {
	filter := bson.M{"type": models.TxDeposit, "external_ref": externalRef}

	var tx models.WalletTransaction
	if err := r.store.FindOne(ctx, store.WalletTransactions, filter, &tx); err != nil {
		return nil, fmt.Errorf("failed to find deposit by external ref: %w", err)
	}
	return &tx, nil
}

// GetUserTransactionByID fetches one ledger row scoped to the account.
func (r *TransactionRepository) GetUserTransactionByID(ctx context.Context, userID, txID primitive.ObjectID) (*models.WalletTransaction, error) {
	filter := bson.M{"_id": txID, "user_id": userID}

	var tx models.WalletTransaction
	if err := r.store.FindOne(ctx, store.WalletTransactions, filter, &tx); err != nil {
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}
	return &tx, nil
}

// GetRefundByOriginal reports whether a purchase row was already
// refunded, by the refund row that references it.
func (r *TransactionRepository) GetRefundByOriginal(ctx context.Context, originalID primitive.ObjectID) (*models.WalletTransaction, error) {
	filter := bson.M{"type": models.TxRefund, "external_ref": originalID.Hex()}

	var tx models.WalletTransaction
	if err := r.store.FindOne(ctx, store.WalletTransactions, filter, &tx); err != nil {
		return nil, fmt.Errorf("failed to find refund: %w", err)
	}
	return &tx, nil
}
