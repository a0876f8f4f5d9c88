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

// AccountRepository handles persistence for player accounts. Every
// mutation writes exactly the fields it owns; callers that read first
// hold the account key through pkg/keylock.
type AccountRepository struct {
	store store.Store
}

// NewAccountRepository creates a new instance of AccountRepository.
func NewAccountRepository(s store.Store) *AccountRepository {
	return &AccountRepository{store: s}
}

// CreateAccount inserts a new account.
func (r *AccountRepository) CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error) {
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	id, err := r.store.InsertOne(ctx, store.Users, account)
	if err != nil {
		logrus.WithError(err).Error("Failed to insert account")
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}
	account.ID = id

	logrus.WithField("accountID", account.ID.Hex()).Info("Account created")
	return account, nil
}

func (r *AccountRepository) GetAccountByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	var account models.Account
	if err := r.store.FindOne(ctx, store.Users, bson.M{"_id": id}, &account); err != nil {
		return nil, fmt.Errorf("failed to find account by id: %w", err)
	}
	return &account, nil
}

func (r *AccountRepository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	if err := r.store.FindOne(ctx, store.Users, bson.M{"email": email}, &account); err != nil {
		return nil, fmt.Errorf("failed to find account by email: %w", err)
	}
	return &account, nil
}

func (r *AccountRepository) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	if err := r.store.FindOne(ctx, store.Users, bson.M{"username": username}, &account); err != nil {
		return nil, fmt.Errorf("failed to find account by username: %w", err)
	}
	return &account, nil
}

func (r *AccountRepository) GetAccountByVerifyToken(ctx context.Context, token string) (*models.Account, error) {
	var account models.Account
	if err := r.store.FindOne(ctx, store.Users, bson.M{"verify_token": token}, &account); err != nil {
		return nil, fmt.Errorf("failed to find account by verify token: %w", err)
	}
	return &account, nil
}

func (r *AccountRepository) GetAccountByResetToken(ctx context.Context, token string) (*models.Account, error) {
	var account models.Account
	if err := r.store.FindOne(ctx, store.Users, bson.M{"reset_token": token}, &account); err != nil {
		return nil, fmt.Errorf("failed to find account by reset token: %w", err)
	}
	return &account, nil
}

// GetAccountsByIDs fetches accounts for a list of ids, mainly to render
// friend lists.
func (r *AccountRepository) GetAccountsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Account, error) {
	var accounts []models.Account
	filter := bson.M{"_id": bson.M{"$in": ids}}
	if err := r.store.FindMany(ctx, store.Users, filter, &accounts); err != nil {
		return nil, fmt.Errorf("failed to fetch accounts by ids: %w", err)
	}
	return accounts, nil
}

func (r *AccountRepository) GetAllAccounts(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	if err := r.store.FindMany(ctx, store.Users, bson.M{}, &accounts, store.Sort("created_at", true)); err != nil {
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}
	return accounts, nil
}

// GetAccountsByDeveloperStatus lists accounts whose developer
// application sits in the given state, oldest application first.
func (r *AccountRepository) GetAccountsByDeveloperStatus(ctx context.Context, status string) ([]models.Account, error) {
	var accounts []models.Account
	filter := bson.M{"developer_profile.status": status}
	if err := r.store.FindMany(ctx, store.Users, filter, &accounts, store.Sort("developer_profile.applied_at", true)); err != nil {
		return nil, fmt.Errorf("failed to fetch accounts by developer status: %w", err)
	}
	return accounts, nil
}

// GetSubscribedAccounts lists accounts whose stored membership flag is
// on. Whether the membership has lapsed is for the caller to judge.
func (r *AccountRepository) GetSubscribedAccounts(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	filter := bson.M{"subscription.active": true}
	if err := r.store.FindMany(ctx, store.Users, filter, &accounts); err != nil {
		return nil, fmt.Errorf("failed to fetch subscribed accounts: %w", err)
	}
	return accounts, nil
}

// GetAccountsWithResetTokens lists accounts that may hold an
// outstanding password reset token. Accounts that never had one slip
// through the filter, so callers re-check the field.
func (r *AccountRepository) GetAccountsWithResetTokens(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	filter := bson.M{"reset_token": bson.M{"$ne": ""}}
	if err := r.store.FindMany(ctx, store.Users, filter, &accounts); err != nil {
		return nil, fmt.Errorf("failed to fetch accounts with reset tokens: %w", err)
	}
	return accounts, nil
}

// UpdateProfile applies the player-editable fields.
func (r *AccountRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, patch models.ProfilePatch) (*models.Account, error) {
	fields := bson.M{}
	if patch.Username != nil {
		fields["username"] = *patch.Username
	}
	if patch.AvatarURL != nil {
		fields["avatar_url"] = *patch.AvatarURL
	}
	if patch.Bio != nil {
		fields["bio"] = *patch.Bio
	}
	return r.update(ctx, id, fields)
}

// MarkVerified flips the verification flag and burns the token.
func (r *AccountRepository) MarkVerified(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	return r.update(ctx, id, bson.M{"is_verified": true, "verify_token": ""})
}

func (r *AccountRepository) SetResetToken(ctx context.Context, id primitive.ObjectID, token string, expiry time.Time) (*models.Account, error) {
	return r.update(ctx, id, bson.M{"reset_token": token, "reset_token_exp": expiry})
}

// UpdatePassword stores a new hash and burns any outstanding reset
// token.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) (*models.Account, error) {
	return r.update(ctx, id, bson.M{
		"hashed_password": hash,
		"reset_token":     "",
		"reset_token_exp": time.Time{},
	})
}

// ClearResetToken burns an outstanding reset token without touching the
// password.
func (r *AccountRepository) ClearResetToken(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	return r.update(ctx, id, bson.M{
		"reset_token":     "",
		"reset_token_exp": time.Time{},
	})
}

// ApplyDeposit writes the new balance computed by the wallet engine.
func (r *AccountRepository) ApplyDeposit(ctx context.Context, id primitive.ObjectID, balanceCents int64) (*models.Account, error) {
	return r.update(ctx, id, bson.M{"balance_cents": balanceCents})
}

// ApplyPurchase writes the debited balance and the grown library in a
// single record write.
func (r *AccountRepository) ApplyPurchase(ctx context.Context, id primitive.ObjectID, balanceCents int64, ownedGames []string) (*models.Account, error) {
	return r.update(ctx, id, bson.M{
		"balance_cents": balanceCents,
		"owned_games":   ownedGames,
	})
}

func (r *AccountRepository) SetSubscription(ctx context.Context, id primitive.ObjectID, sub models.Subscription) (*models.Account, error) {
	return r.update(ctx, id, bson.M{"subscription": sub})
}

func (r *AccountRepository) SetParentalControls(ctx context.Context, id primitive.ObjectID, pc models.ParentalControls) (*models.Account, error) {
	return r.update(ctx, id, bson.M{"parental_controls": pc})
}

func (r *AccountRepository) SetTrialUsage(ctx context.Context, id primitive.ObjectID, usage map[string]models.TrialUsage) (*models.Account, error) {
	return r.update(ctx, id, bson.M{"trial_usage": usage})
}

func (r *AccountRepository) SetDeveloperProfile(ctx context.Context, id primitive.ObjectID, profile *models.DeveloperProfile) (*models.Account, error) {
	return r.update(ctx, id, bson.M{"developer_profile": profile})
}

func (r *AccountRepository) SetRole(ctx context.Context, id primitive.ObjectID, role string) (*models.Account, error) {
	return r.update(ctx, id, bson.M{"role": role})
}

// TouchLastActive refreshes the activity timestamp without bumping
// updated_at.
func (r *AccountRepository) TouchLastActive(ctx context.Context, id primitive.ObjectID) error {
	err := r.store.UpdateOne(ctx, store.Users, bson.M{"_id": id}, bson.M{"last_active_at": time.Now().UTC()}, nil)
	if err != nil {
		return fmt.Errorf("failed to touch last active: %w", err)
	}
	return nil
}

func (r *AccountRepository) update(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Account, error) {
	if len(fields) == 0 {
		return r.GetAccountByID(ctx, id)
	}
	fields["updated_at"] = time.Now().UTC()

	var account models.Account
	err := r.store.UpdateOne(ctx, store.Users, bson.M{"_id": id}, fields, &account)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"accountID": id.Hex(),
			"error":     err,
		}).Error("Failed to update account")
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return &account, nil
}
