package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nexar-gg/nexar-server/internal/apperr"
	"github.com/nexar-gg/nexar-server/internal/config"
	"github.com/nexar-gg/nexar-server/internal/models"
	"github.com/nexar-gg/nexar-server/internal/payment"
	"github.com/nexar-gg/nexar-server/internal/repository"
	"github.com/nexar-gg/nexar-server/internal/store"
	"github.com/nexar-gg/nexar-server/pkg/keylock"
)

// Nexar+ price and billing period. One plan only.
const (
	subscriptionPriceCents = 999
	subscriptionPeriod     = 30 * 24 * time.Hour
)

// SubscriptionService manages the Nexar+ membership lifecycle.
type SubscriptionService struct {
	accounts *repository.AccountRepository
	locker   keylock.Locker
	provider payment.Provider
	baseURL  string
}

func NewSubscriptionService(accounts *repository.AccountRepository, locker keylock.Locker, provider payment.Provider, cfg *config.Config) *SubscriptionService {
	return &SubscriptionService{
		accounts: accounts,
		locker:   locker,
		provider: provider,
		baseURL:  cfg.PublicBaseURL,
	}
}

// GetSubscription returns the membership block plus whether it grants
// benefits right now.
func (s *SubscriptionService) GetSubscription(ctx context.Context, accountID primitive.ObjectID) (models.Subscription, bool, error) {
	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Subscription{}, false, apperr.NotFound("account not found")
		}
		return models.Subscription{}, false, fmt.Errorf("failed to load account: %w", err)
	}
	sub := account.Subscription
	return sub, sub.EffectivelyActive(time.Now().UTC()), nil
}

// CreateCheckoutSession opens a Nexar+ checkout for the account.
func (s *SubscriptionService) CreateCheckoutSession(ctx context.Context, accountID primitive.ObjectID) (*payment.Session, error) {
	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("account not found")
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account.Subscription.EffectivelyActive(time.Now().UTC()) {
		return nil, apperr.Conflict("subscription is already active")
	}

	session, err := s.provider.CreateCheckoutSession(ctx, payment.SessionParams{
		AmountCents: subscriptionPriceCents,
		Currency:    depositCurrency,
		Purpose:     "subscription",
		Metadata: map[string]string{
			"account_id": accountID.Hex(),
			"purpose":    "subscription",
		},
		SuccessURL: s.baseURL + "/subscription?checkout=success",
		CancelURL:  s.baseURL + "/subscription?checkout=cancelled",
	})
	if err != nil {
		return nil, apperr.Upstream("failed to create checkout session", err)
	}

	logrus.WithFields(logrus.Fields{
		"accountID": accountID.Hex(),
		"sessionID": session.ID,
	}).Info("Subscription checkout created")
	return session, nil
}

// ConfirmCheckout activates the membership from a paid session. A
// session activates at most once.
func (s *SubscriptionService) ConfirmCheckout(ctx context.Context, accountID primitive.ObjectID, sessionID string) (*models.Account, error) {
	if sessionID == "" {
		return nil, apperr.Validation("session id is required")
	}

	session, err := s.provider.RetrieveSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, payment.ErrSessionNotFound) {
			return nil, apperr.NotFound("payment session not found")
		}
		return nil, apperr.Upstream("failed to retrieve checkout session", err)
	}

	if session.Purpose != "subscription" {
		return nil, apperr.Validation("session is not a subscription checkout")
	}
	if session.Metadata["account_id"] != accountID.Hex() {
		logrus.WithFields(logrus.Fields{
			"accountID": accountID.Hex(),
			"sessionID": sessionID,
		}).Warn("Subscription confirm for another account's session")
		return nil, apperr.Unauthorized("session belongs to another account")
	}
	if !session.Paid {
		return nil, apperr.Validation("payment has not completed")
	}

	unlock, err := s.locker.Lock(ctx, AccountLockKey(accountID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	defer unlock()

	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("account not found")
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if account.Subscription.ExternalSubscriptionID == session.ID {
		return nil, apperr.Conflict("checkout session already used")
	}
	if account.Subscription.EffectivelyActive(time.Now().UTC()) {
		return nil, apperr.Conflict("subscription is already active")
	}

	sub := models.Subscription{
		Active:                 true,
		RenewsAt:               time.Now().UTC().Add(subscriptionPeriod),
		ExternalSubscriptionID: session.ID,
	}
	updated, err := s.accounts.SetSubscription(ctx, accountID, sub)
	if err != nil {
		return nil, fmt.Errorf("failed to activate subscription: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"accountID": accountID.Hex(),
		"renewsAt":  sub.RenewsAt,
	}).Info("Subscription activated")
	return updated, nil
}

// Cancel ends the membership immediately. RenewsAt is kept for the
// record.
func (s *SubscriptionService) Cancel(ctx context.Context, accountID primitive.ObjectID) (*models.Account, error) {
	unlock, err := s.locker.Lock(ctx, AccountLockKey(accountID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	defer unlock()

	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("account not found")
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if !account.Subscription.Active {
		return nil, apperr.Conflict("no active subscription to cancel")
	}

	sub := account.Subscription
	sub.Active = false
	updated, err := s.accounts.SetSubscription(ctx, accountID, sub)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel subscription: %w", err)
	}

	logrus.WithField("accountID", accountID.Hex()).Info("Subscription cancelled")
	return updated, nil
}
