package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nexar-gg/nexar-server/internal/models"
	"github.com/nexar-gg/nexar-server/internal/repository"
	"github.com/nexar-gg/nexar-server/internal/services"
	"github.com/nexar-gg/nexar-server/pkg/keylock"
)

// Maintenance bundles the periodic housekeeping scans. Each Run method
// is safe to call on a timer; partial failures are logged and skipped so
// one bad record cannot stall the sweep.
type Maintenance struct {
	Accounts      *repository.AccountRepository
	Notifications *services.NotificationService
	Locker        keylock.Locker
}

func NewMaintenance(accounts *repository.AccountRepository, notifications *services.NotificationService, locker keylock.Locker) *Maintenance {
	return &Maintenance{
		Accounts:      accounts,
		Notifications: notifications,
		Locker:        locker,
	}
}

// RunSubscriptionSweep flips off memberships whose renewal date has
// passed and tells the owner. Reads that race a renewal are harmless:
// benefit checks already treat a lapsed date as inactive, the sweep just
// settles the stored flag.
func (m *Maintenance) RunSubscriptionSweep(ctx context.Context) error {
	accounts, err := m.Accounts.GetSubscribedAccounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch subscribed accounts: %v", err)
	}

	now := time.Now()
	swept := 0
	for i := range accounts {
		id := accounts[i].ID

		if err := m.sweepOne(ctx, id, now); err != nil {
			logrus.WithError(err).WithField("accountID", id.Hex()).Error("Subscription sweep skipped account")
			continue
		}
		swept++
	}

	logrus.WithField("deactivated", swept).Info("Subscription sweep completed")
	return nil
}

func (m *Maintenance) sweepOne(ctx context.Context, id primitive.ObjectID, now time.Time) error {
	unlock, err := m.Locker.Lock(ctx, services.AccountLockKey(id))
	if err != nil {
		return err
	}
	defer unlock()

	account, err := m.Accounts.GetAccountByID(ctx, id)
	if err != nil {
		return err
	}

	sub := account.Subscription
	if !sub.Active || sub.EffectivelyActive(now) {
		return nil // renewed or already settled since the listing
	}

	sub.Active = false
	if _, err := m.Accounts.SetSubscription(ctx, id, sub); err != nil {
		return err
	}

	_ = m.Notifications.CreateNotification(ctx, id,
		models.NotifSubscriptionExpired,
		"Nexar+ Expired",
		"Your Nexar+ membership has ended. Renew to keep your discounts and trials.",
		nil,
	)
	return nil
}

// RunNotificationPurge drops notifications past their retention window.
func (m *Maintenance) RunNotificationPurge(ctx context.Context) error {
	if err := m.Notifications.DeleteExpiredNotifications(ctx); err != nil {
		return fmt.Errorf("failed to purge notifications: %v", err)
	}
	logrus.Info("Notification purge completed")
	return nil
}

// RunResetTokenSweep burns password reset tokens whose expiry has
// passed so dead links cannot pile up in the store.
func (m *Maintenance) RunResetTokenSweep(ctx context.Context) error {
	accounts, err := m.Accounts.GetAccountsWithResetTokens(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch accounts with reset tokens: %v", err)
	}

	now := time.Now()
	cleared := 0
	for i := range accounts {
		account := &accounts[i]
		if account.ResetToken == "" || account.ResetTokenExp.After(now) {
			continue
		}
		if _, err := m.Accounts.ClearResetToken(ctx, account.ID); err != nil {
			logrus.WithError(err).WithField("accountID", account.ID.Hex()).Error("Reset token sweep skipped account")
			continue
		}
		cleared++
	}

	logrus.WithField("cleared", cleared).Info("Reset token sweep completed")
	return nil
}
