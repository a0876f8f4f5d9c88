package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexar-gg/nexar-server/internal/catalog"
	"github.com/nexar-gg/nexar-server/internal/config"
	"github.com/nexar-gg/nexar-server/internal/models"
	"github.com/nexar-gg/nexar-server/internal/payment"
	"github.com/nexar-gg/nexar-server/internal/repository"
	"github.com/nexar-gg/nexar-server/internal/store"
	"github.com/nexar-gg/nexar-server/pkg/keylock"
)

// noopNotifier swallows account emails in tests.
type noopNotifier struct{}

func (noopNotifier) SendVerificationEmail(to, name, token string) error  { return nil }
func (noopNotifier) SendPasswordResetEmail(to, name, token string) error { return nil }

// testEnv wires every service against the in-memory store, the
// in-process lock and the sandbox payment provider.
type testEnv struct {
	store         store.Store
	cat           *catalog.Catalog
	provider      *payment.Sandbox
	accounts      *repository.AccountRepository
	transactions  *repository.TransactionRepository
	notifRepo     *repository.NotificationRepository
	users         *UserService
	friends       *FriendService
	chat          *ChatService
	wallet        *WalletService
	subscriptions *SubscriptionService
	parental      *ParentalService
	trials        *TrialService
	developers    *DeveloperService
	achievements  *AchievementService
	notifications *NotificationService
	saves         *CloudSaveService
	wishlist      *WishlistService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := store.NewMemory()
	cat, err := catalog.Load("")
	require.NoError(t, err)

	cfg := &config.Config{
		PublicBaseURL:   "http://localhost:8080",
		MinDepositCents: 100,
		MaxDepositCents: 50000,
		MaxSaveBytes:    1 << 20,
	}

	accounts := repository.NewAccountRepository(st)
	transactions := repository.NewTransactionRepository(st)
	friendRepo := repository.NewFriendRepository(st)
	chatRepo := repository.NewChatRepository(st)
	achievementRepo := repository.NewAchievementRepository(st)
	saveRepo := repository.NewCloudSaveRepository(st)
	gameRepo := repository.NewGameRepository(st)
	notifRepo := repository.NewNotificationRepository(st)
	wishlistRepo := repository.NewWishlistRepository(st)

	locker := keylock.NewKeyedMutex()
	provider := payment.NewSandbox(cfg.PublicBaseURL)

	notifications := NewNotificationService(notifRepo)
	achievements := NewAchievementService(achievementRepo, cat, notifications)
	users := NewUserService(accounts, achievements, noopNotifier{})
	friends := NewFriendService(friendRepo, accounts, achievements, notifications)
	chat := NewChatService(chatRepo, accounts, friends, achievements)
	wallet := NewWalletService(accounts, transactions, wishlistRepo, cat, locker, provider, cfg)
	subscriptions := NewSubscriptionService(accounts, locker, provider, cfg)
	parental := NewParentalService(accounts, cat, locker)
	trials := NewTrialService(accounts, cat, locker)
	developers := NewDeveloperService(accounts, gameRepo, achievements, notifications, locker)
	saves := NewCloudSaveService(saveRepo, cfg.MaxSaveBytes)
	wishlist := NewWishlistService(wishlistRepo, accounts, cat)

	return &testEnv{
		store:         st,
		cat:           cat,
		provider:      provider,
		accounts:      accounts,
		transactions:  transactions,
		notifRepo:     notifRepo,
		users:         users,
		friends:       friends,
		chat:          chat,
		wallet:        wallet,
		subscriptions: subscriptions,
		parental:      parental,
		trials:        trials,
		developers:    developers,
		achievements:  achievements,
		notifications: notifications,
		saves:         saves,
		wishlist:      wishlist,
	}
}

var testSeq int

// register creates a verified account ready to use.
func (e *testEnv) register(t *testing.T, username string) *models.Account {
	t.Helper()
	ctx := context.Background()

	testSeq++
	created, err := e.users.RegisterUser(ctx, RegisterInput{
		Username: username,
		Email:    fmt.Sprintf("%s%d@nexar.gg", username, testSeq),
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)
	require.NoError(t, e.users.VerifyEmail(ctx, created.VerifyToken))

	account, err := e.accounts.GetAccountByID(ctx, created.ID)
	require.NoError(t, err)
	return account
}

// fund credits the wallet directly with a unique deposit reference.
func (e *testEnv) fund(t *testing.T, account *models.Account, cents int64) {
	t.Helper()
	testSeq++
	_, err := e.wallet.AddFunds(context.Background(), account.ID, cents,
		fmt.Sprintf("test-deposit-%d", testSeq), "")
	require.NoError(t, err)
}

// subscribe activates Nexar+ until the given instant.
func (e *testEnv) subscribe(t *testing.T, account *models.Account, until time.Time) {
	t.Helper()
	_, err := e.accounts.SetSubscription(context.Background(), account.ID, models.Subscription{
		Active:   true,
		RenewsAt: until,
	})
	require.NoError(t, err)
}

// makeFriends runs the request/accept handshake between two accounts.
func (e *testEnv) makeFriends(t *testing.T, a, b *models.Account) {
	t.Helper()
	ctx := context.Background()

	req, err := e.friends.SendFriendRequest(ctx, a.ID, b.ID.Hex())
	require.NoError(t, err)
	_, err = e.friends.RespondToRequest(ctx, b.ID, req.ID.Hex(), true)
	require.NoError(t, err)
}

// hasUnlock reports whether the account earned the achievement.
func (e *testEnv) hasUnlock(t *testing.T, account *models.Account, achievementID string) bool {
	t.Helper()

	unlocked, err := e.achievements.GetUnlockedAchievements(context.Background(), account.ID)
	require.NoError(t, err)
	for _, a := range unlocked {
		if a.ID == achievementID {
			return true
		}
	}
	return false
}
