package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/nexar-gg/nexar-server/internal/catalog"
	"github.com/nexar-gg/nexar-server/internal/config"
	"github.com/nexar-gg/nexar-server/internal/models"
	"github.com/nexar-gg/nexar-server/internal/payment"
	"github.com/nexar-gg/nexar-server/internal/repository"
	"github.com/nexar-gg/nexar-server/internal/services"
	"github.com/nexar-gg/nexar-server/internal/store"
	"github.com/nexar-gg/nexar-server/pkg/keylock"
	"github.com/nexar-gg/nexar-server/pkg/logger"
	"github.com/nexar-gg/nexar-server/pkg/middleware"
)

// testNotifier swallows account emails in tests.
type testNotifier struct{}

func (testNotifier) SendVerificationEmail(to, name, token string) error  { return nil }
func (testNotifier) SendPasswordResetEmail(to, name, token string) error { return nil }

// testApp is the whole HTTP surface wired against the in-memory store,
// mounted the same way the server mounts it.
type testApp struct {
	router   *mux.Router
	cfg      *config.Config
	provider *payment.Sandbox

	accounts      *repository.AccountRepository
	users         *services.UserService
	wallet        *services.WalletService
	subscriptions *services.SubscriptionService
	friends       *services.FriendService
	developers    *services.DeveloperService
	notifications *services.NotificationService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	logger.InitLogger()

	st := store.NewMemory()
	cat, err := catalog.Load("")
	require.NoError(t, err)

	cfg := &config.Config{
		PublicBaseURL:   "http://localhost:8080",
		JWTSecret:       "handler-test-secret",
		TokenExpiry:     time.Hour,
		MinDepositCents: 100,
		MaxDepositCents: 50000,
		MaxSaveBytes:    1 << 20,
	}

	accountRepo := repository.NewAccountRepository(st)
	transactionRepo := repository.NewTransactionRepository(st)
	friendRepo := repository.NewFriendRepository(st)
	chatRepo := repository.NewChatRepository(st)
	achievementRepo := repository.NewAchievementRepository(st)
	gameRepo := repository.NewGameRepository(st)
	saveRepo := repository.NewCloudSaveRepository(st)
	notificationRepo := repository.NewNotificationRepository(st)
	wishlistRepo := repository.NewWishlistRepository(st)

	locker := keylock.NewKeyedMutex()
	provider := payment.NewSandbox(cfg.PublicBaseURL)

	notificationService := services.NewNotificationService(notificationRepo)
	achievementService := services.NewAchievementService(achievementRepo, cat, notificationService)
	userService := services.NewUserService(accountRepo, achievementService, testNotifier{})
	friendService := services.NewFriendService(friendRepo, accountRepo, achievementService, notificationService)
	chatService := services.NewChatService(chatRepo, accountRepo, friendService, achievementService)
	walletService := services.NewWalletService(accountRepo, transactionRepo, wishlistRepo, cat, locker, provider, cfg)
	subscriptionService := services.NewSubscriptionService(accountRepo, locker, provider, cfg)
	parentalService := services.NewParentalService(accountRepo, cat, locker)
	trialService := services.NewTrialService(accountRepo, cat, locker)
	developerService := services.NewDeveloperService(accountRepo, gameRepo, achievementService, notificationService, locker)
	saveService := services.NewCloudSaveService(saveRepo, cfg.MaxSaveBytes)
	wishlistService := services.NewWishlistService(wishlistRepo, accountRepo, cat)

	userHandler := NewUserHandler(userService, cfg)
	friendHandler := NewFriendHandler(friendService)
	chatHandler := NewChatHandler(chatService, cfg.JWTSecret)
	walletHandler := NewWalletHandler(walletService)
	storeHandler := NewStoreHandler(cat, developerService)
	subscriptionHandler := NewSubscriptionHandler(subscriptionService)
	parentalHandler := NewParentalHandler(parentalService)
	trialHandler := NewTrialHandler(trialService)
	achievementHandler := NewAchievementHandler(achievementService)
	saveHandler := NewCloudSaveHandler(saveService, cfg.MaxSaveBytes)
	developerHandler := NewDeveloperHandler(developerService)
	notificationHandler := NewNotificationHandler(notificationService)
	wishlistHandler := NewWishlistHandler(wishlistService)

	router := mux.NewRouter()
	authed := func(prefix string) *mux.Router {
		sr := router.PathPrefix(prefix).Subrouter()
		sr.Use(middleware.AuthMiddleware(cfg.JWTSecret))
		sr.Use(middleware.UpdateLastActiveMiddleware(userService))
		return sr
	}

	router.HandleFunc("/users/register", userHandler.RegisterUserHandler).Methods("POST")
	router.HandleFunc("/users/login", userHandler.LoginUserHandler).Methods("POST")
	router.HandleFunc("/users/verify", userHandler.VerifyEmailHandler).Methods("GET")
	router.HandleFunc("/users/request-password-reset", userHandler.RequestPasswordResetHandler).Methods("POST")
	router.HandleFunc("/users/reset-password", userHandler.ResetPasswordHandler).Methods("POST")
	router.HandleFunc("/store/games", storeHandler.ListGamesHandler).Methods("GET")
	router.HandleFunc("/store/games/{id}", storeHandler.GetGameHandler).Methods("GET")
	router.HandleFunc("/achievements", achievementHandler.ListCatalogHandler).Methods("GET")
	router.HandleFunc("/ws/chat", chatHandler.ChatWebSocketHandler)

	userRoutes := authed("/users")
	userRoutes.HandleFunc("/me/library", walletHandler.GetLibraryHandler).Methods("GET")
	userRoutes.HandleFunc("/me", userHandler.GetMeHandler).Methods("GET")
	userRoutes.HandleFunc("/{id}", userHandler.GetUserHandler).Methods("GET")
	userRoutes.HandleFunc("/{id}", userHandler.UpdateProfileHandler).Methods("PATCH")

	friendRoutes := authed("/friends")
	friendRoutes.HandleFunc("/{id}/request", friendHandler.SendFriendRequestHandler).Methods("POST")
	friendRoutes.HandleFunc("/requests", friendHandler.GetPendingRequestsHandler).Methods("GET")
	friendRoutes.HandleFunc("/requests/{id}/respond", friendHandler.RespondToFriendRequestHandler).Methods("POST")
	friendRoutes.HandleFunc("", friendHandler.GetFriendsHandler).Methods("GET")
	friendRoutes.HandleFunc("/{id}", friendHandler.UnfriendHandler).Methods("DELETE")

	chatRoutes := authed("/chat")
	chatRoutes.HandleFunc("/conversations", chatHandler.GetConversationsHandler).Methods("GET")
	chatRoutes.HandleFunc("/{friendID}", chatHandler.GetChatHandler).Methods("GET")
	chatRoutes.HandleFunc("/{friendID}", chatHandler.SendMessageHandler).Methods("POST")

	walletRoutes := authed("/wallet")
	walletRoutes.HandleFunc("", walletHandler.GetBalanceHandler).Methods("GET")
	walletRoutes.HandleFunc("/transactions", walletHandler.GetTransactionsHandler).Methods("GET")
	walletRoutes.HandleFunc("/deposit/session", walletHandler.CreateDepositSessionHandler).Methods("POST")
	walletRoutes.HandleFunc("/deposit/confirm", walletHandler.ConfirmDepositHandler).Methods("POST")

	storeRoutes := authed("/store")
	storeRoutes.HandleFunc("/games/{id}/purchase", walletHandler.PurchaseGameHandler).Methods("POST")
	storeRoutes.HandleFunc("/games/{id}/price", walletHandler.QuotePriceHandler).Methods("GET")

	wishlistRoutes := authed("/wishlist")
	wishlistRoutes.HandleFunc("", wishlistHandler.GetWishlistHandler).Methods("GET")
	wishlistRoutes.HandleFunc("/{gameID}", wishlistHandler.AddToWishlistHandler).Methods("POST")
	wishlistRoutes.HandleFunc("/{gameID}", wishlistHandler.RemoveFromWishlistHandler).Methods("DELETE")

	subscriptionRoutes := authed("/subscription")
	subscriptionRoutes.HandleFunc("", subscriptionHandler.GetSubscriptionHandler).Methods("GET")
	subscriptionRoutes.HandleFunc("/checkout", subscriptionHandler.CreateCheckoutHandler).Methods("POST")
	subscriptionRoutes.HandleFunc("/confirm", subscriptionHandler.ConfirmCheckoutHandler).Methods("POST")
	subscriptionRoutes.HandleFunc("/cancel", subscriptionHandler.CancelHandler).Methods("POST")

	parentalRoutes := authed("/parental")
	parentalRoutes.HandleFunc("/status", parentalHandler.GetStatusHandler).Methods("GET")
	parentalRoutes.HandleFunc("/enable", parentalHandler.EnableHandler).Methods("POST")
	parentalRoutes.HandleFunc("/disable", parentalHandler.DisableHandler).Methods("POST")
	parentalRoutes.HandleFunc("/settings", parentalHandler.UpdateSettingsHandler).Methods("PUT")
	parentalRoutes.HandleFunc("/playtime", parentalHandler.LogPlaytimeHandler).Methods("POST")
	parentalRoutes.HandleFunc("/access", parentalHandler.CheckAccessHandler).Methods("GET")

	trialRoutes := authed("/trials")
	trialRoutes.HandleFunc("/{gameID}", trialHandler.CheckTrialHandler).Methods("GET")
	trialRoutes.HandleFunc("/{gameID}/minutes", trialHandler.RecordMinutesHandler).Methods("POST")

	achievementRoutes := authed("/achievements")
	achievementRoutes.HandleFunc("/me", achievementHandler.GetMyAchievementsHandler).Methods("GET")

	saveRoutes := authed("/saves")
	saveRoutes.HandleFunc("", saveHandler.ListSavesHandler).Methods("GET")
	saveRoutes.HandleFunc("/{filename}", saveHandler.UploadSaveHandler).Methods("PUT")
	saveRoutes.HandleFunc("/{filename}", saveHandler.DownloadSaveHandler).Methods("GET")
	saveRoutes.HandleFunc("/{filename}", saveHandler.DeleteSaveHandler).Methods("DELETE")

	developerRoutes := authed("/developer")
	developerRoutes.HandleFunc("/apply", developerHandler.ApplyHandler).Methods("POST")
	developerRoutes.HandleFunc("/games", developerHandler.ListMyGamesHandler).Methods("GET")
	developerRoutes.HandleFunc("/games", developerHandler.CreateListingHandler).Methods("POST")
	developerRoutes.HandleFunc("/games/{id}", developerHandler.UpdateListingHandler).Methods("PUT")
	developerRoutes.HandleFunc("/games/{id}/submit", developerHandler.SubmitListingHandler).Methods("POST")

	notificationRoutes := authed("/notifications")
	notificationRoutes.HandleFunc("", notificationHandler.GetNotificationsHandler).Methods("GET")
	notificationRoutes.HandleFunc("/read-all", notificationHandler.MarkAllAsReadHandler).Methods("POST")
	notificationRoutes.HandleFunc("/{id}/read", notificationHandler.MarkAsReadHandler).Methods("POST")

	adminRoutes := authed("/admin")
	adminRoutes.Use(middleware.RequireRole("admin"))
	adminRoutes.HandleFunc("/users", userHandler.AdminGetAllUsersHandler).Methods("GET")
	adminRoutes.HandleFunc("/developer/applications", developerHandler.AdminListApplicationsHandler).Methods("GET")
	adminRoutes.HandleFunc("/developer/applications/{userID}/review", developerHandler.AdminReviewApplicationHandler).Methods("POST")
	adminRoutes.HandleFunc("/developer/games", developerHandler.AdminListPendingGamesHandler).Methods("GET")
	adminRoutes.HandleFunc("/developer/games/{id}/review", developerHandler.AdminReviewListingHandler).Methods("POST")
	adminRoutes.HandleFunc("/wallet/{userID}/refund", walletHandler.AdminRefundHandler).Methods("POST")

	return &testApp{
		router:        router,
		cfg:           cfg,
		provider:      provider,
		accounts:      accountRepo,
		users:         userService,
		wallet:        walletService,
		subscriptions: subscriptionService,
		friends:       friendService,
		developers:    developerService,
		notifications: notificationService,
	}
}

var handlerSeq int

// do runs one request through the router. A non-empty token goes into
// the Authorization header; a nil body sends no payload.
func (app *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals a recorded JSON body.
func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

// signup registers a verified account through the public endpoints and
// returns it with a usable bearer token.
func (app *testApp) signup(t *testing.T, username string) (*models.Account, string) {
	t.Helper()

	handlerSeq++
	email := fmt.Sprintf("%s%d@nexar.gg", username, handlerSeq)

	rec := app.do(t, http.MethodPost, "/users/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID string `json:"id"`
	}
	decode(t, rec, &created)

	account, err := app.users.GetAccount(context.Background(), created.ID)
	require.NoError(t, err)

	rec = app.do(t, http.MethodGet, "/users/verify?token="+account.VerifyToken, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	return app.login(t, email)
}

// login exchanges credentials for a token and the fresh account view.
func (app *testApp) login(t *testing.T, email string) (*models.Account, string) {
	t.Helper()

	rec := app.do(t, http.MethodPost, "/users/login", "", map[string]string{
		"email":    email,
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decode(t, rec, &out)
	require.NotEmpty(t, out.Token)

	account, err := app.users.GetAccount(context.Background(), out.User.ID)
	require.NoError(t, err)
	return account, out.Token
}

// signupAdmin creates an account, promotes it and logs in again so the
// token carries the admin role.
func (app *testApp) signupAdmin(t *testing.T, username string) (*models.Account, string) {
	t.Helper()

	account, _ := app.signup(t, username)
	_, err := app.accounts.SetRole(context.Background(), account.ID, models.RoleAdmin)
	require.NoError(t, err)
	return app.login(t, account.Email)
}

// fund credits a wallet directly with a unique deposit reference.
func (app *testApp) fund(t *testing.T, account *models.Account, cents int64) {
	t.Helper()
	handlerSeq++
	_, err := app.wallet.AddFunds(context.Background(), account.ID, cents,
		fmt.Sprintf("handler-deposit-%d", handlerSeq), "")
	require.NoError(t, err)
}

// subscribe activates Nexar+ until the given instant.
func (app *testApp) subscribe(t *testing.T, account *models.Account, until time.Time) {
	t.Helper()
	_, err := app.accounts.SetSubscription(context.Background(), account.ID, models.Subscription{
		Active:   true,
		RenewsAt: until,
	})
	require.NoError(t, err)
}
