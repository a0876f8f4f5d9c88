package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/nexar-gg/nexar-server/internal/catalog"
	"github.com/nexar-gg/nexar-server/internal/config"
	"github.com/nexar-gg/nexar-server/internal/database"
	"github.com/nexar-gg/nexar-server/internal/handlers"
	"github.com/nexar-gg/nexar-server/internal/jobs"
	"github.com/nexar-gg/nexar-server/internal/payment"
	"github.com/nexar-gg/nexar-server/internal/repository"
	cronjobs "github.com/nexar-gg/nexar-server/internal/scheduler"
	"github.com/nexar-gg/nexar-server/internal/services"
	"github.com/nexar-gg/nexar-server/internal/store"
	"github.com/nexar-gg/nexar-server/pkg/email"
	"github.com/nexar-gg/nexar-server/pkg/keylock"
	"github.com/nexar-gg/nexar-server/pkg/logger"
	"github.com/nexar-gg/nexar-server/pkg/middleware"
)

func main() {
	// Load configuration from .env file
	cfg := config.LoadConfig()

	logger.InitLogger()
	logger.Log.Info("Logger initialized")

	// --- Storage ---
	var st store.Store
	if cfg.StoreBackend == "memory" {
		st = store.NewMemory()
		logger.Log.Warn("Using the in-memory store, data will not survive a restart")
	} else {
		db, err := database.ConnectDB(cfg)
		if err != nil {
			log.Fatalf("Database connection error: %v", err)
		}
		if err := store.EnsureIndexes(context.Background(), db); err != nil {
			log.Fatalf("Index creation error: %v", err)
		}
		st = store.NewMongo(db)
	}

	// --- Cross-request locking ---
	var locker keylock.Locker
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		locker = keylock.NewRedisLocker(client)
		logger.Log.Info("Account locks served by Redis")
	} else {
		locker = keylock.NewKeyedMutex()
	}

	// --- Static catalogs ---
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("Catalog load error: %v", err)
	}

	provider := payment.NewSandbox(cfg.PublicBaseURL)
	notifier := email.NewSMTPNotifier(cfg.PublicBaseURL)

	// --- Repositories ---
	accountRepo := repository.NewAccountRepository(st)
	transactionRepo := repository.NewTransactionRepository(st)
	friendRepo := repository.NewFriendRepository(st)
	chatRepo := repository.NewChatRepository(st)
	achievementRepo := repository.NewAchievementRepository(st)
	gameRepo := repository.NewGameRepository(st)
	saveRepo := repository.NewCloudSaveRepository(st)
	notificationRepo := repository.NewNotificationRepository(st)
	wishlistRepo := repository.NewWishlistRepository(st)

	// --- Services ---
	notificationService := services.NewNotificationService(notificationRepo)
	achievementService := services.NewAchievementService(achievementRepo, cat, notificationService)
	userService := services.NewUserService(accountRepo, achievementService, notifier)
	friendService := services.NewFriendService(friendRepo, accountRepo, achievementService, notificationService)
	chatService := services.NewChatService(chatRepo, accountRepo, friendService, achievementService)
	walletService := services.NewWalletService(accountRepo, transactionRepo, wishlistRepo, cat, locker, provider, cfg)
	subscriptionService := services.NewSubscriptionService(accountRepo, locker, provider, cfg)
	parentalService := services.NewParentalService(accountRepo, cat, locker)
	trialService := services.NewTrialService(accountRepo, cat, locker)
	developerService := services.NewDeveloperService(accountRepo, gameRepo, achievementService, notificationService, locker)
	saveService := services.NewCloudSaveService(saveRepo, cfg.MaxSaveBytes)
	wishlistService := services.NewWishlistService(wishlistRepo, accountRepo, cat)

	// --- Handlers ---
	userHandler := handlers.NewUserHandler(userService, cfg)
	friendHandler := handlers.NewFriendHandler(friendService)
	chatHandler := handlers.NewChatHandler(chatService, cfg.JWTSecret)
	walletHandler := handlers.NewWalletHandler(walletService)
	storeHandler := handlers.NewStoreHandler(cat, developerService)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionService)
	parentalHandler := handlers.NewParentalHandler(parentalService)
	trialHandler := handlers.NewTrialHandler(trialService)
	achievementHandler := handlers.NewAchievementHandler(achievementService)
	saveHandler := handlers.NewCloudSaveHandler(saveService, cfg.MaxSaveBytes)
	developerHandler := handlers.NewDeveloperHandler(developerService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	wishlistHandler := handlers.NewWishlistHandler(wishlistService)

	// Initialize Gorilla Mux router
	router := mux.NewRouter()

	// authed mounts a subrouter that requires a valid token and stamps
	// presence on every request.
	authed := func(prefix string) *mux.Router {
		sr := router.PathPrefix(prefix).Subrouter()
		sr.Use(middleware.AuthMiddleware(cfg.JWTSecret))
		sr.Use(middleware.UpdateLastActiveMiddleware(userService))
		return sr
	}

	// Public user routes
	router.HandleFunc("/users/register", userHandler.RegisterUserHandler).Methods("POST")
	router.HandleFunc("/users/login", userHandler.LoginUserHandler).Methods("POST")
	router.HandleFunc("/users/verify", userHandler.VerifyEmailHandler).Methods("GET")
	router.HandleFunc("/users/request-password-reset", userHandler.RequestPasswordResetHandler).Methods("POST")
	router.HandleFunc("/users/reset-password", userHandler.ResetPasswordHandler).Methods("POST")

	// Public storefront and achievement catalog
	router.HandleFunc("/store/games", storeHandler.ListGamesHandler).Methods("GET")
	router.HandleFunc("/store/games/{id}", storeHandler.GetGameHandler).Methods("GET")
	router.HandleFunc("/achievements", achievementHandler.ListCatalogHandler).Methods("GET")

	// Websocket auth rides in the token query parameter, not a header.
	router.HandleFunc("/ws/chat", chatHandler.ChatWebSocketHandler)

	// Profile routes
	userRoutes := authed("/users")
	userRoutes.HandleFunc("/me/library", walletHandler.GetLibraryHandler).Methods("GET")
	userRoutes.HandleFunc("/me", userHandler.GetMeHandler).Methods("GET")
	userRoutes.HandleFunc("/{id}", userHandler.GetUserHandler).Methods("GET")
	userRoutes.HandleFunc("/{id}", userHandler.UpdateProfileHandler).Methods("PATCH")

	// Friend routes
	friendRoutes := authed("/friends")
	friendRoutes.HandleFunc("/{id}/request", friendHandler.SendFriendRequestHandler).Methods("POST")
	friendRoutes.HandleFunc("/requests", friendHandler.GetPendingRequestsHandler).Methods("GET")
	friendRoutes.HandleFunc("/requests/{id}/respond", friendHandler.RespondToFriendRequestHandler).Methods("POST")
	friendRoutes.HandleFunc("", friendHandler.GetFriendsHandler).Methods("GET")
	friendRoutes.HandleFunc("/{id}", friendHandler.UnfriendHandler).Methods("DELETE")

	// Chat routes
	chatRoutes := authed("/chat")
	chatRoutes.HandleFunc("/conversations", chatHandler.GetConversationsHandler).Methods("GET")
	chatRoutes.HandleFunc("/{friendID}", chatHandler.GetChatHandler).Methods("GET")
	chatRoutes.HandleFunc("/{friendID}", chatHandler.SendMessageHandler).Methods("POST")

	// Wallet routes
	walletRoutes := authed("/wallet")
	walletRoutes.HandleFunc("", walletHandler.GetBalanceHandler).Methods("GET")
	walletRoutes.HandleFunc("/transactions", walletHandler.GetTransactionsHandler).Methods("GET")
	walletRoutes.HandleFunc("/deposit/session", walletHandler.CreateDepositSessionHandler).Methods("POST")
	walletRoutes.HandleFunc("/deposit/confirm", walletHandler.ConfirmDepositHandler).Methods("POST")

	// Purchasing rides under /store but needs a caller.
	storeRoutes := authed("/store")
	storeRoutes.HandleFunc("/games/{id}/purchase", walletHandler.PurchaseGameHandler).Methods("POST")
	storeRoutes.HandleFunc("/games/{id}/price", walletHandler.QuotePriceHandler).Methods("GET")

	// Wishlist routes
	wishlistRoutes := authed("/wishlist")
	wishlistRoutes.HandleFunc("", wishlistHandler.GetWishlistHandler).Methods("GET")
	wishlistRoutes.HandleFunc("/{gameID}", wishlistHandler.AddToWishlistHandler).Methods("POST")
	wishlistRoutes.HandleFunc("/{gameID}", wishlistHandler.RemoveFromWishlistHandler).Methods("DELETE")

	// Subscription routes
	subscriptionRoutes := authed("/subscription")
	subscriptionRoutes.HandleFunc("", subscriptionHandler.GetSubscriptionHandler).Methods("GET")
	subscriptionRoutes.HandleFunc("/checkout", subscriptionHandler.CreateCheckoutHandler).Methods("POST")
	subscriptionRoutes.HandleFunc("/confirm", subscriptionHandler.ConfirmCheckoutHandler).Methods("POST")
	subscriptionRoutes.HandleFunc("/cancel", subscriptionHandler.CancelHandler).Methods("POST")

	// Parental control routes
	parentalRoutes := authed("/parental")
	parentalRoutes.HandleFunc("/status", parentalHandler.GetStatusHandler).Methods("GET")
	parentalRoutes.HandleFunc("/enable", parentalHandler.EnableHandler).Methods("POST")
	parentalRoutes.HandleFunc("/disable", parentalHandler.DisableHandler).Methods("POST")
	parentalRoutes.HandleFunc("/settings", parentalHandler.UpdateSettingsHandler).Methods("PUT")
	parentalRoutes.HandleFunc("/playtime", parentalHandler.LogPlaytimeHandler).Methods("POST")
	parentalRoutes.HandleFunc("/access", parentalHandler.CheckAccessHandler).Methods("GET")

	// Trial routes
	trialRoutes := authed("/trials")
	trialRoutes.HandleFunc("/{gameID}", trialHandler.CheckTrialHandler).Methods("GET")
	trialRoutes.HandleFunc("/{gameID}/minutes", trialHandler.RecordMinutesHandler).Methods("POST")

	// Achievements earned by the caller
	achievementRoutes := authed("/achievements")
	achievementRoutes.HandleFunc("/me", achievementHandler.GetMyAchievementsHandler).Methods("GET")

	// Cloud save routes
	saveRoutes := authed("/saves")
	saveRoutes.HandleFunc("", saveHandler.ListSavesHandler).Methods("GET")
	saveRoutes.HandleFunc("/{filename}", saveHandler.UploadSaveHandler).Methods("PUT")
	saveRoutes.HandleFunc("/{filename}", saveHandler.DownloadSaveHandler).Methods("GET")
	saveRoutes.HandleFunc("/{filename}", saveHandler.DeleteSaveHandler).Methods("DELETE")

	// Developer program routes
	developerRoutes := authed("/developer")
	developerRoutes.HandleFunc("/apply", developerHandler.ApplyHandler).Methods("POST")
	developerRoutes.HandleFunc("/games", developerHandler.ListMyGamesHandler).Methods("GET")
	developerRoutes.HandleFunc("/games", developerHandler.CreateListingHandler).Methods("POST")
	developerRoutes.HandleFunc("/games/{id}", developerHandler.UpdateListingHandler).Methods("PUT")
	developerRoutes.HandleFunc("/games/{id}/submit", developerHandler.SubmitListingHandler).Methods("POST")

	// Notification routes
	notificationRoutes := authed("/notifications")
	notificationRoutes.HandleFunc("", notificationHandler.GetNotificationsHandler).Methods("GET")
	notificationRoutes.HandleFunc("/read-all", notificationHandler.MarkAllAsReadHandler).Methods("POST")
	notificationRoutes.HandleFunc("/{id}/read", notificationHandler.MarkAsReadHandler).Methods("POST")

	// Admin routes
	adminRoutes := authed("/admin")
	adminRoutes.Use(middleware.RequireRole("admin"))
	adminRoutes.HandleFunc("/users", userHandler.AdminGetAllUsersHandler).Methods("GET")
	adminRoutes.HandleFunc("/developer/applications", developerHandler.AdminListApplicationsHandler).Methods("GET")
	adminRoutes.HandleFunc("/developer/applications/{userID}/review", developerHandler.AdminReviewApplicationHandler).Methods("POST")
	adminRoutes.HandleFunc("/developer/games", developerHandler.AdminListPendingGamesHandler).Methods("GET")
	adminRoutes.HandleFunc("/developer/games/{id}/review", developerHandler.AdminReviewListingHandler).Methods("POST")
	adminRoutes.HandleFunc("/wallet/{userID}/refund", walletHandler.AdminRefundHandler).Methods("POST")

	// Apply middleware for logging
	router.Use(middleware.LoggingMiddleware)

	// --- Background maintenance ---
	maintenance := jobs.NewMaintenance(accountRepo, notificationService, locker)
	cronjobs.StartMaintenanceCronJobs(maintenance)

	// Start the HTTP server
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	handler := c.Handler(router)

	fmt.Printf("Server running on port %s\n", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, handler))
}
