package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nexar-gg/nexar-server/internal/apperr"
	"github.com/nexar-gg/nexar-server/internal/catalog"
	"github.com/nexar-gg/nexar-server/internal/config"
	"github.com/nexar-gg/nexar-server/internal/models"
	"github.com/nexar-gg/nexar-server/internal/payment"
	"github.com/nexar-gg/nexar-server/internal/repository"
	"github.com/nexar-gg/nexar-server/internal/store"
	"github.com/nexar-gg/nexar-server/pkg/keylock"
)

const depositCurrency = "usd"

// AccountLockKey names the keyed lock serializing every
// read-modify-write on one account document. Wallet, parental, trial
// and background-sweep updates all contend on the same key.
func AccountLockKey(id primitive.ObjectID) string {
	return "account:" + id.Hex()
}

// discountedPrice applies a percent discount to a price in cents,
// rounding half away from zero to a whole cent.
func discountedPrice(baseCents int64, percent int) int64 {
	return (baseCents*int64(100-percent) + 50) / 100
}

// WalletService owns the balance, the game library and the append-only
// transaction ledger.
type WalletService struct {
	accounts     *repository.AccountRepository
	transactions *repository.TransactionRepository
	wishlist     *repository.WishlistRepository
	cat          *catalog.Catalog
	locker       keylock.Locker
	provider     payment.Provider

	minDepositCents int64
	maxDepositCents int64
	baseURL         string
}

func NewWalletService(accounts *repository.AccountRepository, transactions *repository.TransactionRepository, wishlist *repository.WishlistRepository, cat *catalog.Catalog, locker keylock.Locker, provider payment.Provider, cfg *config.Config) *WalletService {
	return &WalletService{
		accounts:        accounts,
		transactions:    transactions,
		wishlist:        wishlist,
		cat:             cat,
		locker:          locker,
		provider:        provider,
		minDepositCents: cfg.MinDepositCents,
		maxDepositCents: cfg.MaxDepositCents,
		baseURL:         cfg.PublicBaseURL,
	}
}

// GetBalance returns the account's current balance in cents.
func (s *WalletService) GetBalance(ctx context.Context, accountID primitive.ObjectID) (int64, error) {
	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, apperr.NotFound("account not found")
		}
		return 0, fmt.Errorf("failed to load account: %w", err)
	}
	return account.BalanceCents, nil
}

// GetTransactions returns the account's ledger, newest first.
func (s *WalletService) GetTransactions(ctx context.Context, accountID primitive.ObjectID, limit int) ([]models.WalletTransaction, error) {
	return s.transactions.GetUserTransactions(ctx, accountID, limit)
}

// GetLibrary resolves the owned game ids against the catalog. Ids no
// longer in the catalog are skipped.
func (s *WalletService) GetLibrary(ctx context.Context, accountID primitive.ObjectID) ([]catalog.GameDef, error) {
	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("account not found")
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	library := make([]catalog.GameDef, 0, len(account.OwnedGames))
	for _, gameID := range account.OwnedGames {
		if def, ok := s.cat.Game(gameID); ok {
			library = append(library, def)
		}
	}
	return library, nil
}

// PriceQuote is what one game costs one account right now.
type PriceQuote struct {
	GameID          string `json:"game_id"`
	Title           string `json:"title"`
	BasePriceCents  int64  `json:"base_price_cents"`
	DiscountPercent int    `json:"discount_percent,omitempty"`
	FinalPriceCents int64  `json:"final_price_cents"`
	Owned           bool   `json:"owned"`
}

// quoteFor prices one catalog game for one account at an instant.
func quoteFor(def catalog.GameDef, account *models.Account, now time.Time) *PriceQuote {
	quote := &PriceQuote{
		GameID:          def.ID,
		Title:           def.Title,
		BasePriceCents:  def.PriceCents,
		FinalPriceCents: def.PriceCents,
		Owned:           account.OwnsGame(def.ID),
	}
	if account.Subscription.EffectivelyActive(now) && def.NexarPlusDiscountPercent > 0 {
		quote.DiscountPercent = def.NexarPlusDiscountPercent
		quote.FinalPriceCents = discountedPrice(def.PriceCents, def.NexarPlusDiscountPercent)
	}
	return quote
}

// QuotePrice combines the static catalog price with the account's live
// membership state. Pure read; the quote a purchase would honor.
func (s *WalletService) QuotePrice(ctx context.Context, accountID primitive.ObjectID, gameID string) (*PriceQuote, error) {
	def, ok := s.cat.Game(gameID)
	if !ok {
		return nil, apperr.NotFound("game %q not found", gameID)
	}

	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("account not found")
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	return quoteFor(def, account, time.Now().UTC()), nil
}

// AddFunds credits the wallet exactly once per external reference. The
// ledger row claims the reference: a second call with the same one is
// rejected before any balance change.
func (s *WalletService) AddFunds(ctx context.Context, accountID primitive.ObjectID, amountCents int64, externalRef, description string) (*models.Account, error) {
	if amountCents <= 0 {
		return nil, apperr.Validation("deposit amount must be positive")
	}
	if externalRef == "" {
		return nil, apperr.Validation("external reference is required")
	}
	if description == "" {
		description = "Wallet deposit"
	}

	unlock, err := s.locker.Lock(ctx, AccountLockKey(accountID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	defer unlock()

	if existing, err := s.transactions.GetDepositByExternalRef(ctx, externalRef); err == nil && existing != nil {
		logrus.WithFields(logrus.Fields{
			"accountID":   accountID.Hex(),
			"externalRef": externalRef,
		}).Warn("Duplicate deposit reference")
		return nil, apperr.Conflict("deposit %s was already credited", externalRef)
	}

	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("account not found")
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	newBalance := account.BalanceCents + amountCents
	row := &models.WalletTransaction{
		UserID:            accountID,
		Type:              models.TxDeposit,
		AmountCents:       amountCents,
		BalanceAfterCents: newBalance,
		Description:       description,
		ExternalRef:       externalRef,
	}
	if _, err := s.transactions.Append(ctx, row); err != nil {
		// The partial unique index catches a replay that slipped in
		// from another replica.
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, apperr.Conflict("deposit %s was already credited", externalRef)
		}
		return nil, fmt.Errorf("failed to record deposit: %w", err)
	}

	updated, err := s.accounts.ApplyDeposit(ctx, accountID, newBalance)
	if err != nil {
		logrus.WithError(err).WithField("externalRef", externalRef).Error("Deposit recorded but balance update failed")
		return nil, fmt.Errorf("failed to credit balance: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"accountID":   accountID.Hex(),
		"amountCents": amountCents,
	}).Info("Funds added")
	return updated, nil
}

// PurchaseGame charges the wallet for a catalog game and adds it to
// the library. Nexar+ members get the game's discount when their
// membership is active at purchase time.
func (s *WalletService) PurchaseGame(ctx context.Context, accountID primitive.ObjectID, gameID string) (*models.Account, *models.WalletTransaction, error) {
	def, ok := s.cat.Game(gameID)
	if !ok {
		return nil, nil, apperr.NotFound("game %q not found", gameID)
	}

	unlock, err := s.locker.Lock(ctx, AccountLockKey(accountID))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock account: %w", err)
	}
	defer unlock()

	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, apperr.NotFound("account not found")
		}
		return nil, nil, fmt.Errorf("failed to load account: %w", err)
	}

	if account.OwnsGame(gameID) {
		return nil, nil, apperr.Conflict("game %q is already owned", gameID)
	}
	if !account.ParentalControls.CanMakePurchases {
		return nil, nil, apperr.Unauthorized("purchases are blocked by parental controls")
	}

	price := def.PriceCents
	description := "Purchased " + def.Title
	if account.Subscription.EffectivelyActive(time.Now().UTC()) && def.NexarPlusDiscountPercent > 0 {
		price = discountedPrice(def.PriceCents, def.NexarPlusDiscountPercent)
		description = fmt.Sprintf("%s (%d%% Nexar+ discount)", description, def.NexarPlusDiscountPercent)
	}

	if account.BalanceCents < price {
		return nil, nil, &apperr.FundsError{
			BalanceCents:  account.BalanceCents,
			RequiredCents: price,
		}
	}

	newBalance := account.BalanceCents - price
	owned := append(append([]string{}, account.OwnedGames...), gameID)

	updated, err := s.accounts.ApplyPurchase(ctx, accountID, newBalance, owned)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to apply purchase: %w", err)
	}

	row := &models.WalletTransaction{
		UserID:            accountID,
		Type:              models.TxPurchase,
		AmountCents:       -price,
		BalanceAfterCents: newBalance,
		Description:       description,
		ExternalRef:       gameID,
	}
	tx, err := s.transactions.Append(ctx, row)
	if err != nil {
		logrus.WithError(err).WithField("gameID", gameID).Error("Purchase applied but ledger append failed")
		return nil, nil, fmt.Errorf("failed to record purchase: %w", err)
	}

	// A fulfilled wish leaves the wishlist.
	if _, err := s.wishlist.RemoveItem(ctx, accountID, gameID); err != nil {
		logrus.WithError(err).WithField("gameID", gameID).Warn("Failed to clear wishlist entry after purchase")
	}

	logrus.WithFields(logrus.Fields{
		"accountID":  accountID.Hex(),
		"gameID":     gameID,
		"priceCents": price,
	}).Info("Game purchased")
	return updated, tx, nil
}

// RefundPurchase reverses a purchase row: the game leaves the library
// and the charged amount returns to the balance. Each purchase can be
// refunded once. Admin only; the handler enforces the role.
func (s *WalletService) RefundPurchase(ctx context.Context, accountHex, txHex string) (*models.Account, error) {
	accountID, err := primitive.ObjectIDFromHex(accountHex)
	if err != nil {
		return nil, apperr.Validation("invalid account id")
	}
	txID, err := primitive.ObjectIDFromHex(txHex)
	if err != nil {
		return nil, apperr.Validation("invalid transaction id")
	}

	unlock, err := s.locker.Lock(ctx, AccountLockKey(accountID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	defer unlock()

	tx, err := s.transactions.GetUserTransactionByID(ctx, accountID, txID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("transaction not found")
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	if tx.Type != models.TxPurchase {
		return nil, apperr.Validation("only purchases can be refunded")
	}
	if _, err := s.transactions.GetRefundByOriginal(ctx, tx.ID); err == nil {
		return nil, apperr.Conflict("purchase was already refunded")
	}

	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("account not found")
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	gameID := tx.ExternalRef
	owned := make([]string, 0, len(account.OwnedGames))
	for _, id := range account.OwnedGames {
		if id != gameID {
			owned = append(owned, id)
		}
	}

	amount := -tx.AmountCents
	newBalance := account.BalanceCents + amount

	updated, err := s.accounts.ApplyPurchase(ctx, accountID, newBalance, owned)
	if err != nil {
		return nil, fmt.Errorf("failed to apply refund: %w", err)
	}

	row := &models.WalletTransaction{
		UserID:            accountID,
		Type:              models.TxRefund,
		AmountCents:       amount,
		BalanceAfterCents: newBalance,
		Description:       "Refund: " + tx.Description,
		ExternalRef:       tx.ID.Hex(),
	}
	if _, err := s.transactions.Append(ctx, row); err != nil {
		logrus.WithError(err).WithField("txID", tx.ID.Hex()).Error("Refund applied but ledger append failed")
		return nil, fmt.Errorf("failed to record refund: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"accountID": accountID.Hex(),
		"txID":      tx.ID.Hex(),
	}).Info("Purchase refunded")
	return updated, nil
}

// CreateDepositSession opens a checkout with the payment provider. The
// session carries the account id so confirmation can verify ownership.
func (s *WalletService) CreateDepositSession(ctx context.Context, accountID primitive.ObjectID, amountCents int64) (*payment.Session, error) {
	if amountCents < s.minDepositCents || amountCents > s.maxDepositCents {
		return nil, apperr.Validation("deposit must be between %d and %d cents", s.minDepositCents, s.maxDepositCents)
	}

	session, err := s.provider.CreateCheckoutSession(ctx, payment.SessionParams{
		AmountCents: amountCents,
		Currency:    depositCurrency,
		Purpose:     "deposit",
		Metadata: map[string]string{
			"account_id": accountID.Hex(),
			"purpose":    "deposit",
		},
		SuccessURL: s.baseURL + "/wallet?checkout=success",
		CancelURL:  s.baseURL + "/wallet?checkout=cancelled",
	})
	if err != nil {
		return nil, apperr.Upstream("failed to create checkout session", err)
	}

	logrus.WithFields(logrus.Fields{
		"accountID":   accountID.Hex(),
		"sessionID":   session.ID,
		"amountCents": amountCents,
	}).Info("Deposit session created")
	return session, nil
}

// ConfirmDeposit credits a paid checkout session to the wallet. The
// session's metadata must name the calling account, and each session
// credits at most once.
func (s *WalletService) ConfirmDeposit(ctx context.Context, accountID primitive.ObjectID, sessionID string) (*models.Account, error) {
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

	if session.Purpose != "deposit" {
		return nil, apperr.Validation("session is not a wallet deposit")
	}
	if session.Metadata["account_id"] != accountID.Hex() {
		logrus.WithFields(logrus.Fields{
			"accountID": accountID.Hex(),
			"sessionID": sessionID,
		}).Warn("Deposit confirm for another account's session")
		return nil, apperr.Unauthorized("session belongs to another account")
	}
	if !session.Paid {
		return nil, apperr.Validation("payment has not completed")
	}

	return s.AddFunds(ctx, accountID, session.AmountCents, session.ID, "Wallet deposit")
}
