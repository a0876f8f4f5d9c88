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
	"github.com/nexar-gg/nexar-server/internal/models"
	"github.com/nexar-gg/nexar-server/internal/repository"
	"github.com/nexar-gg/nexar-server/internal/store"
)

// WishlistEntry joins a wishlist row with the game's current price for
// the owning account.
type WishlistEntry struct {
	GameID  string      `json:"game_id"`
	Title   string      `json:"title"`
	Note    string      `json:"note,omitempty"`
	AddedAt time.Time   `json:"added_at"`
	Quote   *PriceQuote `json:"quote"`
}

// WishlistService tracks the games an account wants but does not own
// yet. Buying a wishlisted game clears its entry.
type WishlistService struct {
	items    *repository.WishlistRepository
	accounts *repository.AccountRepository
	cat      *catalog.Catalog
}

func NewWishlistService(items *repository.WishlistRepository, accounts *repository.AccountRepository, cat *catalog.Catalog) *WishlistService {
	return &WishlistService{
		items:    items,
		accounts: accounts,
		cat:      cat,
	}
}

func (s *WishlistService) loadAccount(ctx context.Context, accountID primitive.ObjectID) (*models.Account, error) {
	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("account not found")
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return account, nil
}

func entryFor(def catalog.GameDef, item *models.WishlistItem, account *models.Account, now time.Time) WishlistEntry {
	return WishlistEntry{
		GameID:  def.ID,
		Title:   def.Title,
		Note:    item.Note,
		AddedAt: item.AddedAt,
		Quote:   quoteFor(def, account, now),
	}
}

// AddToWishlist pins a catalog game to the account's wishlist. Owned
// games cannot be wishlisted, and each game appears at most once.
func (s *WishlistService) AddToWishlist(ctx context.Context, accountID primitive.ObjectID, gameID, note string) (*WishlistEntry, error) {
	def, ok := s.cat.Game(gameID)
	if !ok {
		return nil, apperr.NotFound("game %q not found", gameID)
	}

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.OwnsGame(gameID) {
		return nil, apperr.Conflict("game %q is already owned", gameID)
	}

	item, err := s.items.AddItem(ctx, accountID, gameID, note)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, apperr.Conflict("game %q is already wishlisted", gameID)
		}
		return nil, fmt.Errorf("failed to wishlist game: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"accountID": accountID.Hex(),
		"gameID":    gameID,
	}).Info("Game wishlisted")

	entry := entryFor(def, item, account, time.Now().UTC())
	return &entry, nil
}

// GetWishlist returns the wishlist with a live price quote per entry.
// Entries whose game left the catalog are skipped.
func (s *WishlistService) GetWishlist(ctx context.Context, accountID primitive.ObjectID) ([]WishlistEntry, error) {
	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	items, err := s.items.ListByUser(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wishlist: %w", err)
	}

	now := time.Now().UTC()
	entries := make([]WishlistEntry, 0, len(items))
	for i := range items {
		def, ok := s.cat.Game(items[i].GameID)
		if !ok {
			continue
		}
		entries = append(entries, entryFor(def, &items[i], account, now))
	}
	return entries, nil
}

// RemoveFromWishlist drops one game from the wishlist.
func (s *WishlistService) RemoveFromWishlist(ctx context.Context, accountID primitive.ObjectID, gameID string) error {
	removed, err := s.items.RemoveItem(ctx, accountID, gameID)
	if err != nil {
		return fmt.Errorf("failed to drop wishlist entry: %w", err)
	}
	if !removed {
		return apperr.NotFound("game %q is not wishlisted", gameID)
	}

	logrus.WithFields(logrus.Fields{
		"accountID": accountID.Hex(),
		"gameID":    gameID,
	}).Info("Game removed from wishlist")
	return nil
}
