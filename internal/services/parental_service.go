package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nexar-gg/nexar-server/internal/apperr"
	"github.com/nexar-gg/nexar-server/internal/catalog"
	"github.com/nexar-gg/nexar-server/internal/models"
	"github.com/nexar-gg/nexar-server/internal/repository"
	"github.com/nexar-gg/nexar-server/internal/store"
	"github.com/nexar-gg/nexar-server/pkg/keylock"
)

// Canonical age ratings. Catalog entries and restriction lists may use
// legacy labels; NormalizeRating folds them onto these.
const (
	RatingE       = "E"
	RatingT       = "T"
	RatingM       = "M"
	RatingAdult18 = "18+"
)

var ratingAliases = map[string]string{
	"E":        RatingE,
	"Everyone": RatingE,
	"7+":       RatingE,
	"T":        RatingT,
	"Teen":     RatingT,
	"12+":      RatingT,
	"M":        RatingM,
	"Mature":   RatingM,
	"16+":      RatingM,
	"18+":      RatingAdult18,
}

// NormalizeRating maps a rating label to its canonical form. Unknown
// labels report ok=false and are dropped by every caller, on read and
// on write alike.
func NormalizeRating(raw string) (string, bool) {
	canonical, ok := ratingAliases[raw]
	return canonical, ok
}

// normalizeRatings canonicalizes a restriction list, dropping unknown
// labels and duplicates.
func normalizeRatings(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, label := range raw {
		canonical, ok := NormalizeRating(label)
		if !ok || seen[canonical] {
			continue
		}
		seen[canonical] = true
		out = append(out, canonical)
	}
	return out
}

// utcDay formats an instant as the UTC calendar day the playtime
// counter is keyed on.
func utcDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// rolledPlaytime returns the playtime block as of now: a stored date
// before today reads as zero minutes. Nothing is persisted.
func rolledPlaytime(pc models.ParentalControls, now time.Time) models.DailyPlaytime {
	today := utcDay(now)
	if pc.DailyPlaytime.Date != today {
		return models.DailyPlaytime{Date: today, MinutesPlayed: 0}
	}
	return pc.DailyPlaytime
}

// AccessDecision is the outcome of a parental gate check.
type AccessDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// ParentalService owns the guardian-managed block on an account: the
// PIN, the purchase switch, rating restrictions and the daily playtime
// limit.
type ParentalService struct {
	accounts *repository.AccountRepository
	cat      *catalog.Catalog
	locker   keylock.Locker
}

func NewParentalService(accounts *repository.AccountRepository, cat *catalog.Catalog, locker keylock.Locker) *ParentalService {
	return &ParentalService{
		accounts: accounts,
		cat:      cat,
		locker:   locker,
	}
}

func validPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 8 {
		return false
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (s *ParentalService) loadAccount(ctx context.Context, accountID primitive.ObjectID) (*models.Account, error) {
	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("account not found")
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return account, nil
}

func verifyPIN(pc models.ParentalControls, pin string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(pc.PINHash), []byte(pin)); err != nil {
		return apperr.Unauthorized("invalid parental PIN")
	}
	return nil
}

// Enable turns parental controls on and sets the PIN.
func (s *ParentalService) Enable(ctx context.Context, accountID primitive.ObjectID, pin string) (*models.ParentalControls, error) {
	if !validPIN(pin) {
		return nil, apperr.Validation("PIN must be 4 to 8 digits")
	}

	unlock, err := s.locker.Lock(ctx, AccountLockKey(accountID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	defer unlock()

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.ParentalControls.Enabled {
		return nil, apperr.Conflict("parental controls are already enabled")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash PIN: %w", err)
	}

	pc := account.ParentalControls
	pc.Enabled = true
	pc.PINHash = string(hash)

	updated, err := s.accounts.SetParentalControls(ctx, accountID, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to enable parental controls: %w", err)
	}

	logrus.WithField("accountID", accountID.Hex()).Info("Parental controls enabled")
	result := updated.ParentalControls
	return &result, nil
}

// UpdateSettings applies a guardian patch after checking the PIN.
func (s *ParentalService) UpdateSettings(ctx context.Context, accountID primitive.ObjectID, pin string, patch models.ParentalSettingsPatch) (*models.ParentalControls, error) {
	unlock, err := s.locker.Lock(ctx, AccountLockKey(accountID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	defer unlock()

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.ParentalControls.Enabled {
		return nil, apperr.Conflict("parental controls are not enabled")
	}
	if err := verifyPIN(account.ParentalControls, pin); err != nil {
		return nil, err
	}

	pc := account.ParentalControls
	if patch.ClearPlaytimeLimit {
		pc.PlaytimeLimitMinutes = nil
	} else if patch.PlaytimeLimitMinutes != nil {
		if *patch.PlaytimeLimitMinutes <= 0 {
			return nil, apperr.Validation("playtime limit must be positive")
		}
		limit := *patch.PlaytimeLimitMinutes
		pc.PlaytimeLimitMinutes = &limit
	}
	if patch.CanMakePurchases != nil {
		pc.CanMakePurchases = *patch.CanMakePurchases
	}
	if patch.RestrictedRatings != nil {
		pc.RestrictedRatings = normalizeRatings(*patch.RestrictedRatings)
	}
	if patch.RequireApproval != nil {
		pc.RequireApproval = *patch.RequireApproval
	}

	updated, err := s.accounts.SetParentalControls(ctx, accountID, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to update parental settings: %w", err)
	}

	logrus.WithField("accountID", accountID.Hex()).Info("Parental settings updated")
	result := updated.ParentalControls
	return &result, nil
}

// Disable turns the controls off and resets the whole block, PIN
// included.
func (s *ParentalService) Disable(ctx context.Context, accountID primitive.ObjectID, pin string) error {
	unlock, err := s.locker.Lock(ctx, AccountLockKey(accountID))
	if err != nil {
		return fmt.Errorf("failed to lock account: %w", err)
	}
	defer unlock()

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.ParentalControls.Enabled {
		return apperr.Conflict("parental controls are not enabled")
	}
	if err := verifyPIN(account.ParentalControls, pin); err != nil {
		return err
	}

	if _, err := s.accounts.SetParentalControls(ctx, accountID, models.DefaultParentalControls()); err != nil {
		return fmt.Errorf("failed to disable parental controls: %w", err)
	}

	logrus.WithField("accountID", accountID.Hex()).Info("Parental controls disabled")
	return nil
}

// VerifyPIN checks the PIN without changing anything.
func (s *ParentalService) VerifyPIN(ctx context.Context, accountID primitive.ObjectID, pin string) error {
	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.ParentalControls.Enabled {
		return apperr.Conflict("parental controls are not enabled")
	}
	return verifyPIN(account.ParentalControls, pin)
}

// GetSettings returns the block with the playtime counter rolled to
// today. A stale date reads as zero minutes; the rollover is not
// written back.
func (s *ParentalService) GetSettings(ctx context.Context, accountID primitive.ObjectID) (*models.ParentalControls, error) {
	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	pc := account.ParentalControls
	pc.DailyPlaytime = rolledPlaytime(pc, time.Now())
	return &pc, nil
}

// CheckAccess decides whether the account may launch the game right
// now. It evaluates the rolled playtime view without persisting it.
func (s *ParentalService) CheckAccess(ctx context.Context, accountID primitive.ObjectID, gameID string) (*AccessDecision, error) {
	def, ok := s.cat.Game(gameID)
	if !ok {
		return nil, apperr.NotFound("game %q not found", gameID)
	}

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	pc := account.ParentalControls
	if !pc.Enabled {
		return &AccessDecision{Allowed: true}, nil
	}

	if rating, ok := NormalizeRating(def.Rating); ok {
		for _, restricted := range normalizeRatings(pc.RestrictedRatings) {
			if rating == restricted {
				return &AccessDecision{Allowed: false, Reason: "rating restricted"}, nil
			}
		}
	}

	if pc.PlaytimeLimitMinutes != nil {
		played := rolledPlaytime(pc, time.Now()).MinutesPlayed
		if played >= *pc.PlaytimeLimitMinutes {
			return &AccessDecision{Allowed: false, Reason: "daily playtime limit reached"}, nil
		}
	}

	return &AccessDecision{Allowed: true}, nil
}

// LogPlaytime adds minutes to today's counter, rolling a stale date to
// zero first. Tracking runs whether or not the controls are enabled.
func (s *ParentalService) LogPlaytime(ctx context.Context, accountID primitive.ObjectID, minutes int) (*models.ParentalControls, error) {
	if minutes <= 0 {
		return nil, apperr.Validation("minutes must be positive")
	}

	unlock, err := s.locker.Lock(ctx, AccountLockKey(accountID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	defer unlock()

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	pc := account.ParentalControls
	pc.DailyPlaytime = rolledPlaytime(pc, time.Now())
	pc.DailyPlaytime.MinutesPlayed += minutes

	updated, err := s.accounts.SetParentalControls(ctx, accountID, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to log playtime: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"accountID": accountID.Hex(),
		"minutes":   minutes,
	}).Info("Playtime logged")
	result := updated.ParentalControls
	return &result, nil
}
