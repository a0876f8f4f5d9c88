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
	"github.com/nexar-gg/nexar-server/pkg/keylock"
)

// TrialStatus reports where one game's trial stands for one account.
type TrialStatus struct {
	GameID           string `json:"game_id"`
	Eligible         bool   `json:"eligible"`
	Reason           string `json:"reason,omitempty"`
	DurationMinutes  int    `json:"duration_minutes"`
	MinutesPlayed    int    `json:"minutes_played"`
	RemainingMinutes int    `json:"remaining_minutes"`
	Expired          bool   `json:"expired"`
}

// TrialService meters Nexar+ game trials. Eligibility is re-checked
// against the live subscription on every call; expiry is terminal.
type TrialService struct {
	accounts *repository.AccountRepository
	cat      *catalog.Catalog
	locker   keylock.Locker
}

func NewTrialService(accounts *repository.AccountRepository, cat *catalog.Catalog, locker keylock.Locker) *TrialService {
	return &TrialService{
		accounts: accounts,
		cat:      cat,
		locker:   locker,
	}
}

func trialRemaining(duration, played int) int {
	remaining := duration - played
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CheckTrial reports the trial state without changing it.
func (s *TrialService) CheckTrial(ctx context.Context, accountID primitive.ObjectID, gameID string) (*TrialStatus, error) {
	def, ok := s.cat.Game(gameID)
	if !ok {
		return nil, apperr.NotFound("game %q not found", gameID)
	}

	status := &TrialStatus{
		GameID:          gameID,
		DurationMinutes: def.TrialDurationMinutes,
	}
	if !def.HasTrial() {
		status.Reason = "game has no trial"
		return status, nil
	}

	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("account not found")
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	usage := account.TrialUsage[gameID]
	status.MinutesPlayed = usage.MinutesPlayed
	status.RemainingMinutes = trialRemaining(def.TrialDurationMinutes, usage.MinutesPlayed)

	if account.OwnsGame(gameID) {
		status.Reason = "game already owned"
		return status, nil
	}
	if usage.Expired || usage.MinutesPlayed >= def.TrialDurationMinutes {
		status.Expired = true
		status.RemainingMinutes = 0
		status.Reason = "trial expired"
		return status, nil
	}
	if !account.Subscription.EffectivelyActive(time.Now().UTC()) {
		status.Reason = "active subscription required"
		return status, nil
	}

	status.Eligible = true
	return status, nil
}

// RecordTrialMinutes adds played minutes to the trial meter. Crossing
// the duration marks the trial expired for good.
func (s *TrialService) RecordTrialMinutes(ctx context.Context, accountID primitive.ObjectID, gameID string, minutes int) (*TrialStatus, error) {
	if minutes <= 0 {
		return nil, apperr.Validation("minutes must be positive")
	}

	def, ok := s.cat.Game(gameID)
	if !ok {
		return nil, apperr.NotFound("game %q not found", gameID)
	}
	if !def.HasTrial() {
		return nil, apperr.Validation("game %q has no trial", gameID)
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

	if account.OwnsGame(gameID) {
		return nil, apperr.Conflict("game %q is already owned", gameID)
	}

	usage := account.TrialUsage[gameID]
	if usage.Expired {
		return nil, apperr.Conflict("trial for %q has expired", gameID)
	}
	if !account.Subscription.EffectivelyActive(time.Now().UTC()) {
		return nil, apperr.Unauthorized("an active subscription is required for trials")
	}

	usage.MinutesPlayed += minutes
	if usage.MinutesPlayed >= def.TrialDurationMinutes {
		usage.Expired = true
	}

	all := make(map[string]models.TrialUsage, len(account.TrialUsage)+1)
	for id, u := range account.TrialUsage {
		all[id] = u
	}
	all[gameID] = usage

	if _, err := s.accounts.SetTrialUsage(ctx, accountID, all); err != nil {
		return nil, fmt.Errorf("failed to record trial minutes: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"accountID": accountID.Hex(),
		"gameID":    gameID,
		"minutes":   minutes,
		"expired":   usage.Expired,
	}).Info("Trial minutes recorded")

	return &TrialStatus{
		GameID:           gameID,
		Eligible:         !usage.Expired,
		DurationMinutes:  def.TrialDurationMinutes,
		MinutesPlayed:    usage.MinutesPlayed,
		RemainingMinutes: trialRemaining(def.TrialDurationMinutes, usage.MinutesPlayed),
		Expired:          usage.Expired,
	}, nil
}
