package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser      = "user"
	RoleDeveloper = "developer"
	RoleAdmin     = "admin"
)

// Account represents a player account on the Nexar platform.
type Account struct {
	ID               primitive.ObjectID    `bson:"_id,omitempty" json:"id"`
	Username         string                `bson:"username" json:"username"`
	Email            string                `bson:"email" json:"email"`
	HashedPassword   string                `bson:"hashed_password" json:"-"`
	AvatarURL        string                `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	Bio              string                `bson:"bio,omitempty" json:"bio,omitempty"`
	Role             string                `bson:"role" json:"role"`
	IsVerified       bool                  `bson:"is_verified" json:"is_verified"`
	VerifyToken      string                `bson:"verify_token,omitempty" json:"-"`
	ResetToken       string                `bson:"reset_token,omitempty" json:"-"`
	ResetTokenExp    time.Time             `bson:"reset_token_exp,omitempty" json:"-"`
	BalanceCents     int64                 `bson:"balance_cents" json:"balance_cents"`
	OwnedGames       []string              `bson:"owned_games,omitempty" json:"owned_games,omitempty"`
	Subscription     Subscription          `bson:"subscription" json:"subscription"`
	ParentalControls ParentalControls      `bson:"parental_controls" json:"parental_controls"`
	TrialUsage       map[string]TrialUsage `bson:"trial_usage,omitempty" json:"trial_usage,omitempty"`
	DeveloperProfile *DeveloperProfile     `bson:"developer_profile,omitempty" json:"developer_profile,omitempty"`
	LastActiveAt     time.Time             `bson:"last_active_at,omitempty" json:"last_active_at,omitempty"`
	CreatedAt        time.Time             `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time             `bson:"updated_at" json:"updated_at"`
}

// OwnsGame reports whether the game is already in the account's library.
func (a *Account) OwnsGame(gameID string) bool {
	for _, id := range a.OwnedGames {
		if id == gameID {
			return true
		}
	}
	return false
}

// Subscription is the Nexar+ membership block embedded in an account.
type Subscription struct {
	Active                 bool      `bson:"active" json:"active"`
	RenewsAt               time.Time `bson:"renews_at,omitempty" json:"renews_at,omitempty"`
	ExternalCustomerID     string    `bson:"external_customer_id,omitempty" json:"-"`
	ExternalSubscriptionID string    `bson:"external_subscription_id,omitempty" json:"-"`
}

// EffectivelyActive reports whether the membership grants benefits at the
// given instant. A zero RenewsAt means no scheduled end.
func (s Subscription) EffectivelyActive(now time.Time) bool {
	if !s.Active {
		return false
	}
	return s.RenewsAt.IsZero() || s.RenewsAt.After(now)
}

// ParentalControls is the guardian-managed block embedded in an account.
// The zero value plus CanMakePurchases=true is the disabled state.
type ParentalControls struct {
	Enabled              bool          `bson:"enabled" json:"enabled"`
	PINHash              string        `bson:"pin_hash,omitempty" json:"-"`
	PlaytimeLimitMinutes *int          `bson:"playtime_limit_minutes,omitempty" json:"playtime_limit_minutes,omitempty"`
	CanMakePurchases     bool          `bson:"can_make_purchases" json:"can_make_purchases"`
	RestrictedRatings    []string      `bson:"restricted_ratings,omitempty" json:"restricted_ratings,omitempty"`
	RequireApproval      bool          `bson:"require_approval" json:"require_approval"`
	DailyPlaytime        DailyPlaytime `bson:"daily_playtime" json:"daily_playtime"`
}

// DefaultParentalControls is the block written at registration and on
// disable.
func DefaultParentalControls() ParentalControls {
	return ParentalControls{CanMakePurchases: true}
}

// DailyPlaytime tracks minutes played on the current UTC day. Date is
// "YYYY-MM-DD"; a log on a later date resets the counter first.
type DailyPlaytime struct {
	Date          string `bson:"date,omitempty" json:"date,omitempty"`
	MinutesPlayed int    `bson:"minutes_played" json:"minutes_played"`
}

// TrialUsage tracks one game's trial consumption. Expired never clears.
type TrialUsage struct {
	MinutesPlayed int  `bson:"minutes_played" json:"minutes_played"`
	Expired       bool `bson:"expired" json:"expired"`
}

const (
	ApplicationPending  = "pending"
	ApplicationApproved = "approved"
	ApplicationRejected = "rejected"
)

// DeveloperProfile is set once an account applies for the developer
// program.
type DeveloperProfile struct {
	StudioName   string    `bson:"studio_name" json:"studio_name"`
	ContactEmail string    `bson:"contact_email" json:"contact_email"`
	Status       string    `bson:"status" json:"status"` // "pending", "approved", "rejected"
	ReviewNote   string    `bson:"review_note,omitempty" json:"review_note,omitempty"`
	AppliedAt    time.Time `bson:"applied_at" json:"applied_at"`
}

// PublicUser is the profile shape other players see.
type PublicUser struct {
	ID        primitive.ObjectID `json:"id"`
	Username  string             `json:"username"`
	AvatarURL string             `json:"avatar_url,omitempty"`
	Bio       string             `json:"bio,omitempty"`
}

func (a *Account) Public() PublicUser {
	return PublicUser{
		ID:        a.ID,
		Username:  a.Username,
		AvatarURL: a.AvatarURL,
		Bio:       a.Bio,
	}
}

// ProfilePatch carries the account fields a player may edit. Nil fields
// are left untouched.
type ProfilePatch struct {
	Username  *string `json:"username,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	Bio       *string `json:"bio,omitempty"`
}

// ParentalSettingsPatch carries the guardian-editable settings. Nil
// fields are left untouched; ClearPlaytimeLimit removes the limit.
type ParentalSettingsPatch struct {
	PlaytimeLimitMinutes *int      `json:"playtime_limit_minutes,omitempty"`
	ClearPlaytimeLimit   bool      `json:"clear_playtime_limit,omitempty"`
	CanMakePurchases     *bool     `json:"can_make_purchases,omitempty"`
	RestrictedRatings    *[]string `json:"restricted_ratings,omitempty"`
	RequireApproval      *bool     `json:"require_approval,omitempty"`
}
