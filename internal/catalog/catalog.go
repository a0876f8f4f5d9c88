// Package catalog holds the first-party game catalog and the
// achievement catalog. Both are configuration, not database rows: they
// load once at startup from a YAML file and never change while the
// server runs.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// GameDef describes one store entry.
type GameDef struct {
	ID                       string `mapstructure:"id"`
	Title                    string `mapstructure:"title"`
	Genre                    string `mapstructure:"genre"`
	PriceCents               int64  `mapstructure:"price_cents"`
	Rating                   string `mapstructure:"rating"` // may be a legacy label, normalized on read
	TrialDurationMinutes     int    `mapstructure:"trial_duration_minutes"`
	NexarPlusDiscountPercent int    `mapstructure:"nexar_plus_discount_percent"`
	InSubscriptionCollection bool   `mapstructure:"in_subscription_collection"`
}

// HasTrial reports whether the game offers a time-boxed trial.
func (g GameDef) HasTrial() bool {
	return g.TrialDurationMinutes > 0
}

// AchievementDef describes one unlockable achievement.
type AchievementDef struct {
	ID          string `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	Icon        string `mapstructure:"icon"`
}

// Achievement ids referenced by the unlock trigger sites.
const (
	AchFirstLogin      = "first_login"
	AchProfileComplete = "profile_complete"
	AchFirstFriend     = "first_friend"
	AchSocialButterfly = "social_butterfly"
	AchMessenger       = "messenger"
	AchChatMaster      = "chat_master"
	AchDeveloper       = "developer"
)

func fixedAchievementIDs() []string {
	return []string{
		AchFirstLogin,
		AchProfileComplete,
		AchFirstFriend,
		AchSocialButterfly,
		AchMessenger,
		AchChatMaster,
		AchDeveloper,
	}
}

// Catalog is the loaded pair of catalogs with id lookups.
type Catalog struct {
	games        []GameDef
	achievements []AchievementDef
	gameByID     map[string]GameDef
	achByID      map[string]AchievementDef
}

// Load reads the catalog file at path. An empty path or a missing file
// falls back to the compiled-in defaults; a file that exists but cannot
// be parsed is an error.
func Load(path string) (*Catalog, error) {
	games := defaultGames()
	achievements := defaultAchievements()

	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			logrus.WithField("path", path).Info("Catalog file not found, using built-in catalog")
		} else if err != nil {
			return nil, fmt.Errorf("checking catalog file: %w", err)
		} else {
			v := viper.New()
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading catalog file: %w", err)
			}

			var fileGames []GameDef
			if err := v.UnmarshalKey("games", &fileGames); err != nil {
				return nil, fmt.Errorf("parsing games catalog: %w", err)
			}
			if len(fileGames) > 0 {
				games = fileGames
			}

			var fileAchievements []AchievementDef
			if err := v.UnmarshalKey("achievements", &fileAchievements); err != nil {
				return nil, fmt.Errorf("parsing achievements catalog: %w", err)
			}
			if len(fileAchievements) > 0 {
				achievements = fileAchievements
			}
		}
	}

	c := &Catalog{
		games:        games,
		achievements: achievements,
		gameByID:     make(map[string]GameDef, len(games)),
		achByID:      make(map[string]AchievementDef, len(achievements)),
	}

	for _, g := range games {
		if g.ID == "" {
			return nil, fmt.Errorf("game catalog entry %q has no id", g.Title)
		}
		if _, dup := c.gameByID[g.ID]; dup {
			return nil, fmt.Errorf("duplicate game id %q in catalog", g.ID)
		}
		if g.PriceCents < 0 {
			return nil, fmt.Errorf("game %q has negative price", g.ID)
		}
		if g.NexarPlusDiscountPercent < 0 || g.NexarPlusDiscountPercent > 100 {
			return nil, fmt.Errorf("game %q discount must be between 0 and 100", g.ID)
		}
		if g.TrialDurationMinutes < 0 {
			return nil, fmt.Errorf("game %q has negative trial duration", g.ID)
		}
		c.gameByID[g.ID] = g
	}

	for _, a := range achievements {
		if a.ID == "" {
			return nil, fmt.Errorf("achievement catalog entry %q has no id", a.Name)
		}
		if _, dup := c.achByID[a.ID]; dup {
			return nil, fmt.Errorf("duplicate achievement id %q in catalog", a.ID)
		}
		c.achByID[a.ID] = a
	}

	// The unlock trigger sites reference these ids directly.
	for _, id := range fixedAchievementIDs() {
		if _, ok := c.achByID[id]; !ok {
			return nil, fmt.Errorf("achievement catalog is missing %q", id)
		}
	}

	logrus.WithFields(logrus.Fields{
		"games":        len(games),
		"achievements": len(achievements),
	}).Info("Catalog loaded")
	return c, nil
}

// Games returns every catalog entry. Callers must not modify it.
func (c *Catalog) Games() []GameDef {
	return c.games
}

func (c *Catalog) Game(id string) (GameDef, bool) {
	g, ok := c.gameByID[id]
	return g, ok
}

// Achievements returns every achievement definition. Callers must not
// modify it.
func (c *Catalog) Achievements() []AchievementDef {
	return c.achievements
}

func (c *Catalog) Achievement(id string) (AchievementDef, bool) {
	a, ok := c.achByID[id]
	return a, ok
}

func defaultGames() []GameDef {
	return []GameDef{
		{
			ID:                       "nova-drift",
			Title:                    "Nova Drift",
			Genre:                    "roguelite",
			PriceCents:               4999,
			Rating:                   "Everyone",
			NexarPlusDiscountPercent: 20,
			InSubscriptionCollection: true,
		},
		{
			ID:                       "starfall-arena",
			Title:                    "Starfall Arena",
			Genre:                    "shooter",
			PriceCents:               2999,
			Rating:                   "Teen",
			TrialDurationMinutes:     120,
			NexarPlusDiscountPercent: 10,
			InSubscriptionCollection: true,
		},
		{
			ID:                   "iron-dominion",
			Title:                "Iron Dominion",
			Genre:                "strategy",
			PriceCents:           5999,
			Rating:               "Mature",
			TrialDurationMinutes: 60,
		},
		{
			ID:         "pixel-farm",
			Title:      "Pixel Farm",
			Genre:      "sim",
			PriceCents: 1499,
			Rating:     "7+",
		},
		{
			ID:                       "midnight-protocol",
			Title:                    "Midnight Protocol",
			Genre:                    "stealth",
			PriceCents:               3999,
			Rating:                   "18+",
			NexarPlusDiscountPercent: 15,
		},
	}
}

func defaultAchievements() []AchievementDef {
	return []AchievementDef{
		{ID: AchFirstLogin, Name: "First Login", Description: "Sign in to Nexar for the first time.", Icon: "badge-login"},
		{ID: AchProfileComplete, Name: "Identity Established", Description: "Fill out your avatar and bio.", Icon: "badge-profile"},
		{ID: AchFirstFriend, Name: "First Friend", Description: "Make your first friend.", Icon: "badge-friend"},
		{ID: AchSocialButterfly, Name: "Social Butterfly", Description: "Reach five friends.", Icon: "badge-social"},
		{ID: AchMessenger, Name: "Messenger", Description: "Send your first chat message.", Icon: "badge-chat"},
		{ID: AchChatMaster, Name: "Chat Master", Description: "Send fifty chat messages.", Icon: "badge-chat-gold"},
		{ID: AchDeveloper, Name: "Creator", Description: "Get a game approved for the Nexar store.", Icon: "badge-dev"},
	}
}
