package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	AppEnv        string `env:"APP_ENV, default=development"`
	Port          int    `env:"PORT, default=3000"`
	DBPath        string `env:"DB_PATH"`
	LogLevel      string `env:"LOG_LEVEL, default=info"`
	StatsTimezone string `env:"STATS_TIMEZONE, default=UTC"`

	USDA      USDA      `env:", prefix=USDA_"`
	OFF       OFF       `env:", prefix=OFF_"`
	OpenAI    OpenAI    `env:", prefix=OPENAI_"`
	Translate Translate `env:", prefix=TRANSLATE_"`
	Search    Search    `env:", prefix=SEARCH_"`
	Targets   Targets   `env:", prefix=DAILY_"`
}

type USDA struct {
	APIKey  string        `env:"API_KEY"`
	BaseURL string        `env:"BASE_URL, default=https://api.nal.usda.gov"`
	Timeout time.Duration `env:"TIMEOUT, default=1500ms"`
}

// OFF configures Open Food Facts, which is off unless enabled.
type OFF struct {
	Enabled bool          `env:"ENABLED, default=false"`
	BaseURL string        `env:"BASE_URL, default=https://world.openfoodfacts.org"`
	Timeout time.Duration `env:"TIMEOUT, default=2s"`
}

type OpenAI struct {
	APIKey  string        `env:"API_KEY"`
	BaseURL string        `env:"BASE_URL, default=https://api.openai.com/v1"`
	Model   string        `env:"MODEL, default=gpt-4o-mini"`
	Timeout time.Duration `env:"TIMEOUT, default=8s"`
}

type Translate struct {
	Enabled    bool          `env:"ENABLED, default=true"`
	BaseURL    string        `env:"BASE_URL, default=https://translate.googleapis.com"`
	Timeout    time.Duration `env:"TIMEOUT, default=2s"`
	SourceLang string        `env:"SOURCE_LANG, default=ru"`
	TargetLang string        `env:"TARGET_LANG, default=en"`
}

type Search struct {
	Mode         string `env:"MODE, default=fallback"`
	LimitDefault int    `env:"LIMIT_DEFAULT, default=10"`
	LimitMax     int    `env:"LIMIT_MAX, default=25"`
	AIFallback   bool   `env:"AI_FALLBACK, default=false"`
}

// Targets are the daily fallbacks used when no targets are stored. Unset
// values stay nil.
type Targets struct {
	Kcal    *float64 `env:"KCAL_TARGET, noinit"`
	Protein *float64 `env:"PROTEIN_TARGET, noinit"`
	Fat     *float64 `env:"FAT_TARGET, noinit"`
	Carbs   *float64 `env:"CARBS_TARGET, noinit"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over .env values.
func Load(ctx context.Context) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return LoadWith(ctx, envconfig.OsLookuper())
}

func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	switch strings.ToLower(c.Search.Mode) {
	case "fallback", "fanout":
	default:
		return fmt.Errorf("SEARCH_MODE must be fallback or fanout, got %q", c.Search.Mode)
	}
	if c.Search.LimitDefault <= 0 || c.Search.LimitMax <= 0 {
		return fmt.Errorf("SEARCH_LIMIT_DEFAULT and SEARCH_LIMIT_MAX must be > 0")
	}
	if c.Search.LimitDefault > c.Search.LimitMax {
		return fmt.Errorf("SEARCH_LIMIT_DEFAULT (%d) exceeds SEARCH_LIMIT_MAX (%d)", c.Search.LimitDefault, c.Search.LimitMax)
	}
	for name, v := range map[string]*float64{
		"DAILY_KCAL_TARGET":    c.Targets.Kcal,
		"DAILY_PROTEIN_TARGET": c.Targets.Protein,
		"DAILY_FAT_TARGET":     c.Targets.Fat,
		"DAILY_CARBS_TARGET":   c.Targets.Carbs,
	} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0) {
			return fmt.Errorf("%s must be a finite number >= 0", name)
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location is the timezone calendar days are computed in.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.StatsTimezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid STATS_TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}
