package app

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shibakov/calroies-info-ms/internal/config"
	"github.com/shibakov/calroies-info-ms/internal/provider/openai"
	"github.com/shibakov/calroies-info-ms/internal/provider/openfoodfacts"
	"github.com/shibakov/calroies-info-ms/internal/provider/translate"
	"github.com/shibakov/calroies-info-ms/internal/provider/usda"
	"github.com/shibakov/calroies-info-ms/internal/service"
)

// App holds the services built from one configuration over one store.
type App struct {
	Config     config.Config
	DB         *sql.DB
	Logger     *slog.Logger
	Dictionary *service.Dictionary
	Journal    *service.Journal
	Targets    *service.Targets
	Searcher   *service.Searcher
}

// Upstreams reports which outbound integrations have what they need to run.
type Upstreams struct {
	USDA          bool `json:"usda"`
	OpenFoodFacts bool `json:"openfoodfacts"`
	Estimator     bool `json:"estimator"`
	Translator    bool `json:"translator"`
	AIFallback    bool `json:"ai_fallback"`
}

func New(cfg config.Config, sqldb *sql.DB, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	estimator := &service.OpenAIEstimator{Client: &openai.Client{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		Model:      cfg.OpenAI.Model,
		HTTPClient: &http.Client{Timeout: cfg.OpenAI.Timeout},
	}}

	dict := &service.Dictionary{DB: sqldb, Estimator: estimator, Logger: logger.With("component", "dictionary")}
	targets := &service.Targets{
		DB:       sqldb,
		Location: loc,
		Defaults: service.TargetDefaults{
			Kcal:    cfg.Targets.Kcal,
			Protein: cfg.Targets.Protein,
			Fat:     cfg.Targets.Fat,
			Carbs:   cfg.Targets.Carbs,
		},
	}
	journal := &service.Journal{
		DB:         sqldb,
		Dictionary: dict,
		Targets:    targets,
		Location:   loc,
		Logger:     logger.With("component", "journal"),
	}

	external := []service.Source{&service.USDASource{
		Client: &usda.Client{
			APIKey:     cfg.USDA.APIKey,
			BaseURL:    cfg.USDA.BaseURL,
			HTTPClient: &http.Client{Timeout: cfg.USDA.Timeout},
		},
		Timeout: cfg.USDA.Timeout,
	}}
	if cfg.OFF.Enabled {
		external = append(external, &service.OpenFoodFactsSource{
			Client: &openfoodfacts.Client{
				BaseURL:    cfg.OFF.BaseURL,
				HTTPClient: &http.Client{Timeout: cfg.OFF.Timeout},
			},
			Timeout: cfg.OFF.Timeout,
		})
	}
	searcher := &service.Searcher{
		Local:        &service.LocalSource{DB: sqldb},
		External:     external,
		SourceLang:   cfg.Translate.SourceLang,
		TargetLang:   cfg.Translate.TargetLang,
		Mode:         service.SearchMode(strings.ToLower(cfg.Search.Mode)),
		DefaultLimit: cfg.Search.LimitDefault,
		MaxLimit:     cfg.Search.LimitMax,
		Logger:       logger.With("component", "search"),
	}
	if cfg.Translate.Enabled {
		searcher.Translator = &translate.Client{
			BaseURL:    cfg.Translate.BaseURL,
			HTTPClient: &http.Client{Timeout: cfg.Translate.Timeout},
		}
	}
	if cfg.Search.AIFallback {
		searcher.AI = &service.EstimatorSource{Estimator: estimator, Timeout: cfg.OpenAI.Timeout}
	}

	return &App{
		Config:     cfg,
		DB:         sqldb,
		Logger:     logger,
		Dictionary: dict,
		Journal:    journal,
		Targets:    targets,
		Searcher:   searcher,
	}, nil
}

func (a *App) Upstreams() Upstreams {
	return Upstreams{
		USDA:          strings.TrimSpace(a.Config.USDA.APIKey) != "",
		OpenFoodFacts: a.Config.OFF.Enabled,
		Estimator:     strings.TrimSpace(a.Config.OpenAI.APIKey) != "",
		Translator:    a.Config.Translate.Enabled,
		AIFallback:    a.Config.Search.AIFallback,
	}
}
