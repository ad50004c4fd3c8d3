package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shibakov/calroies-info-ms/internal/model"
	"github.com/shibakov/calroies-info-ms/internal/provider/openai"
	"github.com/shibakov/calroies-info-ms/internal/provider/openfoodfacts"
	"github.com/shibakov/calroies-info-ms/internal/provider/usda"
)

// Source is one place food records can come from. A failing source returns
// no records and reports why in Err; it never fails the search.
type Source interface {
	Name() model.Source
	Search(ctx context.Context, query string, limit int) SourceResult
}

type SourceResult struct {
	Records []model.FoodRecord
	Err     error
}

// MacroEstimator produces per-100g macros for a free-text product name.
type MacroEstimator interface {
	EstimateMacros(ctx context.Context, product string) (model.Macros, error)
}

type labeled interface {
	Label() string
}

func sourceLabel(s Source) string {
	if l, ok := s.(labeled); ok {
		return l.Label()
	}
	return string(s.Name())
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// LocalSource searches the food dictionary.
type LocalSource struct {
	DB *sql.DB
}

func (s *LocalSource) Name() model.Source { return model.SourceLocal }

func (s *LocalSource) Search(ctx context.Context, query string, limit int) SourceResult {
	q := normalizeName(query)
	if q == "" {
		return SourceResult{}
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, product, source, kcal_100, protein_100, fat_100, carbs_100, usage_count
FROM food_dict
WHERE product_norm LIKE ? ESCAPE '\'
ORDER BY
  CASE WHEN product_norm LIKE ? ESCAPE '\' THEN 0 ELSE 1 END,
  usage_count DESC,
  last_used_at IS NULL,
  last_used_at DESC,
  product_norm ASC
LIMIT ?
`, "%"+escapeLike(q)+"%", escapeLike(q)+"%", limit)
	if err != nil {
		return SourceResult{Err: fmt.Errorf("search local dictionary: %w", err)}
	}
	defer rows.Close()

	out := make([]model.FoodRecord, 0, limit)
	for rows.Next() {
		var (
			id       int64
			entrySrc string
			usage    int
			rec      model.FoodRecord
		)
		if err := rows.Scan(&id, &rec.Product, &entrySrc, &rec.Kcal100, &rec.Protein100, &rec.Fat100, &rec.Carbs100, &usage); err != nil {
			return SourceResult{Err: fmt.Errorf("scan local dictionary: %w", err)}
		}
		rec.Source = model.SourceLocal
		rec.ID = strconv.FormatInt(id, 10)
		rec.Meta = map[string]any{"entry_source": entrySrc, "usage_count": usage}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return SourceResult{Err: fmt.Errorf("iterate local dictionary: %w", err)}
	}
	return SourceResult{Records: out}
}

// USDASource searches FoodData Central.
type USDASource struct {
	Client  *usda.Client
	Timeout time.Duration
}

func (s *USDASource) Name() model.Source { return model.SourceExternalDB }
func (s *USDASource) Label() string      { return "usda" }

func (s *USDASource) Search(ctx context.Context, query string, limit int) SourceResult {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	foods, err := s.Client.SearchFoods(ctx, query, limit)
	if err != nil {
		return SourceResult{Err: fmt.Errorf("usda search: %w", err)}
	}
	out := make([]model.FoodRecord, 0, len(foods))
	for _, f := range foods {
		if strings.TrimSpace(f.Description) == "" {
			continue
		}
		out = append(out, model.FoodRecord{
			Source:     model.SourceExternalDB,
			ID:         fmt.Sprintf("usda_%d", f.FDCID),
			Product:    f.Description,
			Brand:      f.Brand,
			Kcal100:    f.Calories,
			Protein100: f.ProteinG,
			Fat100:     f.FatG,
			Carbs100:   f.CarbsG,
			Meta:       map[string]any{"fdc_id": f.FDCID, "data_type": f.DataType},
		})
	}
	return SourceResult{Records: out}
}

// OpenFoodFactsSource searches Open Food Facts products.
type OpenFoodFactsSource struct {
	Client  *openfoodfacts.Client
	Timeout time.Duration
}

func (s *OpenFoodFactsSource) Name() model.Source { return model.SourceExternalDB }
func (s *OpenFoodFactsSource) Label() string      { return "openfoodfacts" }

func (s *OpenFoodFactsSource) Search(ctx context.Context, query string, limit int) SourceResult {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	products, err := s.Client.SearchFoods(ctx, query, limit)
	if err != nil {
		return SourceResult{Err: fmt.Errorf("openfoodfacts search: %w", err)}
	}
	out := make([]model.FoodRecord, 0, len(products))
	for _, p := range products {
		out = append(out, model.FoodRecord{
			Source:     model.SourceExternalDB,
			ID:         "off_" + p.Code,
			Product:    p.Description,
			Brand:      p.Brand,
			Kcal100:    p.Calories,
			Protein100: p.ProteinG,
			Fat100:     p.FatG,
			Carbs100:   p.CarbsG,
			Meta:       map[string]any{"code": p.Code},
		})
	}
	return SourceResult{Records: out}
}

// EstimatorSource turns the query itself into a single estimated record.
type EstimatorSource struct {
	Estimator MacroEstimator
	Timeout   time.Duration
}

func (s *EstimatorSource) Name() model.Source { return model.SourceAI }

func (s *EstimatorSource) Search(ctx context.Context, query string, _ int) SourceResult {
	product := strings.TrimSpace(query)
	if product == "" {
		return SourceResult{}
	}
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	m, err := s.Estimator.EstimateMacros(ctx, product)
	if err != nil {
		return SourceResult{Err: fmt.Errorf("estimate macros: %w", err)}
	}
	if err := validateMacros(m); err != nil {
		return SourceResult{Err: fmt.Errorf("estimate macros: %w", err)}
	}
	return SourceResult{Records: []model.FoodRecord{{
		Source:     model.SourceAI,
		ID:         "ai_" + normalizeName(product),
		Product:    product,
		Kcal100:    m.Kcal,
		Protein100: m.Protein,
		Fat100:     m.Fat,
		Carbs100:   m.Carbs,
		Meta:       map[string]any{"estimated": true},
	}}}
}

// OpenAIEstimator adapts the chat completions client to MacroEstimator.
type OpenAIEstimator struct {
	Client *openai.Client
}

func (e *OpenAIEstimator) EstimateMacros(ctx context.Context, product string) (model.Macros, error) {
	est, err := e.Client.EstimateMacros(ctx, product)
	if err != nil {
		return model.Macros{}, err
	}
	return model.Macros{Kcal: est.Kcal, Protein: est.Protein, Fat: est.Fat, Carbs: est.Carbs}, nil
}
