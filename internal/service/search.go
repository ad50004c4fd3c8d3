package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/shibakov/calroies-info-ms/internal/model"
)

type SearchMode string

const (
	// SearchModeFallback asks local, then external databases, then the
	// estimator, stopping at the first tier that returns anything.
	SearchModeFallback SearchMode = "fallback"
	// SearchModeFanout asks every source at once and merges the lot.
	SearchModeFanout SearchMode = "fanout"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 25
	backTranslateLimit = 4
)

// Translator translates short food names between languages.
type Translator interface {
	Translate(ctx context.Context, text, from, to string) (string, error)
}

type SearchCounts struct {
	Local      int `json:"local"`
	ExternalDB int `json:"external_db"`
	AI         int `json:"ai"`
	Total      int `json:"total"`
}

type SearchResult struct {
	Query         string             `json:"query"`
	ExternalQuery string             `json:"external_query,omitempty"`
	Limit         int                `json:"limit"`
	Status        string             `json:"status"`
	Tier          string             `json:"source,omitempty"`
	Counts        SearchCounts       `json:"counts"`
	Degraded      []string           `json:"degraded,omitempty"`
	Results       []model.FoodRecord `json:"results"`
}

type Searcher struct {
	Local      Source
	External   []Source
	AI         Source
	Translator Translator
	SourceLang string
	TargetLang string
	Mode       SearchMode
	// DefaultLimit and MaxLimit fall back to 10 and 25 when unset.
	DefaultLimit int
	MaxLimit     int
	Logger       *slog.Logger
}

type searchTier struct {
	name      string
	sources   []Source
	translate bool
}

func (s *Searcher) tiers() []searchTier {
	if s.Mode == SearchModeFanout {
		all := make([]Source, 0, len(s.External)+2)
		if s.Local != nil {
			all = append(all, s.Local)
		}
		all = append(all, s.External...)
		if s.AI != nil {
			all = append(all, s.AI)
		}
		return []searchTier{{name: "fanout", sources: all}}
	}
	tiers := make([]searchTier, 0, 3)
	if s.Local != nil {
		tiers = append(tiers, searchTier{name: string(model.SourceLocal), sources: []Source{s.Local}})
	}
	if len(s.External) > 0 {
		tiers = append(tiers, searchTier{name: string(model.SourceExternalDB), sources: s.External, translate: true})
	}
	if s.AI != nil {
		tiers = append(tiers, searchTier{name: string(model.SourceAI), sources: []Source{s.AI}})
	}
	return tiers
}

func (s *Searcher) clampLimit(limit int) int {
	def, max := s.DefaultLimit, s.MaxLimit
	if def <= 0 {
		def = defaultSearchLimit
	}
	if max <= 0 {
		max = maxSearchLimit
	}
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return limit
}

func (s *Searcher) langs() (string, string) {
	from, to := s.SourceLang, s.TargetLang
	if from == "" {
		from = "ru"
	}
	if to == "" {
		to = "en"
	}
	return from, to
}

func (s *Searcher) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Search resolves a free-text query into ranked food records. Source
// failures never fail the search; they are listed in Degraded.
func (s *Searcher) Search(ctx context.Context, query string, limit int) (SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchResult{}, validationErrorf("query is required")
	}
	limit = s.clampLimit(limit)

	res := SearchResult{Query: query, Limit: limit, Status: "not_found", Results: []model.FoodRecord{}}
	for _, tier := range s.tiers() {
		tierQuery := query
		translated := false
		if tier.translate && s.Translator != nil && hasNonLatinLetters(query) {
			from, to := s.langs()
			tierQuery, translated = s.translate(ctx, query, from, to)
			tierQuery = strings.ToLower(tierQuery)
		}
		if tier.translate {
			res.ExternalQuery = tierQuery
		}

		lists, counts, degraded := s.runTier(ctx, tier, tierQuery, limit)
		res.Degraded = append(res.Degraded, degraded...)
		merged := MergeRecords(tierQuery, lists, limit)
		if len(merged) == 0 {
			continue
		}
		if translated {
			s.translateBack(ctx, merged)
		}
		counts.Total = len(merged)
		res.Status = "ok"
		res.Tier = tier.name
		res.Counts = counts
		res.Results = merged
		break
	}
	return res, nil
}

func (s *Searcher) runTier(ctx context.Context, tier searchTier, query string, limit int) ([][]model.FoodRecord, SearchCounts, []string) {
	results := make([]SourceResult, len(tier.sources))
	var g errgroup.Group
	for i, src := range tier.sources {
		i, src := i, src
		g.Go(func() error {
			results[i] = src.Search(ctx, query, limit)
			return nil
		})
	}
	_ = g.Wait()

	lists := make([][]model.FoodRecord, 0, len(results))
	counts := SearchCounts{}
	degraded := make([]string, 0)
	for i, r := range results {
		src := tier.sources[i]
		if r.Err != nil {
			label := sourceLabel(src)
			degraded = append(degraded, label)
			s.logger().Warn("search source degraded", "source", label, "query", query, "error", r.Err.Error())
		}
		switch src.Name() {
		case model.SourceLocal:
			counts.Local += len(r.Records)
		case model.SourceExternalDB:
			counts.ExternalDB += len(r.Records)
		case model.SourceAI:
			counts.AI += len(r.Records)
		}
		lists = append(lists, r.Records)
	}
	return lists, counts, degraded
}

// translate returns text unchanged when translation fails.
func (s *Searcher) translate(ctx context.Context, text, from, to string) (string, bool) {
	out, err := s.Translator.Translate(ctx, text, from, to)
	if err != nil || strings.TrimSpace(out) == "" {
		if err != nil {
			s.logger().Warn("translate failed", "from", from, "to", to, "error", err.Error())
		}
		return text, false
	}
	return out, true
}

func (s *Searcher) translateBack(ctx context.Context, records []model.FoodRecord) {
	var g errgroup.Group
	g.SetLimit(backTranslateLimit)
	for i := range records {
		if records[i].Source == model.SourceLocal {
			continue
		}
		i := i
		g.Go(func() error {
			from, to := s.langs()
			records[i].Product, _ = s.translate(ctx, records[i].Product, to, from)
			return nil
		})
	}
	_ = g.Wait()
}

func hasNonLatinLetters(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
			return true
		}
	}
	return false
}
