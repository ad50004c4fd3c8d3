package model

import "time"

// Source tags where a FoodRecord came from.
type Source string

const (
	SourceLocal      Source = "local"
	SourceExternalDB Source = "external_db"
	SourceAI         Source = "ai"
)

// Priority orders sources for ranking; lower ranks first.
func (s Source) Priority() int {
	switch s {
	case SourceLocal:
		return 1
	case SourceExternalDB:
		return 2
	case SourceAI:
		return 3
	default:
		return 99
	}
}

// EntrySource records how a dictionary entry was created.
type EntrySource string

const (
	EntrySourceManual      EntrySource = "manual"
	EntrySourceExternal    EntrySource = "external"
	EntrySourceAIEstimated EntrySource = "ai-estimated"
)

func (s EntrySource) Valid() bool {
	switch s {
	case EntrySourceManual, EntrySourceExternal, EntrySourceAIEstimated:
		return true
	default:
		return false
	}
}

// Macros are nutrition values, either per 100g or absolute depending on context.
type Macros struct {
	Kcal    float64 `json:"kcal"`
	Protein float64 `json:"protein"`
	Fat     float64 `json:"fat"`
	Carbs   float64 `json:"carbs"`
}

// FoodRecord is a search candidate. It is never persisted.
type FoodRecord struct {
	Source     Source         `json:"source"`
	ID         string         `json:"id"`
	Product    string         `json:"product"`
	Brand      string         `json:"brand,omitempty"`
	Kcal100    float64        `json:"kcal_100"`
	Protein100 float64        `json:"protein_100"`
	Fat100     float64        `json:"fat_100"`
	Carbs100   float64        `json:"carbs_100"`
	Meta       map[string]any `json:"meta,omitempty"`
}

type DictionaryEntry struct {
	ID          int64       `json:"id"`
	Product     string      `json:"product"`
	ProductNorm string      `json:"-"`
	Source      EntrySource `json:"source"`
	Kcal100     float64     `json:"kcal_100"`
	Protein100  float64     `json:"protein_100"`
	Fat100      float64     `json:"fat_100"`
	Carbs100    float64     `json:"carbs_100"`
	UsageCount  int         `json:"usage_count"`
	LastUsedAt  *time.Time  `json:"last_used_at"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (e DictionaryEntry) Macros() Macros {
	return Macros{Kcal: e.Kcal100, Protein: e.Protein100, Fat: e.Fat100, Carbs: e.Carbs100}
}

type LogEntry struct {
	ID            int64     `json:"id"`
	ProductID     int64     `json:"product_id"`
	QuantityGrams float64   `json:"quantity_grams"`
	MealType      string    `json:"meal_type"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// StatsItem is one log entry joined with its dictionary macros.
type StatsItem struct {
	ID            int64     `json:"id"`
	ProductID     int64     `json:"product_id"`
	Product       string    `json:"product"`
	MealType      string    `json:"meal_type"`
	QuantityGrams float64   `json:"quantity_grams"`
	Kcal          float64   `json:"kcal"`
	Protein       float64   `json:"protein"`
	Fat           float64   `json:"fat"`
	Carbs         float64   `json:"carbs"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type DailyStats struct {
	Date      string      `json:"date"`
	Items     []StatsItem `json:"items"`
	Totals    Macros      `json:"macros_total"`
	Targets   *Macros     `json:"targets"`
	Remaining *Macros     `json:"macros_left"`
}

type DailyTargets struct {
	ID            int64     `json:"id"`
	Kcal          float64   `json:"kcal"`
	ProteinG      float64   `json:"protein_g"`
	FatG          float64   `json:"fat_g"`
	CarbsG        float64   `json:"carbs_g"`
	EffectiveDate string    `json:"effective_date"`
	CreatedAt     time.Time `json:"created_at"`
}
