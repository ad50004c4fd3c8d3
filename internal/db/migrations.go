package db

import (
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		name:    "food_dictionary",
		sql: `
CREATE TABLE IF NOT EXISTS food_dict (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  product TEXT NOT NULL,
  product_norm TEXT NOT NULL UNIQUE,
  source TEXT NOT NULL DEFAULT 'manual' CHECK(source IN ('manual', 'external', 'ai-estimated')),
  kcal_100 REAL NOT NULL DEFAULT 0 CHECK(kcal_100 >= 0),
  protein_100 REAL NOT NULL DEFAULT 0 CHECK(protein_100 >= 0),
  fat_100 REAL NOT NULL DEFAULT 0 CHECK(fat_100 >= 0),
  carbs_100 REAL NOT NULL DEFAULT 0 CHECK(carbs_100 >= 0),
  usage_count INTEGER NOT NULL DEFAULT 0 CHECK(usage_count >= 0),
  last_used_at TEXT,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_food_dict_usage ON food_dict(usage_count DESC, last_used_at DESC);
`,
	},
	{
		version: 2,
		name:    "food_log",
		sql: `
CREATE TABLE IF NOT EXISTS food_log (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  product_id INTEGER NOT NULL,
  meal_type TEXT NOT NULL DEFAULT 'unspecified',
  quantity_g REAL NOT NULL CHECK(quantity_g > 0),
  occurred_at TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  FOREIGN KEY(product_id) REFERENCES food_dict(id)
);

CREATE INDEX IF NOT EXISTS idx_food_log_occurred_at ON food_log(occurred_at, id);
CREATE INDEX IF NOT EXISTS idx_food_log_product_id ON food_log(product_id);
`,
	},
	{
		version: 3,
		name:    "daily_targets",
		sql: `
CREATE TABLE IF NOT EXISTS daily_targets (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  kcal REAL NOT NULL CHECK(kcal >= 0),
  protein_g REAL NOT NULL CHECK(protein_g >= 0),
  fat_g REAL NOT NULL CHECK(fat_g >= 0),
  carbs_g REAL NOT NULL CHECK(carbs_g >= 0),
  effective_date TEXT NOT NULL UNIQUE,
  created_at TEXT NOT NULL
);
`,
	},
}

// LatestVersion is the schema version a fully migrated database reports.
func LatestVersion() int {
	return migrations[len(migrations)-1].version
}

func ApplyMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`); err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRow(`SELECT 1 FROM schema_migrations WHERE version = ?`, m.version).Scan(&exists)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("check migration version %d: %w", m.version, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration tx: %w", err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration version %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version, name) VALUES(?, ?)`, m.version, m.name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration version %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration version %d: %w", m.version, err)
		}
	}
	return nil
}
