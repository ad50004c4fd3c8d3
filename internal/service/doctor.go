package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type DoctorReport struct {
	OrphanLogRows      int `json:"orphan_log_rows"`
	UnnormalizedNames  int `json:"unnormalized_names"`
	InvalidTimestamps  int `json:"invalid_timestamps"`
	FixedNames         int `json:"fixed_names,omitempty"`
	UnfixableNameClash int `json:"unfixable_name_clash,omitempty"`
}

func (r DoctorReport) Healthy() bool {
	return r.OrphanLogRows == 0 && r.UnnormalizedNames == 0 && r.InvalidTimestamps == 0
}

type BackupInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
	SizeBytes int64     `json:"size_bytes"`
}

// RunDoctor checks store integrity. With fix set it re-derives product_norm
// for entries whose stored key drifted, unless that would collide.
func RunDoctor(ctx context.Context, db *sql.DB, fix bool) (DoctorReport, error) {
	report := DoctorReport{}
	if err := db.QueryRowContext(ctx, `
SELECT COUNT(1) FROM food_log l LEFT JOIN food_dict d ON d.id = l.product_id WHERE d.id IS NULL
`).Scan(&report.OrphanLogRows); err != nil {
		return report, fmt.Errorf("doctor orphan check: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT occurred_at FROM food_log`)
	if err != nil {
		return report, fmt.Errorf("doctor timestamp query: %w", err)
	}
	report.InvalidTimestamps, err = countInvalidTimestamps(rows)
	_ = rows.Close()
	if err != nil {
		return report, err
	}

	rows, err = db.QueryContext(ctx, `SELECT id, product, product_norm FROM food_dict`)
	if err != nil {
		return report, fmt.Errorf("doctor name query: %w", err)
	}
	drifted, err := findNameDrift(rows)
	_ = rows.Close()
	if err != nil {
		return report, err
	}
	report.UnnormalizedNames = len(drifted)

	if !fix || len(drifted) == 0 {
		return report, nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return report, fmt.Errorf("doctor fix begin tx: %w", err)
	}
	for _, d := range drifted {
		var taken int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM food_dict WHERE product_norm = ? AND id <> ?`, d.norm, d.id).Scan(&taken); err != nil {
			_ = tx.Rollback()
			return report, fmt.Errorf("doctor fix clash check %d: %w", d.id, err)
		}
		if taken > 0 {
			report.UnfixableNameClash++
			continue
		}
		if _, err := tx.ExecContext(ctx, `UPDATE food_dict SET product_norm = ? WHERE id = ?`, d.norm, d.id); err != nil {
			_ = tx.Rollback()
			return report, fmt.Errorf("doctor fix name row %d: %w", d.id, err)
		}
		report.FixedNames++
	}
	if err := tx.Commit(); err != nil {
		return report, fmt.Errorf("doctor fix commit: %w", err)
	}
	return report, nil
}

type rowIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

type nameDrift struct {
	id   int64
	norm string
}

func countInvalidTimestamps(rows rowIter) (int, error) {
	invalid := 0
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return invalid, fmt.Errorf("doctor timestamp scan: %w", err)
		}
		if _, err := parseTimestamp(raw); err != nil {
			invalid++
		}
	}
	if err := rows.Err(); err != nil {
		return invalid, fmt.Errorf("doctor timestamp iterate: %w", err)
	}
	return invalid, nil
}

// findNameDrift lists entries whose product_norm no longer matches product.
func findNameDrift(rows rowIter) ([]nameDrift, error) {
	drifted := make([]nameDrift, 0)
	for rows.Next() {
		var (
			id            int64
			product, norm string
		)
		if err := rows.Scan(&id, &product, &norm); err != nil {
			return nil, fmt.Errorf("doctor name scan: %w", err)
		}
		if want := normalizeName(product); want != norm {
			drifted = append(drifted, nameDrift{id: id, norm: want})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("doctor name iterate: %w", err)
	}
	return drifted, nil
}

// CreateBackup writes a consistent snapshot of the open database to outPath
// and a .sha256 sidecar next to it.
func CreateBackup(ctx context.Context, db *sql.DB, outPath string) (BackupInfo, error) {
	if strings.TrimSpace(outPath) == "" {
		return BackupInfo{}, fmt.Errorf("backup output path is required")
	}
	if _, err := os.Stat(outPath); err == nil {
		return BackupInfo{}, fmt.Errorf("backup target %s already exists", outPath)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return BackupInfo{}, fmt.Errorf("create backup directory: %w", err)
	}
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, outPath); err != nil {
		return BackupInfo{}, fmt.Errorf("snapshot database: %w", err)
	}
	checksum, err := fileSHA256(outPath)
	if err != nil {
		return BackupInfo{}, err
	}
	if err := os.WriteFile(outPath+".sha256", []byte(checksum+"\n"), 0o644); err != nil {
		return BackupInfo{}, fmt.Errorf("write checksum file: %w", err)
	}
	st, err := os.Stat(outPath)
	if err != nil {
		return BackupInfo{}, fmt.Errorf("stat backup: %w", err)
	}
	return BackupInfo{Path: outPath, Checksum: checksum, CreatedAt: st.ModTime(), SizeBytes: st.Size()}, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
