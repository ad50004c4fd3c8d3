package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	appDirName = "calories"
	dbFileName = "calories.db"
)

func DefaultDBPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, appDirName, dbFileName), nil
}

// ResolveDBPath picks the first non-empty of flag, env and the default path.
func ResolveDBPath(flag, env string) (string, error) {
	for _, p := range []string{flag, env} {
		if p = strings.TrimSpace(p); p != "" {
			return p, nil
		}
	}
	return DefaultDBPath()
}

func EnsureDBDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	return nil
}
