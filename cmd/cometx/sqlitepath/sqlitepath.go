// Package sqlitepath finds an existing conversation history database for
// commands that only read history.
package sqlitepath

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the history database name inside a .cometx/ directory.
const FileName = "history.db"

// ErrNotFound is returned when no history database exists.
var ErrNotFound = errors.New("could not find a cometx history database; pass --sqlite")

// ResolveSQLitePath returns override when set, then $COMETX_DB, then the
// first existing history database among configDir and the usual locations.
func ResolveSQLitePath(override, configDir string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("COMETX_DB")); envPath != "" {
		return envPath, nil
	}

	for _, candidate := range sqliteCandidates(configDir) {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", ErrNotFound
}

func sqliteCandidates(configDir string) []string {
	candidates := []string{
		filepath.Join(".cometx", FileName),
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".cometx", FileName))
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append(candidates, filepath.Join(xdgHome, "cometx", FileName))
	}

	if configDir != "" {
		candidates = append([]string{filepath.Join(configDir, FileName)}, candidates...)
	}

	return candidates
}
