// Package dotdir resolves the .cometx/ directory that holds config.toml,
// credentials.toml and the conversation history database.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the cometx directory.
	dirName = ".cometx"

	// HomeEnvVar points at an explicit cometx directory.
	HomeEnvVar = "COMETX_HOME"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path to a .cometx/ directory, creating it when
// missing. Order of precedence is as follows:
//  1. Provided override
//  2. $COMETX_HOME
//  3. Local ./.cometx/ dir
//  4. Home ~/.cometx/ dir
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case os.Getenv(HomeEnvVar) != "":
		dir = os.Getenv(HomeEnvVar)

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, dirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating cometx directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// Path returns the absolute path of name inside the resolved directory.
func (m *Manager) Path(overrideDir, name string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// localDirExists checks whether a .cometx/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
