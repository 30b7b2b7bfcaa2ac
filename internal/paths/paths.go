// Package paths provides centralized path resolution for minutes.
// This package has NO internal imports (only stdlib) to avoid import cycles.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigFileName is the default config file name.
const ConfigFileName = "minutes.json"

// BaseDir returns the minutes base directory (~/.minutes).
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".minutes"), nil
}

// DataPath returns a path within the minutes data directory (~/.minutes/<subpath>).
func DataPath(subpath string) (string, error) {
	base, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, subpath), nil
}

// ConfigPath returns the active config path.
// Priority: explicit > ./minutes.{json,toml,yaml} > ~/.minutes/minutes.json
// Returns ("", nil) if no config exists - this is a valid state, not an error.
func ConfigPath(explicit string) (string, error) {
	if explicit != "" {
		expanded, err := ExpandTilde(explicit)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(expanded); err != nil {
			return "", fmt.Errorf("config file %s: %w", expanded, err)
		}
		return filepath.Abs(expanded)
	}

	for _, local := range []string{ConfigFileName, "minutes.toml", "minutes.yaml", "minutes.yml"} {
		if _, err := os.Stat(local); err == nil {
			absPath, err := filepath.Abs(local)
			if err != nil {
				return "", fmt.Errorf("failed to get absolute path: %w", err)
			}
			return absPath, nil
		}
	}

	globalPath, err := DataPath(ConfigFileName)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(globalPath); err == nil {
		return globalPath, nil
	}

	return "", nil
}

// DefaultConfigPath returns the default location for new configs (~/.minutes/minutes.json).
func DefaultConfigPath() (string, error) {
	return DataPath(ConfigFileName)
}

// DefaultMediaDir returns the default upload directory (~/.minutes/media).
func DefaultMediaDir() (string, error) {
	return DataPath("media")
}

// EnsureDir creates a directory if it doesn't exist.
// Uses 0750 permissions (owner: rwx, group: rx, other: none).
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// EnsureParentDir creates the parent directory of a file path if it doesn't exist.
func EnsureParentDir(filePath string) error {
	return EnsureDir(filepath.Dir(filePath))
}

// ExpandTilde expands a path that starts with ~ to the user's home directory.
// Returns the path unchanged if it doesn't start with ~.
func ExpandTilde(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	if len(path) == 1 {
		return home, nil
	}
	return filepath.Join(home, path[1:]), nil
}
