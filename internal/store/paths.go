package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// GlobalTreesimPath returns the path to the global .treesim directory.
// On Unix: ~/.treesim
// On Windows: %USERPROFILE%\.treesim
func GlobalTreesimPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".treesim"), nil
}

// DefaultDBPath returns the run database path used when none is configured.
func DefaultDBPath() (string, error) {
	dir, err := GlobalTreesimPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "runs.db"), nil
}

// EnsureGlobalTreesimDir creates the global .treesim directory if it doesn't exist.
// Returns nil if the directory already exists or was successfully created.
func EnsureGlobalTreesimDir() error {
	globalPath, err := GlobalTreesimPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(globalPath, 0755); err != nil {
		return fmt.Errorf("failed to create global .treesim directory: %w", err)
	}

	return nil
}
