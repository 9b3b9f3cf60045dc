// Package workdir locates the per-user directory the CLI keeps its files in.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnvOverride names the variable that relocates the working directory.
const EnvOverride = "ONBOARD_HOME"

// LogFile is the default CLI log file name.
const LogFile = "onboard.log"

// Root returns the base directory for CLI files. It resolves to
// $ONBOARD_HOME when set, otherwise:
//
//	$XDG_STATE_HOME/onboard or $HOME/.local/state/onboard
func Root() (string, error) {
	if dir := os.Getenv(EnvOverride); dir != "" {
		return dir, nil
	}

	if state := os.Getenv("XDG_STATE_HOME"); state != "" {
		return filepath.Join(state, "onboard"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ".local", "state", "onboard"), nil
}

// FilePath returns the full path for filename in the working directory.
func FilePath(filename string) (string, error) {
	root, err := Root()
	if err != nil {
		return "", err
	}

	return filepath.Join(root, filename), nil
}

// Prep ensures the working directory exists.
func Prep() error {
	root, err := Root()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("failed to create working directory %s: %w", root, err)
	}

	return nil
}
