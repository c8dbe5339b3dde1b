package config

import (
	"os"
	"path/filepath"
)

// HomePath returns the root directory for chatwidget data.
// It uses $CHATWIDGET_PATH if set, otherwise defaults to ~/.chatwidget.
func HomePath() string {
	if v := os.Getenv("CHATWIDGET_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".chatwidget")
	}
	return filepath.Join(home, ".chatwidget")
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	return filepath.Join(HomePath(), "config.jsonc")
}

// DotenvPath returns the path to the .env file.
func DotenvPath() string {
	return filepath.Join(HomePath(), ".env")
}

// LogPath returns the default TUI log file.
func LogPath() string {
	return filepath.Join(HomePath(), "logs", "tui.log")
}
