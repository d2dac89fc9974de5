// Package config loads spice's settings and resolves where its files live.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

const appName = "spice"

// DataDir is where the ledger database and its backups live. SPICE_DATA_DIR
// wins, then $XDG_DATA_HOME/spice, then ~/.local/share/spice.
func DataDir() string {
	if dir := os.Getenv("SPICE_DATA_DIR"); dir != "" {
		return ExpandPath(dir)
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(ExpandPath(xdg), appName)
	}
	return filepath.Join(homeDir(), ".local", "share", appName)
}

// ConfigDir holds config.yaml: $XDG_CONFIG_HOME/spice or ~/.config/spice.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(ExpandPath(xdg), appName)
	}
	return filepath.Join(homeDir(), ".config", appName)
}

// DefaultDatabasePath is the database used when database.path is unset.
func DefaultDatabasePath() string {
	return filepath.Join(DataDir(), appName+".db")
}

// ExpandPath resolves $VAR references and a leading ~ in a configured path.
func ExpandPath(path string) string {
	path = os.ExpandEnv(path)
	rest, ok := strings.CutPrefix(path, "~")
	if !ok || (rest != "" && rest[0] != '/') {
		return path
	}
	return homeDir() + rest
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
