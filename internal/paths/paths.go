// Package paths resolves the per-user directories the daemon stores its
// configuration, database and logs in.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rashomon-gh/proton-drive-sync/internal/syncerr"
)

const appName = "proton-drive-sync"

// ConfigDir returns the directory holding config.json.
func ConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("%w: could not determine config directory: %v", syncerr.ErrConfig, err)
	}
	return filepath.Join(dir, appName), nil
}

// DataDir returns the directory holding the SQLite state file.
func DataDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, appName), nil
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, "Library", "Application Support", appName), nil
		}
	default:
		if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
			return filepath.Join(dir, appName), nil
		}
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, ".local", "share", appName), nil
		}
	}
	return "", fmt.Errorf("%w: could not determine data directory", syncerr.ErrConfig)
}

// LogDir returns the directory log files rotate in.
func LogDir() (string, error) {
	if runtime.GOOS == "linux" {
		if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
			return filepath.Join(dir, appName, "logs"), nil
		}
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, ".local", "state", appName, "logs"), nil
		}
	}
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "logs"), nil
}

// DatabasePath returns the location of the SQLite state file.
func DatabasePath() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, appName+".db"), nil
}

// RelativeTo returns full's path relative to base, or an error when full
// does not live under base.
func RelativeTo(base, full string) (string, error) {
	rel, err := filepath.Rel(base, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s not within %s", syncerr.ErrInvalidPath, full, base)
	}
	return rel, nil
}
