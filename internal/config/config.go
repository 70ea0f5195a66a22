// Package config loads, validates, hot-reloads and persists the daemon
// configuration stored as config.json in the per-user config directory.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/rashomon-gh/proton-drive-sync/internal/paths"
	"github.com/rashomon-gh/proton-drive-sync/internal/syncerr"
)

// ConfigFileName is the configuration file under the config directory.
const ConfigFileName = "config.json"

// DeleteBehavior selects what a remote DELETE does.
type DeleteBehavior string

const (
	DeleteTrash     DeleteBehavior = "trash"
	DeletePermanent DeleteBehavior = "permanent"
)

// SyncDir pairs one local root with one remote root.
type SyncDir struct {
	SourcePath string `mapstructure:"source_path" json:"source_path" validate:"required"`
	RemoteRoot string `mapstructure:"remote_root" json:"remote_root" validate:"required,startswith=/"`
}

// ExcludePattern scopes a list of globs to a path.
type ExcludePattern struct {
	Path  string   `mapstructure:"path" json:"path"`
	Globs []string `mapstructure:"globs" json:"globs"`
}

// Config is the full in-memory configuration value. Components always
// work on copies obtained from Manager.Get.
type Config struct {
	SyncDirs             []SyncDir        `mapstructure:"sync_dirs" json:"sync_dirs" validate:"dive"`
	SyncConcurrency      int              `mapstructure:"sync_concurrency" json:"sync_concurrency" validate:"min=1,max=64"`
	RemoteDeleteBehavior DeleteBehavior   `mapstructure:"remote_delete_behavior" json:"remote_delete_behavior" validate:"oneof=trash permanent"`
	DashboardHost        string           `mapstructure:"dashboard_host" json:"dashboard_host" validate:"required"`
	DashboardPort        int              `mapstructure:"dashboard_port" json:"dashboard_port" validate:"min=1,max=65535"`
	ExcludePatterns      []ExcludePattern `mapstructure:"exclude_patterns" json:"exclude_patterns"`
}

// Default returns the configuration used before any file exists.
func Default() Config {
	return Config{
		SyncConcurrency:      4,
		RemoteDeleteBehavior: DeleteTrash,
		DashboardHost:        "127.0.0.1",
		DashboardPort:        4242,
	}
}

// Manager owns the configuration value and its file. Access is
// mutex-guarded; readers copy the value out and never hold the lock
// across I/O.
type Manager struct {
	mu           sync.RWMutex
	configPath   string
	cfg          Config
	lastModified time.Time
	validate     *validator.Validate
}

// NewManager loads (or defaults) the configuration from the per-user
// config directory.
func NewManager() (*Manager, error) {
	dir, err := paths.ConfigDir()
	if err != nil {
		return nil, err
	}
	return NewManagerAt(filepath.Join(dir, ConfigFileName))
}

// NewManagerAt loads configuration from an explicit file path.
func NewManagerAt(configPath string) (*Manager, error) {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create config directory: %v", syncerr.ErrConfig, err)
	}

	m := &Manager{
		configPath: configPath,
		cfg:        Default(),
		validate:   validator.New(),
	}

	if _, err := os.Stat(configPath); err == nil {
		cfg, modified, err := m.load()
		if err != nil {
			return nil, err
		}
		m.cfg = cfg
		m.lastModified = modified
	}

	return m, nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Path returns the configuration file location.
func (m *Manager) Path() string {
	return m.configPath
}

// CheckForUpdates compares the file mtime against the last load and
// reloads on change. It reports whether a reload happened.
func (m *Manager) CheckForUpdates() (bool, error) {
	info, err := os.Stat(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", syncerr.ErrConfig, err)
	}

	m.mu.RLock()
	unchanged := !info.ModTime().After(m.lastModified)
	m.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	cfg, modified, err := m.load()
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	m.cfg = cfg
	m.lastModified = modified
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"sync_dirs":   len(cfg.SyncDirs),
		"concurrency": cfg.SyncConcurrency,
	}).Info("Configuration reloaded")
	return true, nil
}

// Save writes the current configuration as pretty JSON.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

// AddSyncDir appends a sync pair and persists.
func (m *Manager) AddSyncDir(sourcePath, remoteRoot string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.SyncDirs = append(m.cfg.SyncDirs, SyncDir{SourcePath: sourcePath, RemoteRoot: remoteRoot})
	return m.saveLocked()
}

// RemoveSyncDir deletes the pair at index and persists.
func (m *Manager) RemoveSyncDir(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.cfg.SyncDirs) {
		return fmt.Errorf("%w: invalid sync directory index: %d", syncerr.ErrConfig, index)
	}
	m.cfg.SyncDirs = append(m.cfg.SyncDirs[:index], m.cfg.SyncDirs[index+1:]...)
	return m.saveLocked()
}

// SetConcurrency updates the processor width and persists.
func (m *Manager) SetConcurrency(concurrency int) error {
	if concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1", syncerr.ErrConfig)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.SyncConcurrency = concurrency
	return m.saveLocked()
}

// SetDeleteBehavior updates the remote delete mode and persists.
func (m *Manager) SetDeleteBehavior(behavior DeleteBehavior) error {
	if behavior != DeleteTrash && behavior != DeletePermanent {
		return fmt.Errorf("%w: unknown delete behavior: %s", syncerr.ErrConfig, behavior)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.RemoteDeleteBehavior = behavior
	return m.saveLocked()
}

// AddExcludePattern appends an exclusion and persists.
func (m *Manager) AddExcludePattern(path string, globs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.ExcludePatterns = append(m.cfg.ExcludePatterns, ExcludePattern{Path: path, Globs: globs})
	return m.saveLocked()
}

// RemoveExcludePattern deletes the exclusion at index and persists.
func (m *Manager) RemoveExcludePattern(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.cfg.ExcludePatterns) {
		return fmt.Errorf("%w: invalid exclude pattern index: %d", syncerr.ErrConfig, index)
	}
	m.cfg.ExcludePatterns = append(m.cfg.ExcludePatterns[:index], m.cfg.ExcludePatterns[index+1:]...)
	return m.saveLocked()
}

func (m *Manager) snapshotLocked() Config {
	cfg := m.cfg
	cfg.SyncDirs = append([]SyncDir(nil), m.cfg.SyncDirs...)
	cfg.ExcludePatterns = nil
	for _, p := range m.cfg.ExcludePatterns {
		cfg.ExcludePatterns = append(cfg.ExcludePatterns, ExcludePattern{
			Path:  p.Path,
			Globs: append([]string(nil), p.Globs...),
		})
	}
	return cfg
}

func (m *Manager) load() (Config, time.Time, error) {
	v := viper.New()
	v.SetConfigFile(m.configPath)
	v.SetConfigType("json")

	v.SetDefault("sync_concurrency", 4)
	v.SetDefault("remote_delete_behavior", string(DeleteTrash))
	v.SetDefault("dashboard_host", "127.0.0.1")
	v.SetDefault("dashboard_port", 4242)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, time.Time{}, fmt.Errorf("%w: failed to read %s: %v", syncerr.ErrConfig, m.configPath, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, time.Time{}, fmt.Errorf("%w: failed to parse %s: %v", syncerr.ErrConfig, m.configPath, err)
	}

	if err := m.validate.Struct(cfg); err != nil {
		return Config{}, time.Time{}, fmt.Errorf("%w: invalid configuration: %v", syncerr.ErrConfig, err)
	}

	info, err := os.Stat(m.configPath)
	if err != nil {
		return Config{}, time.Time{}, fmt.Errorf("%w: %v", syncerr.ErrConfig, err)
	}

	return cfg, info.ModTime(), nil
}

func (m *Manager) saveLocked() error {
	data, err := json.MarshalIndent(m.cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", syncerr.ErrConfig, err)
	}
	if err := os.WriteFile(m.configPath, data, 0o600); err != nil {
		return fmt.Errorf("%w: failed to write %s: %v", syncerr.ErrConfig, m.configPath, err)
	}
	if info, err := os.Stat(m.configPath); err == nil {
		m.lastModified = info.ModTime()
	}
	return nil
}
