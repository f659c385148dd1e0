package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir        string `toml:"data_dir"`
	ScreenshotsDir string `toml:"screenshots_dir"`
	LogDir         string `toml:"log_dir"`
	APIBind        string `toml:"api_bind"`
	APIToken       string `toml:"api_token"`
}

// Capture contains configuration for the headless browser worker pool.
type Capture struct {
	// MaxConcurrency is the number of long-lived browser contexts. Default: 4.
	MaxConcurrency int `toml:"max_concurrency"`
	// RetryLimit is how many times a failed capture is retried. Default: 1.
	RetryLimit int `toml:"retry_limit"`
	// TaskTimeoutSeconds is the hard wall-clock limit for one capture attempt.
	TaskTimeoutSeconds int `toml:"task_timeout_seconds"`
	// NavigationTimeoutSeconds bounds page load plus network idle wait.
	NavigationTimeoutSeconds int `toml:"navigation_timeout_seconds"`
	// WebPQuality is the lossy quality used for derived .webp files.
	WebPQuality int `toml:"webp_quality"`
	// RemoteURL is the DevTools websocket of an external Chrome. Empty launches one.
	RemoteURL     string `toml:"remote_url"`
	ChromeBin     string `toml:"chrome_bin"`
	Headless      bool   `toml:"headless"`
	Stealth       bool   `toml:"stealth"`
	NoSandbox     bool   `toml:"no_sandbox"`
	SingleProcess bool   `toml:"single_process"`
}

// Comparison contains configuration for diffing and batch dispatch.
type Comparison struct {
	// DefaultFailingThreshold applies to sites without their own threshold (percent).
	DefaultFailingThreshold float64 `toml:"default_failing_threshold"`
	// PixelThreshold is the per-pixel colour distance tolerance (0..1).
	PixelThreshold float64 `toml:"pixel_threshold"`
	BatchQueueSize int     `toml:"batch_queue_size"`
}

// Notifications contains configuration for result broadcasts.
type Notifications struct {
	HubCapacity  int    `toml:"hub_capacity"`
	AMQPURL      string `toml:"amqp_url"`
	AMQPExchange string `toml:"amqp_exchange"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for snapdiff.
//
// Configuration sections by subsystem:
//   - Paths: data, screenshot and log directories plus the API bind address
//   - Capture: browser pool sizing, timeouts and launch flags
//   - Comparison: failing threshold defaults and diff tolerance
//   - Notifications: in-process hub sizing and optional AMQP fan-out
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Capture       Capture       `toml:"capture"`
	Comparison    Comparison    `toml:"comparison"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/snapdiff/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("snapdiff.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.ScreenshotsDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the SQLite store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "snapdiff.db")
}

// TaskTimeout returns the per-attempt capture timeout.
func (c *Config) TaskTimeout() time.Duration {
	return time.Duration(c.Capture.TaskTimeoutSeconds) * time.Second
}

// NavigationTimeout returns the page load timeout used by capture tasks.
func (c *Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Capture.NavigationTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
