package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL         = "http://localhost:8080"
	DefaultPageSize       = 10
	DefaultStatusWorkers  = 4
	DefaultRollbackPrefix = "deploy"
)

// Timeouts bounds each class of backend request. A request that exceeds its
// budget settles as an error so the action lock it holds is released.
type Timeouts struct {
	Status   time.Duration `yaml:"status"`
	Branches time.Duration `yaml:"branches"`
	Deploy   time.Duration `yaml:"deploy"`
	Kill     time.Duration `yaml:"kill"`
	Search   time.Duration `yaml:"search"`
	Delete   time.Duration `yaml:"delete"`
	Default  time.Duration `yaml:"default"`
}

// Config is the console configuration (config.yml + environment).
type Config struct {
	APIURL               string   `yaml:"api_url"`
	TokenFile            string   `yaml:"token_file"`
	LogFile              string   `yaml:"log_file"`
	LogLevel             string   `yaml:"log_level"`
	PageSize             int      `yaml:"page_size"`
	StatusConcurrency    int      `yaml:"status_concurrency"`
	RollbackBranchPrefix string   `yaml:"rollback_branch_prefix"`
	Timeouts             Timeouts `yaml:"timeouts"`
}

// Default returns a Config with every field populated.
func Default() Config {
	return Config{
		APIURL:               DefaultAPIURL,
		TokenFile:            filepath.Join(configDir(), "token"),
		LogFile:              filepath.Join(stateDir(), "lazyops.log"),
		LogLevel:             "info",
		PageSize:             DefaultPageSize,
		StatusConcurrency:    DefaultStatusWorkers,
		RollbackBranchPrefix: DefaultRollbackPrefix,
		Timeouts: Timeouts{
			Status:   10 * time.Second,
			Branches: 20 * time.Second,
			Deploy:   10 * time.Minute,
			Kill:     30 * time.Second,
			Search:   15 * time.Second,
			Delete:   15 * time.Second,
			Default:  15 * time.Second,
		},
	}
}

// DefaultPath is ~/.config/lazyops/config.yml (or $XDG_CONFIG_HOME).
func DefaultPath() string {
	return filepath.Join(configDir(), "config.yml")
}

func configDir() string {
	if d := os.Getenv("XDG_CONFIG_HOME"); d != "" {
		return filepath.Join(d, "lazyops")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lazyops"
	}
	return filepath.Join(home, ".config", "lazyops")
}

func stateDir() string {
	if d := os.Getenv("XDG_STATE_HOME"); d != "" {
		return filepath.Join(d, "lazyops")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lazyops"
	}
	return filepath.Join(home, ".local", "state", "lazyops")
}

// Load reads path (a missing file is fine), loads .env from the working
// directory if present and applies LAZYOPS_* overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(&cfg)
	cfg.fillZeroes()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("LAZYOPS_API_URL"); ok && v != "" {
		cfg.APIURL = v
	}
	if v, ok := os.LookupEnv("LAZYOPS_TOKEN_FILE"); ok && v != "" {
		cfg.TokenFile = v
	}
	if v, ok := os.LookupEnv("LAZYOPS_LOG_FILE"); ok && v != "" {
		cfg.LogFile = v
	}
	if v, ok := os.LookupEnv("LAZYOPS_LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}
}

// fillZeroes restores defaults for keys a partial config file left empty.
func (c *Config) fillZeroes() {
	d := Default()
	if c.Timeouts.Default <= 0 {
		c.Timeouts.Default = d.Timeouts.Default
	}
	for _, t := range []*time.Duration{
		&c.Timeouts.Status, &c.Timeouts.Branches, &c.Timeouts.Deploy,
		&c.Timeouts.Kill, &c.Timeouts.Search, &c.Timeouts.Delete,
	} {
		if *t == 0 {
			*t = c.Timeouts.Default
		}
	}
	if c.PageSize == 0 {
		c.PageSize = d.PageSize
	}
	if c.StatusConcurrency == 0 {
		c.StatusConcurrency = d.StatusConcurrency
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

// Validate reports every invalid key at once.
func (c Config) Validate() error {
	var bad []string
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		bad = append(bad, "api_url must start with http:// or https://")
	}
	if c.TokenFile == "" {
		bad = append(bad, "token_file is required")
	}
	if c.PageSize < 1 || c.PageSize > 200 {
		bad = append(bad, "page_size must be between 1 and 200")
	}
	if c.StatusConcurrency < 1 {
		bad = append(bad, "status_concurrency must be positive")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		bad = append(bad, "log_level must be one of debug, info, warn, error")
	}
	for name, t := range map[string]time.Duration{
		"status": c.Timeouts.Status, "branches": c.Timeouts.Branches, "deploy": c.Timeouts.Deploy,
		"kill": c.Timeouts.Kill, "search": c.Timeouts.Search, "delete": c.Timeouts.Delete,
		"default": c.Timeouts.Default,
	} {
		if t < 0 {
			bad = append(bad, "timeouts."+name+" must not be negative")
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return fmt.Errorf("invalid config: %s", strings.Join(bad, "; "))
}
