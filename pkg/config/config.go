package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for igarchive
type Config struct {
	// Account partitions
	Accounts AccountsConfig `yaml:"accounts" json:"accounts"`

	// Raw snapshot input
	Input InputConfig `yaml:"input" json:"input"`

	// Media fetching
	Media MediaConfig `yaml:"media" json:"media"`

	// HTTP surface
	Server ServerConfig `yaml:"server" json:"server"`

	// Periodic ingestion
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`

	// Extraction selectors
	Extractor ExtractorConfig `yaml:"extractor" json:"extractor"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// AccountsConfig describes the configured account partitions
type AccountsConfig struct {
	BaseDir string          `yaml:"base_dir" json:"base_dir"`
	Default string          `yaml:"default" json:"default"`
	List    []AccountConfig `yaml:"list" json:"list"`
}

// AccountConfig is one partition entry
type AccountConfig struct {
	ID          string `yaml:"id" json:"id"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	Store       string `yaml:"store" json:"store"`
	MediaDir    string `yaml:"media_dir" json:"media_dir"`
}

// InputConfig holds where raw HTML snapshots are read from
type InputConfig struct {
	Dir              string        `yaml:"dir" json:"dir"`
	PostsFile        string        `yaml:"posts_file" json:"posts_file"`
	ReelsFile        string        `yaml:"reels_file" json:"reels_file"`
	CollectorCommand []string      `yaml:"collector_command" json:"collector_command"`
	CollectorTimeout time.Duration `yaml:"collector_timeout" json:"collector_timeout"`
}

// MediaConfig holds media download configuration
type MediaConfig struct {
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int           `yaml:"burst_size" json:"burst_size"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay" json:"retry_delay"`
	VerifyContent     bool          `yaml:"verify_content" json:"verify_content"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr  string `yaml:"addr" json:"addr"`
	Token string `yaml:"token" json:"-"`
}

// ScheduleConfig holds periodic run configuration
type ScheduleConfig struct {
	Spec     string   `yaml:"spec" json:"spec"`
	Accounts []string `yaml:"accounts" json:"accounts"`
}

// ExtractorConfig holds the selectors used to pick content out of snapshots
type ExtractorConfig struct {
	PostContainerClass string   `yaml:"post_container_class" json:"post_container_class"`
	CaptionClass       string   `yaml:"caption_class" json:"caption_class"`
	ReelTitleClass     string   `yaml:"reel_title_class" json:"reel_title_class"`
	IconSuffixes       []string `yaml:"icon_suffixes" json:"icon_suffixes"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Accounts: AccountsConfig{
			BaseDir: ".",
			Default: "default",
		},
		Input: InputConfig{
			Dir:              ".",
			PostsFile:        "instagram_posts.html",
			ReelsFile:        "instagram_reels.html",
			CollectorTimeout: 5 * time.Minute,
		},
		Media: MediaConfig{
			Timeout:           10 * time.Second,
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
			RequestsPerMinute: 120,
			BurstSize:         5,
			MaxRetries:        2,
			RetryDelay:        time.Second,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
		Extractor: ExtractorConfig{
			PostContainerClass: "x1lliihq x1n2onr6 xh8yej3",
			CaptionClass:       "_aacl _aaco _aacu _aacx _aad7 _aade",
			ReelTitleClass:     "_ap3a _aaco _aacu _aacx _aad7 _aade",
			IconSuffixes:       []string{".ico"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if dir := os.Getenv("IGARCHIVE_BASE_DIR"); dir != "" {
		c.Accounts.BaseDir = dir
	}
	if account := os.Getenv("IGARCHIVE_DEFAULT_ACCOUNT"); account != "" {
		c.Accounts.Default = account
	}
	if dir := os.Getenv("IGARCHIVE_INPUT_DIR"); dir != "" {
		c.Input.Dir = dir
	}
	if userAgent := os.Getenv("IGARCHIVE_USER_AGENT"); userAgent != "" {
		c.Media.UserAgent = userAgent
	}

	if timeout := os.Getenv("IGARCHIVE_MEDIA_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid IGARCHIVE_MEDIA_TIMEOUT: %w", err)
		}
		c.Media.Timeout = d
	}

	if rpm := os.Getenv("IGARCHIVE_REQUESTS_PER_MINUTE"); rpm != "" {
		val, err := strconv.Atoi(rpm)
		if err != nil {
			return fmt.Errorf("invalid IGARCHIVE_REQUESTS_PER_MINUTE: %w", err)
		}
		if val > 0 {
			c.Media.RequestsPerMinute = val
		}
	}

	if verify := os.Getenv("IGARCHIVE_VERIFY_CONTENT"); verify != "" {
		c.Media.VerifyContent = strings.ToLower(verify) == "true"
	}

	if addr := os.Getenv("IGARCHIVE_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if token := os.Getenv("IGARCHIVE_API_TOKEN"); token != "" {
		c.Server.Token = token
	}
	if spec := os.Getenv("IGARCHIVE_SCHEDULE"); spec != "" {
		c.Schedule.Spec = spec
	}

	if logLevel := os.Getenv("IGARCHIVE_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("IGARCHIVE_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".igarchive.yaml",
		".igarchive.yml",
		filepath.Join(home, ".config", "igarchive", "config.yaml"),
		filepath.Join(home, ".config", "igarchive", "config.yml"),
		filepath.Join(home, ".igarchive.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// DefaultPath returns the per-user config file location
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "igarchive", "config.yaml")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	seen := make(map[string]bool)
	for i, acc := range c.Accounts.List {
		if acc.ID == "" {
			errs = append(errs, fmt.Errorf("accounts.list[%d]: id is required", i))
			continue
		}
		if seen[acc.ID] {
			errs = append(errs, fmt.Errorf("accounts.list[%d]: duplicate id %q", i, acc.ID))
		}
		seen[acc.ID] = true
		if acc.Store == "" {
			errs = append(errs, fmt.Errorf("account %q: store path is required", acc.ID))
		}
		if acc.MediaDir == "" {
			errs = append(errs, fmt.Errorf("account %q: media dir is required", acc.ID))
		}
	}

	if c.Input.PostsFile == "" || c.Input.ReelsFile == "" {
		errs = append(errs, errors.New("input file names are required"))
	}
	if c.Input.PostsFile != "" && c.Input.PostsFile == c.Input.ReelsFile {
		errs = append(errs, errors.New("posts and reels input files must differ"))
	}

	if c.Media.Timeout <= 0 {
		errs = append(errs, errors.New("media timeout must be positive"))
	}
	if c.Media.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.Media.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}
	if c.Media.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server address is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if baseDir, ok := flags["base-dir"].(string); ok && baseDir != "" {
		c.Accounts.BaseDir = baseDir
	}
	if input, ok := flags["input"].(string); ok && input != "" {
		c.Input.Dir = input
	}
	if addr, ok := flags["addr"].(string); ok && addr != "" {
		c.Server.Addr = addr
	}
	if schedule, ok := flags["schedule"].(string); ok && schedule != "" {
		c.Schedule.Spec = schedule
	}
	if verify, ok := flags["verify-content"].(bool); ok && verify {
		c.Media.VerifyContent = true
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igarchive.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
