package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvURL       = "RESEARCH_MONITOR_URL"
	EnvToken     = "RESEARCH_MONITOR_TOKEN"
	EnvTransport = "RESEARCH_MONITOR_TRANSPORT"
	EnvLogLevel  = "RESEARCH_MONITOR_LOG_LEVEL"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Stream StreamConfig `yaml:"stream"`
	Fetch  FetchConfig  `yaml:"fetch"`
	Log    LogConfig    `yaml:"log"`
	UI     UIConfig     `yaml:"ui"`
}

type ServerConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type StreamConfig struct {
	Transport     string        `yaml:"transport"` // sse or websocket
	GraceInterval time.Duration `yaml:"grace_interval"`
}

type FetchConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type UIConfig struct {
	MarkdownStyle string `yaml:"markdown_style"`
	WordWrap      int    `yaml:"word_wrap"`
	NoTUI         bool   `yaml:"no_tui"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL: "http://127.0.0.1:5000",
			Timeout: 10 * time.Second,
		},
		Stream: StreamConfig{
			Transport:     "sse",
			GraceInterval: 3 * time.Second,
		},
		Fetch: FetchConfig{
			MaxAttempts: 10,
			RetryDelay:  3 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		UI: UIConfig{
			MarkdownStyle: "auto",
			WordWrap:      100,
		},
	}
}

// Load reads a YAML file on top of the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvURL); ok && v != "" {
		c.Server.BaseURL = v
	}
	if v, ok := lookup(EnvToken); ok && v != "" {
		c.Server.Token = v
	}
	if v, ok := lookup(EnvTransport); ok && v != "" {
		c.Stream.Transport = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Server.BaseURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("server.base_url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("server.base_url: scheme must be http or https, got %q", u.Scheme))
	case u.Host == "":
		errs = append(errs, errors.New("server.base_url: missing host"))
	}
	if c.Server.Timeout < 0 {
		errs = append(errs, errors.New("server.timeout: must not be negative"))
	}

	switch c.Stream.Transport {
	case "sse", "websocket":
	default:
		errs = append(errs, fmt.Errorf("stream.transport: unknown transport %q", c.Stream.Transport))
	}
	if c.Stream.GraceInterval < 0 {
		errs = append(errs, errors.New("stream.grace_interval: must not be negative"))
	}

	if c.Fetch.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("fetch.max_attempts: must be positive, got %d", c.Fetch.MaxAttempts))
	}
	if c.Fetch.RetryDelay < 0 {
		errs = append(errs, errors.New("fetch.retry_delay: must not be negative"))
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.UI.WordWrap < 0 {
		errs = append(errs, errors.New("ui.word_wrap: must not be negative"))
	}

	return errors.Join(errs...)
}

// ParseLevel maps debug, info, warn/warning and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown level %q", s)
}
