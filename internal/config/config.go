package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Agent      AgentConfig      `yaml:"agent"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Dedup      DedupConfig      `yaml:"dedup"`
	Label      LabelConfig      `yaml:"label"`
	Printer    PrinterConfig    `yaml:"printer"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Addr             string        `yaml:"addr"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	TLSCertFile      string        `yaml:"tls_cert_file"`
	TLSKeyFile       string        `yaml:"tls_key_file"`
	MaxPayloadLength int           `yaml:"max_payload_length"`
	PushEnabled      bool          `yaml:"push_enabled"`
	SubscriberBuffer int           `yaml:"subscriber_buffer"`
	RateLimit        float64       `yaml:"rate_limit"`
	RateBurst        int           `yaml:"rate_burst"`
	RedisAddr        string        `yaml:"redis_addr"`
	RedisChannel     string        `yaml:"redis_channel"`
}

// Agent delivery modes.
const (
	ModePush = "push"
	ModePoll = "poll"
	ModeBoth = "both"
)

type AgentConfig struct {
	ServerURL       string        `yaml:"server_url"`
	Mode            string        `yaml:"mode"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	ReconnectDelay  time.Duration `yaml:"reconnect_delay"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	KeyboardEnabled bool          `yaml:"keyboard_enabled"`
	HistoryDir      string        `yaml:"history_dir"`
	AuditDBPath     string        `yaml:"audit_db_path"`
}

type ClassifierConfig struct {
	Threshold time.Duration `yaml:"threshold"`
	MinLength int           `yaml:"min_length"`
	IdleReset time.Duration `yaml:"idle_reset"`
}

type DedupConfig struct {
	Window time.Duration `yaml:"window"`
	Sweep  time.Duration `yaml:"sweep"`
}

type LabelConfig struct {
	WidthMM    float64 `yaml:"width_mm"`
	HeightMM   float64 `yaml:"height_mm"`
	DefaultDPI int     `yaml:"default_dpi"`
	FillRatio  float64 `yaml:"fill_ratio"`
	Symbology  string  `yaml:"symbology"`
}

type PrinterConfig struct {
	Driver     string        `yaml:"driver"`
	Address    string        `yaml:"address"`
	DPI        int           `yaml:"dpi"`
	ReportPage bool          `yaml:"report_page"`
	GapMM      float64       `yaml:"gap_mm"`
	Timeout    time.Duration `yaml:"timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:             ":8000",
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     30 * time.Second,
			MaxPayloadLength: 4096,
			PushEnabled:      true,
			SubscriberBuffer: 64,
			RateLimit:        5,
			RateBurst:        10,
			RedisChannel:     "scanprint:jobs",
		},
		Agent: AgentConfig{
			ServerURL:       "http://localhost:8000",
			Mode:            ModePush,
			PollInterval:    2 * time.Second,
			ReconnectDelay:  5 * time.Second,
			RequestTimeout:  10 * time.Second,
			KeyboardEnabled: true,
			HistoryDir:      "history",
			AuditDBPath:     "report.db",
		},
		Classifier: ClassifierConfig{
			Threshold: 50 * time.Millisecond,
			MinLength: 15,
			IdleReset: time.Second,
		},
		Dedup: DedupConfig{
			Window: 2 * time.Second,
			Sweep:  60 * time.Second,
		},
		Label: LabelConfig{
			WidthMM:    58,
			HeightMM:   40,
			DefaultDPI: 203,
			FillRatio:  0.82,
			Symbology:  "datamatrix",
		},
		Printer: PrinterConfig{
			Driver:     "dryrun",
			Address:    "127.0.0.1:9100",
			DPI:        203,
			ReportPage: true,
			GapMM:      2,
			Timeout:    10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaults()
}

// Load reads configPath on top of the defaults. A missing file is not an error.
// An empty path skips the file.
func Load(configPath string) (*Config, error) {
	cfg := defaults()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Resolve builds the effective configuration: defaults, then configPath,
// then envFile, then the process environment. The result is validated.
func Resolve(configPath, envFile string) (*Config, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, err
	}
	if envFile != "" {
		if err := LoadDotEnv(envFile); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from envFile into the process environment
// without overriding variables already set. A missing file is ignored.
func LoadDotEnv(envFile string) error {
	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat env file: %w", err)
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from SCANPRINT_* variables.
// SERVER_IP is accepted as the agent's server URL.
func (c *Config) ApplyEnv() {
	c.Server.Addr = getEnv("SCANPRINT_ADDR", c.Server.Addr)
	c.Server.TLSCertFile = getEnv("SCANPRINT_TLS_CERT", c.Server.TLSCertFile)
	c.Server.TLSKeyFile = getEnv("SCANPRINT_TLS_KEY", c.Server.TLSKeyFile)
	c.Server.MaxPayloadLength = getEnvInt("SCANPRINT_MAX_PAYLOAD", c.Server.MaxPayloadLength)
	c.Server.PushEnabled = getEnvBool("SCANPRINT_PUSH", c.Server.PushEnabled)
	c.Server.RedisAddr = getEnv("SCANPRINT_REDIS_ADDR", c.Server.RedisAddr)

	if v := os.Getenv("SERVER_IP"); v != "" {
		c.Agent.ServerURL = normalizeURL(v)
	}
	c.Agent.ServerURL = getEnv("SCANPRINT_SERVER_URL", c.Agent.ServerURL)
	c.Agent.Mode = getEnv("SCANPRINT_MODE", c.Agent.Mode)
	c.Agent.KeyboardEnabled = getEnvBool("SCANPRINT_KEYBOARD", c.Agent.KeyboardEnabled)
	c.Agent.HistoryDir = getEnv("SCANPRINT_HISTORY_DIR", c.Agent.HistoryDir)
	c.Agent.AuditDBPath = getEnv("SCANPRINT_AUDIT_DB", c.Agent.AuditDBPath)

	c.Classifier.Threshold = getEnvDuration("SCANPRINT_KEY_THRESHOLD", c.Classifier.Threshold)
	c.Classifier.MinLength = getEnvInt("SCANPRINT_MIN_LENGTH", c.Classifier.MinLength)
	c.Dedup.Window = getEnvDuration("SCANPRINT_DEDUP_WINDOW", c.Dedup.Window)
	c.Label.FillRatio = getEnvFloat("QR_FILL_RATIO", c.Label.FillRatio)
	c.Label.FillRatio = getEnvFloat("SCANPRINT_FILL_RATIO", c.Label.FillRatio)

	c.Printer.Driver = getEnv("SCANPRINT_PRINTER", c.Printer.Driver)
	c.Printer.Address = getEnv("SCANPRINT_PRINTER_ADDR", c.Printer.Address)

	c.Logging.Level = getEnv("SCANPRINT_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("SCANPRINT_LOG_FORMAT", c.Logging.Format)
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr is required")
	}

	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server timeouts must be non-negative")
	}

	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		return fmt.Errorf("tls cert and key files must be set together")
	}

	if c.Server.MaxPayloadLength < 1 {
		return fmt.Errorf("max payload length must be at least 1, got %d", c.Server.MaxPayloadLength)
	}

	if c.Server.SubscriberBuffer < 1 {
		return fmt.Errorf("subscriber buffer must be at least 1")
	}

	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return fmt.Errorf("rate limit and burst must be non-negative")
	}

	switch c.Agent.Mode {
	case ModePush, ModePoll, ModeBoth:
	default:
		return fmt.Errorf("invalid agent mode: %s (valid: push, poll, both)", c.Agent.Mode)
	}

	if c.Agent.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}

	if c.Agent.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect delay must be positive")
	}

	if c.Classifier.Threshold <= 0 {
		return fmt.Errorf("classifier threshold must be positive")
	}

	if c.Classifier.MinLength < 0 {
		return fmt.Errorf("classifier min length must be non-negative")
	}

	if c.Dedup.Window <= 0 {
		return fmt.Errorf("dedup window must be positive")
	}
	if c.Dedup.Sweep < c.Dedup.Window {
		return fmt.Errorf("dedup sweep must be at least the dedup window")
	}

	if c.Label.WidthMM <= 0 || c.Label.HeightMM <= 0 {
		return fmt.Errorf("label size must be positive")
	}

	if c.Label.DefaultDPI <= 0 {
		return fmt.Errorf("default dpi must be positive")
	}

	if c.Label.FillRatio <= 0 || c.Label.FillRatio > 1 {
		return fmt.Errorf("fill ratio must be in (0, 1], got %g", c.Label.FillRatio)
	}

	switch c.Label.Symbology {
	case "datamatrix", "qr":
	default:
		return fmt.Errorf("invalid symbology: %s (valid: datamatrix, qr)", c.Label.Symbology)
	}

	switch c.Printer.Driver {
	case "dryrun":
	case "tspl":
		if c.Printer.Address == "" {
			return fmt.Errorf("printer address is required for the tspl driver")
		}
	default:
		return fmt.Errorf("invalid printer driver: %s (valid: tspl, dryrun)", c.Printer.Driver)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s (valid: json, text)", c.Logging.Format)
	}

	return nil
}

// normalizeURL accepts a bare host[:port] and defaults it to http.
func normalizeURL(v string) string {
	v = strings.TrimRight(strings.TrimSpace(v), "/")
	if strings.Contains(v, "://") {
		return v
	}
	return "http://" + v
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
