package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for triquery.
type Config struct {
	General   GeneralConfig   `json:"general" yaml:"general"`
	Server    ServerConfig    `json:"server" yaml:"server"`
	HTTP      HTTPConfig      `json:"http" yaml:"http"`
	Providers ProvidersConfig `json:"providers" yaml:"providers"`
	Notify    NotifyConfig    `json:"notify" yaml:"notify"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`
}

type GeneralConfig struct {
	LogLevel  string `json:"logLevel" yaml:"logLevel"`
	LogFormat string `json:"logFormat" yaml:"logFormat"`                 // "text" | "json"
	LogFile   string `json:"logFile,omitempty" yaml:"logFile,omitempty"` // optional log file path
}

type ServerConfig struct {
	Host      string `json:"host" yaml:"host"`
	Port      int    `json:"port" yaml:"port"`
	StaticDir string `json:"staticDir,omitempty" yaml:"staticDir,omitempty"` // overrides the embedded UI
}

// HTTPConfig tunes the outbound client shared by the provider adapters.
type HTTPConfig struct {
	TimeoutSeconds int `json:"timeoutSeconds" yaml:"timeoutSeconds"` // 0 = transport defaults only
}

type ProvidersConfig struct {
	Gemini  ProviderConfig `json:"gemini" yaml:"gemini"`
	Cohere  ProviderConfig `json:"cohere" yaml:"cohere"`
	Mistral ProviderConfig `json:"mistral" yaml:"mistral"`
}

type ProviderConfig struct {
	APIKey      string  `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	APIBase     string  `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
	Model       string  `json:"model,omitempty" yaml:"model,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"` // 0 = provider default
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

// NotifyConfig selects the chat backend used for notifications.
// Leaving the token or channel empty disables notification silently.
type NotifyConfig struct {
	Backend      string         `json:"backend" yaml:"backend"` // "discord" | "telegram" | "slack"
	ChannelID    string         `json:"channelId,omitempty" yaml:"channelId,omitempty"`
	AttachWaitMs int            `json:"attachWaitMs" yaml:"attachWaitMs"`
	Discord      DiscordConfig  `json:"discord" yaml:"discord"`
	Telegram     TelegramConfig `json:"telegram" yaml:"telegram"`
	Slack        SlackConfig    `json:"slack" yaml:"slack"`
}

type DiscordConfig struct {
	Token    string `json:"token,omitempty" yaml:"token,omitempty"`
	Greeting string `json:"greeting,omitempty" yaml:"greeting,omitempty"` // posted when serve connects
}

type TelegramConfig struct {
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
}

type SlackConfig struct {
	BotToken string `json:"botToken,omitempty" yaml:"botToken,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.triquery).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".triquery"
	}
	return filepath.Join(home, ".triquery")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads a JSON or YAML config file (by extension), expands ${VAR}
// references, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	ApplyEnv(cfg)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Server.StaticDir = ExpandPath(cfg.Server.StaticDir)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// LoadOrDefaults behaves like Load, but a missing file yields the defaults
// plus environment overrides. Any other read or parse error is returned.
func LoadOrDefaults(path string) (*Config, bool, error) {
	if _, err := os.Stat(ExpandPath(path)); os.IsNotExist(err) {
		cfg := Defaults()
		ApplyEnv(cfg)
		if err := Validate(cfg); err != nil {
			return nil, false, fmt.Errorf("config validation: %w", err)
		}
		return cfg, false, nil
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// envOverrides maps the deployment environment variables onto config fields.
var envOverrides = []struct {
	name  string
	apply func(*Config, string)
}{
	{"GEMINI_API_KEY", func(c *Config, v string) { c.Providers.Gemini.APIKey = v }},
	{"COHERE_API_KEY", func(c *Config, v string) { c.Providers.Cohere.APIKey = v }},
	{"MISTRAL_API_KEY", func(c *Config, v string) { c.Providers.Mistral.APIKey = v }},
	{"DISCORD_TOKEN", func(c *Config, v string) { c.Notify.Discord.Token = v }},
	{"DISCORD_CHANNEL_ID", func(c *Config, v string) { c.Notify.ChannelID = v }},
	{"TELEGRAM_BOT_TOKEN", func(c *Config, v string) { c.Notify.Telegram.Token = v }},
	{"SLACK_BOT_TOKEN", func(c *Config, v string) { c.Notify.Slack.BotToken = v }},
	{"PORT", func(c *Config, v string) {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	}},
}

// ApplyEnv overrides config values with non-empty environment variables.
func ApplyEnv(cfg *Config) {
	for _, o := range envOverrides {
		if v, ok := os.LookupEnv(o.name); ok && v != "" {
			o.apply(cfg, v)
		}
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := strings.Contains(match, ":-")
		if hasDefault && len(groups) >= 3 {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	path = ExpandPath(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch strings.ToLower(cfg.General.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	switch cfg.General.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, "general.logFormat must be one of: text, json")
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	if cfg.HTTP.TimeoutSeconds < 0 {
		errs = append(errs, "http.timeoutSeconds must be >= 0")
	}

	for name, pc := range cfg.Providers.byName() {
		if pc.MaxTokens < 0 {
			errs = append(errs, fmt.Sprintf("providers.%s.maxTokens must be >= 0", name))
		}
		if pc.Temperature < 0 || pc.Temperature > 2 {
			errs = append(errs, fmt.Sprintf("providers.%s.temperature must be between 0 and 2", name))
		}
	}

	switch cfg.Notify.Backend {
	case "discord", "telegram", "slack":
	default:
		errs = append(errs, "notify.backend must be one of: discord, telegram, slack")
	}
	if cfg.Notify.AttachWaitMs < 0 {
		errs = append(errs, "notify.attachWaitMs must be >= 0")
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
		errs = append(errs, "metrics.endpoint must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (p ProvidersConfig) byName() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		"gemini":  p.Gemini,
		"cohere":  p.Cohere,
		"mistral": p.Mistral,
	}
}

// MissingProviderKeys returns the environment names of provider keys that are
// not configured, in provider display order.
func (c *Config) MissingProviderKeys() []string {
	var missing []string
	if c.Providers.Gemini.APIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if c.Providers.Cohere.APIKey == "" {
		missing = append(missing, "COHERE_API_KEY")
	}
	if c.Providers.Mistral.APIKey == "" {
		missing = append(missing, "MISTRAL_API_KEY")
	}
	return missing
}

// NotifyConfigured reports whether the selected backend has both a credential
// and a target channel.
func (c *Config) NotifyConfigured() bool {
	if c.Notify.ChannelID == "" {
		return false
	}
	switch c.Notify.Backend {
	case "discord":
		return c.Notify.Discord.Token != ""
	case "telegram":
		return c.Notify.Telegram.Token != ""
	case "slack":
		return c.Notify.Slack.BotToken != ""
	}
	return false
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
