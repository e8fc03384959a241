// Package config provides configuration management for the AntiHub API server.
// It handles loading and parsing YAML configuration files, and provides
// structured access to application settings including the listen address,
// debug settings, upstream accounts, and the API-surface allowlist variant.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPort is used when the configuration does not specify one.
const DefaultPort = 8317

// DefaultUsageLogInterval is the usage summary interval in minutes.
const DefaultUsageLogInterval = 10

// Config represents the application's configuration, loaded from a YAML file.
// A loaded Config is treated as an immutable snapshot; the watcher replaces
// the whole value on reload instead of mutating fields in place.
type Config struct {
	// Host is the local address the server binds to. Empty means all interfaces.
	Host string `yaml:"host" json:"host"`

	// Port is the TCP port the server listens on.
	Port int `yaml:"port" json:"port"`

	// Debug enables verbose logging and request/response taps.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile redirects logs from stdout to rotated files under LogDir.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogDir is the directory for rotated log files. Empty means "logs"
	// next to the working directory.
	LogDir string `yaml:"log-dir,omitempty" json:"log-dir,omitempty"`

	// EnableMetrics exposes prometheus metrics on GET /metrics.
	EnableMetrics bool `yaml:"enable-metrics" json:"enable-metrics"`

	// UsageLogInterval is how often, in minutes, the usage sink logs an
	// aggregate summary line. <= 0 selects DefaultUsageLogInterval.
	UsageLogInterval int `yaml:"usage-log-interval,omitempty" json:"usage-log-interval,omitempty"`

	// AllowlistVariant selects the enforced spec/config-type matrix:
	// "current" (default) or "target".
	AllowlistVariant string `yaml:"allowlist-variant,omitempty" json:"allowlist-variant,omitempty"`

	// APIKeys is a list of keys for authenticating clients to this proxy
	// server. Empty disables client authentication.
	APIKeys []string `yaml:"api-keys,omitempty" json:"api-keys,omitempty"`

	// AuthDir is the directory token files are resolved against when an
	// account names a relative token-file path.
	AuthDir string `yaml:"auth-dir,omitempty" json:"auth-dir,omitempty"`

	// Accounts lists the upstream provider accounts requests are served by.
	Accounts []Account `yaml:"accounts,omitempty" json:"accounts,omitempty"`
}

// Account describes one upstream provider account.
type Account struct {
	// Name identifies the account in logs and usage records. Defaults to
	// "<type>-<index>" when omitted.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Type is the upstream provider type: kiro, codex, qwen, antigravity,
	// gemini-cli or zai-image.
	Type string `yaml:"type" json:"type"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base-url,omitempty" json:"base-url,omitempty"`

	// APIKey holds an inline credential for API-key style providers.
	APIKey string `yaml:"api-key,omitempty" json:"api-key,omitempty"`

	// TokenFile points at a credential file (Kiro token JSON, Codex
	// auth.json). Relative paths resolve against AuthDir.
	TokenFile string `yaml:"token-file,omitempty" json:"token-file,omitempty"`

	// ConfigTOML points at a Codex CLI config.toml supplying the base URL
	// and model hints. Relative paths resolve against AuthDir.
	ConfigTOML string `yaml:"config-toml,omitempty" json:"config-toml,omitempty"`

	// ProfileArn is the CodeWhisperer profile used by Kiro accounts. When
	// empty the value from the token file is used.
	ProfileArn string `yaml:"profile-arn,omitempty" json:"profile-arn,omitempty"`

	// ProjectID is the cloud project gemini-cli accounts bill against.
	ProjectID string `yaml:"project-id,omitempty" json:"project-id,omitempty"`

	// Headers lists extra headers applied to every upstream request.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	// Models optionally restricts which model ids this account serves.
	// Empty means all models the provider knows.
	Models []string `yaml:"models,omitempty" json:"models,omitempty"`
}

// LoadConfig reads and parses the YAML configuration file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := &Config{}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.UsageLogInterval <= 0 {
		c.UsageLogInterval = DefaultUsageLogInterval
	}
	if c.AllowlistVariant == "" {
		c.AllowlistVariant = "current"
	}
	for i := range c.Accounts {
		a := &c.Accounts[i]
		a.Type = strings.ToLower(strings.TrimSpace(a.Type))
		a.Name = strings.TrimSpace(a.Name)
		if a.Name == "" {
			a.Name = fmt.Sprintf("%s-%d", a.Type, i)
		}
		a.BaseURL = strings.TrimSuffix(strings.TrimSpace(a.BaseURL), "/")
		a.APIKey = strings.TrimSpace(a.APIKey)
		a.TokenFile = strings.TrimSpace(a.TokenFile)
		a.ConfigTOML = strings.TrimSpace(a.ConfigTOML)
		a.ProjectID = strings.TrimSpace(a.ProjectID)
		a.Headers = NormalizeHeaders(a.Headers)
	}
}

var knownAccountTypes = map[string]bool{
	"kiro":        true,
	"codex":       true,
	"qwen":        true,
	"antigravity": true,
	"gemini-cli":  true,
	"zai-image":   true,
}

// Validate checks the configuration for errors a typo could introduce.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	switch c.AllowlistVariant {
	case "current", "target":
	default:
		return fmt.Errorf("config: unknown allowlist-variant %q", c.AllowlistVariant)
	}
	seen := make(map[string]bool, len(c.Accounts))
	for i := range c.Accounts {
		a := &c.Accounts[i]
		if !knownAccountTypes[a.Type] {
			return fmt.Errorf("config: account %s has unknown type %q", a.Name, a.Type)
		}
		if seen[a.Name] {
			return fmt.Errorf("config: duplicate account name %q", a.Name)
		}
		seen[a.Name] = true
	}
	return nil
}

// Address returns the host:port string the server listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AccountByName returns the named account, or nil when unknown.
func (c *Config) AccountByName(name string) *Account {
	if c == nil {
		return nil
	}
	for i := range c.Accounts {
		if c.Accounts[i].Name == name {
			return &c.Accounts[i]
		}
	}
	return nil
}

// AccountsByType returns the accounts of the given provider type, in
// configuration order.
func (c *Config) AccountsByType(configType string) []*Account {
	if c == nil {
		return nil
	}
	var accounts []*Account
	for i := range c.Accounts {
		if c.Accounts[i].Type == configType {
			accounts = append(accounts, &c.Accounts[i])
		}
	}
	return accounts
}

// ResolvePath resolves a credential file path against AuthDir. Absolute
// paths and paths starting with ~ are returned expanded as-is.
func (c *Config) ResolvePath(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	if filepath.IsAbs(path) || c == nil || c.AuthDir == "" {
		return path
	}
	return filepath.Join(c.AuthDir, path)
}

// AllowsModel reports whether the account may serve the model id. An empty
// Models list allows every model the provider knows.
func (a *Account) AllowsModel(modelID string) bool {
	if a == nil {
		return false
	}
	if len(a.Models) == 0 {
		return true
	}
	for _, m := range a.Models {
		if strings.EqualFold(strings.TrimSpace(m), modelID) {
			return true
		}
	}
	return false
}

// NormalizeHeaders trims header keys and values and drops empty entries.
// Returns nil when nothing survives.
func NormalizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	normalized := make(map[string]string, len(headers))
	for k, v := range headers {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		normalized[k] = v
	}
	if len(normalized) == 0 {
		return nil
	}
	return normalized
}
