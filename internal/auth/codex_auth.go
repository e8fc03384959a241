package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/oauth2"
)

// CodexAuth is the on-disk shape of a Codex CLI auth.json. Both the flat
// token layout and the nested "tokens" layout the CLI has used are accepted.
type CodexAuth struct {
	// APIKey is used when the account authenticates with a plain key.
	APIKey string `json:"OPENAI_API_KEY,omitempty"`
	// AccessToken and friends are the flat layout.
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	AccountID    string `json:"account_id,omitempty"`
	Email        string `json:"email,omitempty"`
	// Expire is the RFC3339 expiry of the access token.
	Expire string `json:"expired,omitempty"`
	// Tokens is the nested layout written by newer CLI versions.
	Tokens *CodexTokens `json:"tokens,omitempty"`
	// LastRefresh records when the CLI last refreshed the tokens.
	LastRefresh string `json:"last_refresh,omitempty"`
}

// CodexTokens is the nested token block of a Codex CLI auth.json.
type CodexTokens struct {
	IDToken      string `json:"id_token,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	AccountID    string `json:"account_id,omitempty"`
}

// LoadCodexAuth reads and parses a Codex CLI auth.json.
func LoadCodexAuth(path string) (*CodexAuth, error) {
	if path == "" {
		return nil, fmt.Errorf("auth: codex account has no token-file")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("auth: read codex auth: %w", err)
	}
	bundle := &CodexAuth{}
	if err = json.Unmarshal(data, bundle); err != nil {
		return nil, fmt.Errorf("auth: parse codex auth %s: %w", path, err)
	}
	if bundle.accessToken() == "" && bundle.APIKey == "" {
		return nil, fmt.Errorf("auth: codex auth %s has no access_token or OPENAI_API_KEY", path)
	}
	return bundle, nil
}

func (a *CodexAuth) accessToken() string {
	if a.AccessToken != "" {
		return a.AccessToken
	}
	if a.Tokens != nil {
		return a.Tokens.AccessToken
	}
	return ""
}

// ChatGPTAccountID returns the account id used in the chatgpt-account-id
// header, from whichever layout carries it.
func (a *CodexAuth) ChatGPTAccountID() string {
	if a.AccountID != "" {
		return a.AccountID
	}
	if a.Tokens != nil {
		return a.Tokens.AccountID
	}
	return ""
}

// OAuthToken converts the bundle into an oauth2.Token. API-key-only bundles
// yield a token with the key as AccessToken and no expiry.
func (a *CodexAuth) OAuthToken() *oauth2.Token {
	access := a.accessToken()
	if access == "" {
		return &oauth2.Token{AccessToken: a.APIKey}
	}
	token := &oauth2.Token{
		AccessToken: access,
		TokenType:   "Bearer",
	}
	if a.Tokens != nil {
		token.RefreshToken = a.Tokens.RefreshToken
	} else {
		token.RefreshToken = a.RefreshToken
	}
	if exp := strings.TrimSpace(a.Expire); exp != "" {
		parsed, err := time.Parse(time.RFC3339, exp)
		if err != nil {
			parsed = time.Unix(0, 0)
		}
		token.Expiry = parsed
	}
	return token
}

// CodexConfig mirrors the subset of a Codex CLI config.toml the gateway
// reads: the active model and the provider base URL.
type CodexConfig struct {
	Model         string                   `toml:"model"`
	ModelProvider string                   `toml:"model_provider"`
	Providers     map[string]CodexProvider `toml:"model_providers"`
}

// CodexProvider is one model_providers entry in a Codex CLI config.toml.
type CodexProvider struct {
	Name    string `toml:"name"`
	BaseURL string `toml:"base_url"`
	WireAPI string `toml:"wire_api"`
}

// LoadCodexConfig reads and parses a Codex CLI config.toml.
func LoadCodexConfig(path string) (*CodexConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("auth: read codex config: %w", err)
	}
	cfg := &CodexConfig{}
	if err = toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("auth: parse codex config %s: %w", path, err)
	}
	return cfg, nil
}

// ActiveBaseURL returns the base URL of the selected model provider, or
// empty when the config does not name one.
func (c *CodexConfig) ActiveBaseURL() string {
	if c == nil || c.ModelProvider == "" {
		return ""
	}
	provider, ok := c.Providers[c.ModelProvider]
	if !ok {
		return ""
	}
	return strings.TrimSuffix(provider.BaseURL, "/")
}

// LoadAPIKey reads a credential file holding a bare key, either as plain
// text or as JSON {"api_key": "..."}.
func LoadAPIKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("auth: read key file: %w", err)
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var parsed struct {
			APIKey string `json:"api_key"`
		}
		if err = json.Unmarshal([]byte(trimmed), &parsed); err != nil {
			return "", fmt.Errorf("auth: parse key file %s: %w", path, err)
		}
		trimmed = strings.TrimSpace(parsed.APIKey)
	}
	if trimmed == "" {
		return "", fmt.Errorf("auth: key file %s is empty", path)
	}
	return trimmed, nil
}
