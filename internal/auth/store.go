// Package auth resolves upstream credentials from the account entries in the
// configuration. It only reads credential files that external tooling keeps
// fresh (Kiro token JSON, Codex CLI auth.json/config.toml, inline API keys);
// it never runs an OAuth flow or refreshes a token itself.
package auth

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/router-for-me/AntiHubAPI/internal/config"
)

// Credentials is everything an executor needs to call an upstream on behalf
// of one account.
type Credentials struct {
	// AccountID is the config account name, echoed into usage records.
	AccountID string
	// ConfigType is the provider type the account was declared with.
	ConfigType string
	// BaseURL overrides the provider default endpoint when non-empty.
	BaseURL string
	// Headers are extra headers applied to every upstream request.
	Headers map[string]string
	// Token carries the bearer credential. For API-key accounts the key is
	// stored in AccessToken with no expiry.
	Token *oauth2.Token
	// ProfileArn is the CodeWhisperer profile for Kiro accounts.
	ProfileArn string
	// ProjectID is the cloud project gemini-cli requests bill against.
	ProjectID string
	// ChatGPTAccountID is sent as the chatgpt-account-id header on Codex calls.
	ChatGPTAccountID string
	// Model is the upstream model hint from the Codex CLI config, when set.
	Model string
}

// Expired reports whether the credential is past its recorded expiry.
// Refreshing is external policy; callers surface the condition instead of
// fixing it.
func (c *Credentials) Expired() bool {
	if c == nil || c.Token == nil {
		return true
	}
	if c.Token.Expiry.IsZero() {
		return false
	}
	return !c.Token.Valid()
}

// Store resolves credentials for configured accounts.
type Store struct {
	cfg *config.Config
}

// NewStore creates a store over the given configuration snapshot.
func NewStore(cfg *config.Config) *Store {
	return &Store{cfg: cfg}
}

// SetConfig swaps the configuration snapshot the store reads from.
func (s *Store) SetConfig(cfg *config.Config) {
	s.cfg = cfg
}

// CredentialsFor resolves the credentials of the named account. Credential
// files are re-read on every call so external refreshes are picked up
// without a reload.
func (s *Store) CredentialsFor(accountID string) (*Credentials, error) {
	account := s.cfg.AccountByName(accountID)
	if account == nil {
		return nil, fmt.Errorf("auth: unknown account %q", accountID)
	}

	creds := &Credentials{
		AccountID:  account.Name,
		ConfigType: account.Type,
		BaseURL:    account.BaseURL,
		Headers:    account.Headers,
		ProjectID:  account.ProjectID,
	}

	switch account.Type {
	case "kiro":
		token, err := LoadKiroToken(s.cfg.ResolvePath(account.TokenFile))
		if err != nil {
			return nil, err
		}
		creds.Token = token.OAuthToken()
		creds.ProfileArn = account.ProfileArn
		if creds.ProfileArn == "" {
			creds.ProfileArn = token.ProfileArn
		}
		if creds.Expired() {
			log.Warnf("auth: kiro account %s token expired at %s", account.Name, token.ExpiresAt)
		}

	case "codex":
		bundle, err := LoadCodexAuth(s.cfg.ResolvePath(account.TokenFile))
		if err != nil {
			return nil, err
		}
		creds.Token = bundle.OAuthToken()
		creds.ChatGPTAccountID = bundle.ChatGPTAccountID()
		if account.ConfigTOML != "" {
			codexCfg, errCfg := LoadCodexConfig(s.cfg.ResolvePath(account.ConfigTOML))
			if errCfg != nil {
				return nil, errCfg
			}
			if creds.BaseURL == "" {
				creds.BaseURL = codexCfg.ActiveBaseURL()
			}
			creds.Model = codexCfg.Model
		}
		if creds.Expired() {
			log.Warnf("auth: codex account %s token expired", account.Name)
		}

	default:
		// qwen, antigravity, gemini-cli and zai-image accounts carry a
		// plain API key, inline or in a token file.
		key := account.APIKey
		if key == "" && account.TokenFile != "" {
			loaded, err := LoadAPIKey(s.cfg.ResolvePath(account.TokenFile))
			if err != nil {
				return nil, err
			}
			key = loaded
		}
		if key == "" {
			return nil, fmt.Errorf("auth: account %q has no credential", accountID)
		}
		creds.Token = &oauth2.Token{AccessToken: key}
	}

	return creds, nil
}
