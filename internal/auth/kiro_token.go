package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// KiroToken is the on-disk shape of a Kiro (CodeWhisperer) credential file.
// External tooling writes and refreshes it; the gateway only reads.
type KiroToken struct {
	// Type is always "kiro".
	Type string `json:"type"`
	// AccessToken is the bearer token sent to the CodeWhisperer endpoint.
	AccessToken string `json:"access_token"`
	// RefreshToken is kept for the external refresher, unused here.
	RefreshToken string `json:"refresh_token"`
	// Email identifies the signed-in user.
	Email string `json:"email,omitempty"`
	// ExpiresAt is the RFC3339 timestamp the access token expires at.
	ExpiresAt string `json:"expires_at"`
	// AuthMethod is "builder_id" or "idc".
	AuthMethod string `json:"auth_method,omitempty"`
	// ProfileArn is the CodeWhisperer profile ARN the account is bound to.
	ProfileArn string `json:"profile_arn,omitempty"`
	// LastRefresh records when the external refresher last ran.
	LastRefresh string `json:"last_refresh,omitempty"`
}

// LoadKiroToken reads and parses a Kiro credential file.
func LoadKiroToken(path string) (*KiroToken, error) {
	if path == "" {
		return nil, fmt.Errorf("auth: kiro account has no token-file")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("auth: read kiro token: %w", err)
	}
	token := &KiroToken{}
	if err = json.Unmarshal(data, token); err != nil {
		return nil, fmt.Errorf("auth: parse kiro token %s: %w", path, err)
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return nil, fmt.Errorf("auth: kiro token %s has no access_token", path)
	}
	return token, nil
}

// OAuthToken converts the file shape into an oauth2.Token. An unparsable
// expiry is mapped to the epoch so the token reads as expired rather than
// immortal.
func (t *KiroToken) OAuthToken() *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    "Bearer",
	}
	if exp := strings.TrimSpace(t.ExpiresAt); exp != "" {
		parsed, err := time.Parse(time.RFC3339, exp)
		if err != nil {
			parsed = time.Unix(0, 0)
		}
		token.Expiry = parsed
	}
	return token
}

// Save writes the token back in the same JSON shape, creating parent
// directories as needed. Used by provisioning helpers and tests.
func (t *KiroToken) Save(path string) error {
	t.Type = "kiro"
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("auth: create token dir: %w", err)
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
