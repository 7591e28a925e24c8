package gdrive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"

	"lecturenote/internal/fileutil"
	"lecturenote/internal/services"
)

// authState is echoed back by Google on the consent redirect.
const authState = "lecturenote"

// LoadOAuthConfig parses a client secret file downloaded from the Google
// Cloud console.
func LoadOAuthConfig(credentialsFile string) (*oauth2.Config, error) {
	if strings.TrimSpace(credentialsFile) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "drive", "load credentials", "drive.credentials_file is empty", nil)
	}
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "drive", "load credentials", "read credentials file", err)
	}
	cfg, err := google.ConfigFromJSON(data, drive.DriveFileScope)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "drive", "load credentials", "parse credentials file", err)
	}
	return cfg, nil
}

// AuthURL returns the consent page the operator opens to authorize access.
func AuthURL(cfg *oauth2.Config) string {
	return cfg.AuthCodeURL(authState, oauth2.AccessTypeOffline)
}

// ExchangeAndSave trades an authorization code for a token and caches it.
func ExchangeAndSave(ctx context.Context, cfg *oauth2.Config, code, tokenFile string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return services.Wrap(services.ErrValidation, "drive", "exchange", "authorization code is empty", nil)
	}
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "drive", "exchange", "token exchange failed", err)
	}
	return SaveToken(tokenFile, token)
}

// LoadToken reads a cached token.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", path, err)
	}
	return &token, nil
}

// SaveToken writes the token readable by the owner only.
func SaveToken(path string, token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("save token: token is nil")
	}
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}
