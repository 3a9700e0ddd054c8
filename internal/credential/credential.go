// Package credential exchanges OAuth2 client credentials for a bearer token
// used by the action dispatcher. Tokens are fetched per call and never cached.
package credential

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultTimeout bounds a single token exchange.
const DefaultTimeout = 15 * time.Second

// ErrMissingConfig is returned when the token endpoint or client credentials
// are not configured. It is detectable before any network call.
var ErrMissingConfig = errors.New("credential: missing configuration")

// Provider returns a bearer token for the business-system API.
type Provider interface {
	Token(ctx context.Context) (string, error)
}

// Config holds the client-credentials grant parameters.
type Config struct {
	// TokenURL is the OAuth2 token endpoint (SAP_TOKEN_URL).
	TokenURL string
	// ClientID is the OAuth2 client id (SAP_CLIENT_ID).
	ClientID string
	// ClientSecret is the OAuth2 client secret (SAP_CLIENT_SECRET).
	ClientSecret string
	// Scopes are optional requested scopes (SAP_TOKEN_SCOPES, comma-separated).
	Scopes []string
	// Timeout bounds each exchange. Defaults to DefaultTimeout if zero.
	Timeout time.Duration
}

// ConfigFromEnv reads the grant parameters from the environment.
func ConfigFromEnv() Config {
	cfg := Config{
		TokenURL:     os.Getenv("SAP_TOKEN_URL"),
		ClientID:     os.Getenv("SAP_CLIENT_ID"),
		ClientSecret: os.Getenv("SAP_CLIENT_SECRET"),
	}
	for _, s := range strings.Split(os.Getenv("SAP_TOKEN_SCOPES"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			cfg.Scopes = append(cfg.Scopes, s)
		}
	}
	if v := os.Getenv("TOKEN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = d
		}
	}
	return cfg
}

// Validate reports which required settings are missing, wrapped in
// ErrMissingConfig. It performs no I/O.
func (c Config) Validate() error {
	var missing []string
	if c.TokenURL == "" {
		missing = append(missing, "SAP_TOKEN_URL")
	}
	if c.ClientID == "" {
		missing = append(missing, "SAP_CLIENT_ID")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "SAP_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

// ClientCredentials implements Provider with the OAuth2 client-credentials
// grant.
type ClientCredentials struct {
	// cfg is the validated-on-use grant configuration.
	cfg Config
	// grant is the x/oauth2 client-credentials config.
	grant *clientcredentials.Config
	// httpClient performs the token POST.
	httpClient *http.Client
}

// New returns a ClientCredentials provider. Missing configuration is not an
// error here; it surfaces from Token so the dispatcher can report it per
// action.
func New(cfg Config) *ClientCredentials {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &ClientCredentials{
		cfg: cfg,
		grant: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		},
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Token performs one client-credentials exchange and returns the access
// token.
func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	if err := c.cfg.Validate(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := c.grant.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("credential: token exchange failed: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("credential: token endpoint returned no access_token")
	}
	return tok.AccessToken, nil
}

// TokenURL returns the configured token endpoint, used by readiness probes.
func (c *ClientCredentials) TokenURL() string { return c.cfg.TokenURL }
