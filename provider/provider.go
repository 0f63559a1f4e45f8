package provider

import (
	"context"
	"time"
)

// Adapter is the contract every upstream identity provider implements.
// Adapters translate the provider's wire protocol into a normalized
// Identity; callers never see provider-specific payload shapes.
type Adapter interface {
	// Name returns the provider identifier (e.g. "google").
	Name() string

	// AuthCodeURL returns the URL to redirect users for authorization.
	// Credentials are resolved per request, so an unconfigured provider
	// surfaces here rather than at construction time.
	AuthCodeURL(ctx context.Context, state string, opts ...AuthCodeOption) (string, error)

	// ExchangeCode trades an authorization code for a normalized
	// Identity: token exchange, profile fetch, and field mapping in one
	// step. The returned Identity always carries the raw Token.
	ExchangeCode(ctx context.Context, code string, opts ...ExchangeOption) (*Identity, error)

	// RefreshToken refreshes an expired access token (if supported).
	RefreshToken(ctx context.Context, refreshToken string) (*Token, error)
}

// Credentials holds the OAuth client pair for one provider.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Configured reports whether the credentials are usable.
func (c Credentials) Configured() bool {
	return c.ClientID != ""
}

// CredentialSource resolves client credentials at request time, letting
// deployments rotate or store them outside the process environment.
type CredentialSource interface {
	Credentials(ctx context.Context, provider string) (Credentials, error)
}

// StaticCredentials adapts a fixed client pair into a CredentialSource.
type StaticCredentials Credentials

func (s StaticCredentials) Credentials(ctx context.Context, provider string) (Credentials, error) {
	return Credentials(s), nil
}

// AuthCodeOption configures the authorization URL.
type AuthCodeOption func(*authCodeConfig)

// WithScopes sets additional scopes for the auth request.
func WithScopes(scopes ...string) AuthCodeOption {
	return func(c *authCodeConfig) {
		c.scopes = append(c.scopes, scopes...)
	}
}

// WithPKCE enables PKCE with the given code challenge.
func WithPKCE(codeChallenge, method string) AuthCodeOption {
	return func(c *authCodeConfig) {
		c.codeChallenge = codeChallenge
		c.codeChallengeMethod = method
	}
}

// WithPrompt sets the prompt parameter (e.g., "consent", "select_account").
func WithPrompt(prompt string) AuthCodeOption {
	return func(c *authCodeConfig) {
		c.prompt = prompt
	}
}

// ExchangeOption configures the token exchange.
type ExchangeOption func(*exchangeConfig)

// WithCodeVerifier sets the PKCE code verifier for token exchange.
func WithCodeVerifier(verifier string) ExchangeOption {
	return func(c *exchangeConfig) {
		c.codeVerifier = verifier
	}
}

type authCodeConfig struct {
	scopes              []string
	codeChallenge       string
	codeChallengeMethod string
	prompt              string
}

type exchangeConfig struct {
	codeVerifier string
}

// AuthCodeConfig represents applied auth code options in a provider-friendly form.
type AuthCodeConfig struct {
	Scopes              []string
	CodeChallenge       string
	CodeChallengeMethod string
	Prompt              string
}

// ExchangeConfig represents applied exchange options in a provider-friendly form.
type ExchangeConfig struct {
	CodeVerifier string
}

// ApplyAuthCodeOptions applies AuthCodeOption values and returns a normalized config.
func ApplyAuthCodeOptions(scopes []string, opts ...AuthCodeOption) AuthCodeConfig {
	cfg := authCodeConfig{scopes: append([]string(nil), scopes...)}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return AuthCodeConfig{
		Scopes:              cfg.scopes,
		CodeChallenge:       cfg.codeChallenge,
		CodeChallengeMethod: cfg.codeChallengeMethod,
		Prompt:              cfg.prompt,
	}
}

// ApplyExchangeOptions applies ExchangeOption values and returns a normalized config.
func ApplyExchangeOptions(opts ...ExchangeOption) ExchangeConfig {
	cfg := exchangeConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return ExchangeConfig{
		CodeVerifier: cfg.codeVerifier,
	}
}

// Token represents an OAuth2 token response.
type Token struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	IDToken      string
	ExpiresAt    time.Time
	Scopes       []string
	Raw          map[string]any
}

// Identity is the normalized result of a completed code exchange.
// Email is the reconciliation key downstream, so adapters must reject
// payloads without one.
type Identity struct {
	Provider       string
	ProviderUserID string
	Email          string
	EmailVerified  bool
	Name           string
	FirstName      string
	LastName       string
	AvatarURL      string
	Token          *Token
	Raw            map[string]any
}
