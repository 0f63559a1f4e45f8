package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-auth-gateway/provider"
)

// Name is the provider identifier used in routes and stored credentials.
const Name = "google"

const (
	defaultAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL    = "https://oauth2.googleapis.com/token"
	defaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
	defaultJWKSURL     = "https://www.googleapis.com/oauth2/v3/certs"
)

// Config holds Google OAuth configuration. Client credentials come from
// the CredentialSource when set, so rotating them needs no restart; the
// static ClientID/ClientSecret pair is the fallback.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	// Credentials, when set, resolves the client pair per request.
	Credentials provider.CredentialSource

	// VerifyIDToken enables signature verification of the id_token
	// returned by the code exchange, using Google's JWKS.
	VerifyIDToken bool

	AuthURL     string
	TokenURL    string
	UserInfoURL string
	JWKSURL     string

	HTTPClient *http.Client
}

// DefaultScopes returns the default Google scopes.
func DefaultScopes() []string {
	return []string{"openid", "email", "profile"}
}

// Provider implements provider.Adapter for Google.
type Provider struct {
	config     Config
	httpClient *http.Client
	verifier   *idTokenVerifier
}

// New creates a new Google provider.
func New(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaultUserInfoURL
	}
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = defaultJWKSURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	p := &Provider{
		config:     cfg,
		httpClient: client,
	}

	if cfg.VerifyIDToken {
		p.verifier = newIDTokenVerifier(cfg.JWKSURL)
	}

	return p
}

// Name implements provider.Adapter.
func (p *Provider) Name() string {
	return Name
}

func (p *Provider) credentials(ctx context.Context) (provider.Credentials, error) {
	creds := provider.Credentials{
		ClientID:     p.config.ClientID,
		ClientSecret: p.config.ClientSecret,
	}

	if p.config.Credentials != nil {
		resolved, err := p.config.Credentials.Credentials(ctx, Name)
		if err != nil {
			return creds, provider.WrapError(provider.ErrNotConfigured, Name, "credentials", err)
		}
		if resolved.Configured() {
			creds = resolved
		}
	}

	if !creds.Configured() {
		return creds, provider.WrapError(provider.ErrNotConfigured, Name, "credentials", nil)
	}

	return creds, nil
}

// AuthCodeURL implements provider.Adapter.
func (p *Provider) AuthCodeURL(ctx context.Context, state string, opts ...provider.AuthCodeOption) (string, error) {
	creds, err := p.credentials(ctx)
	if err != nil {
		return "", err
	}

	cfg := provider.ApplyAuthCodeOptions(p.config.Scopes, opts...)
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes()
	}

	params := url.Values{
		"client_id":     {creds.ClientID},
		"redirect_uri":  {p.config.CallbackURL},
		"response_type": {"code"},
		"scope":         {strings.Join(scopes, " ")},
		"state":         {state},
		"access_type":   {"offline"},
	}

	if cfg.CodeChallenge != "" {
		method := cfg.CodeChallengeMethod
		if method == "" {
			method = "S256"
		}
		params.Set("code_challenge", cfg.CodeChallenge)
		params.Set("code_challenge_method", method)
	}

	if cfg.Prompt != "" {
		params.Set("prompt", cfg.Prompt)
	}

	return p.config.AuthURL + "?" + params.Encode(), nil
}

// ExchangeCode implements provider.Adapter. It performs the token
// exchange, optionally verifies the id_token, fetches the profile, and
// returns the normalized identity.
func (p *Provider) ExchangeCode(ctx context.Context, code string, opts ...provider.ExchangeOption) (*provider.Identity, error) {
	creds, err := p.credentials(ctx)
	if err != nil {
		return nil, err
	}

	token, err := p.exchange(ctx, creds, code, opts...)
	if err != nil {
		return nil, err
	}

	if p.verifier != nil && token.IDToken != "" {
		if _, err := p.verifier.verify(ctx, token.IDToken, creds.ClientID); err != nil {
			return nil, provider.WrapError(provider.ErrTokenExchangeFailed, Name, "id_token", err)
		}
	}

	info, err := p.userInfo(ctx, token)
	if err != nil {
		return nil, err
	}

	identity := mapIdentity(info, token)
	if identity.Email == "" {
		return nil, provider.WrapError(provider.ErrIdentityIncomplete, Name, "user_info", nil)
	}

	return identity, nil
}

func (p *Provider) exchange(ctx context.Context, creds provider.Credentials, code string, opts ...provider.ExchangeOption) (*provider.Token, error) {
	cfg := provider.ApplyExchangeOptions(opts...)

	data := url.Values{
		"client_id":     {creds.ClientID},
		"client_secret": {creds.ClientSecret},
		"code":          {code},
		"redirect_uri":  {p.config.CallbackURL},
		"grant_type":    {"authorization_code"},
	}

	if cfg.CodeVerifier != "" {
		data.Set("code_verifier", cfg.CodeVerifier)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, provider.WrapError(provider.ErrTokenExchangeFailed, Name, "exchange", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, provider.WrapError(provider.ErrTokenExchangeFailed, Name, "exchange", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.WrapError(provider.ErrTokenExchangeFailed, Name, "exchange", err)
	}

	var tokenResp googleTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, provider.WrapError(provider.ErrTokenExchangeFailed, Name, "exchange",
			responseError("exchange", resp.StatusCode, "invalid_response", "failed to decode token response", err, nil))
	}

	if resp.StatusCode != http.StatusOK || tokenResp.Error != "" {
		errCode, desc, raw := tokenResp.Error, tokenResp.ErrorDesc, tokenResp.errorMetadata()
		if errCode == "" && desc == "" {
			errCode, desc, raw = parseGoogleError(body)
		}

		base := provider.ErrTokenExchangeFailed
		if errCode == "invalid_grant" {
			base = provider.ErrInvalidGrant
		}

		return nil, provider.WrapError(base, Name, "exchange",
			responseError("exchange", resp.StatusCode, errCode, desc, nil, raw))
	}
	if tokenResp.AccessToken == "" {
		return nil, provider.WrapError(provider.ErrTokenExchangeFailed, Name, "exchange",
			responseError("exchange", resp.StatusCode, "missing_access_token", "missing access token", nil, nil))
	}

	expiresAt := time.Time{}
	if tokenResp.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	}

	return &provider.Token{
		AccessToken:  tokenResp.AccessToken,
		TokenType:    tokenResp.TokenType,
		RefreshToken: tokenResp.RefreshToken,
		IDToken:      tokenResp.IDToken,
		ExpiresAt:    expiresAt,
		Scopes:       splitSpaceScopes(tokenResp.Scope),
	}, nil
}

func (p *Provider) userInfo(ctx context.Context, token *provider.Token) (*googleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.UserInfoURL, nil)
	if err != nil {
		return nil, provider.WrapError(provider.ErrUserInfoFailed, Name, "user_info", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, provider.WrapError(provider.ErrUserInfoFailed, Name, "user_info", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.WrapError(provider.ErrUserInfoFailed, Name, "user_info", err)
	}

	if resp.StatusCode != http.StatusOK {
		errCode, description, raw := parseGoogleError(body)
		return nil, provider.WrapError(provider.ErrUserInfoFailed, Name, "user_info",
			responseError("user_info", resp.StatusCode, errCode, description, nil, raw))
	}

	var userInfo googleUserInfo
	if err := json.Unmarshal(body, &userInfo); err != nil {
		return nil, provider.WrapError(provider.ErrUserInfoFailed, Name, "user_info",
			responseError("user_info", resp.StatusCode, "invalid_response", "failed to decode userinfo response", err, nil))
	}

	return &userInfo, nil
}

// RefreshToken implements provider.Adapter.
func (p *Provider) RefreshToken(ctx context.Context, refreshToken string) (*provider.Token, error) {
	creds, err := p.credentials(ctx)
	if err != nil {
		return nil, err
	}

	data := url.Values{
		"client_id":     {creds.ClientID},
		"client_secret": {creds.ClientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, provider.WrapError(provider.ErrTokenExchangeFailed, Name, "refresh", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, provider.WrapError(provider.ErrTokenExchangeFailed, Name, "refresh", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.WrapError(provider.ErrTokenExchangeFailed, Name, "refresh", err)
	}

	var tokenResp googleTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, provider.WrapError(provider.ErrTokenExchangeFailed, Name, "refresh",
			responseError("refresh", resp.StatusCode, "invalid_response", "failed to decode refresh response", err, nil))
	}

	if resp.StatusCode != http.StatusOK || tokenResp.Error != "" {
		errCode, desc, raw := tokenResp.Error, tokenResp.ErrorDesc, tokenResp.errorMetadata()
		if errCode == "" && desc == "" {
			errCode, desc, raw = parseGoogleError(body)
		}

		base := provider.ErrTokenExchangeFailed
		if errCode == "invalid_grant" {
			base = provider.ErrInvalidGrant
		}

		return nil, provider.WrapError(base, Name, "refresh",
			responseError("refresh", resp.StatusCode, errCode, desc, nil, raw))
	}
	if tokenResp.AccessToken == "" {
		return nil, provider.WrapError(provider.ErrTokenExchangeFailed, Name, "refresh",
			responseError("refresh", resp.StatusCode, "missing_access_token", "missing access token", nil, nil))
	}

	expiresAt := time.Time{}
	if tokenResp.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	}

	return &provider.Token{
		AccessToken:  tokenResp.AccessToken,
		TokenType:    tokenResp.TokenType,
		RefreshToken: refreshToken,
		IDToken:      tokenResp.IDToken,
		ExpiresAt:    expiresAt,
		Scopes:       splitSpaceScopes(tokenResp.Scope),
	}, nil
}

type googleTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	IDToken      string `json:"id_token"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

func (r googleTokenResponse) errorMetadata() map[string]any {
	meta := map[string]any{}
	if r.Error != "" {
		meta["error"] = r.Error
	}
	if r.ErrorDesc != "" {
		meta["error_description"] = r.ErrorDesc
	}
	if r.Scope != "" {
		meta["scope"] = r.Scope
	}
	return meta
}

type googleErrorResponse struct {
	Error string `json:"error"`
	Desc  string `json:"error_description"`
}

type googleAPIError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func parseGoogleError(body []byte) (string, string, map[string]any) {
	var plain googleErrorResponse
	if err := json.Unmarshal(body, &plain); err == nil && (plain.Error != "" || plain.Desc != "") {
		return plain.Error, plain.Desc, map[string]any{
			"error":             plain.Error,
			"error_description": plain.Desc,
		}
	}

	var api googleAPIError
	if err := json.Unmarshal(body, &api); err == nil && (api.Error.Message != "" || api.Error.Status != "") {
		code := api.Error.Status
		if code == "" && api.Error.Code != 0 {
			code = fmt.Sprintf("%d", api.Error.Code)
		}
		return code, api.Error.Message, map[string]any{
			"status":  api.Error.Status,
			"message": api.Error.Message,
			"code":    api.Error.Code,
		}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = "google request failed"
	}

	return "", msg, nil
}

func splitSpaceScopes(scopes string) []string {
	if scopes == "" {
		return nil
	}

	parts := strings.Fields(scopes)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out
}

func responseError(operation string, status int, code, description string, err error, raw map[string]any) *provider.Error {
	return &provider.Error{
		Provider:    Name,
		Operation:   operation,
		Status:      status,
		Code:        code,
		Description: description,
		Err:         err,
		Raw:         raw,
	}
}
