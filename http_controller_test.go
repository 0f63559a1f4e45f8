package gateway

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-auth-gateway/provider"
)

type stubAdapter struct {
	name        string
	authBase    string
	identity    *provider.Identity
	authErr     error
	exchangeErr error
	lastState   string
	lastCode    string
}

func (a *stubAdapter) Name() string {
	return a.name
}

func (a *stubAdapter) AuthCodeURL(ctx context.Context, state string, opts ...provider.AuthCodeOption) (string, error) {
	if a.authErr != nil {
		return "", a.authErr
	}
	a.lastState = state
	return a.authBase + "?state=" + url.QueryEscape(state), nil
}

func (a *stubAdapter) ExchangeCode(ctx context.Context, code string, opts ...provider.ExchangeOption) (*provider.Identity, error) {
	if a.exchangeErr != nil {
		return nil, a.exchangeErr
	}
	a.lastCode = code
	return a.identity, nil
}

func (a *stubAdapter) RefreshToken(ctx context.Context, refreshToken string) (*provider.Token, error) {
	return nil, nil
}

func newTestSession() *SessionEstablisher {
	tokens := NewTokenService([]byte("test-signing-key"), 24, "gateway-test", jwt.ClaimStrings{}, nil)
	return NewSessionEstablisher(tokens, WithDefaultRedirect("/"))
}

func newFlowTestContext() (*router.MockContext, map[string]string, *string) {
	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())

	cookies := map[string]string{}
	ctx.On("Cookie", mock.Anything).Run(func(args mock.Arguments) {
		c := args.Get(0).(*router.Cookie)
		if c.Expires.Before(time.Now()) {
			delete(cookies, c.Name)
			return
		}
		cookies[c.Name] = c.Value
	}).Return()

	redirectURL := new(string)
	ctx.On("Redirect", mock.Anything, []int{http.StatusTemporaryRedirect}).Run(func(args mock.Arguments) {
		*redirectURL = args.String(0)
	}).Return(nil)

	return ctx, cookies, redirectURL
}

func captureJSON(ctx *router.MockContext) (*int, *map[string]any) {
	status := new(int)
	payload := new(map[string]any)
	ctx.On("JSON", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		*status = args.Int(0)
		*payload = args.Get(1).(map[string]any)
	}).Return(nil)
	return status, payload
}

func TestFlowControllerInitiateRedirects(t *testing.T) {
	reconciler, _, cleanup := setupReconcilerTest(t, nil)
	defer cleanup()

	adapter := &stubAdapter{name: "stub", authBase: "https://auth.example/authorize"}
	controller := NewFlowController(reconciler, newTestSession(), []provider.Adapter{adapter})

	ctx, cookies, redirectURL := newFlowTestContext()
	ctx.ParamsM["provider"] = "stub"
	ctx.HeadersM["Referer"] = "https://app.example.com/page"
	ctx.On("Referer").Return("https://app.example.com/page")

	err := controller.Initiate(ctx)
	require.NoError(t, err)

	require.NotEmpty(t, *redirectURL)
	parsed, err := url.Parse(*redirectURL)
	require.NoError(t, err)
	require.Equal(t, "auth.example", parsed.Host)
	require.Equal(t, adapter.lastState, parsed.Query().Get("state"))

	require.Equal(t, "https://app.example.com/page", cookies[DefaultReturnToCookie])
	require.Equal(t, adapter.lastState, cookies["gateway_oauth_state"])
}

func TestFlowControllerInitiateMissingReferer(t *testing.T) {
	reconciler, _, cleanup := setupReconcilerTest(t, nil)
	defer cleanup()

	adapter := &stubAdapter{name: "stub", authBase: "https://auth.example/authorize"}
	controller := NewFlowController(reconciler, newTestSession(), []provider.Adapter{adapter})

	ctx, _, redirectURL := newFlowTestContext()
	ctx.ParamsM["provider"] = "stub"
	ctx.On("Referer").Return("")
	status, payload := captureJSON(ctx)

	err := controller.Initiate(ctx)
	require.NoError(t, err)

	require.Empty(t, *redirectURL)
	require.Equal(t, http.StatusBadRequest, *status)
	require.Equal(t, TextCodeMissingReferer, (*payload)["text_code"])
	require.NotEmpty(t, (*payload)["error"])
}

func TestFlowControllerInitiateUnknownProvider(t *testing.T) {
	reconciler, _, cleanup := setupReconcilerTest(t, nil)
	defer cleanup()

	controller := NewFlowController(reconciler, newTestSession(), nil)

	ctx, _, redirectURL := newFlowTestContext()
	ctx.ParamsM["provider"] = "nope"
	status, payload := captureJSON(ctx)

	err := controller.Initiate(ctx)
	require.NoError(t, err)

	require.Empty(t, *redirectURL)
	require.Equal(t, http.StatusNotFound, *status)
	require.Equal(t, TextCodeProviderUnknown, (*payload)["text_code"])
}

func TestFlowControllerInitiateUnconfiguredProvider(t *testing.T) {
	reconciler, _, cleanup := setupReconcilerTest(t, nil)
	defer cleanup()

	adapter := &stubAdapter{name: "stub", authErr: ErrNotConfigured.Clone()}
	controller := NewFlowController(reconciler, newTestSession(), []provider.Adapter{adapter})

	ctx, _, redirectURL := newFlowTestContext()
	ctx.ParamsM["provider"] = "stub"
	ctx.On("Referer").Return("https://app.example.com/page")
	status, payload := captureJSON(ctx)

	err := controller.Initiate(ctx)
	require.NoError(t, err)

	require.Empty(t, *redirectURL)
	require.Equal(t, http.StatusBadRequest, *status)
	require.Equal(t, TextCodeNotConfigured, (*payload)["text_code"])
}

func TestFlowControllerCallbackEstablishesSession(t *testing.T) {
	reconciler, repo, cleanup := setupReconcilerTest(t, nil)
	defer cleanup()

	adapter := &stubAdapter{
		name:     "stub",
		identity: googleIdentity("ada@example.com"),
	}
	adapter.identity.Provider = "stub"

	session := newTestSession()
	controller := NewFlowController(reconciler, session, []provider.Adapter{adapter})

	ctx, cookies, redirectURL := newFlowTestContext()
	ctx.ParamsM["provider"] = "stub"
	ctx.QueriesM["code"] = "auth-code"
	ctx.QueriesM["state"] = "state-1"
	ctx.CookiesM["gateway_oauth_state"] = "state-1"
	ctx.CookiesM[DefaultReturnToCookie] = "https://app.example.com/page?foo=bar"

	err := controller.Callback(ctx)
	require.NoError(t, err)

	require.Equal(t, "auth-code", adapter.lastCode)
	require.NotEmpty(t, cookies[DefaultSessionCookie])

	parsed, err := url.Parse(*redirectURL)
	require.NoError(t, err)
	require.Equal(t, "app.example.com", parsed.Host)
	require.Equal(t, "bar", parsed.Query().Get("foo"))
	require.Equal(t, "true", parsed.Query().Get("new_account"))

	account, err := repo.Accounts().GetByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	require.Equal(t, "stub", account.LastLoginMedium)
}

func TestFlowControllerCallbackStateMismatch(t *testing.T) {
	reconciler, repo, cleanup := setupReconcilerTest(t, nil)
	defer cleanup()

	adapter := &stubAdapter{name: "stub", identity: googleIdentity("ada@example.com")}
	controller := NewFlowController(reconciler, newTestSession(), []provider.Adapter{adapter})

	ctx, _, redirectURL := newFlowTestContext()
	ctx.ParamsM["provider"] = "stub"
	ctx.QueriesM["code"] = "auth-code"
	ctx.QueriesM["state"] = "state-1"
	ctx.CookiesM["gateway_oauth_state"] = "other-state"

	err := controller.Callback(ctx)
	require.NoError(t, err)

	parsed, err := url.Parse(*redirectURL)
	require.NoError(t, err)
	require.Equal(t, TextCodeInvalidState, parsed.Query().Get("error"))

	_, err = repo.Accounts().GetByEmail(context.Background(), "ada@example.com")
	require.Error(t, err)
}

func TestFlowControllerCallbackMissingCodeRedirectsQuietly(t *testing.T) {
	reconciler, repo, cleanup := setupReconcilerTest(t, nil)
	defer cleanup()

	adapter := &stubAdapter{name: "stub", identity: googleIdentity("ada@example.com")}
	controller := NewFlowController(reconciler, newTestSession(), []provider.Adapter{adapter})

	ctx, cookies, redirectURL := newFlowTestContext()
	ctx.ParamsM["provider"] = "stub"
	ctx.CookiesM[DefaultReturnToCookie] = "https://app.example.com/page"

	err := controller.Callback(ctx)
	require.NoError(t, err)

	require.Equal(t, "https://app.example.com/page", *redirectURL)
	require.Empty(t, adapter.lastCode)
	require.NotContains(t, cookies, DefaultSessionCookie)

	_, err = repo.Accounts().GetByEmail(context.Background(), "ada@example.com")
	require.Error(t, err)
}

func TestFlowControllerCallbackSignupDisabledRedirectsQuietly(t *testing.T) {
	reconciler, repo, cleanup := setupReconcilerTest(t, map[string]string{
		SettingEnableSignup: "0",
	})
	defer cleanup()

	adapter := &stubAdapter{name: "stub", identity: googleIdentity("nobody@example.com")}
	controller := NewFlowController(reconciler, newTestSession(), []provider.Adapter{adapter})

	ctx, cookies, redirectURL := newFlowTestContext()
	ctx.ParamsM["provider"] = "stub"
	ctx.QueriesM["code"] = "auth-code"
	ctx.QueriesM["state"] = "state-1"
	ctx.CookiesM["gateway_oauth_state"] = "state-1"
	ctx.CookiesM[DefaultReturnToCookie] = "https://app.example.com/page"

	err := controller.Callback(ctx)
	require.NoError(t, err)

	require.Equal(t, "https://app.example.com/page", *redirectURL)

	parsed, err := url.Parse(*redirectURL)
	require.NoError(t, err)
	require.Empty(t, parsed.Query().Get("error"))
	require.NotContains(t, cookies, DefaultSessionCookie)

	_, err = repo.Accounts().GetByEmail(context.Background(), "nobody@example.com")
	require.Error(t, err)
}

func TestFlowControllerCallbackProviderError(t *testing.T) {
	reconciler, _, cleanup := setupReconcilerTest(t, nil)
	defer cleanup()

	adapter := &stubAdapter{name: "stub"}
	controller := NewFlowController(reconciler, newTestSession(), []provider.Adapter{adapter})

	ctx, _, redirectURL := newFlowTestContext()
	ctx.ParamsM["provider"] = "stub"
	ctx.QueriesM["error"] = "access_denied"
	ctx.QueriesM["error_description"] = "User denied access"
	ctx.CookiesM[DefaultReturnToCookie] = "https://app.example.com/page"

	err := controller.Callback(ctx)
	require.NoError(t, err)

	parsed, err := url.Parse(*redirectURL)
	require.NoError(t, err)
	require.Equal(t, "access_denied", parsed.Query().Get("error"))
	require.Equal(t, "User denied access", parsed.Query().Get("error_description"))
}

func TestFlowControllerSignOutClearsSession(t *testing.T) {
	reconciler, _, cleanup := setupReconcilerTest(t, nil)
	defer cleanup()

	controller := NewFlowController(reconciler, newTestSession(), nil)

	ctx, cookies, _ := newFlowTestContext()
	cookies[DefaultSessionCookie] = "stale-token"

	var payload map[string]string
	ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]string)
	}).Return(nil)

	err := controller.SignOut(ctx)
	require.NoError(t, err)
	require.Equal(t, "signed_out", payload["status"])
	require.NotContains(t, cookies, DefaultSessionCookie)
}

func TestFlowControllerSessionReturnsClaims(t *testing.T) {
	reconciler, _, cleanup := setupReconcilerTest(t, nil)
	defer cleanup()

	session := newTestSession()
	controller := NewFlowController(reconciler, session, nil)

	account := googleIdentity("ada@example.com")
	created, err := reconciler.SignUp(context.Background(), account.Email, "sup3r-secret", nil)
	require.NoError(t, err)

	tokens := NewTokenService([]byte("test-signing-key"), 24, "gateway-test", jwt.ClaimStrings{}, nil)
	token, err := tokens.Generate(created, MediumEmail)
	require.NoError(t, err)

	ctx, _, _ := newFlowTestContext()
	ctx.CookiesM[DefaultSessionCookie] = token

	var payload map[string]any
	ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]any)
	}).Return(nil)

	err = controller.Session(ctx)
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", payload["email"])
	require.Equal(t, MediumEmail, payload["medium"])
	require.Equal(t, created.ID.String(), payload["subject"])
}
