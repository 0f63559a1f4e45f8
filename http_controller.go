package gateway

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-auth-gateway/provider"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// FlowController handles the two-phase provider flow plus the local
// password endpoints. Mount it under a prefix like /auth.
type FlowController struct {
	Debug bool

	providers  map[string]provider.Adapter
	reconciler *Reconciler
	session    *SessionEstablisher
	logger     Logger

	stateCookie string
	stateTTL    time.Duration
}

// FlowOption configures the FlowController.
type FlowOption func(*FlowController)

// WithFlowLogger sets the logger.
func WithFlowLogger(logger Logger) FlowOption {
	return func(c *FlowController) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithFlowDebug enables dumping reconciled accounts to stdout.
func WithFlowDebug(debug bool) FlowOption {
	return func(c *FlowController) {
		c.Debug = debug
	}
}

// WithStateCookie sets the name and lifetime of the CSRF state cookie.
func WithStateCookie(name string, ttl time.Duration) FlowOption {
	return func(c *FlowController) {
		if name != "" {
			c.stateCookie = name
		}
		if ttl > 0 {
			c.stateTTL = ttl
		}
	}
}

// NewFlowController creates the controller over the given adapters.
func NewFlowController(reconciler *Reconciler, session *SessionEstablisher, adapters []provider.Adapter, opts ...FlowOption) *FlowController {
	providers := make(map[string]provider.Adapter, len(adapters))
	for _, adapter := range adapters {
		if adapter != nil {
			providers[adapter.Name()] = adapter
		}
	}

	c := &FlowController{
		providers:   providers,
		reconciler:  reconciler,
		session:     session,
		logger:      defLogger{},
		stateCookie: "gateway_oauth_state",
		stateTTL:    time.Minute * 5,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// RegisterRoutes registers the gateway routes on group. Static paths go
// first so they are not shadowed by the provider parameter.
func (c *FlowController) RegisterRoutes(group RouteRegistrar) {
	group.Post("/sign-up", c.SignUp)
	group.Post("/sign-in", c.SignIn)
	group.Post("/sign-out", c.SignOut)
	group.Get("/session", c.Session)
	group.Get("/:provider/callback", c.Callback)
	group.Get("/:provider", c.Initiate)
}

// Initiate starts the provider flow: it captures the referer as the
// post-login destination and redirects to the provider's consent page.
// Requests the gateway cannot act on answer with JSON; only the happy
// path leaves for the provider.
func (c *FlowController) Initiate(ctx router.Context) error {
	adapter, err := c.adapterFor(ctx)
	if err != nil {
		return c.jsonError(ctx, err)
	}

	referer := strings.TrimSpace(string(ctx.Referer()))
	if referer == "" {
		return c.jsonError(ctx, ErrMissingReferer)
	}

	c.session.SetReturnTo(ctx, referer)

	state := uuid.New().String()
	ctx.Cookie(&router.Cookie{
		Name:     c.stateCookie,
		Value:    state,
		Expires:  time.Now().Add(c.stateTTL),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})

	authURL, err := adapter.AuthCodeURL(ctx.Context(), state)
	if err != nil {
		c.logger.Error("initiate: %s auth url: %v", adapter.Name(), err)
		return c.jsonError(ctx, err)
	}

	return ctx.Redirect(authURL, http.StatusTemporaryRedirect)
}

// Callback completes the provider flow: code exchange, reconciliation,
// session establishment, and redirect back to the captured referer.
func (c *FlowController) Callback(ctx router.Context) error {
	adapter, err := c.adapterFor(ctx)
	if err != nil {
		return c.redirectError(ctx, err)
	}

	if errCode := ctx.Query("error"); errCode != "" {
		redirectURL := appendQueryParam(c.session.ConsumeReturnTo(ctx), "error", errCode)
		if desc := ctx.Query("error_description"); desc != "" {
			redirectURL = appendQueryParam(redirectURL, "error_description", desc)
		}
		return ctx.Redirect(redirectURL, http.StatusTemporaryRedirect)
	}

	code := ctx.Query("code")
	if code == "" {
		// the user backed out of the consent screen; send them back
		// with nothing to show for it
		return ctx.Redirect(c.session.ConsumeReturnTo(ctx), http.StatusTemporaryRedirect)
	}

	state := ctx.Query("state")
	if state == "" {
		return c.redirectError(ctx, ErrInvalidState)
	}

	if expected := ctx.Cookies(c.stateCookie); expected == "" || expected != state {
		return c.redirectError(ctx, ErrInvalidState)
	}

	identity, err := adapter.ExchangeCode(ctx.Context(), code)
	if err != nil {
		c.logger.Error("callback: %s exchange: %v", adapter.Name(), err)
		return c.redirectError(ctx, err)
	}

	account, created, err := c.reconciler.ReconcileIdentity(ctx.Context(), identity, c.visitFrom(ctx, adapter.Name()))
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeSignupDisabled {
			// the redirect stays bare so the response does not reveal
			// whether an account exists for this email
			c.logger.Debug("callback: signup rejected for %s", identity.Email)
			return ctx.Redirect(c.session.ConsumeReturnTo(ctx), http.StatusTemporaryRedirect)
		}

		c.logger.Error("callback: reconcile %s: %v", identity.Email, err)
		return c.redirectError(ctx, err)
	}

	if c.Debug {
		fmt.Println("================")
		fmt.Println(print.MaybePrettyJSON(account))
		fmt.Println("================")
	}

	if _, err := c.session.Establish(ctx, account, adapter.Name()); err != nil {
		return c.redirectError(ctx, err)
	}

	redirectURL := c.session.ConsumeReturnTo(ctx)
	if created {
		redirectURL = appendQueryParam(redirectURL, "new_account", "true")
	}

	return ctx.Redirect(redirectURL, http.StatusTemporaryRedirect)
}

// SignUpRequest is the local registration payload.
type SignUpRequest struct {
	Email     string `form:"email" json:"email"`
	Password  string `form:"password" json:"password"`
	FirstName string `form:"first_name" json:"first_name"`
	LastName  string `form:"last_name" json:"last_name"`
	Phone     string `form:"phone_number" json:"phone_number"`
}

// Validate will run validation rules
func (r SignUpRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.FirstName, validation.Length(0, 200)),
		validation.Field(&r.LastName, validation.Length(0, 200)),
	)
}

// SignUp creates an account from a local email and password.
func (c *FlowController) SignUp(ctx router.Context) error {
	payload := new(SignUpRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.jsonError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		weak := ErrInvalidCredentials.Clone()
		weak.Message = firstValidationMessage(err)
		weak.Source = err
		return c.jsonError(ctx, weak)
	}

	phone, err := NormalizePhone(payload.Phone, "")
	if err != nil {
		return c.jsonError(ctx, err)
	}

	account, err := c.reconciler.SignUp(ctx.Context(), payload.Email, payload.Password,
		c.visitFrom(ctx, MediumEmail),
		WithSignUpName(payload.FirstName, payload.LastName),
		WithSignUpPhone(phone),
	)
	if err != nil {
		return c.jsonError(ctx, err)
	}

	token, err := c.session.Establish(ctx, account, MediumEmail)
	if err != nil {
		return c.jsonError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, map[string]any{
		"account": account,
		"token":   token,
	})
}

// SignInRequest is the local login payload.
type SignInRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r SignInRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// SignIn authenticates a local email and password.
func (c *FlowController) SignIn(ctx router.Context) error {
	payload := new(SignInRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.jsonError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return c.jsonError(ctx, ErrInvalidCredentials)
	}

	account, err := c.reconciler.SignIn(ctx.Context(), payload.Email, payload.Password, c.visitFrom(ctx, MediumEmail))
	if err != nil {
		return c.jsonError(ctx, err)
	}

	token, err := c.session.Establish(ctx, account, MediumEmail)
	if err != nil {
		return c.jsonError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"account": account,
		"token":   token,
	})
}

// SignOut clears the session cookie.
func (c *FlowController) SignOut(ctx router.Context) error {
	c.session.Clear(ctx)
	return ctx.JSON(router.StatusOK, map[string]string{
		"status": "signed_out",
	})
}

// Session returns the claims of the current session, if any.
func (c *FlowController) Session(ctx router.Context) error {
	claims, err := c.session.Claims(ctx)
	if err != nil {
		return c.jsonError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"subject": claims.Subject,
		"email":   claims.Email,
		"medium":  claims.Medium,
		"expires": claims.ExpiresAt,
	})
}

func (c *FlowController) adapterFor(ctx router.Context) (provider.Adapter, error) {
	name := ctx.Param("provider")
	adapter, ok := c.providers[name]
	if !ok {
		return nil, ErrProviderUnknown.Clone().WithMetadata(map[string]any{
			"provider": name,
		})
	}
	return adapter, nil
}

// visitFrom collects the request attributes persisted as login metadata.
func (c *FlowController) visitFrom(ctx router.Context, medium string) *Visit {
	ip := ctx.Header("X-Forwarded-For")
	if idx := strings.Index(ip, ","); idx > 0 {
		ip = strings.TrimSpace(ip[:idx])
	}
	if ip == "" {
		ip = ctx.Header("X-Real-Ip")
	}

	return &Visit{
		Medium:    medium,
		IP:        ip,
		UserAgent: ctx.Header("User-Agent"),
	}
}

// redirectError sends the browser back to the captured destination with
// the error encoded in query params, so nothing about account existence
// leaks into the response body.
func (c *FlowController) redirectError(ctx router.Context, err error) error {
	redirectURL := c.session.ConsumeReturnTo(ctx)

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		redirectURL = appendQueryParam(redirectURL, "error", richErr.TextCode)
		if richErr.Message != "" {
			redirectURL = appendQueryParam(redirectURL, "error_description", richErr.Message)
		}
	} else {
		redirectURL = appendQueryParam(redirectURL, "error", "auth_failed")
	}

	return ctx.Redirect(redirectURL, http.StatusTemporaryRedirect)
}

func (c *FlowController) jsonError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	status := richErr.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}

	return ctx.JSON(status, map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}

func appendQueryParam(rawURL, key, value string) string {
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err == nil {
		query := parsed.Query()
		query.Set(key, value)
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}

	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}
