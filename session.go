package gateway

import (
	"time"

	"github.com/goliatone/go-router"
)

const (
	// DefaultSessionCookie is the cookie carrying the session token.
	DefaultSessionCookie = "gateway_session"
	// DefaultReturnToCookie is the short-lived cookie carrying the
	// post-login destination captured at initiation.
	DefaultReturnToCookie = "gateway_return_to"
)

// SessionEstablisher turns a reconciled account into a browser session:
// it signs the token, sets the session cookie, and manages the
// return-to destination captured from the initiate request's referer.
type SessionEstablisher struct {
	tokens          TokenService
	cookieName      string
	cookieDuration  time.Duration
	returnToCookie  string
	returnToTTL     time.Duration
	defaultRedirect string
	logger          Logger
}

// SessionOption configures the SessionEstablisher.
type SessionOption func(*SessionEstablisher)

// WithSessionCookie sets the session cookie name and lifetime.
func WithSessionCookie(name string, duration time.Duration) SessionOption {
	return func(s *SessionEstablisher) {
		if name != "" {
			s.cookieName = name
		}
		if duration > 0 {
			s.cookieDuration = duration
		}
	}
}

// WithReturnToCookie sets the redirect cookie name and lifetime.
func WithReturnToCookie(name string, ttl time.Duration) SessionOption {
	return func(s *SessionEstablisher) {
		if name != "" {
			s.returnToCookie = name
		}
		if ttl > 0 {
			s.returnToTTL = ttl
		}
	}
}

// WithDefaultRedirect sets the destination used when no return-to
// cookie survives the round trip.
func WithDefaultRedirect(url string) SessionOption {
	return func(s *SessionEstablisher) {
		if url != "" {
			s.defaultRedirect = url
		}
	}
}

// WithSessionLogger sets the logger.
func WithSessionLogger(logger Logger) SessionOption {
	return func(s *SessionEstablisher) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSessionEstablisher creates a SessionEstablisher over tokens.
func NewSessionEstablisher(tokens TokenService, opts ...SessionOption) *SessionEstablisher {
	s := &SessionEstablisher{
		tokens:          tokens,
		cookieName:      DefaultSessionCookie,
		cookieDuration:  24 * time.Hour,
		returnToCookie:  DefaultReturnToCookie,
		returnToTTL:     time.Minute * 5,
		defaultRedirect: "/",
		logger:          defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Establish signs a session token for account and sets the session
// cookie. It returns the token so API clients can also carry it in a
// header.
func (s *SessionEstablisher) Establish(ctx router.Context, account *Account, medium string) (string, error) {
	token, err := s.tokens.Generate(account, medium)
	if err != nil {
		s.logger.Error("session: failed to sign token for %s: %v", account.ID, err)
		return "", err
	}

	s.setCookie(ctx, s.cookieName, token, s.cookieDuration)
	return token, nil
}

// Claims validates the session cookie on the request and returns its
// claims.
func (s *SessionEstablisher) Claims(ctx router.Context) (*SessionClaims, error) {
	token := ctx.Cookies(s.cookieName)
	if token == "" {
		return nil, ErrTokenMalformed
	}
	return s.tokens.Validate(token)
}

// Clear removes the session cookie.
func (s *SessionEstablisher) Clear(ctx router.Context) {
	s.cookieDel(ctx, s.cookieName)
}

// SetReturnTo captures the post-login destination in a short-lived
// cookie so the callback can find it after the provider round trip.
func (s *SessionEstablisher) SetReturnTo(ctx router.Context, url string) {
	s.setCookie(ctx, s.returnToCookie, url, s.returnToTTL)
}

// ConsumeReturnTo reads and clears the return-to cookie, falling back
// to the configured default destination.
func (s *SessionEstablisher) ConsumeReturnTo(ctx router.Context) string {
	r := ctx.Cookies(s.returnToCookie)
	if r == "" {
		return s.defaultRedirect
	}
	s.cookieDel(ctx, s.returnToCookie)
	return r
}

func (s *SessionEstablisher) setCookie(ctx router.Context, name, val string, duration time.Duration) {
	ctx.Cookie(&router.Cookie{
		Name:     name,
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (s *SessionEstablisher) cookieDel(ctx router.Context, name string) {
	ctx.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}
