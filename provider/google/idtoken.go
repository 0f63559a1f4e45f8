package google

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Issuers Google signs id_tokens under. Both forms are valid per the
// OpenID Connect discovery document.
var googleIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

// idTokenVerifier checks id_token signatures against Google's JWKS.
// The key set is fetched lazily and refreshed in the background.
type idTokenVerifier struct {
	jwksURL string

	once sync.Once
	jwks *keyfunc.JWKS
	err  error
}

func newIDTokenVerifier(jwksURL string) *idTokenVerifier {
	return &idTokenVerifier{jwksURL: jwksURL}
}

func (v *idTokenVerifier) keySet() (*keyfunc.JWKS, error) {
	v.once.Do(func() {
		v.jwks, v.err = keyfunc.Get(v.jwksURL, keyfunc.Options{
			RefreshInterval:   time.Hour,
			RefreshRateLimit:  time.Minute * 5,
			RefreshTimeout:    time.Second * 10,
			RefreshUnknownKID: true,
		})
	})

	return v.jwks, v.err
}

func (v *idTokenVerifier) verify(ctx context.Context, idToken, clientID string) (jwt.MapClaims, error) {
	jwks, err := v.keySet()
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS: %w", err)
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(idToken, claims, jwks.Keyfunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(clientID),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("id_token verification failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("id_token is not valid")
	}

	issuer, err := claims.GetIssuer()
	if err != nil {
		return nil, fmt.Errorf("id_token missing issuer: %w", err)
	}

	for _, allowed := range googleIssuers {
		if issuer == allowed {
			return claims, nil
		}
	}

	return nil, fmt.Errorf("id_token issuer %q is not google", issuer)
}
