package gateway

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-auth-gateway/provider"
	"github.com/uptrace/bun"
)

// Setting keys understood by the gateway. Values resolve from the
// instance_configurations table first, then the process environment.
const (
	SettingEnableSignup       = "ENABLE_SIGNUP"
	SettingGoogleClientID     = "GOOGLE_CLIENT_ID"
	SettingGoogleClientSecret = "GOOGLE_CLIENT_SECRET"
)

// Settings resolves named instance settings at request time.
type Settings interface {
	// Resolve returns the value for key, falling back to def when the
	// key is unset everywhere.
	Resolve(ctx context.Context, key, def string) string

	// SignupEnabled reports whether new accounts may be created.
	// Signup is enabled unless ENABLE_SIGNUP resolves to "0".
	SignupEnabled(ctx context.Context) bool
}

// InstanceConfiguration is a single admin-managed setting row.
type InstanceConfiguration struct {
	bun.BaseModel `bun:"table:instance_configurations,alias:icfg"`

	Key       string    `bun:"key,pk" json:"key"`
	Value     string    `bun:"value" json:"value"`
	Category  string    `bun:"category" json:"category"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// InstanceSettings resolves settings from the database with environment
// fallback. A nil db degrades to environment-only resolution, which is
// what tests and minimal deployments use.
type InstanceSettings struct {
	db        *bun.DB
	lookupEnv func(string) (string, bool)
	logger    Logger
}

// SettingsOption configures InstanceSettings.
type SettingsOption func(*InstanceSettings)

// WithSettingsLogger sets the logger used for resolution failures.
func WithSettingsLogger(logger Logger) SettingsOption {
	return func(s *InstanceSettings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLookupEnv overrides the environment lookup, mostly for tests.
func WithLookupEnv(lookup func(string) (string, bool)) SettingsOption {
	return func(s *InstanceSettings) {
		if lookup != nil {
			s.lookupEnv = lookup
		}
	}
}

// NewInstanceSettings creates a Settings implementation over db.
func NewInstanceSettings(db *bun.DB, opts ...SettingsOption) *InstanceSettings {
	s := &InstanceSettings{
		db:        db,
		lookupEnv: os.LookupEnv,
		logger:    defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Resolve implements Settings. Database rows win over environment
// variables so admins can override deployment defaults without a
// restart; empty rows fall through.
func (s *InstanceSettings) Resolve(ctx context.Context, key, def string) string {
	if s.db != nil {
		row := new(InstanceConfiguration)
		err := s.db.NewSelect().
			Model(row).
			Where("?TableAlias.key = ?", key).
			Limit(1).
			Scan(ctx)

		switch {
		case err == nil:
			if row.Value != "" {
				return row.Value
			}
		case errors.Is(err, sql.ErrNoRows):
			// fall through to environment
		default:
			s.logger.Warn("settings: failed to resolve %q from store: %v", key, err)
		}
	}

	if val, ok := s.lookupEnv(key); ok && val != "" {
		return val
	}

	return def
}

// SignupEnabled implements Settings.
func (s *InstanceSettings) SignupEnabled(ctx context.Context) bool {
	return s.Resolve(ctx, SettingEnableSignup, "1") != "0"
}

// Credentials implements provider.CredentialSource: the client pair for
// provider name lives under <NAME>_CLIENT_ID / <NAME>_CLIENT_SECRET.
func (s *InstanceSettings) Credentials(ctx context.Context, name string) (provider.Credentials, error) {
	prefix := strings.ToUpper(name)

	creds := provider.Credentials{
		ClientID:     s.Resolve(ctx, prefix+"_CLIENT_ID", ""),
		ClientSecret: s.Resolve(ctx, prefix+"_CLIENT_SECRET", ""),
	}

	if !creds.Configured() {
		return creds, ErrNotConfigured.Clone().WithMetadata(map[string]any{
			"provider": name,
		})
	}

	return creds, nil
}
