package gateway

import (
	"strings"
	"time"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is the local user record reconciled against provider identities.
// Email is the single reconciliation key; the store enforces its uniqueness.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID                uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email             string    `bun:"email,notnull,unique" json:"email,omitempty"`
	Username          string    `bun:"username,notnull,unique" json:"username,omitempty"`
	FirstName         string    `bun:"first_name" json:"first_name,omitempty"`
	LastName          string    `bun:"last_name" json:"last_name,omitempty"`
	Avatar            string    `bun:"avatar" json:"avatar,omitempty"`
	Phone             string    `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash      string    `bun:"password_hash" json:"-"`
	IsPasswordAutoset bool      `bun:"is_password_autoset" json:"is_password_autoset,omitempty"`
	IsEmailVerified   bool      `bun:"is_email_verified" json:"is_email_verified,omitempty"`

	// Login bookkeeping, refreshed on every successful reconcile.
	LastLoginMedium string     `bun:"last_login_medium" json:"last_login_medium,omitempty"`
	LastActive      *time.Time `bun:"last_active,nullzero" json:"last_active,omitempty"`
	LastLoginTime   *time.Time `bun:"last_login_time,nullzero" json:"last_login_time,omitempty"`
	LastLoginIP     string     `bun:"last_login_ip" json:"last_login_ip,omitempty"`
	LastLoginUagent string     `bun:"last_login_uagent" json:"last_login_uagent,omitempty"`
	TokenUpdatedAt  *time.Time `bun:"token_updated_at,nullzero" json:"token_updated_at,omitempty"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Profile is the one-to-one companion of an Account, created exactly once
// at account creation.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:prf"`

	ID             uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID      uuid.UUID      `bun:"account_id,notnull,unique,type:uuid" json:"account_id,omitempty"`
	Account        *Account       `bun:"rel:belongs-to,join:account_id=id" json:"account,omitempty"`
	Theme          map[string]any `bun:"theme,type:jsonb" json:"theme,omitempty"`
	OnboardingStep map[string]any `bun:"onboarding_step,type:jsonb" json:"onboarding_step,omitempty"`
	IsOnboarded    bool           `bun:"is_onboarded" json:"is_onboarded,omitempty"`
	CreatedAt      *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// PendingInvite marks an email as invited into a workspace. Invites are
// read-only here; they override the signup-disabled policy.
type PendingInvite struct {
	bun.BaseModel `bun:"table:pending_invites,alias:pin"`

	ID           uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email        string     `bun:"email,notnull" json:"email,omitempty"`
	WorkspaceRef string     `bun:"workspace_reference" json:"workspace_reference,omitempty"`
	CreatedAt    *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// ProviderCredential stores token material from a provider exchange,
// one row per (account, provider) pair.
type ProviderCredential struct {
	bun.BaseModel `bun:"table:provider_credentials,alias:pcr"`

	ID             uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID      uuid.UUID      `bun:"account_id,notnull,type:uuid,unique:pcr_account_provider" json:"account_id,omitempty"`
	Provider       string         `bun:"provider,notnull,unique:pcr_account_provider" json:"provider,omitempty"`
	ProviderUserID string         `bun:"provider_user_id" json:"provider_user_id,omitempty"`
	AccessToken    string         `bun:"access_token" json:"-"`
	RefreshToken   string         `bun:"refresh_token" json:"-"`
	TokenExpiresAt *time.Time     `bun:"token_expires_at,nullzero" json:"token_expires_at,omitempty"`
	ProviderData   map[string]any `bun:"provider_data,type:jsonb" json:"provider_data,omitempty"`
	CreatedAt      time.Time      `bun:"created_at,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      time.Time      `bun:"updated_at,default:current_timestamp" json:"updated_at,omitempty"`
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	// A deterministic id keeps retried signups idempotent.
	if record.ID == uuid.Nil {
		if id, err := hashid.NewUUID(record.Email); err == nil {
			record.ID = id
		} else {
			record.ID = uuid.New()
		}
	}

	// Usernames are unique; a random one avoids collisions between
	// accounts sharing an email local part.
	if record.Username == "" {
		record.Username = strings.ReplaceAll(uuid.New().String(), "-", "")
	}
}
