package gateway

import (
	"context"
	"time"

	"github.com/goliatone/go-auth-gateway/provider"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProviderCredentials stores token material per (account, provider).
type ProviderCredentials interface {
	repository.Repository[*ProviderCredential]

	GetByAccountAndProvider(ctx context.Context, accountID uuid.UUID, name string) (*ProviderCredential, error)
	GetByAccountAndProviderTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, name string) (*ProviderCredential, error)

	UpsertToken(ctx context.Context, record *ProviderCredential) error
	UpsertTokenTx(ctx context.Context, tx bun.IDB, record *ProviderCredential) error
}

type providerCredentials struct {
	repository.Repository[*ProviderCredential]
	db *bun.DB
}

var _ ProviderCredentials = (*providerCredentials)(nil)

// NewProviderCredentialsRepository creates the credential store over db.
func NewProviderCredentialsRepository(db *bun.DB) ProviderCredentials {
	repo := repository.NewRepository[*ProviderCredential](db, repository.ModelHandlers[*ProviderCredential]{
		NewRecord: func() *ProviderCredential { return &ProviderCredential{} },
		GetID: func(c *ProviderCredential) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *ProviderCredential, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
	})

	return &providerCredentials{
		Repository: repo,
		db:         db,
	}
}

func (r *providerCredentials) GetByAccountAndProvider(ctx context.Context, accountID uuid.UUID, name string) (*ProviderCredential, error) {
	return r.GetByAccountAndProviderTx(ctx, r.db, accountID, name)
}

func (r *providerCredentials) GetByAccountAndProviderTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, name string) (*ProviderCredential, error) {
	record := &ProviderCredential{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.account_id = ? AND ?TableAlias.provider = ?", accountID, name).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"account_id": accountID.String(),
					"provider":   name,
				})
		}
		return nil, err
	}

	return record, nil
}

func (r *providerCredentials) UpsertToken(ctx context.Context, record *ProviderCredential) error {
	return r.UpsertTokenTx(ctx, r.db, record)
}

// UpsertTokenTx inserts or refreshes the credential row for the
// (account, provider) pair in a single statement.
func (r *providerCredentials) UpsertTokenTx(ctx context.Context, tx bun.IDB, record *ProviderCredential) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.ProviderData == nil {
		record.ProviderData = map[string]any{}
	}
	record.UpdatedAt = time.Now()

	_, err := tx.NewInsert().
		Model(record).
		On("CONFLICT (account_id, provider) DO UPDATE").
		Set("provider_user_id = EXCLUDED.provider_user_id").
		Set("access_token = EXCLUDED.access_token").
		Set("refresh_token = EXCLUDED.refresh_token").
		Set("token_expires_at = EXCLUDED.token_expires_at").
		Set("provider_data = EXCLUDED.provider_data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	return err
}

// CredentialFromIdentity maps a provider exchange result onto a
// credential row for accountID.
func CredentialFromIdentity(accountID uuid.UUID, identity *provider.Identity) *ProviderCredential {
	if identity == nil {
		return nil
	}

	record := &ProviderCredential{
		AccountID:      accountID,
		Provider:       identity.Provider,
		ProviderUserID: identity.ProviderUserID,
		ProviderData:   identity.Raw,
	}

	if token := identity.Token; token != nil {
		record.AccessToken = token.AccessToken
		record.RefreshToken = token.RefreshToken
		if !token.ExpiresAt.IsZero() {
			expires := token.ExpiresAt
			record.TokenExpiresAt = &expires
		}
	}

	return record
}
