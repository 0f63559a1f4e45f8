package gateway

import (
	"context"
	"database/sql"
	"errors"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Accounts() Accounts
	Profiles() Profiles
	PendingInvites() PendingInvites
	ProviderCredentials() ProviderCredentials
}

type mngr struct {
	db          *bun.DB
	accounts    Accounts
	profiles    Profiles
	invites     PendingInvites
	credentials ProviderCredentials
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:          db,
		accounts:    NewAccountsRepository(db),
		profiles:    NewProfilesRepository(db),
		invites:     NewPendingInvitesRepository(db),
		credentials: NewProviderCredentialsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.profiles == nil {
		return errors.New("repository profiles should be initialized")
	}

	if m.invites == nil {
		return errors.New("repository invites should be initialized")
	}

	if m.credentials == nil {
		return errors.New("repository credentials should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) Profiles() Profiles {
	return m.profiles
}

func (m mngr) PendingInvites() PendingInvites {
	return m.invites
}

func (m mngr) ProviderCredentials() ProviderCredentials {
	return m.credentials
}
