package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Accounts is the account store. All reconcile paths go through the Tx
// variants so the whole decision runs in one transaction.
type Accounts interface {
	repository.Repository[*Account]

	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)

	Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error)

	TrackLogin(ctx context.Context, account *Account, visit *Visit) error
	TrackLoginTx(ctx context.Context, tx bun.IDB, account *Account, visit *Visit) error
}

// Visit carries the request attributes persisted on every successful
// login.
type Visit struct {
	Medium    string
	IP        string
	UserAgent string
	At        time.Time
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

// NewAccountsRepository creates the account store over db.
func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

func (a *accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *accounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", normalizeEmail(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"email": email,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *accounts) Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	if record != nil {
		record.Email = normalizeEmail(record.Email)
	}
	prepareAccountDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *accounts) TrackLogin(ctx context.Context, account *Account, visit *Visit) error {
	return a.TrackLoginTx(ctx, a.db, account, visit)
}

// TrackLoginTx refreshes the login bookkeeping columns in place.
// NOTE: Updating using the ORM fails due to a bug, it wont reset
// nullzero timestamp fields.
func (a *accounts) TrackLoginTx(ctx context.Context, tx bun.IDB, account *Account, visit *Visit) error {
	if visit == nil {
		visit = &Visit{}
	}

	at := visit.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := tx.NewRaw(`
		UPDATE "accounts" AS "acc"
		SET
			"last_login_medium" = ?,
			"last_active" = ?,
			"last_login_time" = ?,
			"last_login_ip" = ?,
			"last_login_uagent" = ?,
			"token_updated_at" = ?
		WHERE
			("acc".id = ?)
			AND "acc"."deleted_at" IS NULL;
	`, visit.Medium, at, at, visit.IP, visit.UserAgent, at, account.ID).Exec(ctx)

	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
