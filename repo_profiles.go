package gateway

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Profiles stores the one-to-one account companion records.
type Profiles interface {
	repository.Repository[*Profile]

	EnsureForAccount(ctx context.Context, accountID uuid.UUID) (*Profile, error)
	EnsureForAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (*Profile, error)
}

type profiles struct {
	repository.Repository[*Profile]
	db *bun.DB
}

var _ Profiles = (*profiles)(nil)

// NewProfilesRepository creates the profile store over db.
func NewProfilesRepository(db *bun.DB) Profiles {
	repo := repository.NewRepository[*Profile](db, repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile { return &Profile{} },
		GetID: func(p *Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Profile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
	})

	return &profiles{
		Repository: repo,
		db:         db,
	}
}

func (p *profiles) EnsureForAccount(ctx context.Context, accountID uuid.UUID) (*Profile, error) {
	return p.EnsureForAccountTx(ctx, p.db, accountID)
}

// EnsureForAccountTx returns the profile for accountID, creating it on
// first login. Profiles are created exactly once; later logins reuse
// the existing row.
func (p *profiles) EnsureForAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (*Profile, error) {
	record := &Profile{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.account_id = ?", accountID).
		Limit(1).
		Scan(ctx)

	if err == nil {
		return record, nil
	}

	if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	record = &Profile{
		ID:             uuid.New(),
		AccountID:      accountID,
		Theme:          map[string]any{},
		OnboardingStep: map[string]any{},
	}

	return p.Repository.CreateTx(ctx, tx, record)
}
