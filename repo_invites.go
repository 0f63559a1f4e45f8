package gateway

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PendingInvites reads invite rows. The gateway never writes invites;
// it only checks whether one exists when signup is disabled.
type PendingInvites interface {
	repository.Repository[*PendingInvite]

	ExistsForEmail(ctx context.Context, email string) (bool, error)
	ExistsForEmailTx(ctx context.Context, tx bun.IDB, email string) (bool, error)
}

type pendingInvites struct {
	repository.Repository[*PendingInvite]
	db *bun.DB
}

var _ PendingInvites = (*pendingInvites)(nil)

// NewPendingInvitesRepository creates the invite store over db.
func NewPendingInvitesRepository(db *bun.DB) PendingInvites {
	repo := repository.NewRepository[*PendingInvite](db, repository.ModelHandlers[*PendingInvite]{
		NewRecord: func() *PendingInvite { return &PendingInvite{} },
		GetID: func(p *PendingInvite) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *PendingInvite, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &pendingInvites{
		Repository: repo,
		db:         db,
	}
}

func (p *pendingInvites) ExistsForEmail(ctx context.Context, email string) (bool, error) {
	return p.ExistsForEmailTx(ctx, p.db, email)
}

func (p *pendingInvites) ExistsForEmailTx(ctx context.Context, tx bun.IDB, email string) (bool, error) {
	return tx.NewSelect().
		Model((*PendingInvite)(nil)).
		Where("?TableAlias.email = ?", normalizeEmail(email)).
		Exists(ctx)
}
