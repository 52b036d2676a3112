package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/companionly/booking-server-go/internal/model"
)

type PartyRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Party, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.Party, error)
	WithTx(tx *sqlx.Tx) PartyRepository
}

type partyDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type partyRepo struct {
	db partyDB
}

func NewPartyRepository(db *sqlx.DB) PartyRepository {
	return &partyRepo{db: db}
}

func (r *partyRepo) WithTx(tx *sqlx.Tx) PartyRepository {
	return &partyRepo{db: tx}
}

func (r *partyRepo) FindByID(ctx context.Context, id int64) (*model.Party, error) {
	var party model.Party
	err := r.db.GetContext(ctx, &party, `
		SELECT * FROM parties WHERE id = $1
	`, id)
	return HandleNotFound(&party, err)
}

func (r *partyRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Party, error) {
	var party model.Party
	err := r.db.GetContext(ctx, &party, `
		SELECT * FROM parties WHERE token_hash = $1
	`, tokenHash)
	return HandleNotFound(&party, err)
}
