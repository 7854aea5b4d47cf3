package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-playlist-bot/internal/domain"
	"telegram-playlist-bot/internal/domain/model"
	"telegram-playlist-bot/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

func (r *userRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (id, username, music_credential, registered_at, last_active_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET username=$2, last_active_at=$5;`
	_, err := execSQL(ctx, r.pool, tx, q, u.ID, u.Username, u.MusicCredential, u.RegisteredAt, u.LastActiveAt)
	return err
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.User, error) {
	const q = `SELECT id, username, music_credential, registered_at, last_active_at FROM users WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.MusicCredential, &u.RegisteredAt, &u.LastActiveAt); err != nil {
		return nil, mapScanErr(err)
	}
	return &u, nil
}

func (r *userRepo) LockByID(ctx context.Context, tx repository.Tx, id int64) error {
	if !inTx(tx) {
		return fmt.Errorf("%w: row lock outside a transaction", domain.ErrInvalidExecContext)
	}
	row, err := pickRow(ctx, r.pool, tx, `SELECT id FROM users WHERE id=$1 FOR UPDATE;`, id)
	if err != nil {
		return err
	}
	var got int64
	if err := row.Scan(&got); err != nil {
		return mapScanErr(err)
	}
	return nil
}

func (r *userRepo) SetMusicCredential(ctx context.Context, tx repository.Tx, id int64, sealed *string) error {
	tag, err := execSQL(ctx, r.pool, tx, `UPDATE users SET music_credential=$2, last_active_at=NOW() WHERE id=$1;`, id, sealed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
