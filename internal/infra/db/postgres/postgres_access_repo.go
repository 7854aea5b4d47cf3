package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-playlist-bot/internal/domain/ports/repository"
)

var _ repository.AccessRepository = (*accessRepo)(nil)

type accessRepo struct{ pool *pgxpool.Pool }

func NewAccessRepo(pool *pgxpool.Pool) *accessRepo {
	return &accessRepo{pool: pool}
}

func (r *accessRepo) Grant(ctx context.Context, tx repository.Tx, playlistID string, userID int64) (bool, error) {
	const q = `
INSERT INTO playlist_access (playlist_id, user_id, role, granted_at)
VALUES ($1,$2,'contributor',NOW())
ON CONFLICT (playlist_id, user_id) DO NOTHING;`
	tag, err := execSQL(ctx, r.pool, tx, q, playlistID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *accessRepo) HasGrant(ctx context.Context, tx repository.Tx, playlistID string, userID int64) (bool, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT EXISTS (SELECT 1 FROM playlist_access WHERE playlist_id=$1 AND user_id=$2);`, playlistID, userID)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, mapScanErr(err)
	}
	return ok, nil
}

func (r *accessRepo) CountByUser(ctx context.Context, tx repository.Tx, userID int64) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM playlist_access WHERE user_id=$1;`, userID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, mapScanErr(err)
	}
	return n, nil
}
