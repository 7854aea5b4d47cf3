package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-playlist-bot/internal/domain"
	"telegram-playlist-bot/internal/domain/model"
	"telegram-playlist-bot/internal/domain/ports/repository"
)

var _ repository.PlaylistRepository = (*playlistRepo)(nil)

type playlistRepo struct{ pool *pgxpool.Pool }

func NewPlaylistRepo(pool *pgxpool.Pool) *playlistRepo {
	return &playlistRepo{pool: pool}
}

const playlistColumns = `p.id, p.owner_id, p.remote_owner_id, p.remote_kind, p.title, p.insert_position, p.invite_token, p.invite_expires_at, p.created_at`

func scanPlaylist(row pgx.Row) (*model.Playlist, error) {
	var p model.Playlist
	var pos string
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Remote.OwnerID, &p.Remote.Kind, &p.Title, &pos, &p.InviteToken, &p.InviteExpiresAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.InsertPosition = model.InsertPosition(pos)
	return &p, nil
}

// Save inserts the playlist or updates its mutable fields. Owner and remote
// address are never rewritten.
func (r *playlistRepo) Save(ctx context.Context, tx repository.Tx, p *model.Playlist) error {
	const q = `
INSERT INTO playlists (id, owner_id, remote_owner_id, remote_kind, title, insert_position, invite_token, invite_expires_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET title=$5, insert_position=$6, invite_token=$7, invite_expires_at=$8;`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.OwnerID, p.Remote.OwnerID, p.Remote.Kind, p.Title, string(p.InsertPosition), p.InviteToken, p.InviteExpiresAt, p.CreatedAt)
	return err
}

func (r *playlistRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Playlist, error) {
	q := `SELECT ` + playlistColumns + ` FROM playlists p WHERE p.id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	p, err := scanPlaylist(row)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return p, nil
}

func (r *playlistRepo) FindByInviteToken(ctx context.Context, tx repository.Tx, token string) (*model.Playlist, error) {
	if token == "" {
		return nil, domain.ErrNotFound
	}
	q := `SELECT ` + playlistColumns + ` FROM playlists p WHERE p.invite_token=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, token)
	if err != nil {
		return nil, err
	}
	p, err := scanPlaylist(row)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return p, nil
}

func (r *playlistRepo) CountByOwner(ctx context.Context, tx repository.Tx, ownerID int64) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM playlists WHERE owner_id=$1;`, ownerID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, mapScanErr(err)
	}
	return n, nil
}

func (r *playlistRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID int64) ([]*model.Playlist, error) {
	q := `SELECT ` + playlistColumns + ` FROM playlists p WHERE p.owner_id=$1 ORDER BY p.created_at ASC;`
	return r.list(ctx, tx, q, ownerID)
}

func (r *playlistRepo) ListShared(ctx context.Context, tx repository.Tx, userID int64) ([]*model.Playlist, error) {
	q := `SELECT ` + playlistColumns + `
  FROM playlists p
  JOIN playlist_access a ON a.playlist_id = p.id
 WHERE a.user_id=$1 AND p.owner_id <> $1
 ORDER BY a.granted_at ASC;`
	return r.list(ctx, tx, q, userID)
}

func (r *playlistRepo) list(ctx context.Context, tx repository.Tx, q string, arg interface{}) ([]*model.Playlist, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Playlist
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, mapScanErr(err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapExecErr(err)
	}
	return out, nil
}

func (r *playlistRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM playlists WHERE id=$1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
