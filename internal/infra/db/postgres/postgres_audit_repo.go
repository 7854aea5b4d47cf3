package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-playlist-bot/internal/domain/model"
	"telegram-playlist-bot/internal/domain/ports/repository"
)

var _ repository.AuditRepository = (*auditRepo)(nil)

// auditRepo only ever inserts and reads; rows are never updated.
type auditRepo struct{ pool *pgxpool.Pool }

func NewAuditRepo(pool *pgxpool.Pool) *auditRepo {
	return &auditRepo{pool: pool}
}

func (r *auditRepo) Append(ctx context.Context, tx repository.Tx, e *model.AuditEntry) error {
	const q = `
INSERT INTO audit_log (id, playlist_id, user_id, operation, track_id, album_id, position, outcome, attempts, detail, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11);`
	var trackID, albumID *int64
	if e.Track != nil {
		trackID = &e.Track.ID
		if e.Track.AlbumID != 0 {
			albumID = &e.Track.AlbumID
		}
	}
	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.PlaylistID, e.UserID, e.Operation, trackID, albumID, e.Position, string(e.Outcome), e.Attempts, e.Detail, e.CreatedAt)
	return err
}

func (r *auditRepo) LastAdder(ctx context.Context, tx repository.Tx, playlistID string, trackID int64) (*model.Attribution, error) {
	const q = `
SELECT user_id, track_id, COALESCE(album_id, 0), created_at
  FROM audit_log
 WHERE playlist_id=$1 AND track_id=$2 AND operation='append' AND outcome='ok'
 ORDER BY created_at DESC, id DESC
 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, playlistID, trackID)
	if err != nil {
		return nil, err
	}
	var a model.Attribution
	if err := row.Scan(&a.UserID, &a.Track.ID, &a.Track.AlbumID, &a.AddedAt); err != nil {
		return nil, mapScanErr(err)
	}
	return &a, nil
}

func (r *auditRepo) LastAdders(ctx context.Context, tx repository.Tx, playlistID string) (map[int64]*model.Attribution, error) {
	const q = `
SELECT DISTINCT ON (track_id) user_id, track_id, COALESCE(album_id, 0), created_at
  FROM audit_log
 WHERE playlist_id=$1 AND track_id IS NOT NULL AND operation='append' AND outcome='ok'
 ORDER BY track_id, created_at DESC, id DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int64]*model.Attribution{}
	for rows.Next() {
		var a model.Attribution
		if err := rows.Scan(&a.UserID, &a.Track.ID, &a.Track.AlbumID, &a.AddedAt); err != nil {
			return nil, mapScanErr(err)
		}
		out[a.Track.ID] = &a
	}
	if err := rows.Err(); err != nil {
		return nil, mapExecErr(err)
	}
	return out, nil
}

func (r *auditRepo) UserCounts(ctx context.Context, tx repository.Tx, userID int64) (int, int, error) {
	const q = `
SELECT COUNT(*) FILTER (WHERE operation='append'),
       COUNT(*) FILTER (WHERE operation='remove')
  FROM audit_log
 WHERE user_id=$1 AND outcome='ok';`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return 0, 0, err
	}
	var added, removed int
	if err := row.Scan(&added, &removed); err != nil {
		return 0, 0, mapScanErr(err)
	}
	return added, removed, nil
}

func (r *auditRepo) PlaylistCounts(ctx context.Context, tx repository.Tx, playlistID string) ([]model.ContributorStats, error) {
	const q = `
SELECT user_id,
       COUNT(*) FILTER (WHERE operation='append'),
       COUNT(*) FILTER (WHERE operation='remove')
  FROM audit_log
 WHERE playlist_id=$1 AND outcome='ok' AND operation IN ('append','remove')
 GROUP BY user_id
 ORDER BY 2 DESC, user_id ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ContributorStats
	for rows.Next() {
		var c model.ContributorStats
		if err := rows.Scan(&c.UserID, &c.Added, &c.Removed); err != nil {
			return nil, mapScanErr(err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapExecErr(err)
	}
	return out, nil
}

func (r *auditRepo) ListByPlaylist(ctx context.Context, tx repository.Tx, playlistID string, limit int) ([]*model.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, playlist_id, user_id, operation, track_id, album_id, position, outcome, attempts, detail, created_at
  FROM audit_log
 WHERE playlist_id=$1
 ORDER BY created_at DESC, id DESC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, playlistID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var trackID, albumID *int64
		var outcome string
		if err := rows.Scan(&e.ID, &e.PlaylistID, &e.UserID, &e.Operation, &trackID, &albumID, &e.Position, &outcome, &e.Attempts, &e.Detail, &e.CreatedAt); err != nil {
			return nil, mapScanErr(err)
		}
		e.Outcome = model.AuditOutcome(outcome)
		if trackID != nil {
			e.Track = &model.TrackRef{ID: *trackID}
			if albumID != nil {
				e.Track.AlbumID = *albumID
			}
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapExecErr(err)
	}
	return out, nil
}
