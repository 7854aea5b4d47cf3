package repository

import (
	"context"

	"telegram-playlist-bot/internal/domain/model"
)

// -----------------------------
// Audit log (append-only)
// -----------------------------

type AuditRepository interface {
	Append(ctx context.Context, tx Tx, e *model.AuditEntry) error
	// LastAdder returns who most recently added trackID to playlistID with outcome ok.
	LastAdder(ctx context.Context, tx Tx, playlistID string, trackID int64) (*model.Attribution, error)
	// LastAdders is LastAdder for every track of playlistID, keyed by track id.
	LastAdders(ctx context.Context, tx Tx, playlistID string) (map[int64]*model.Attribution, error)
	UserCounts(ctx context.Context, tx Tx, userID int64) (added, removed int, err error)
	PlaylistCounts(ctx context.Context, tx Tx, playlistID string) ([]model.ContributorStats, error)
	ListByPlaylist(ctx context.Context, tx Tx, playlistID string, limit int) ([]*model.AuditEntry, error)
}
