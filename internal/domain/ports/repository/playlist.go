package repository

import (
	"context"

	"telegram-playlist-bot/internal/domain/model"
)

// -----------------------------
// Playlists and access grants
// -----------------------------

type PlaylistRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Playlist) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Playlist, error)
	FindByInviteToken(ctx context.Context, tx Tx, token string) (*model.Playlist, error)
	CountByOwner(ctx context.Context, tx Tx, ownerID int64) (int, error)
	ListByOwner(ctx context.Context, tx Tx, ownerID int64) ([]*model.Playlist, error)
	// ListShared returns playlists where userID holds a contributor grant.
	ListShared(ctx context.Context, tx Tx, userID int64) ([]*model.Playlist, error)
	// Delete removes the record and its grants. The remote playlist is untouched.
	Delete(ctx context.Context, tx Tx, id string) error
}

type AccessRepository interface {
	// Grant creates a contributor grant and reports whether one was created.
	// An existing grant is not an error.
	Grant(ctx context.Context, tx Tx, playlistID string, userID int64) (bool, error)
	HasGrant(ctx context.Context, tx Tx, playlistID string, userID int64) (bool, error)
	CountByUser(ctx context.Context, tx Tx, userID int64) (int, error)
}
