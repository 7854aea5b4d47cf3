package repository

import (
	"context"

	"telegram-playlist-bot/internal/domain/model"
)

// -----------------------------
// Users
// -----------------------------

type UserRepository interface {
	// Save inserts the user or refreshes username and last activity.
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id int64) (*model.User, error)
	// LockByID takes a row lock on the user for the rest of tx.
	LockByID(ctx context.Context, tx Tx, id int64) error
	SetMusicCredential(ctx context.Context, tx Tx, id int64, sealed *string) error
}
