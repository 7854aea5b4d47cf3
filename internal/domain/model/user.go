package model

import (
	"time"

	"telegram-playlist-bot/internal/domain"
)

// User is a Telegram account known to the bot. The ID is the Telegram user id.
// MusicCredential holds the user's own music-service token, sealed at rest.
type User struct {
	ID              int64
	Username        string
	MusicCredential *string
	RegisteredAt    time.Time
	LastActiveAt    time.Time
}

func NewUser(tgID int64, username string) (*User, error) {
	if tgID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{
		ID:           tgID,
		Username:     username,
		RegisteredAt: now,
		LastActiveAt: now,
	}, nil
}

func (u *User) HasCredential() bool {
	return u != nil && u.MusicCredential != nil && *u.MusicCredential != ""
}

func (u *User) Touch() { u.LastActiveAt = time.Now() }
