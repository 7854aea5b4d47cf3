package model

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"

	"telegram-playlist-bot/internal/domain"
)

type InsertPosition string

const (
	InsertPrepend InsertPosition = "prepend"
	InsertAppend  InsertPosition = "append"
)

func (p InsertPosition) Valid() bool { return p == InsertPrepend || p == InsertAppend }

// RemoteRef addresses a playlist on the music service: the remote owner id plus
// the numeric playlist kind.
type RemoteRef struct {
	OwnerID string
	Kind    int64
}

func (r RemoteRef) IsZero() bool { return r.OwnerID == "" || r.Kind == 0 }

// Playlist is the local record of a remote playlist. OwnerID never changes
// after creation.
type Playlist struct {
	ID              string
	OwnerID         int64
	Remote          RemoteRef
	Title           string
	InsertPosition  InsertPosition
	InviteToken     string
	InviteExpiresAt *time.Time
	CreatedAt       time.Time
}

func NewPlaylist(ownerID int64, remote RemoteRef, title string, inviteTTL time.Duration) (*Playlist, error) {
	title = strings.TrimSpace(title)
	if ownerID <= 0 || title == "" || remote.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	p := &Playlist{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		Remote:         remote,
		Title:          title,
		InsertPosition: InsertAppend,
		CreatedAt:      time.Now(),
	}
	if err := p.RotateInvite(inviteTTL); err != nil {
		return nil, err
	}
	return p, nil
}

// RotateInvite replaces the invitation token. A zero ttl means the token never expires.
func (p *Playlist) RotateInvite(ttl time.Duration) error {
	tok, err := NewInviteToken()
	if err != nil {
		return err
	}
	p.InviteToken = tok
	p.InviteExpiresAt = nil
	if ttl > 0 {
		exp := time.Now().Add(ttl)
		p.InviteExpiresAt = &exp
	}
	return nil
}

func (p *Playlist) InviteExpired(now time.Time) bool {
	return p.InviteExpiresAt != nil && !now.Before(*p.InviteExpiresAt)
}

// NewInviteToken returns 16 random bytes, base64url encoded without padding.
func NewInviteToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
