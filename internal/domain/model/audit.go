package model

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

type AuditOutcome string

const (
	OutcomeOK                AuditOutcome = "ok"
	OutcomeConflictExhausted AuditOutcome = "conflict_exhausted"
	OutcomeNoEffect          AuditOutcome = "no_effect"
	OutcomeNotFound          AuditOutcome = "not_found"
	OutcomeUnavailable       AuditOutcome = "unavailable"
	OutcomeDenied            AuditOutcome = "denied"
	OutcomeQuotaExceeded     AuditOutcome = "quota_exceeded"
	OutcomeFailed            AuditOutcome = "failed"
)

const (
	AuditAppend = "append"
	AuditRemove = "remove"
	AuditCreate = "create"
	AuditRename = "rename"
	AuditDelete = "delete"
	AuditJoin   = "join"
)

// AuditEntry is one append-only record of an outcome-determined operation.
// PlaylistID is kept after the playlist is deleted.
type AuditEntry struct {
	ID         string
	PlaylistID string
	UserID     int64
	Operation  string
	Track      *TrackRef
	Position   *int
	Outcome    AuditOutcome
	Attempts   int
	Detail     string
	CreatedAt  time.Time
}

func NewAuditEntry(playlistID string, userID int64, op string, outcome AuditOutcome) *AuditEntry {
	now := time.Now()
	return &AuditEntry{
		ID:         ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		PlaylistID: playlistID,
		UserID:     userID,
		Operation:  op,
		Outcome:    outcome,
		CreatedAt:  now,
	}
}

type UserStats struct {
	UserID         int64 `json:"user_id"`
	TracksAdded    int   `json:"tracks_added"`
	TracksRemoved  int   `json:"tracks_removed"`
	PlaylistsOwned int   `json:"playlists_owned"`
	Memberships    int   `json:"memberships"`
}

type ContributorStats struct {
	UserID  int64 `json:"user_id"`
	Added   int   `json:"added"`
	Removed int   `json:"removed"`
}

type PlaylistStats struct {
	PlaylistID   string             `json:"playlist_id"`
	Contributors []ContributorStats `json:"contributors"`
}

// Attribution names who last added a track to a playlist.
type Attribution struct {
	Track   TrackRef  `json:"track"`
	UserID  int64     `json:"user_id"`
	AddedAt time.Time `json:"added_at"`
}
