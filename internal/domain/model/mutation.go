package model

import "telegram-playlist-bot/internal/domain"

type MutationOp string

const (
	OpAppend MutationOp = "append"
	OpRemove MutationOp = "remove"
)

// MutationRequest is the normalized request from the chat front end.
// For OpAppend, Tracks lists the items to insert. For OpRemove, Index is the
// ordinal the caller saw and Expect, when set, is the track it saw there.
type MutationRequest struct {
	UserID     int64      `json:"user_id"`
	PlaylistID string     `json:"playlist_id"`
	Op         MutationOp `json:"operation"`
	Tracks     []TrackRef `json:"tracks,omitempty"`
	Index      int        `json:"index,omitempty"`
	Expect     *TrackRef  `json:"expect,omitempty"`
	// InviteToken lets a non-member append by joining first.
	InviteToken string `json:"invite_token,omitempty"`
}

func (r *MutationRequest) Validate() error {
	if r.UserID <= 0 || r.PlaylistID == "" {
		return domain.ErrInvalidArgument
	}
	switch r.Op {
	case OpAppend:
		if len(r.Tracks) == 0 {
			return domain.ErrInvalidArgument
		}
		for _, t := range r.Tracks {
			if t.ID <= 0 {
				return domain.ErrInvalidArgument
			}
		}
	case OpRemove:
		if r.Index < 0 {
			return domain.ErrInvalidArgument
		}
	default:
		return domain.ErrInvalidArgument
	}
	return nil
}

// ExpectedDelta is the track-count change a successful write must produce.
func (r *MutationRequest) ExpectedDelta() int {
	if r.Op == OpRemove {
		return -1
	}
	return len(r.Tracks)
}

type MutationResult struct {
	OK            bool `json:"ok"`
	NewTrackCount int  `json:"new_track_count"`
	Attempts      int  `json:"attempts"`
}

type CreatePlaylistRequest struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
	Title    string `json:"title"`
}
