package model

import (
	"strconv"
	"time"
)

// TrackRef identifies a track on the music service. AlbumID is optional and
// only carried for attribution.
type TrackRef struct {
	ID      int64 `json:"id"`
	AlbumID int64 `json:"album_id,omitempty"`
}

func (t TrackRef) String() string {
	if t.AlbumID == 0 {
		return strconv.FormatInt(t.ID, 10)
	}
	return strconv.FormatInt(t.ID, 10) + ":" + strconv.FormatInt(t.AlbumID, 10)
}

// Revision is the opaque version stamp of a remote track list. It is only
// ever compared for equality.
type Revision string

// RemoteState is one read of a remote playlist.
type RemoteState struct {
	Revision Revision
	Tracks   []TrackRef
	Title    string
}

func (s *RemoteState) Count() int { return len(s.Tracks) }

// TrackView is one ordinal of a remote playlist. AddedBy is unset for tracks
// that were not added through the bot.
type TrackView struct {
	Position int        `json:"position"`
	Track    TrackRef   `json:"track"`
	AddedBy  *int64     `json:"added_by,omitempty"`
	AddedAt  *time.Time `json:"added_at,omitempty"`
}

// PlaylistTracks is the current remote track list. Positions are the ordinals
// a remove request refers to.
type PlaylistTracks struct {
	PlaylistID string      `json:"playlist_id"`
	Revision   Revision    `json:"revision"`
	Tracks     []TrackView `json:"tracks"`
}

// Multiset counts the occurrences of each track id in s.
func (s *RemoteState) Multiset() map[int64]int {
	m := make(map[int64]int, len(s.Tracks))
	for _, t := range s.Tracks {
		m[t.ID]++
	}
	return m
}
