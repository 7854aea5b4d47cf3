package adapter

import (
	"context"

	"telegram-playlist-bot/internal/domain/model"
)

// PlaylistGateway talks to the remote music service. Every write takes the
// revision from a prior FetchState and fails with domain.ErrRevisionConflict
// when it is stale. A successful write may still have had no effect; callers
// verify with a fresh FetchState.
type PlaylistGateway interface {
	FetchState(ctx context.Context, ref model.RemoteRef) (*model.RemoteState, error)
	AppendItems(ctx context.Context, ref model.RemoteRef, items []model.TrackRef, rev model.Revision, at int) (model.Revision, error)
	RemoveItem(ctx context.Context, ref model.RemoteRef, index int, rev model.Revision) (model.Revision, error)
	CreatePlaylist(ctx context.Context, title string) (model.RemoteRef, error)
	Rename(ctx context.Context, ref model.RemoteRef, title string) error
	// AccountID returns the remote account the gateway's credential belongs to.
	AccountID(ctx context.Context) (string, error)
}

// GatewayProvider returns a gateway authorised with credential, or with the
// service default when credential is empty.
type GatewayProvider interface {
	For(credential string) PlaylistGateway
}
