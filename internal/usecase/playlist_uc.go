package usecase

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-playlist-bot/internal/domain"
	"telegram-playlist-bot/internal/domain/model"
	"telegram-playlist-bot/internal/domain/ports/repository"
	"telegram-playlist-bot/internal/infra/logging"
)

// Compile-time check
var _ PlaylistUseCase = (*playlistUC)(nil)

// PlaylistUseCase manages the local playlist records and their remote twins.
type PlaylistUseCase interface {
	// Create checks the quota, creates the remote playlist and stores the
	// record in one transaction. The owner row is locked for the duration so
	// concurrent creates by the same user are serialized.
	Create(ctx context.Context, req model.CreatePlaylistRequest) (*model.Playlist, error)
	// Get returns the local record. A valid inviteToken makes a non-member a
	// contributor first.
	Get(ctx context.Context, userID int64, playlistID, inviteToken string) (*model.Playlist, model.Role, error)
	// Tracks reads the remote track list with the bot's attribution.
	Tracks(ctx context.Context, userID int64, playlistID, inviteToken string) (*model.PlaylistTracks, error)
	Rename(ctx context.Context, userID int64, playlistID, title string) (*model.Playlist, error)
	SetInsertPosition(ctx context.Context, userID int64, playlistID string, pos model.InsertPosition) (*model.Playlist, error)
	// Delete forgets the playlist locally. The remote playlist is left as is.
	Delete(ctx context.Context, userID int64, playlistID string) error
	ListForUser(ctx context.Context, userID int64) (owned, shared []*model.Playlist, err error)
}

type playlistUC struct {
	playlists repository.PlaylistRepository
	users     repository.UserRepository
	audit     repository.AuditRepository
	access    AccessUseCase
	quota     QuotaUseCase
	gateways  *GatewayResolver
	tm        repository.TransactionManager
	inviteTTL time.Duration
	log       *zerolog.Logger
}

func NewPlaylistUseCase(
	playlists repository.PlaylistRepository,
	users repository.UserRepository,
	audit repository.AuditRepository,
	access AccessUseCase,
	quota QuotaUseCase,
	gateways *GatewayResolver,
	tm repository.TransactionManager,
	inviteTTL time.Duration,
	logger *zerolog.Logger,
) *playlistUC {
	return &playlistUC{
		playlists: playlists,
		users:     users,
		audit:     audit,
		access:    access,
		quota:     quota,
		gateways:  gateways,
		tm:        tm,
		inviteTTL: inviteTTL,
		log:       logger,
	}
}

func (u *playlistUC) Create(ctx context.Context, req model.CreatePlaylistRequest) (*model.Playlist, error) {
	defer logging.TraceDuration(u.log, "PlaylistUC.Create")()

	title := strings.TrimSpace(req.Title)
	if req.UserID <= 0 || title == "" {
		return nil, domain.ErrInvalidArgument
	}
	log := logging.With(logging.WithUserID(ctx, strconv.FormatInt(req.UserID, 10)), u.log)

	var out *model.Playlist
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		owner, err := ensureUser(ctx, u.users, tx, req.UserID, req.Username)
		if err != nil {
			return err
		}
		if err := u.users.LockByID(ctx, tx, owner.ID); err != nil {
			return err
		}
		if err := u.quota.CheckCreate(ctx, tx, owner.ID); err != nil {
			return err
		}

		gw, err := u.gateways.ForUser(owner)
		if err != nil {
			return err
		}
		remote, err := gw.CreatePlaylist(ctx, title)
		if err != nil {
			return err
		}
		p, err := model.NewPlaylist(owner.ID, remote, title, u.inviteTTL)
		if err != nil {
			return err
		}
		if err := u.playlists.Save(ctx, tx, p); err != nil {
			// the remote playlist now exists without a local record
			log.Error().Err(err).Str("remote_owner", remote.OwnerID).Int64("remote_kind", remote.Kind).Msg("orphaned remote playlist")
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	e := model.NewAuditEntry(out.ID, req.UserID, model.AuditCreate, model.OutcomeOK)
	e.Detail = out.Title
	if err := u.audit.Append(context.WithoutCancel(ctx), repository.NoTX, e); err != nil {
		log.Warn().Err(err).Msg("failed to record playlist creation")
	}
	log.Info().Str("playlist_id", out.ID).Msg("playlist created")
	return out, nil
}

func (u *playlistUC) Get(ctx context.Context, userID int64, playlistID, inviteToken string) (*model.Playlist, model.Role, error) {
	defer logging.TraceDuration(u.log, "PlaylistUC.Get")()
	return u.access.Authorize(ctx, userID, playlistID, model.ActionView, inviteToken)
}

func (u *playlistUC) Tracks(ctx context.Context, userID int64, playlistID, inviteToken string) (*model.PlaylistTracks, error) {
	defer logging.TraceDuration(u.log, "PlaylistUC.Tracks")()

	p, _, err := u.access.Authorize(ctx, userID, playlistID, model.ActionView, inviteToken)
	if err != nil {
		return nil, err
	}
	gw, err := u.gateways.ForPlaylist(ctx, repository.NoTX, p)
	if err != nil {
		return nil, err
	}
	state, err := gw.FetchState(ctx, p.Remote)
	if err != nil {
		return nil, err
	}
	adders, err := u.audit.LastAdders(ctx, repository.NoTX, p.ID)
	if err != nil {
		// the track list is still useful without attribution
		u.log.Warn().Err(err).Str("playlist_id", p.ID).Msg("attribution unavailable")
		adders = nil
	}

	out := &model.PlaylistTracks{PlaylistID: p.ID, Revision: state.Revision, Tracks: make([]model.TrackView, len(state.Tracks))}
	for i, t := range state.Tracks {
		v := model.TrackView{Position: i, Track: t}
		if a, ok := adders[t.ID]; ok {
			v.AddedBy, v.AddedAt = &a.UserID, &a.AddedAt
		}
		out.Tracks[i] = v
	}
	return out, nil
}

func (u *playlistUC) Rename(ctx context.Context, userID int64, playlistID, title string) (*model.Playlist, error) {
	defer logging.TraceDuration(u.log, "PlaylistUC.Rename")()

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domain.ErrInvalidArgument
	}
	p, _, err := u.access.Authorize(ctx, userID, playlistID, model.ActionRename, "")
	if err != nil {
		return nil, err
	}
	gw, err := u.gateways.ForPlaylist(ctx, repository.NoTX, p)
	if err != nil {
		return nil, err
	}
	if err := gw.Rename(ctx, p.Remote, title); err != nil {
		u.recordSimple(ctx, p.ID, userID, model.AuditRename, err)
		return nil, err
	}
	p.Title = title
	if err := u.playlists.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	u.recordSimple(ctx, p.ID, userID, model.AuditRename, nil)
	return p, nil
}

func (u *playlistUC) SetInsertPosition(ctx context.Context, userID int64, playlistID string, pos model.InsertPosition) (*model.Playlist, error) {
	defer logging.TraceDuration(u.log, "PlaylistUC.SetInsertPosition")()

	if !pos.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	// playlist settings are owner-only, same as the title
	p, _, err := u.access.Authorize(ctx, userID, playlistID, model.ActionRename, "")
	if err != nil {
		return nil, err
	}
	if p.InsertPosition == pos {
		return p, nil
	}
	p.InsertPosition = pos
	if err := u.playlists.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (u *playlistUC) Delete(ctx context.Context, userID int64, playlistID string) error {
	defer logging.TraceDuration(u.log, "PlaylistUC.Delete")()

	p, _, err := u.access.Authorize(ctx, userID, playlistID, model.ActionDelete, "")
	if err != nil {
		return err
	}
	if err := u.playlists.Delete(ctx, repository.NoTX, p.ID); err != nil {
		return err
	}
	u.recordSimple(ctx, p.ID, userID, model.AuditDelete, nil)
	u.log.Info().Str("playlist_id", p.ID).Int64("user_id", userID).Msg("playlist deleted")
	return nil
}

func (u *playlistUC) ListForUser(ctx context.Context, userID int64) ([]*model.Playlist, []*model.Playlist, error) {
	defer logging.TraceDuration(u.log, "PlaylistUC.ListForUser")()

	if userID <= 0 {
		return nil, nil, domain.ErrInvalidArgument
	}
	owned, err := u.playlists.ListByOwner(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, nil, err
	}
	shared, err := u.playlists.ListShared(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, nil, err
	}
	return owned, shared, nil
}

func (u *playlistUC) recordSimple(ctx context.Context, playlistID string, userID int64, op string, cause error) {
	e := model.NewAuditEntry(playlistID, userID, op, outcomeOf(cause))
	e.Attempts = 1
	if cause != nil {
		e.Detail = cause.Error()
	}
	if err := u.audit.Append(context.WithoutCancel(ctx), repository.NoTX, e); err != nil {
		u.log.Warn().Err(err).Str("playlist_id", playlistID).Str("op", op).Msg("failed to append audit entry")
	}
}
