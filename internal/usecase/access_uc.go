package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"telegram-playlist-bot/internal/domain"
	"telegram-playlist-bot/internal/domain/model"
	"telegram-playlist-bot/internal/domain/ports/repository"
	"telegram-playlist-bot/internal/infra/logging"
)

// Compile-time check
var _ AccessUseCase = (*accessUC)(nil)

// AccessUseCase decides who may do what on a playlist.
type AccessUseCase interface {
	// Authorize resolves userID's role on the playlist and checks action. A
	// non-member presenting a valid invite token for view or append is granted
	// contributor access first.
	Authorize(ctx context.Context, userID int64, playlistID string, action model.Action, inviteToken string) (*model.Playlist, model.Role, error)
	// RedeemInvite joins userID to the playlist bound to token. Redeeming an
	// invite already held is a no-op; joined reports whether a grant was created.
	RedeemInvite(ctx context.Context, userID int64, token string) (p *model.Playlist, joined bool, err error)
	RotateInvite(ctx context.Context, userID int64, playlistID string) (*model.Playlist, error)
}

type accessUC struct {
	playlists repository.PlaylistRepository
	access    repository.AccessRepository
	users     repository.UserRepository
	audit     repository.AuditRepository
	inviteTTL time.Duration
	log       *zerolog.Logger
}

func NewAccessUseCase(playlists repository.PlaylistRepository, access repository.AccessRepository, users repository.UserRepository, audit repository.AuditRepository, inviteTTL time.Duration, logger *zerolog.Logger) *accessUC {
	return &accessUC{
		playlists: playlists,
		access:    access,
		users:     users,
		audit:     audit,
		inviteTTL: inviteTTL,
		log:       logger,
	}
}

func (u *accessUC) Authorize(ctx context.Context, userID int64, playlistID string, action model.Action, inviteToken string) (*model.Playlist, model.Role, error) {
	defer logging.TraceDuration(u.log, "AccessUC.Authorize")()

	if userID <= 0 || !action.Valid() {
		return nil, model.RoleNone, domain.ErrInvalidArgument
	}
	p, err := u.playlists.FindByID(ctx, repository.NoTX, playlistID)
	if err != nil {
		return nil, model.RoleNone, err
	}
	role, err := u.roleOf(ctx, userID, p)
	if err != nil {
		return nil, model.RoleNone, err
	}

	if role == model.RoleNone && inviteToken != "" && (action == model.ActionView || action == model.ActionAppend) {
		if err := u.checkInvite(p, inviteToken); err != nil {
			return p, role, err
		}
		if _, err := u.join(ctx, userID, p); err != nil {
			return p, role, err
		}
		role = model.RoleContributor
	}

	if !role.Permits(action) {
		if role == model.RoleNone {
			return p, role, domain.Denied(domain.ReasonNotAMember)
		}
		return p, role, domain.Denied(domain.ReasonInsufficientRole)
	}
	return p, role, nil
}

func (u *accessUC) RedeemInvite(ctx context.Context, userID int64, token string) (*model.Playlist, bool, error) {
	defer logging.TraceDuration(u.log, "AccessUC.RedeemInvite")()

	if userID <= 0 || token == "" {
		return nil, false, domain.ErrInvalidArgument
	}
	p, err := u.playlists.FindByInviteToken(ctx, repository.NoTX, token)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, false, domain.Denied(domain.ReasonNotAMember)
	}
	if err != nil {
		return nil, false, err
	}
	if p.InviteExpired(time.Now()) {
		return p, false, domain.Denied(domain.ReasonInvitationExpired)
	}
	if p.OwnerID == userID {
		return p, false, nil
	}
	joined, err := u.join(ctx, userID, p)
	if err != nil {
		return nil, false, err
	}
	return p, joined, nil
}

func (u *accessUC) RotateInvite(ctx context.Context, userID int64, playlistID string) (*model.Playlist, error) {
	defer logging.TraceDuration(u.log, "AccessUC.RotateInvite")()

	p, _, err := u.Authorize(ctx, userID, playlistID, model.ActionGrantAccess, "")
	if err != nil {
		return nil, err
	}
	if err := p.RotateInvite(u.inviteTTL); err != nil {
		return nil, err
	}
	if err := u.playlists.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (u *accessUC) roleOf(ctx context.Context, userID int64, p *model.Playlist) (model.Role, error) {
	if p.OwnerID == userID {
		return model.RoleOwner, nil
	}
	granted, err := u.access.HasGrant(ctx, repository.NoTX, p.ID, userID)
	if err != nil {
		return model.RoleNone, err
	}
	return model.RoleOf(userID, p, granted), nil
}

func (u *accessUC) checkInvite(p *model.Playlist, token string) error {
	if subtle.ConstantTimeCompare([]byte(p.InviteToken), []byte(token)) != 1 {
		return domain.Denied(domain.ReasonNotAMember)
	}
	if p.InviteExpired(time.Now()) {
		return domain.Denied(domain.ReasonInvitationExpired)
	}
	return nil
}

func (u *accessUC) join(ctx context.Context, userID int64, p *model.Playlist) (bool, error) {
	if _, err := ensureUser(ctx, u.users, repository.NoTX, userID, ""); err != nil {
		return false, err
	}
	created, err := u.access.Grant(ctx, repository.NoTX, p.ID, userID)
	if err != nil {
		return false, err
	}
	if created {
		e := model.NewAuditEntry(p.ID, userID, model.AuditJoin, model.OutcomeOK)
		if err := u.audit.Append(ctx, repository.NoTX, e); err != nil {
			u.log.Warn().Err(err).Str("playlist_id", p.ID).Msg("failed to record join")
		}
		u.log.Info().Int64("user_id", userID).Str("playlist_id", p.ID).Msg("contributor joined")
	}
	return created, nil
}
