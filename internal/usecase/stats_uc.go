package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-playlist-bot/internal/domain"
	"telegram-playlist-bot/internal/domain/model"
	"telegram-playlist-bot/internal/domain/ports/repository"
	"telegram-playlist-bot/internal/infra/logging"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

const defaultHistoryLimit = 50

type StatsUseCase interface {
	UserStats(ctx context.Context, userID int64) (*model.UserStats, error)
	// PlaylistStats and the lookups below require view access.
	PlaylistStats(ctx context.Context, userID int64, playlistID string) (*model.PlaylistStats, error)
	Attribution(ctx context.Context, userID int64, playlistID string, trackID int64) (*model.Attribution, error)
	History(ctx context.Context, userID int64, playlistID string, limit int) ([]*model.AuditEntry, error)
}

type statsUC struct {
	audit     repository.AuditRepository
	playlists repository.PlaylistRepository
	access    repository.AccessRepository
	guard     AccessUseCase

	log *zerolog.Logger
}

func NewStatsUseCase(audit repository.AuditRepository, playlists repository.PlaylistRepository, access repository.AccessRepository, guard AccessUseCase, logger *zerolog.Logger) *statsUC {
	return &statsUC{audit: audit, playlists: playlists, access: access, guard: guard, log: logger}
}

func (s *statsUC) UserStats(ctx context.Context, userID int64) (*model.UserStats, error) {
	defer logging.TraceDuration(s.log, "StatsUC.UserStats")()

	if userID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	added, removed, err := s.audit.UserCounts(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	owned, err := s.playlists.CountByOwner(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	member, err := s.access.CountByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	return &model.UserStats{
		UserID:         userID,
		TracksAdded:    added,
		TracksRemoved:  removed,
		PlaylistsOwned: owned,
		Memberships:    member,
	}, nil
}

func (s *statsUC) PlaylistStats(ctx context.Context, userID int64, playlistID string) (*model.PlaylistStats, error) {
	defer logging.TraceDuration(s.log, "StatsUC.PlaylistStats")()

	p, _, err := s.guard.Authorize(ctx, userID, playlistID, model.ActionView, "")
	if err != nil {
		return nil, err
	}
	cs, err := s.audit.PlaylistCounts(ctx, repository.NoTX, p.ID)
	if err != nil {
		return nil, err
	}
	if cs == nil {
		cs = []model.ContributorStats{}
	}
	return &model.PlaylistStats{PlaylistID: p.ID, Contributors: cs}, nil
}

func (s *statsUC) Attribution(ctx context.Context, userID int64, playlistID string, trackID int64) (*model.Attribution, error) {
	defer logging.TraceDuration(s.log, "StatsUC.Attribution")()

	if trackID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	p, _, err := s.guard.Authorize(ctx, userID, playlistID, model.ActionView, "")
	if err != nil {
		return nil, err
	}
	return s.audit.LastAdder(ctx, repository.NoTX, p.ID, trackID)
}

func (s *statsUC) History(ctx context.Context, userID int64, playlistID string, limit int) ([]*model.AuditEntry, error) {
	defer logging.TraceDuration(s.log, "StatsUC.History")()

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	p, _, err := s.guard.Authorize(ctx, userID, playlistID, model.ActionView, "")
	if err != nil {
		return nil, err
	}
	return s.audit.ListByPlaylist(ctx, repository.NoTX, p.ID, limit)
}
