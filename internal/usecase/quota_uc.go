package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-playlist-bot/internal/domain"
	"telegram-playlist-bot/internal/domain/model"
	"telegram-playlist-bot/internal/domain/ports/repository"
	"telegram-playlist-bot/internal/infra/logging"
	"telegram-playlist-bot/internal/infra/metrics"
)

// Compile-time check
var _ QuotaUseCase = (*quotaUC)(nil)

// QuotaUseCase computes playlist ceilings from the base allowance and the
// user's active subscriptions. Subscriptions are not additive: the highest
// ceiling governs.
type QuotaUseCase interface {
	CurrentLimit(ctx context.Context, userID int64) (model.Limit, model.Tier, error)
	CanCreate(ctx context.Context, userID int64) (bool, error)
	Quota(ctx context.Context, userID int64) (*model.Quota, error)
	// CheckCreate runs the quota check inside tx and returns a
	// *domain.QuotaExceededError on denial.
	CheckCreate(ctx context.Context, tx repository.Tx, userID int64) error
}

type quotaUC struct {
	playlists repository.PlaylistRepository
	subs      repository.SubscriptionRepository
	catalog   *model.TierCatalog
	now       func() time.Time
	log       *zerolog.Logger
}

func NewQuotaUseCase(playlists repository.PlaylistRepository, subs repository.SubscriptionRepository, catalog *model.TierCatalog, logger *zerolog.Logger) *quotaUC {
	return &quotaUC{
		playlists: playlists,
		subs:      subs,
		catalog:   catalog,
		now:       time.Now,
		log:       logger,
	}
}

func (u *quotaUC) CurrentLimit(ctx context.Context, userID int64) (model.Limit, model.Tier, error) {
	defer logging.TraceDuration(u.log, "QuotaUC.CurrentLimit")()
	return u.limit(ctx, repository.NoTX, userID)
}

func (u *quotaUC) CanCreate(ctx context.Context, userID int64) (bool, error) {
	q, err := u.Quota(ctx, userID)
	if err != nil {
		return false, err
	}
	return q.CanCreate, nil
}

func (u *quotaUC) Quota(ctx context.Context, userID int64) (*model.Quota, error) {
	defer logging.TraceDuration(u.log, "QuotaUC.Quota")()
	return u.quota(ctx, repository.NoTX, userID)
}

func (u *quotaUC) CheckCreate(ctx context.Context, tx repository.Tx, userID int64) error {
	q, err := u.quota(ctx, tx, userID)
	if err != nil {
		return err
	}
	if !q.CanCreate {
		metrics.IncQuotaDenied()
		u.log.Info().Int64("user_id", userID).Int("owned", q.Owned).Str("limit", q.Limit.String()).Msg("playlist quota denied")
		return &domain.QuotaExceededError{Owned: q.Owned, Limit: q.Limit.Value()}
	}
	return nil
}

func (u *quotaUC) quota(ctx context.Context, tx repository.Tx, userID int64) (*model.Quota, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	limit, tier, err := u.limit(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	owned, err := u.playlists.CountByOwner(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	return &model.Quota{Owned: owned, Limit: limit, Tier: tier, CanCreate: limit.Allows(owned)}, nil
}

func (u *quotaUC) limit(ctx context.Context, tx repository.Tx, userID int64) (model.Limit, model.Tier, error) {
	now := u.now()
	subs, err := u.subs.ListEffective(ctx, tx, userID, now)
	if err != nil {
		return model.Limit{}, model.TierBase, err
	}
	limit, tier := u.catalog.Base(), model.TierBase
	for _, s := range subs {
		// the repository filters, but expiry is re-checked against the same clock
		if !s.Effective(now) {
			continue
		}
		if next := model.MaxLimit(limit, u.catalog.Ceiling(s.Tier)); next != limit {
			limit, tier = next, s.Tier
		}
	}
	return limit, tier, nil
}
