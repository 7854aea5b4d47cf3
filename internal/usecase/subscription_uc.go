// File: internal/usecase/subscription_uc.go
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
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

type SubscriptionUseCase interface {
	// ListEffective returns the subscriptions currently raising userID's ceiling.
	ListEffective(ctx context.Context, userID int64) ([]*model.Subscription, error)
	// FinishExpired deactivates subscriptions whose expiry has passed.
	FinishExpired(ctx context.Context) (int, error)
}

type subscriptionUC struct {
	subs repository.SubscriptionRepository
	now  func() time.Time
	log  *zerolog.Logger
}

func NewSubscriptionUseCase(subs repository.SubscriptionRepository, logger *zerolog.Logger) *subscriptionUC {
	return &subscriptionUC{subs: subs, now: time.Now, log: logger}
}

func (u *subscriptionUC) ListEffective(ctx context.Context, userID int64) ([]*model.Subscription, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.ListEffective")()

	if userID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return u.subs.ListEffective(ctx, repository.NoTX, userID, u.now())
}

func (u *subscriptionUC) FinishExpired(ctx context.Context) (int, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.FinishExpired")()

	n, err := u.subs.DeactivateExpired(ctx, repository.NoTX, u.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.IncSubscriptionsExpired(n)
		u.log.Info().Int("count", n).Msg("subscriptions expired")
	}
	return n, nil
}
