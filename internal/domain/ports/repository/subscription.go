package repository

import (
	"context"
	"time"

	"telegram-playlist-bot/internal/domain/model"
)

// -----------------------------
// Subscriptions
// -----------------------------

type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindByPaymentID(ctx context.Context, tx Tx, paymentID string) (*model.Subscription, error)
	// ListEffective returns active subscriptions of userID not expired at now.
	ListEffective(ctx context.Context, tx Tx, userID int64, now time.Time) ([]*model.Subscription, error)
	// DeactivateExpired flips active off for subscriptions expired at now.
	DeactivateExpired(ctx context.Context, tx Tx, now time.Time) (int, error)
}
