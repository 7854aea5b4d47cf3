package repository

import (
	"context"
	"time"

	"telegram-playlist-bot/internal/domain/model"
)

// -----------------------------
// Payment intents
// -----------------------------

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.PaymentIntent) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentIntent, error)
	// FindByPayload locks the row when tx is a transaction.
	FindByPayload(ctx context.Context, tx Tx, payload string) (*model.PaymentIntent, error)
	// CompleteIfPending moves a pending intent to completed. It reports false
	// when the intent was no longer pending.
	CompleteIfPending(ctx context.Context, tx Tx, id string, amountPaid int64, chargeID *string, subscriptionID string, at time.Time) (bool, error)
	// FailIfPending moves a pending intent to failed.
	FailIfPending(ctx context.Context, tx Tx, id string, reason string, amountPaid *int64, at time.Time) (bool, error)
	// NotePaid records a funds confirmation on a pending intent without
	// settling it. It reports false when no pending intent has that payload.
	NotePaid(ctx context.Context, tx Tx, payload string, amountPaid int64, chargeID *string) (bool, error)
	// ExpireIfUnpaid fails a pending intent that has no recorded payment.
	ExpireIfUnpaid(ctx context.Context, tx Tx, id string, reason string, at time.Time) (bool, error)
	// ListUnpaidOlderThan lists pending intents with no recorded payment.
	ListUnpaidOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.PaymentIntent, error)
	// ListPaidPending lists pending intents that carry a recorded payment.
	ListPaidPending(ctx context.Context, tx Tx, limit int) ([]*model.PaymentIntent, error)
}
