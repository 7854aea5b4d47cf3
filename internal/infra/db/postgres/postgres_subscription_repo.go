package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-playlist-bot/internal/domain/model"
	"telegram-playlist-bot/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, user_id, tier, ceiling, stars_paid, purchased_at, expires_at, is_active, payment_id`

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var s model.Subscription
	var tier string
	var ceiling int
	if err := row.Scan(&s.ID, &s.UserID, &tier, &ceiling, &s.StarsPaid, &s.PurchasedAt, &s.ExpiresAt, &s.Active, &s.PaymentID); err != nil {
		return nil, err
	}
	t, err := model.ParseTier(tier)
	if err != nil {
		return nil, err
	}
	s.Tier = t
	s.Ceiling = model.LimitFromValue(ceiling)
	return &s, nil
}

// Save inserts a subscription. payment_id is unique, so a second subscription
// for the same payment fails with domain.ErrAlreadyExists.
func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (` + subscriptionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`
	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.UserID, s.Tier.String(), s.Ceiling.Value(), s.StarsPaid, s.PurchasedAt, s.ExpiresAt, s.Active, s.PaymentID)
	return err
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	s, err := scanSubscription(row)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return s, nil
}

func (r *subscriptionRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE payment_id=$1;`, paymentID)
	if err != nil {
		return nil, err
	}
	s, err := scanSubscription(row)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return s, nil
}

func (r *subscriptionRepo) ListEffective(ctx context.Context, tx repository.Tx, userID int64, now time.Time) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE user_id=$1 AND is_active AND (expires_at IS NULL OR expires_at > $2)
 ORDER BY purchased_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, mapScanErr(err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapExecErr(err)
	}
	return out, nil
}

func (r *subscriptionRepo) DeactivateExpired(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	tag, err := execSQL(ctx, r.pool, tx, `UPDATE subscriptions SET is_active=FALSE WHERE is_active AND expires_at IS NOT NULL AND expires_at <= $1;`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
