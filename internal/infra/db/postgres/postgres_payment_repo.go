package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-playlist-bot/internal/domain/model"
	"telegram-playlist-bot/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, payload, user_id, tier, price_stars, status, amount_paid, charge_id, failure_reason, subscription_id, created_at, completed_at`

func scanPayment(row pgx.Row) (*model.PaymentIntent, error) {
	var p model.PaymentIntent
	var tier, status string
	if err := row.Scan(&p.ID, &p.Payload, &p.UserID, &tier, &p.PriceStars, &status, &p.AmountPaid, &p.ChargeID, &p.FailureReason, &p.SubscriptionID, &p.CreatedAt, &p.CompletedAt); err != nil {
		return nil, err
	}
	t, err := model.ParseTier(tier)
	if err != nil {
		return nil, err
	}
	p.Tier = t
	p.Status = model.PaymentStatus(status)
	return &p, nil
}

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentIntent) error {
	const q = `
INSERT INTO payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12);`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Payload, p.UserID, p.Tier.String(), p.PriceStars, string(p.Status), p.AmountPaid, p.ChargeID, p.FailureReason, p.SubscriptionID, p.CreatedAt, p.CompletedAt)
	return err
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentIntent, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(row)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return p, nil
}

func (r *paymentRepo) FindByPayload(ctx context.Context, tx repository.Tx, payload string) (*model.PaymentIntent, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE payload=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", payload)
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(row)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return p, nil
}

// CompleteIfPending is the compare-and-set that makes reconciliation exactly-once.
func (r *paymentRepo) CompleteIfPending(ctx context.Context, tx repository.Tx, id string, amountPaid int64, chargeID *string, subscriptionID string, at time.Time) (bool, error) {
	const q = `
UPDATE payments
   SET status = 'completed',
       amount_paid = $2,
       charge_id = $3,
       subscription_id = $4,
       completed_at = $5
 WHERE id = $1
   AND status = 'pending';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, amountPaid, chargeID, subscriptionID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *paymentRepo) FailIfPending(ctx context.Context, tx repository.Tx, id string, reason string, amountPaid *int64, at time.Time) (bool, error) {
	const q = `
UPDATE payments
   SET status = 'failed',
       failure_reason = $2,
       amount_paid = COALESCE($3, amount_paid),
       completed_at = $4
 WHERE id = $1
   AND status = 'pending';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, reason, amountPaid, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// NotePaid keeps the first recorded amount so a later delivery cannot rewrite it.
func (r *paymentRepo) NotePaid(ctx context.Context, tx repository.Tx, payload string, amountPaid int64, chargeID *string) (bool, error) {
	const q = `
UPDATE payments
   SET amount_paid = COALESCE(amount_paid, $2),
       charge_id = COALESCE(charge_id, $3)
 WHERE payload = $1
   AND status = 'pending';`
	tag, err := execSQL(ctx, r.pool, tx, q, payload, amountPaid, chargeID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *paymentRepo) ExpireIfUnpaid(ctx context.Context, tx repository.Tx, id string, reason string, at time.Time) (bool, error) {
	const q = `
UPDATE payments
   SET status = 'failed',
       failure_reason = $2,
       completed_at = $3
 WHERE id = $1
   AND status = 'pending'
   AND amount_paid IS NULL;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, reason, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *paymentRepo) ListUnpaidOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentIntent, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE status='pending' AND amount_paid IS NULL AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	return r.list(ctx, tx, q, olderThan, limit)
}

func (r *paymentRepo) ListPaidPending(ctx context.Context, tx repository.Tx, limit int) ([]*model.PaymentIntent, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE status='pending' AND amount_paid IS NOT NULL ORDER BY created_at ASC LIMIT $1;`
	return r.list(ctx, tx, q, limit)
}

func (r *paymentRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.PaymentIntent, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PaymentIntent
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, mapScanErr(err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapExecErr(err)
	}
	return out, nil
}
