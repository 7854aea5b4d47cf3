// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-playlist-bot/internal/domain"
	"telegram-playlist-bot/internal/domain/model"
	"telegram-playlist-bot/internal/domain/ports/adapter"
	"telegram-playlist-bot/internal/domain/ports/repository"
	"telegram-playlist-bot/internal/infra/logging"
	"telegram-playlist-bot/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

const (
	failureAmountMismatch = "amount_mismatch"
	failureExpired        = "expired"
)

type PaymentUseCase interface {
	Offers() []model.TierSpec
	// CreateIntent records a pending intent for tier and returns the invoice
	// to present to the user.
	CreateIntent(ctx context.Context, userID int64, tier model.Tier) (*model.PaymentIntent, *model.Invoice, error)
	// SendInvoice creates an intent and delivers its invoice to chatID.
	SendInvoice(ctx context.Context, chatID, userID int64, tier model.Tier) (*model.PaymentIntent, *model.Invoice, error)
	// PreConfirm answers the rail's pre-checkout query. It never writes.
	PreConfirm(ctx context.Context, payload string, amount int64) error
	// Reconcile turns a funds-confirmed event into a subscription exactly once.
	// Replays of a completed intent return the stored activation.
	Reconcile(ctx context.Context, conf model.PaymentConfirmation) (*model.Activation, error)
	// RedrivePaid reconciles pending intents whose payment was recorded but
	// never settled. It returns how many were activated.
	RedrivePaid(ctx context.Context, limit int) (int, error)
	// ExpireStale fails unpaid pending intents older than maxAge.
	ExpireStale(ctx context.Context, maxAge time.Duration, limit int) (int, error)
}

type paymentUC struct {
	payments repository.PaymentRepository
	subs     repository.SubscriptionRepository
	users    repository.UserRepository
	catalog  *model.TierCatalog
	sender   adapter.InvoiceSender
	tm       repository.TransactionManager
	now      func() time.Time
	log      *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	subs repository.SubscriptionRepository,
	users repository.UserRepository,
	catalog *model.TierCatalog,
	sender adapter.InvoiceSender,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *paymentUC {
	return &paymentUC{
		payments: payments,
		subs:     subs,
		users:    users,
		catalog:  catalog,
		sender:   sender,
		tm:       tm,
		now:      time.Now,
		log:      logger,
	}
}

func (u *paymentUC) Offers() []model.TierSpec { return u.catalog.Offers() }

func (u *paymentUC) CreateIntent(ctx context.Context, userID int64, tier model.Tier) (*model.PaymentIntent, *model.Invoice, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.CreateIntent")()

	spec, ok := u.catalog.Spec(tier)
	if !ok {
		return nil, nil, domain.ErrInvalidArgument
	}
	if _, err := ensureUser(ctx, u.users, repository.NoTX, userID, ""); err != nil {
		return nil, nil, err
	}
	intent, err := model.NewPaymentIntent(userID, spec)
	if err != nil {
		return nil, nil, err
	}
	if err := u.payments.Save(ctx, repository.NoTX, intent); err != nil {
		return nil, nil, err
	}
	metrics.IncPayment(string(model.PaymentStatusPending))

	inv := &model.Invoice{
		Title:       "Playlist plan: " + spec.Tier.String(),
		Description: "Own up to " + spec.Ceiling.String() + " playlists",
		PriceStars:  intent.PriceStars,
		Payload:     intent.Payload,
	}
	u.log.Info().Int64("user_id", userID).Str("tier", tier.String()).Str("payment_id", intent.ID).Msg("payment intent created")
	return intent, inv, nil
}

func (u *paymentUC) SendInvoice(ctx context.Context, chatID, userID int64, tier model.Tier) (*model.PaymentIntent, *model.Invoice, error) {
	if u.sender == nil {
		return nil, nil, domain.ErrOperationFailed
	}
	intent, inv, err := u.CreateIntent(ctx, userID, tier)
	if err != nil {
		return nil, nil, err
	}
	if err := u.sender.SendInvoice(ctx, chatID, *inv); err != nil {
		// the pending intent is left for the stale sweep
		return nil, nil, err
	}
	return intent, inv, nil
}

func (u *paymentUC) PreConfirm(ctx context.Context, payload string, amount int64) error {
	defer logging.TraceDuration(u.log, "PaymentUC.PreConfirm")()

	intent, err := u.payments.FindByPayload(ctx, repository.NoTX, payload)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.PaymentIntentError{Reason: domain.ReasonUnknownIntent}
	}
	if err != nil {
		return err
	}
	if intent.Status.Terminal() {
		return &domain.PaymentIntentError{Reason: domain.ReasonAlreadyProcessed}
	}
	if amount != intent.PriceStars {
		return &domain.PaymentAmountMismatchError{Expected: intent.PriceStars, Paid: amount}
	}
	return nil
}

func (u *paymentUC) Reconcile(ctx context.Context, conf model.PaymentConfirmation) (*model.Activation, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Reconcile")()

	if conf.Payload == "" {
		return nil, &domain.PaymentIntentError{Reason: domain.ReasonUnknownIntent}
	}
	var chargeID *string
	if conf.ChargeID != "" {
		chargeID = &conf.ChargeID
	}
	// recorded outside the settling tx so a failed settle is redriven, not expired
	if _, err := u.payments.NotePaid(ctx, repository.NoTX, conf.Payload, conf.AmountPaid, chargeID); err != nil {
		u.log.Warn().Err(err).Str("payload", logging.Redact(conf.Payload, false)).Msg("note payment failed")
	}

	var (
		act      *model.Activation
		mismatch error
		replayed bool
		intent   *model.PaymentIntent
	)
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		// serializes concurrent confirmations of the same payload
		p, err := u.payments.FindByPayload(ctx, tx, conf.Payload)
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.PaymentIntentError{Reason: domain.ReasonUnknownIntent}
		}
		if err != nil {
			return err
		}
		intent = p

		switch p.Status {
		case model.PaymentStatusCompleted:
			if p.SubscriptionID == nil {
				return domain.ErrOperationFailed
			}
			s, err := u.subs.FindByID(ctx, tx, *p.SubscriptionID)
			if err != nil {
				return err
			}
			act = u.activation(s)
			replayed = true
			return nil
		case model.PaymentStatusFailed:
			return &domain.PaymentIntentError{Reason: domain.ReasonAlreadyProcessed}
		}

		now := u.now()
		if conf.AmountPaid != p.PriceStars {
			paid := conf.AmountPaid
			if _, err := u.payments.FailIfPending(ctx, tx, p.ID, failureAmountMismatch, &paid, now); err != nil {
				return err
			}
			// committed as failed, reported as a mismatch
			mismatch = &domain.PaymentAmountMismatchError{Expected: p.PriceStars, Paid: conf.AmountPaid}
			return nil
		}

		s := &model.Subscription{
			ID:          uuid.NewString(),
			UserID:      p.UserID,
			Tier:        p.Tier,
			Ceiling:     u.catalog.Ceiling(p.Tier),
			StarsPaid:   conf.AmountPaid,
			PurchasedAt: now,
			Active:      true,
			PaymentID:   p.ID,
		}
		if spec, ok := u.catalog.Spec(p.Tier); ok && spec.Duration > 0 {
			exp := now.Add(spec.Duration)
			s.ExpiresAt = &exp
		}
		if err := u.subs.Save(ctx, tx, s); err != nil {
			return err
		}
		ok, err := u.payments.CompleteIfPending(ctx, tx, p.ID, conf.AmountPaid, chargeID, s.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return &domain.PaymentIntentError{Reason: domain.ReasonAlreadyProcessed}
		}
		act = u.activation(s)
		return nil
	})

	log := u.log.With().Str("payload", logging.Redact(conf.Payload, false)).Logger()
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("payment reconcile rejected")
		return nil, err
	case mismatch != nil:
		metrics.IncPayment(string(model.PaymentStatusFailed))
		log.Warn().Err(mismatch).Str("payment_id", intent.ID).Msg("payment failed on amount")
		return nil, mismatch
	case replayed:
		metrics.IncPayment("replayed")
		log.Info().Str("payment_id", intent.ID).Msg("payment confirmation replayed")
		return act, nil
	}

	metrics.IncPayment(string(model.PaymentStatusCompleted))
	metrics.AddStars(act.Tier.String(), conf.AmountPaid)
	metrics.IncSubscriptionActivated(act.Tier.String())
	log.Info().
		Str("payment_id", intent.ID).
		Str("user_id", strconv.FormatInt(act.UserID, 10)).
		Str("tier", act.Tier.String()).
		Msg("subscription activated")
	return act, nil
}

func (u *paymentUC) RedrivePaid(ctx context.Context, limit int) (int, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.RedrivePaid")()

	paid, err := u.payments.ListPaidPending(ctx, repository.NoTX, limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range paid {
		conf := model.PaymentConfirmation{Payload: p.Payload, AmountPaid: *p.AmountPaid}
		if p.ChargeID != nil {
			conf.ChargeID = *p.ChargeID
		}
		if _, err := u.Reconcile(ctx, conf); err != nil {
			u.log.Error().Err(err).Str("payment_id", p.ID).Msg("redrive reconcile failed")
			continue
		}
		n++
	}
	return n, nil
}

func (u *paymentUC) ExpireStale(ctx context.Context, maxAge time.Duration, limit int) (int, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.ExpireStale")()

	now := u.now()
	stale, err := u.payments.ListUnpaidOlderThan(ctx, repository.NoTX, now.Add(-maxAge), limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range stale {
		ok, err := u.payments.ExpireIfUnpaid(ctx, repository.NoTX, p.ID, failureExpired, now)
		if err != nil {
			u.log.Error().Err(err).Str("payment_id", p.ID).Msg("failed to expire intent")
			continue
		}
		if ok {
			n++
			metrics.IncPayment(string(model.PaymentStatusFailed))
		}
	}
	return n, nil
}

// activation is derived from the stored subscription only, so a replay
// returns exactly what the first reconcile returned even if the catalog
// changed in between.
func (u *paymentUC) activation(s *model.Subscription) *model.Activation {
	return &model.Activation{
		SubscriptionID: s.ID,
		UserID:         s.UserID,
		Tier:           s.Tier,
		Ceiling:        s.Ceiling,
		ExpiresAt:      s.ExpiresAt,
	}
}
