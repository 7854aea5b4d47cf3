//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"telegram-playlist-bot/internal/domain"
	"telegram-playlist-bot/internal/domain/model"
	"telegram-playlist-bot/internal/domain/ports/repository"
)

func TestPaymentRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewPaymentRepo(testPool)
	subs := NewSubscriptionRepo(testPool)
	tm := NewTxManager(testPool)
	spec := model.TierSpec{Tier: model.Tier5, Ceiling: model.Finite(5), PriceStars: 100}

	t.Run("should save and find an intent by payload", func(t *testing.T) {
		cleanup(t)
		seedUser(t, 7)
		in, _ := model.NewPaymentIntent(7, spec)
		if err := repo.Save(ctx, nil, in); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		got, err := repo.FindByPayload(ctx, nil, in.Payload)
		if err != nil {
			t.Fatalf("FindByPayload failed: %v", err)
		}
		if got.Tier != model.Tier5 || got.Status != model.PaymentStatusPending {
			t.Errorf("unexpected intent %+v", got)
		}
	})

	t.Run("complete is a single transition under concurrency", func(t *testing.T) {
		cleanup(t)
		seedUser(t, 7)
		in, _ := model.NewPaymentIntent(7, spec)
		if err := repo.Save(ctx, nil, in); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
					p, err := repo.FindByPayload(ctx, tx, in.Payload)
					if err != nil || p.Status != model.PaymentStatusPending {
						return err
					}
					s := &model.Subscription{ID: uuid.NewString(), UserID: 7, Tier: p.Tier, StarsPaid: 100, PurchasedAt: time.Now(), Active: true, PaymentID: p.ID}
					if err := subs.Save(ctx, tx, s); err != nil {
						return err
					}
					ok, err := repo.CompleteIfPending(ctx, tx, p.ID, 100, nil, s.ID, time.Now())
					if err != nil {
						return err
					}
					if ok {
						mu.Lock()
						wins++
						mu.Unlock()
					}
					return nil
				})
			}()
		}
		wg.Wait()

		if wins != 1 {
			t.Fatalf("expected exactly one completion, got %d", wins)
		}
		active, err := subs.ListEffective(ctx, nil, 7, time.Now())
		if err != nil || len(active) != 1 {
			t.Errorf("expected exactly one subscription, got %d (%v)", len(active), err)
		}
	})

	t.Run("terminal intents do not move", func(t *testing.T) {
		cleanup(t)
		seedUser(t, 7)
		in, _ := model.NewPaymentIntent(7, spec)
		_ = repo.Save(ctx, nil, in)
		ok, err := repo.FailIfPending(ctx, nil, in.ID, "amount_mismatch", nil, time.Now())
		if err != nil || !ok {
			t.Fatalf("expected fail to apply, got %v %v", ok, err)
		}
		ok, err = repo.CompleteIfPending(ctx, nil, in.ID, 100, nil, uuid.NewString(), time.Now())
		if err != nil || ok {
			t.Errorf("expected completed-after-failed to be rejected, got %v %v", ok, err)
		}
	})

	t.Run("a noted payment is never expired", func(t *testing.T) {
		cleanup(t)
		seedUser(t, 7)
		in, _ := model.NewPaymentIntent(7, spec)
		in.CreatedAt = time.Now().Add(-48 * time.Hour)
		_ = repo.Save(ctx, nil, in)
		charge := "ch_1"
		if ok, err := repo.NotePaid(ctx, nil, in.Payload, 100, &charge); err != nil || !ok {
			t.Fatalf("expected note to apply, got %v %v", ok, err)
		}

		ok, err := repo.ExpireIfUnpaid(ctx, nil, in.ID, "expired", time.Now())
		if err != nil || ok {
			t.Errorf("expected paid intent to survive expiry, got %v %v", ok, err)
		}
		stale, err := repo.ListUnpaidOlderThan(ctx, nil, time.Now(), 10)
		if err != nil || len(stale) != 0 {
			t.Errorf("expected no unpaid intents, got %d (%v)", len(stale), err)
		}
		paid, err := repo.ListPaidPending(ctx, nil, 10)
		if err != nil || len(paid) != 1 || *paid[0].AmountPaid != 100 || *paid[0].ChargeID != charge {
			t.Errorf("unexpected paid pending list %+v (%v)", paid, err)
		}
	})

	t.Run("a second subscription for one payment is rejected", func(t *testing.T) {
		cleanup(t)
		seedUser(t, 7)
		in, _ := model.NewPaymentIntent(7, spec)
		_ = repo.Save(ctx, nil, in)
		s1 := &model.Subscription{ID: uuid.NewString(), UserID: 7, Tier: model.Tier5, PurchasedAt: time.Now(), Active: true, PaymentID: in.ID}
		s2 := &model.Subscription{ID: uuid.NewString(), UserID: 7, Tier: model.Tier5, PurchasedAt: time.Now(), Active: true, PaymentID: in.ID}
		if err := subs.Save(ctx, nil, s1); err != nil {
			t.Fatalf("first save failed: %v", err)
		}
		if err := subs.Save(ctx, nil, s2); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("expired subscriptions are deactivated", func(t *testing.T) {
		cleanup(t)
		seedUser(t, 7)
		in, _ := model.NewPaymentIntent(7, spec)
		_ = repo.Save(ctx, nil, in)
		past := time.Now().Add(-time.Hour)
		s := &model.Subscription{ID: uuid.NewString(), UserID: 7, Tier: model.Tier5, PurchasedAt: past.Add(-time.Hour), ExpiresAt: &past, Active: true, PaymentID: in.ID}
		_ = subs.Save(ctx, nil, s)

		n, err := subs.DeactivateExpired(ctx, nil, time.Now())
		if err != nil || n != 1 {
			t.Errorf("expected 1 deactivation, got %d (%v)", n, err)
		}
	})
}
