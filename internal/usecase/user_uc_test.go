//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"telegram-playlist-bot/internal/domain"
	"telegram-playlist-bot/internal/domain/model"
	"telegram-playlist-bot/internal/domain/ports/repository"
)

func TestUserUseCase(t *testing.T) {
	ctx := context.Background()

	t.Run("register then fetch keeps one record and refreshes username", func(t *testing.T) {
		w := newWorld(t, worldOpts{baseLimit: 2})

		first, err := w.userUC.RegisterOrFetch(ctx, owner, "old")
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		second, err := w.userUC.RegisterOrFetch(ctx, owner, "new")
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if second.Username != "new" || !second.RegisteredAt.Equal(first.RegisteredAt) {
			t.Errorf("unexpected user %+v", second)
		}
	})

	t.Run("credential is validated and stored sealed", func(t *testing.T) {
		w := newWorld(t, worldOpts{baseLimit: 2})

		account, err := w.userUC.SetMusicCredential(ctx, owner, " tok ")

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if account != "500" {
			t.Errorf("expected account 500, got %q", account)
		}
		u, _ := w.users.FindByID(ctx, repository.NoTX, owner)
		if u.MusicCredential == nil || *u.MusicCredential != "sealed:tok" {
			t.Errorf("expected sealed credential, got %v", u.MusicCredential)
		}
	})

	t.Run("rejected credential is not stored", func(t *testing.T) {
		w := newWorld(t, worldOpts{baseLimit: 2})
		w.remote.AccountErr = domain.ErrCredentialRejected

		_, err := w.userUC.SetMusicCredential(ctx, owner, "bad")

		if !errors.Is(err, domain.ErrCredentialRejected) {
			t.Fatalf("expected ErrCredentialRejected, got %v", err)
		}
		if _, err := w.users.FindByID(ctx, repository.NoTX, owner); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected no user record, got %v", err)
		}
	})

	t.Run("clear removes the credential", func(t *testing.T) {
		w := newWorld(t, worldOpts{baseLimit: 2})
		_, _ = w.userUC.SetMusicCredential(ctx, owner, "tok")

		if err := w.userUC.ClearMusicCredential(ctx, owner); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		u, _ := w.users.FindByID(ctx, repository.NoTX, owner)
		if u.HasCredential() {
			t.Error("expected credential cleared")
		}
	})
}

func TestSubscriptionUseCase_FinishExpired(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t, worldOpts{baseLimit: 2})
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	seedSubscription(t, w, owner, model.Tier5, &past)
	seedSubscription(t, w, owner, model.Tier10, &future)

	n, err := w.subUC.FinishExpired(ctx)

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 expired, got %d", n)
	}
	active, _ := w.subUC.ListEffective(ctx, owner)
	if len(active) != 1 || active[0].Tier != model.Tier10 {
		t.Errorf("unexpected effective subscriptions %+v", active)
	}
}

func TestStatsUseCase(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t, worldOpts{baseLimit: 2})
	p := w.createPlaylist(t, owner, "Mix")
	w.join(t, friend, p)
	if _, err := w.mutationUC.Mutate(ctx, appendReq(owner, p, 1, 2)); err != nil {
		t.Fatalf("owner append: %v", err)
	}
	if _, err := w.mutationUC.Mutate(ctx, appendReq(friend, p, 3)); err != nil {
		t.Fatalf("friend append: %v", err)
	}
	if _, err := w.mutationUC.Mutate(ctx, model.MutationRequest{UserID: friend, PlaylistID: p.ID, Op: model.OpRemove, Index: 2}); err != nil {
		t.Fatalf("friend remove: %v", err)
	}

	t.Run("user stats count successful edits", func(t *testing.T) {
		st, err := w.statsUC.UserStats(ctx, friend)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if st.TracksAdded != 1 || st.TracksRemoved != 1 || st.Memberships != 1 || st.PlaylistsOwned != 0 {
			t.Errorf("unexpected stats %+v", st)
		}
	})

	t.Run("playlist stats list contributors", func(t *testing.T) {
		st, err := w.statsUC.PlaylistStats(ctx, owner, p.ID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(st.Contributors) != 2 || st.Contributors[0].Added != 2 {
			t.Errorf("unexpected stats %+v", st)
		}
	})

	t.Run("attribution names the adder", func(t *testing.T) {
		a, err := w.statsUC.Attribution(ctx, friend, p.ID, 2)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if a.UserID != owner {
			t.Errorf("expected owner as adder, got %d", a.UserID)
		}
	})

	t.Run("stranger cannot read history", func(t *testing.T) {
		_, err := w.statsUC.History(ctx, visitor, p.ID, 10)
		if !errors.Is(err, domain.ErrAuthorizationDenied) {
			t.Errorf("expected denial, got %v", err)
		}
	})

	t.Run("history is newest first", func(t *testing.T) {
		h, err := w.statsUC.History(ctx, owner, p.ID, 1)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(h) != 1 || h[0].Operation != model.AuditRemove {
			t.Errorf("unexpected history %+v", h)
		}
	})
}
