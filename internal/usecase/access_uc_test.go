//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"telegram-playlist-bot/internal/domain"
	"telegram-playlist-bot/internal/domain/model"
)

func TestAccessUseCase_Authorize(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t, worldOpts{baseLimit: 2})
	p := w.createPlaylist(t, owner, "Mix")
	w.join(t, friend, p)

	testCases := []struct {
		name   string
		userID int64
		action model.Action
		reason string
		role   model.Role
	}{
		{"owner may delete", owner, model.ActionDelete, "", model.RoleOwner},
		{"owner may grant", owner, model.ActionGrantAccess, "", model.RoleOwner},
		{"contributor may append", friend, model.ActionAppend, "", model.RoleContributor},
		{"contributor may view", friend, model.ActionView, "", model.RoleContributor},
		{"contributor may not rename", friend, model.ActionRename, domain.ReasonInsufficientRole, model.RoleContributor},
		{"contributor may not remove any", friend, model.ActionRemoveAny, domain.ReasonInsufficientRole, model.RoleContributor},
		{"stranger may not view", visitor, model.ActionView, domain.ReasonNotAMember, model.RoleNone},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, role, err := w.accessUC.Authorize(ctx, tc.userID, p.ID, tc.action, "")
			if role != tc.role {
				t.Errorf("expected role %q, got %q", tc.role, role)
			}
			if tc.reason == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			var denied *domain.AuthorizationDeniedError
			if !errors.As(err, &denied) || denied.Reason != tc.reason {
				t.Errorf("expected %s denial, got %v", tc.reason, err)
			}
		})
	}

	t.Run("unknown playlist is not found", func(t *testing.T) {
		_, _, err := w.accessUC.Authorize(ctx, owner, "missing", model.ActionView, "")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestAccessUseCase_Invites(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token on append joins the caller", func(t *testing.T) {
		w := newWorld(t, worldOpts{baseLimit: 2})
		p := w.createPlaylist(t, owner, "Mix")

		_, role, err := w.accessUC.Authorize(ctx, visitor, p.ID, model.ActionAppend, p.InviteToken)

		if err != nil || role != model.RoleContributor {
			t.Fatalf("expected contributor access, got role=%q err=%v", role, err)
		}
		if e := w.audit.byOp(model.AuditJoin); len(e) != 1 || e[0].UserID != visitor {
			t.Errorf("expected one join entry, got %+v", e)
		}
	})

	t.Run("redeeming twice grants once", func(t *testing.T) {
		w := newWorld(t, worldOpts{baseLimit: 2})
		p := w.createPlaylist(t, owner, "Mix")

		_, first, err1 := w.accessUC.RedeemInvite(ctx, visitor, p.InviteToken)
		_, second, err2 := w.accessUC.RedeemInvite(ctx, visitor, p.InviteToken)

		if err1 != nil || err2 != nil {
			t.Fatalf("unexpected errors %v %v", err1, err2)
		}
		if !first || second {
			t.Errorf("expected joined=true then false, got %v %v", first, second)
		}
	})

	t.Run("wrong token is not a member", func(t *testing.T) {
		w := newWorld(t, worldOpts{baseLimit: 2})
		p := w.createPlaylist(t, owner, "Mix")

		_, _, err := w.accessUC.Authorize(ctx, visitor, p.ID, model.ActionAppend, "forged")

		var denied *domain.AuthorizationDeniedError
		if !errors.As(err, &denied) || denied.Reason != domain.ReasonNotAMember {
			t.Errorf("expected not_a_member, got %v", err)
		}
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		w := newWorld(t, worldOpts{baseLimit: 2, inviteTTL: time.Nanosecond})
		p := w.createPlaylist(t, owner, "Mix")
		time.Sleep(time.Millisecond)

		_, _, err := w.accessUC.RedeemInvite(ctx, visitor, p.InviteToken)

		var denied *domain.AuthorizationDeniedError
		if !errors.As(err, &denied) || denied.Reason != domain.ReasonInvitationExpired {
			t.Errorf("expected invitation_expired, got %v", err)
		}
	})

	t.Run("rotation invalidates the previous token", func(t *testing.T) {
		w := newWorld(t, worldOpts{baseLimit: 2})
		p := w.createPlaylist(t, owner, "Mix")
		old := p.InviteToken

		rotated, err := w.accessUC.RotateInvite(ctx, owner, p.ID)
		if err != nil {
			t.Fatalf("rotate: %v", err)
		}
		if rotated.InviteToken == old {
			t.Fatal("expected a new token")
		}
		if _, _, err := w.accessUC.RedeemInvite(ctx, visitor, old); !errors.Is(err, domain.ErrAuthorizationDenied) {
			t.Errorf("expected old token denied, got %v", err)
		}
		if _, _, err := w.accessUC.RedeemInvite(ctx, visitor, rotated.InviteToken); err != nil {
			t.Errorf("expected new token accepted, got %v", err)
		}
	})

	t.Run("contributor cannot rotate", func(t *testing.T) {
		w := newWorld(t, worldOpts{baseLimit: 2})
		p := w.createPlaylist(t, owner, "Mix")
		w.join(t, friend, p)

		_, err := w.accessUC.RotateInvite(ctx, friend, p.ID)
		if !errors.Is(err, domain.ErrAuthorizationDenied) {
			t.Errorf("expected denial, got %v", err)
		}
	})
}
