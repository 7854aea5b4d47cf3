//go:build !integration

package usecase_test

import (
	"context"
	"testing"
	"time"

	"telegram-playlist-bot/internal/domain/model"
	"telegram-playlist-bot/internal/usecase"
)

// world wires every use case over the in-memory mocks.
type world struct {
	users     *MockUserRepo
	playlists *MockPlaylistRepo
	access    *MockAccessRepo
	subs      *MockSubscriptionRepo
	payments  *MockPaymentRepo
	audit     *MockAuditRepo
	tm        *MockTxManager
	remote    *FakeRemote
	provider  *FakeProvider
	invoices  *MockInvoiceSender
	catalog   *model.TierCatalog

	accessUC   usecase.AccessUseCase
	quotaUC    usecase.QuotaUseCase
	playlistUC usecase.PlaylistUseCase
	mutationUC usecase.MutationUseCase
	paymentUC  usecase.PaymentUseCase
	subUC      usecase.SubscriptionUseCase
	statsUC    usecase.StatsUseCase
	userUC     usecase.UserUseCase
}

type worldOpts struct {
	baseLimit int
	policy    usecase.MutationPolicy
	inviteTTL time.Duration
	catalog   *model.TierCatalog
}

func newWorld(t *testing.T, opts worldOpts) *world {
	t.Helper()
	logger := newTestLogger()

	w := &world{
		users:     NewMockUserRepo(),
		playlists: NewMockPlaylistRepo(),
		access:    NewMockAccessRepo(),
		subs:      NewMockSubscriptionRepo(),
		payments:  NewMockPaymentRepo(),
		audit:     NewMockAuditRepo(),
		tm:        NewMockTxManager(),
		remote:    NewFakeRemote(),
		invoices:  &MockInvoiceSender{},
	}
	w.playlists.shared = w.access
	w.provider = &FakeProvider{Remote: w.remote}

	w.catalog = opts.catalog
	if w.catalog == nil {
		c, err := model.DefaultTierCatalog(opts.baseLimit)
		if err != nil {
			t.Fatalf("catalog: %v", err)
		}
		w.catalog = c
	}
	if opts.policy.BaseBackoff == 0 {
		opts.policy.BaseBackoff = time.Millisecond
	}

	gateways := usecase.NewGatewayResolver(w.provider, FakeCipher{}, w.users)
	w.accessUC = usecase.NewAccessUseCase(w.playlists, w.access, w.users, w.audit, opts.inviteTTL, logger)
	w.quotaUC = usecase.NewQuotaUseCase(w.playlists, w.subs, w.catalog, logger)
	w.playlistUC = usecase.NewPlaylistUseCase(w.playlists, w.users, w.audit, w.accessUC, w.quotaUC, gateways, w.tm, opts.inviteTTL, logger)
	w.mutationUC = usecase.NewMutationUseCase(w.accessUC, w.audit, gateways, opts.policy, logger)
	w.paymentUC = usecase.NewPaymentUseCase(w.payments, w.subs, w.users, w.catalog, w.invoices, w.tm, logger)
	w.subUC = usecase.NewSubscriptionUseCase(w.subs, logger)
	w.statsUC = usecase.NewStatsUseCase(w.audit, w.playlists, w.access, w.accessUC, logger)
	w.userUC = usecase.NewUserUseCase(w.users, w.provider, FakeCipher{}, w.tm, logger)
	return w
}

func (w *world) createPlaylist(t *testing.T, ownerID int64, title string) *model.Playlist {
	t.Helper()
	p, err := w.playlistUC.Create(context.Background(), model.CreatePlaylistRequest{UserID: ownerID, Title: title})
	if err != nil {
		t.Fatalf("create playlist: %v", err)
	}
	return p
}

func (w *world) join(t *testing.T, userID int64, p *model.Playlist) {
	t.Helper()
	if _, _, err := w.accessUC.RedeemInvite(context.Background(), userID, p.InviteToken); err != nil {
		t.Fatalf("join playlist: %v", err)
	}
}

func tracks(ids ...int64) []model.TrackRef {
	out := make([]model.TrackRef, len(ids))
	for i, id := range ids {
		out[i] = model.TrackRef{ID: id, AlbumID: id * 10}
	}
	return out
}
