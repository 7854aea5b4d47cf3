//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-playlist-bot/internal/domain"
	"telegram-playlist-bot/internal/domain/model"
	"telegram-playlist-bot/internal/domain/ports/adapter"
	"telegram-playlist-bot/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// Repositories
// =============================

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu   sync.Mutex
	data map[int64]*model.User

	SaveFunc     func(ctx context.Context, tx repository.Tx, u *model.User) error
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id int64) (*model.User, error)
	LockedIDs    []int64
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{data: map[int64]*model.User{}}
}

func (r *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, u)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.data[u.ID] = &cp
	return nil
}

func (r *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.User, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MockUserRepo) LockByID(ctx context.Context, tx repository.Tx, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return domain.ErrNotFound
	}
	r.LockedIDs = append(r.LockedIDs, id)
	return nil
}

func (r *MockUserRepo) SetMusicCredential(ctx context.Context, tx repository.Tx, id int64, sealed *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.MusicCredential = sealed
	return nil
}

// ---- Mock PlaylistRepository ----

type MockPlaylistRepo struct {
	mu   sync.Mutex
	data map[string]*model.Playlist

	// shared is consulted by ListShared; tests wire it to the access mock.
	shared *MockAccessRepo

	SaveFunc         func(ctx context.Context, tx repository.Tx, p *model.Playlist) error
	CountByOwnerFunc func(ctx context.Context, tx repository.Tx, ownerID int64) (int, error)
}

var _ repository.PlaylistRepository = (*MockPlaylistRepo)(nil)

func NewMockPlaylistRepo() *MockPlaylistRepo {
	return &MockPlaylistRepo{data: map[string]*model.Playlist{}}
}

func (r *MockPlaylistRepo) Save(ctx context.Context, tx repository.Tx, p *model.Playlist) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.data[p.ID] = &cp
	return nil
}

func (r *MockPlaylistRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Playlist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MockPlaylistRepo) FindByInviteToken(ctx context.Context, tx repository.Tx, token string) (*model.Playlist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.data {
		if p.InviteToken == token {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPlaylistRepo) CountByOwner(ctx context.Context, tx repository.Tx, ownerID int64) (int, error) {
	if r.CountByOwnerFunc != nil {
		return r.CountByOwnerFunc(ctx, tx, ownerID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.data {
		if p.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (r *MockPlaylistRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID int64) ([]*model.Playlist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Playlist
	for _, p := range r.data {
		if p.OwnerID == ownerID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MockPlaylistRepo) ListShared(ctx context.Context, tx repository.Tx, userID int64) ([]*model.Playlist, error) {
	if r.shared == nil {
		return nil, nil
	}
	var out []*model.Playlist
	for _, id := range r.shared.playlistsOf(userID) {
		if p, err := r.FindByID(ctx, tx, id); err == nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *MockPlaylistRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.data, id)
	return nil
}

// ---- Mock AccessRepository ----

type MockAccessRepo struct {
	mu     sync.Mutex
	grants map[string]map[int64]bool
}

var _ repository.AccessRepository = (*MockAccessRepo)(nil)

func NewMockAccessRepo() *MockAccessRepo {
	return &MockAccessRepo{grants: map[string]map[int64]bool{}}
}

func (r *MockAccessRepo) Grant(ctx context.Context, tx repository.Tx, playlistID string, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.grants[playlistID] == nil {
		r.grants[playlistID] = map[int64]bool{}
	}
	if r.grants[playlistID][userID] {
		return false, nil
	}
	r.grants[playlistID][userID] = true
	return true, nil
}

func (r *MockAccessRepo) HasGrant(ctx context.Context, tx repository.Tx, playlistID string, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.grants[playlistID][userID], nil
}

func (r *MockAccessRepo) CountByUser(ctx context.Context, tx repository.Tx, userID int64) (int, error) {
	return len(r.playlistsOf(userID)), nil
}

func (r *MockAccessRepo) playlistsOf(userID int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for pid, users := range r.grants {
		if users[userID] {
			out = append(out, pid)
		}
	}
	sort.Strings(out)
	return out
}

// ---- Mock SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu   sync.Mutex
	data map[string]*model.Subscription

	ListEffectiveFunc func(ctx context.Context, tx repository.Tx, userID int64, now time.Time) ([]*model.Subscription, error)
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{data: map[string]*model.Subscription{}}
}

func (r *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.data {
		if o.PaymentID == s.PaymentID && o.ID != s.ID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *s
	r.data[s.ID] = &cp
	return nil
}

func (r *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *MockSubscriptionRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.data {
		if s.PaymentID == paymentID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockSubscriptionRepo) ListEffective(ctx context.Context, tx repository.Tx, userID int64, now time.Time) ([]*model.Subscription, error) {
	if r.ListEffectiveFunc != nil {
		return r.ListEffectiveFunc(ctx, tx, userID, now)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Subscription
	for _, s := range r.data {
		if s.UserID == userID && s.Effective(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockSubscriptionRepo) DeactivateExpired(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.data {
		if s.Active && s.ExpiresAt != nil && !now.Before(*s.ExpiresAt) {
			s.Active = false
			n++
		}
	}
	return n, nil
}

func (r *MockSubscriptionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

// ---- Mock PaymentRepository ----

type MockPaymentRepo struct {
	mu   sync.Mutex
	data map[string]*model.PaymentIntent

	CompleteIfPendingFunc func(ctx context.Context, tx repository.Tx, id string, amountPaid int64, chargeID *string, subscriptionID string, at time.Time) (bool, error)
	NotePaidErr           error
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{data: map[string]*model.PaymentIntent{}}
}

func (r *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.data[p.ID] = &cp
	return nil
}

func (r *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MockPaymentRepo) FindByPayload(ctx context.Context, tx repository.Tx, payload string) (*model.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.data {
		if p.Payload == payload {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) CompleteIfPending(ctx context.Context, tx repository.Tx, id string, amountPaid int64, chargeID *string, subscriptionID string, at time.Time) (bool, error) {
	if r.CompleteIfPendingFunc != nil {
		return r.CompleteIfPendingFunc(ctx, tx, id, amountPaid, chargeID, subscriptionID, at)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = model.PaymentStatusCompleted
	p.AmountPaid = &amountPaid
	p.ChargeID = chargeID
	p.SubscriptionID = &subscriptionID
	p.CompletedAt = &at
	return true, nil
}

func (r *MockPaymentRepo) FailIfPending(ctx context.Context, tx repository.Tx, id string, reason string, amountPaid *int64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = model.PaymentStatusFailed
	p.FailureReason = &reason
	if amountPaid != nil {
		p.AmountPaid = amountPaid
	}
	p.CompletedAt = &at
	return true, nil
}

func (r *MockPaymentRepo) NotePaid(ctx context.Context, tx repository.Tx, payload string, amountPaid int64, chargeID *string) (bool, error) {
	if r.NotePaidErr != nil {
		return false, r.NotePaidErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.data {
		if p.Payload != payload || p.Status != model.PaymentStatusPending {
			continue
		}
		if p.AmountPaid == nil {
			p.AmountPaid = &amountPaid
		}
		if p.ChargeID == nil {
			p.ChargeID = chargeID
		}
		return true, nil
	}
	return false, nil
}

func (r *MockPaymentRepo) ExpireIfUnpaid(ctx context.Context, tx repository.Tx, id string, reason string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok || p.Status != model.PaymentStatusPending || p.AmountPaid != nil {
		return false, nil
	}
	p.Status = model.PaymentStatusFailed
	p.FailureReason = &reason
	p.CompletedAt = &at
	return true, nil
}

func (r *MockPaymentRepo) ListUnpaidOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentIntent, error) {
	return r.list(limit, func(p *model.PaymentIntent) bool {
		return p.Status == model.PaymentStatusPending && p.AmountPaid == nil && p.CreatedAt.Before(olderThan)
	}), nil
}

func (r *MockPaymentRepo) ListPaidPending(ctx context.Context, tx repository.Tx, limit int) ([]*model.PaymentIntent, error) {
	return r.list(limit, func(p *model.PaymentIntent) bool {
		return p.Status == model.PaymentStatusPending && p.AmountPaid != nil
	}), nil
}

func (r *MockPaymentRepo) list(limit int, keep func(p *model.PaymentIntent) bool) []*model.PaymentIntent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PaymentIntent
	for _, p := range r.data {
		if keep(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ---- Mock AuditRepository ----

type MockAuditRepo struct {
	mu      sync.Mutex
	Entries []*model.AuditEntry

	AppendFunc func(ctx context.Context, tx repository.Tx, e *model.AuditEntry) error
}

var _ repository.AuditRepository = (*MockAuditRepo)(nil)

func NewMockAuditRepo() *MockAuditRepo { return &MockAuditRepo{} }

func (r *MockAuditRepo) Append(ctx context.Context, tx repository.Tx, e *model.AuditEntry) error {
	if r.AppendFunc != nil {
		return r.AppendFunc(ctx, tx, e)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.Entries = append(r.Entries, &cp)
	return nil
}

func (r *MockAuditRepo) LastAdder(ctx context.Context, tx repository.Tx, playlistID string, trackID int64) (*model.Attribution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.Entries) - 1; i >= 0; i-- {
		e := r.Entries[i]
		if e.PlaylistID == playlistID && e.Operation == model.AuditAppend && e.Outcome == model.OutcomeOK && e.Track != nil && e.Track.ID == trackID {
			return &model.Attribution{Track: *e.Track, UserID: e.UserID, AddedAt: e.CreatedAt}, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockAuditRepo) LastAdders(ctx context.Context, tx repository.Tx, playlistID string) (map[int64]*model.Attribution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[int64]*model.Attribution{}
	for _, e := range r.Entries {
		if e.PlaylistID == playlistID && e.Operation == model.AuditAppend && e.Outcome == model.OutcomeOK && e.Track != nil {
			out[e.Track.ID] = &model.Attribution{Track: *e.Track, UserID: e.UserID, AddedAt: e.CreatedAt}
		}
	}
	return out, nil
}

func (r *MockAuditRepo) UserCounts(ctx context.Context, tx repository.Tx, userID int64) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	added, removed := 0, 0
	for _, e := range r.Entries {
		if e.UserID != userID || e.Outcome != model.OutcomeOK {
			continue
		}
		switch e.Operation {
		case model.AuditAppend:
			added++
		case model.AuditRemove:
			removed++
		}
	}
	return added, removed, nil
}

func (r *MockAuditRepo) PlaylistCounts(ctx context.Context, tx repository.Tx, playlistID string) ([]model.ContributorStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	by := map[int64]*model.ContributorStats{}
	for _, e := range r.Entries {
		if e.PlaylistID != playlistID || e.Outcome != model.OutcomeOK {
			continue
		}
		cs, ok := by[e.UserID]
		if !ok {
			cs = &model.ContributorStats{UserID: e.UserID}
			by[e.UserID] = cs
		}
		switch e.Operation {
		case model.AuditAppend:
			cs.Added++
		case model.AuditRemove:
			cs.Removed++
		}
	}
	var out []model.ContributorStats
	for _, cs := range by {
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r *MockAuditRepo) ListByPlaylist(ctx context.Context, tx repository.Tx, playlistID string, limit int) ([]*model.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.AuditEntry
	for i := len(r.Entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.Entries[i].PlaylistID == playlistID {
			out = append(out, r.Entries[i])
		}
	}
	return out, nil
}

func (r *MockAuditRepo) byOp(op string) []*model.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.AuditEntry
	for _, e := range r.Entries {
		if e.Operation == op {
			out = append(out, e)
		}
	}
	return out
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	mu sync.Mutex
	// Serial runs transactions one at a time, standing in for row locks.
	Serial bool

	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	if m.Serial {
		m.mu.Lock()
		defer m.mu.Unlock()
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Adapters
// =============================

// ---- Fake remote playlist service ----

// FakeRemote is an in-memory music service holding revisioned playlists.
// Writes with a stale revision fail with domain.ErrRevisionConflict.
type FakeRemote struct {
	mu        sync.Mutex
	playlists map[model.RemoteRef]*fakeRemoteList
	nextKind  int64
	account   string

	Fetches int
	Writes  int

	// BeforeWrite runs before each write is applied, outside the lock.
	BeforeWrite func(call int)
	// NoopWrites accepts writes without changing anything.
	NoopWrites bool
	FetchErr   error
	WriteErr   error
	// FailFetchAfterWrite fails the next fetch following a successful write.
	FailFetchAfterWrite error
	failNextFetch       bool
	CreateErr           error
	AccountErr          error
}

type fakeRemoteList struct {
	revision int
	title    string
	tracks   []model.TrackRef
}

var _ adapter.PlaylistGateway = (*FakeRemote)(nil)

func NewFakeRemote() *FakeRemote {
	return &FakeRemote{playlists: map[model.RemoteRef]*fakeRemoteList{}, nextKind: 1000, account: "500"}
}

func (f *FakeRemote) Seed(ref model.RemoteRef, tracks ...model.TrackRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playlists[ref] = &fakeRemoteList{revision: 1, tracks: append([]model.TrackRef{}, tracks...)}
}

// Inject mutates the remote as another client would.
func (f *FakeRemote) Inject(ref model.RemoteRef, t model.TrackRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.playlists[ref]
	l.tracks = append(l.tracks, t)
	l.revision++
}

func (f *FakeRemote) Tracks(ref model.RemoteRef) []model.TrackRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.TrackRef{}, f.playlists[ref].tracks...)
}

func (f *FakeRemote) FetchState(ctx context.Context, ref model.RemoteRef) (*model.RemoteState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Fetches++
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	if f.failNextFetch {
		f.failNextFetch = false
		return nil, f.FailFetchAfterWrite
	}
	l, ok := f.playlists[ref]
	if !ok {
		return nil, domain.ErrRemoteNotFound
	}
	return &model.RemoteState{
		Revision: model.Revision(strconv.Itoa(l.revision)),
		Tracks:   append([]model.TrackRef{}, l.tracks...),
		Title:    l.title,
	}, nil
}

func (f *FakeRemote) write(ref model.RemoteRef, rev model.Revision, apply func(l *fakeRemoteList) error) (model.Revision, error) {
	f.mu.Lock()
	f.Writes++
	call := f.Writes
	hook := f.BeforeWrite
	f.mu.Unlock()
	if hook != nil {
		hook(call)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteErr != nil {
		return "", f.WriteErr
	}
	l, ok := f.playlists[ref]
	if !ok {
		return "", domain.ErrRemoteNotFound
	}
	if string(rev) != strconv.Itoa(l.revision) {
		return "", domain.ErrRevisionConflict
	}
	if f.NoopWrites {
		return rev, nil
	}
	if err := apply(l); err != nil {
		return "", err
	}
	l.revision++
	if f.FailFetchAfterWrite != nil {
		f.failNextFetch = true
	}
	return model.Revision(strconv.Itoa(l.revision)), nil
}

func (f *FakeRemote) AppendItems(ctx context.Context, ref model.RemoteRef, items []model.TrackRef, rev model.Revision, at int) (model.Revision, error) {
	return f.write(ref, rev, func(l *fakeRemoteList) error {
		if at < 0 || at > len(l.tracks) {
			return domain.ErrInvalidArgument
		}
		next := append([]model.TrackRef{}, l.tracks[:at]...)
		next = append(next, items...)
		l.tracks = append(next, l.tracks[at:]...)
		return nil
	})
}

func (f *FakeRemote) RemoveItem(ctx context.Context, ref model.RemoteRef, index int, rev model.Revision) (model.Revision, error) {
	return f.write(ref, rev, func(l *fakeRemoteList) error {
		if index < 0 || index >= len(l.tracks) {
			return domain.ErrRemoteNotFound
		}
		l.tracks = append(l.tracks[:index], l.tracks[index+1:]...)
		return nil
	})
}

func (f *FakeRemote) CreatePlaylist(ctx context.Context, title string) (model.RemoteRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return model.RemoteRef{}, f.CreateErr
	}
	f.nextKind++
	ref := model.RemoteRef{OwnerID: f.account, Kind: f.nextKind}
	f.playlists[ref] = &fakeRemoteList{revision: 1, title: title}
	return ref, nil
}

func (f *FakeRemote) Rename(ctx context.Context, ref model.RemoteRef, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.playlists[ref]
	if !ok {
		return domain.ErrRemoteNotFound
	}
	l.title = title
	return nil
}

func (f *FakeRemote) AccountID(ctx context.Context) (string, error) {
	if f.AccountErr != nil {
		return "", f.AccountErr
	}
	return f.account, nil
}

func (f *FakeRemote) created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int(f.nextKind - 1000)
}

// ---- Fake GatewayProvider ----

type FakeProvider struct {
	mu     sync.Mutex
	Remote *FakeRemote
	Creds  []string
}

var _ adapter.GatewayProvider = (*FakeProvider)(nil)

func (p *FakeProvider) For(credential string) adapter.PlaylistGateway {
	p.mu.Lock()
	p.Creds = append(p.Creds, credential)
	p.mu.Unlock()
	return p.Remote
}

// ---- Fake Cipher ----

// FakeCipher wraps plaintext in a reversible marker.
type FakeCipher struct{}

var _ adapter.Cipher = FakeCipher{}

func (FakeCipher) Encrypt(plaintext string) (string, error) { return "sealed:" + plaintext, nil }

func (FakeCipher) Decrypt(sealed string) (string, error) {
	const prefix = "sealed:"
	if len(sealed) < len(prefix) || sealed[:len(prefix)] != prefix {
		return "", errors.New("bad ciphertext")
	}
	return sealed[len(prefix):], nil
}

// ---- Fake Throttle ----

type FakeThrottle struct {
	mu     sync.Mutex
	counts map[string]int
	Err    error
}

var _ adapter.Throttle = (*FakeThrottle)(nil)

func (t *FakeThrottle) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if t.Err != nil {
		return false, t.Err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.counts == nil {
		t.counts = map[string]int{}
	}
	t.counts[key]++
	return t.counts[key] <= limit, nil
}

// ---- Mock InvoiceSender ----

type MockInvoiceSender struct {
	mu   sync.Mutex
	Sent []model.Invoice

	SendInvoiceFunc func(ctx context.Context, chatID int64, inv model.Invoice) error
}

var _ adapter.InvoiceSender = (*MockInvoiceSender)(nil)

func (m *MockInvoiceSender) SendInvoice(ctx context.Context, chatID int64, inv model.Invoice) error {
	if m.SendInvoiceFunc != nil {
		return m.SendInvoiceFunc(ctx, chatID, inv)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, inv)
	return nil
}
