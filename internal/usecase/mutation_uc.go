package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"telegram-playlist-bot/internal/domain"
	"telegram-playlist-bot/internal/domain/model"
	"telegram-playlist-bot/internal/domain/ports/adapter"
	"telegram-playlist-bot/internal/domain/ports/repository"
	"telegram-playlist-bot/internal/infra/logging"
	"telegram-playlist-bot/internal/infra/metrics"
)

// Compile-time check
var _ MutationUseCase = (*mutationUC)(nil)

// MutationUseCase applies track edits to remote playlists with optimistic
// concurrency: every attempt fetches a fresh revision, computes its target
// position against the fresh list, writes with that revision and verifies
// the result with another fetch. No revision outlives one attempt.
type MutationUseCase interface {
	Mutate(ctx context.Context, req model.MutationRequest) (*model.MutationResult, error)
}

type MutationPolicy struct {
	MaxAttempts   int
	BaseBackoff   time.Duration
	JitterPercent uint64

	// Optional per-user throttle.
	Throttle       adapter.Throttle
	ThrottleLimit  int
	ThrottleWindow time.Duration
}

func (p MutationPolicy) withDefaults() MutationPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = 100 * time.Millisecond
	}
	if p.JitterPercent == 0 {
		p.JitterPercent = 50
	}
	return p
}

type mutationUC struct {
	access   AccessUseCase
	audit    repository.AuditRepository
	gateways *GatewayResolver
	policy   MutationPolicy
	log      *zerolog.Logger
}

func NewMutationUseCase(access AccessUseCase, audit repository.AuditRepository, gateways *GatewayResolver, policy MutationPolicy, logger *zerolog.Logger) *mutationUC {
	return &mutationUC{
		access:   access,
		audit:    audit,
		gateways: gateways,
		policy:   policy.withDefaults(),
		log:      logger,
	}
}

// attemptResult describes the write that an attempt actually made.
type attemptResult struct {
	count    int
	position int
	removed  *model.TrackRef
}

func (u *mutationUC) Mutate(ctx context.Context, req model.MutationRequest) (*model.MutationResult, error) {
	defer logging.TraceDuration(u.log, "MutationUC.Mutate")()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	log := logging.With(logging.WithPlaylistID(logging.WithUserID(ctx, strconv.FormatInt(req.UserID, 10)), req.PlaylistID), u.log)

	if err := u.throttle(ctx, req.UserID, log); err != nil {
		return nil, err
	}

	action := model.ActionAppend
	if req.Op == model.OpRemove {
		// owners pass as removeAny; contributors are narrowed per attempt
		action = model.ActionRemoveOwn
	}
	p, role, err := u.access.Authorize(ctx, req.UserID, req.PlaylistID, action, req.InviteToken)
	if err != nil {
		if p != nil {
			u.record(ctx, log, &req, nil, 0, err)
		}
		return nil, err
	}

	gw, err := u.gateways.ForPlaylist(ctx, repository.NoTX, p)
	if err != nil {
		return nil, err
	}

	attempts := 0
	var res *attemptResult
	b := retry.NewExponential(u.policy.BaseBackoff)
	b = retry.WithJitterPercent(u.policy.JitterPercent, b)
	b = retry.WithMaxRetries(uint64(u.policy.MaxAttempts-1), b)
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempts++
		r, err := u.attempt(ctx, gw, p, role, &req)
		if errors.Is(err, domain.ErrRevisionConflict) {
			metrics.IncRevisionConflict()
			log.Debug().Int("attempt", attempts).Msg("revision conflict, refetching")
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if errors.Is(err, domain.ErrRevisionConflict) {
		err = fmt.Errorf("%w after %d attempts: %w", domain.ErrConflictExhausted, attempts, err)
	}

	u.record(ctx, log, &req, res, attempts, err)
	if err != nil {
		log.Warn().Err(err).Str("op", string(req.Op)).Int("attempts", attempts).Msg("mutation failed")
		return nil, err
	}
	return &model.MutationResult{OK: true, NewTrackCount: res.count, Attempts: attempts}, nil
}

func (u *mutationUC) throttle(ctx context.Context, userID int64, log *zerolog.Logger) error {
	if u.policy.Throttle == nil || u.policy.ThrottleLimit <= 0 {
		return nil
	}
	ok, err := u.policy.Throttle.Allow(ctx, "mutate:"+strconv.FormatInt(userID, 10), u.policy.ThrottleLimit, u.policy.ThrottleWindow)
	if err != nil {
		// the throttle protects the remote service, not correctness
		log.Warn().Err(err).Msg("mutation throttle unavailable")
		return nil
	}
	if !ok {
		return domain.ErrRateLimited
	}
	return nil
}

// attempt is one fetch-modify-write-verify cycle.
func (u *mutationUC) attempt(ctx context.Context, gw adapter.PlaylistGateway, p *model.Playlist, role model.Role, req *model.MutationRequest) (*attemptResult, error) {
	before, err := gw.FetchState(ctx, p.Remote)
	if err != nil {
		return nil, err
	}

	switch req.Op {
	case model.OpAppend:
		at := insertIndex(p.InsertPosition, before.Count())
		rev, err := gw.AppendItems(ctx, p.Remote, req.Tracks, before.Revision, at)
		if err != nil {
			return nil, err
		}
		n, err := u.verify(ctx, gw, p, before, rev, req, nil)
		if err != nil {
			return nil, err
		}
		return &attemptResult{count: n, position: at}, nil

	case model.OpRemove:
		if req.Index >= before.Count() {
			return nil, fmt.Errorf("%w: ordinal %d out of range (%d tracks)", domain.ErrRemoteNotFound, req.Index, before.Count())
		}
		target := before.Tracks[req.Index]
		if req.Expect != nil && req.Expect.ID != target.ID {
			return nil, fmt.Errorf("%w: track at ordinal %d is now %d", domain.ErrRemoteNotFound, req.Index, target.ID)
		}
		if role != model.RoleOwner {
			if err := u.checkOwnAddition(ctx, p, req.UserID, target); err != nil {
				return nil, err
			}
		}
		rev, err := gw.RemoveItem(ctx, p.Remote, req.Index, before.Revision)
		if err != nil {
			return nil, err
		}
		n, err := u.verify(ctx, gw, p, before, rev, req, &target)
		if err != nil {
			return nil, err
		}
		return &attemptResult{count: n, position: req.Index, removed: &target}, nil
	}
	return nil, domain.ErrInvalidArgument
}

func (u *mutationUC) checkOwnAddition(ctx context.Context, p *model.Playlist, userID int64, t model.TrackRef) error {
	a, err := u.audit.LastAdder(ctx, repository.NoTX, p.ID, t.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Denied(domain.ReasonInsufficientRole)
	}
	if err != nil {
		return err
	}
	if a.UserID != userID {
		return domain.Denied(domain.ReasonInsufficientRole)
	}
	return nil
}

// verify re-reads the playlist after a write the remote accepted. When
// nothing else wrote in between, the count must move by exactly the expected
// delta. Otherwise the written tracks must be visible by identity.
func (u *mutationUC) verify(ctx context.Context, gw adapter.PlaylistGateway, p *model.Playlist, before *model.RemoteState, rev model.Revision, req *model.MutationRequest, removed *model.TrackRef) (int, error) {
	after, err := gw.FetchState(ctx, p.Remote)
	if err != nil {
		// the write may have landed; a retry could apply it twice
		return 0, fmt.Errorf("%w: write accepted but not verified: %w", domain.ErrUnavailable, stripConflict(err))
	}

	delta := req.ExpectedDelta()
	var added []model.TrackRef
	if req.Op == model.OpAppend {
		added = req.Tracks
	}
	if rev != "" && after.Revision == rev {
		if after.Count() != before.Count()+delta {
			return 0, fmt.Errorf("%w: expected %d tracks, found %d", domain.ErrNoEffect, before.Count()+delta, after.Count())
		}
		return after.Count(), nil
	}

	b, a := before.Multiset(), after.Multiset()
	want := make(map[int64]int, len(added))
	for _, t := range added {
		want[t.ID]++
	}
	for id, n := range want {
		if a[id] < b[id]+n {
			return 0, fmt.Errorf("%w: track %d not present after append", domain.ErrNoEffect, id)
		}
	}
	if removed != nil && a[removed.ID] > b[removed.ID]-1 {
		return 0, fmt.Errorf("%w: track %d still present after remove", domain.ErrNoEffect, removed.ID)
	}
	return after.Count(), nil
}

// stripConflict keeps a verification read from ever looking like a conflict.
func stripConflict(err error) error {
	if errors.Is(err, domain.ErrRevisionConflict) {
		return errors.New(err.Error())
	}
	return err
}

func insertIndex(pos model.InsertPosition, count int) int {
	if pos == model.InsertPrepend {
		return 0
	}
	return count
}

// record writes one audit entry per track for the final outcome.
func (u *mutationUC) record(ctx context.Context, log *zerolog.Logger, req *model.MutationRequest, res *attemptResult, attempts int, cause error) {
	outcome := outcomeOf(cause)
	metrics.ObserveMutation(string(req.Op), string(outcome), attempts)

	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	actx := context.WithoutCancel(ctx)

	var entries []*model.AuditEntry
	switch req.Op {
	case model.OpAppend:
		for i := range req.Tracks {
			e := model.NewAuditEntry(req.PlaylistID, req.UserID, model.AuditAppend, outcome)
			t := req.Tracks[i]
			e.Track = &t
			if res != nil {
				pos := res.position + i
				e.Position = &pos
			}
			entries = append(entries, e)
		}
	case model.OpRemove:
		e := model.NewAuditEntry(req.PlaylistID, req.UserID, model.AuditRemove, outcome)
		pos := req.Index
		e.Position = &pos
		switch {
		case res != nil && res.removed != nil:
			e.Track = res.removed
		case req.Expect != nil:
			t := *req.Expect
			e.Track = &t
		}
		entries = append(entries, e)
	}
	for _, e := range entries {
		e.Attempts = attempts
		e.Detail = detail
		if err := u.audit.Append(actx, repository.NoTX, e); err != nil {
			log.Error().Err(err).Str("outcome", string(outcome)).Msg("failed to append audit entry")
		}
	}
}

func outcomeOf(err error) model.AuditOutcome {
	switch {
	case err == nil:
		return model.OutcomeOK
	case errors.Is(err, domain.ErrConflictExhausted):
		return model.OutcomeConflictExhausted
	case errors.Is(err, domain.ErrNoEffect):
		return model.OutcomeNoEffect
	case errors.Is(err, domain.ErrRemoteNotFound):
		return model.OutcomeNotFound
	case errors.Is(err, domain.ErrUnavailable):
		return model.OutcomeUnavailable
	case errors.Is(err, domain.ErrAuthorizationDenied):
		return model.OutcomeDenied
	default:
		return model.OutcomeFailed
	}
}
