// File: internal/infra/adapters/music/client.go
package music

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"telegram-playlist-bot/internal/domain"
	"telegram-playlist-bot/internal/domain/model"
	"telegram-playlist-bot/internal/domain/ports/adapter"
	"telegram-playlist-bot/internal/infra/metrics"
)

var (
	_ adapter.PlaylistGateway = (*Client)(nil)
	_ adapter.GatewayProvider = (*Provider)(nil)
)

type Options struct {
	BaseURL          string
	DefaultToken     string
	CallTimeout      time.Duration
	TransportRetries int
	RetryBackoff     time.Duration
	RequestsPerSec   float64
	Burst            int
}

// Provider hands out clients bound to a credential. All clients share one
// HTTP client and one outbound rate limiter.
type Provider struct {
	opts    Options
	http    *http.Client
	limiter *rate.Limiter
	log     *zerolog.Logger
}

func NewProvider(opts Options, logger *zerolog.Logger) *Provider {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	if opts.TransportRetries < 0 {
		opts.TransportRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 200 * time.Millisecond
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	l := logger.With().Str("component", "MusicGateway").Logger()
	return &Provider{
		opts:    opts,
		http:    &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.Burst),
		log:     &l,
	}
}

func (p *Provider) For(credential string) adapter.PlaylistGateway {
	tok := credential
	if tok == "" {
		tok = p.opts.DefaultToken
	}
	return &Client{p: p, token: tok}
}

// Client is a PlaylistGateway speaking the music service's JSON API.
type Client struct {
	p     *Provider
	token string
}

// APIError is the raw error reported by the music service. It unwraps to the
// matching domain sentinel.
type APIError struct {
	Status  int
	Name    string
	Message string
	kind    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("music api %d %s: %s", e.Status, e.Name, e.Message)
}

func (e *APIError) Unwrap() error { return e.kind }

func newAPIError(status int, name, msg string) *APIError {
	e := &APIError{Status: status, Name: name, Message: msg}
	switch {
	case name == "wrong-revision":
		e.kind = domain.ErrRevisionConflict
	case status == http.StatusNotFound || strings.HasSuffix(name, "not-found"):
		e.kind = domain.ErrRemoteNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.kind = domain.ErrCredentialRejected
	case status == http.StatusTooManyRequests || status >= 500:
		e.kind = domain.ErrUnavailable
	default:
		e.kind = domain.ErrOperationFailed
	}
	return e
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}

// flexID accepts ids encoded either as JSON numbers or strings.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	// "123:456" is a track id with its album
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("id %q: %w", s, err)
	}
	*f = flexID(n)
	return nil
}

type wireTrack struct {
	ID      flexID `json:"id"`
	AlbumID flexID `json:"albumId"`
}

type wirePlaylist struct {
	Kind     flexID          `json:"kind"`
	Revision json.RawMessage `json:"revision"`
	Title    string          `json:"title"`
	Owner    struct {
		UID flexID `json:"uid"`
	} `json:"owner"`
	Tracks []wireTrack `json:"tracks"`
}

func (w *wirePlaylist) revision() model.Revision {
	return model.Revision(strings.Trim(string(w.Revision), `"`))
}

type diffOp struct {
	Op     string        `json:"op"`
	At     *int          `json:"at,omitempty"`
	From   *int          `json:"from,omitempty"`
	To     *int          `json:"to,omitempty"`
	Tracks []diffOpTrack `json:"tracks,omitempty"`
}

type diffOpTrack struct {
	ID      string `json:"id"`
	AlbumID string `json:"albumId,omitempty"`
}

func playlistPath(ref model.RemoteRef) string {
	return "/users/" + url.PathEscape(ref.OwnerID) + "/playlists/" + strconv.FormatInt(ref.Kind, 10)
}

func (c *Client) FetchState(ctx context.Context, ref model.RemoteRef) (*model.RemoteState, error) {
	var pl wirePlaylist
	if err := c.call(ctx, "fetch", http.MethodGet, playlistPath(ref), nil, &pl, true); err != nil {
		return nil, err
	}
	st := &model.RemoteState{Revision: pl.revision(), Title: pl.Title, Tracks: make([]model.TrackRef, 0, len(pl.Tracks))}
	for _, t := range pl.Tracks {
		st.Tracks = append(st.Tracks, model.TrackRef{ID: int64(t.ID), AlbumID: int64(t.AlbumID)})
	}
	return st, nil
}

func (c *Client) AppendItems(ctx context.Context, ref model.RemoteRef, items []model.TrackRef, rev model.Revision, at int) (model.Revision, error) {
	if len(items) == 0 {
		return "", domain.ErrInvalidArgument
	}
	tracks := make([]diffOpTrack, 0, len(items))
	for _, it := range items {
		t := diffOpTrack{ID: strconv.FormatInt(it.ID, 10)}
		if it.AlbumID != 0 {
			t.AlbumID = strconv.FormatInt(it.AlbumID, 10)
		}
		tracks = append(tracks, t)
	}
	return c.changeRelative(ctx, "append", ref, diffOp{Op: "insert", At: &at, Tracks: tracks}, rev)
}

func (c *Client) RemoveItem(ctx context.Context, ref model.RemoteRef, index int, rev model.Revision) (model.Revision, error) {
	if index < 0 {
		return "", domain.ErrInvalidArgument
	}
	to := index + 1
	return c.changeRelative(ctx, "remove", ref, diffOp{Op: "delete", From: &index, To: &to}, rev)
}

// changeRelative is never retried at the transport level: a timed-out write
// may have landed, so it surfaces as unavailable.
func (c *Client) changeRelative(ctx context.Context, op string, ref model.RemoteRef, d diffOp, rev model.Revision) (model.Revision, error) {
	diff, err := json.Marshal([]diffOp{d})
	if err != nil {
		return "", err
	}
	form := url.Values{}
	form.Set("diff", string(diff))
	form.Set("revision", string(rev))
	var pl wirePlaylist
	if err := c.call(ctx, op, http.MethodPost, playlistPath(ref)+"/change-relative", form, &pl, false); err != nil {
		return "", err
	}
	return pl.revision(), nil
}

func (c *Client) CreatePlaylist(ctx context.Context, title string) (model.RemoteRef, error) {
	uid, err := c.AccountID(ctx)
	if err != nil {
		return model.RemoteRef{}, err
	}
	form := url.Values{}
	form.Set("title", title)
	form.Set("visibility", "public")
	var pl wirePlaylist
	if err := c.call(ctx, "create", http.MethodPost, "/users/"+url.PathEscape(uid)+"/playlists/create", form, &pl, false); err != nil {
		return model.RemoteRef{}, err
	}
	owner := uid
	if pl.Owner.UID != 0 {
		owner = strconv.FormatInt(int64(pl.Owner.UID), 10)
	}
	if pl.Kind == 0 {
		return model.RemoteRef{}, fmt.Errorf("%w: create returned no playlist kind", domain.ErrOperationFailed)
	}
	return model.RemoteRef{OwnerID: owner, Kind: int64(pl.Kind)}, nil
}

func (c *Client) Rename(ctx context.Context, ref model.RemoteRef, title string) error {
	form := url.Values{}
	form.Set("value", title)
	return c.call(ctx, "rename", http.MethodPost, playlistPath(ref)+"/name", form, nil, false)
}

func (c *Client) AccountID(ctx context.Context) (string, error) {
	var st struct {
		Account struct {
			UID flexID `json:"uid"`
		} `json:"account"`
	}
	if err := c.call(ctx, "account", http.MethodGet, "/account/status", nil, &st, true); err != nil {
		return "", err
	}
	if st.Account.UID == 0 {
		return "", domain.ErrCredentialRejected
	}
	return strconv.FormatInt(int64(st.Account.UID), 10), nil
}

// call runs one API request. Reads (idempotent) are retried on transient
// faults with jittered exponential backoff.
func (c *Client) call(ctx context.Context, op, method, path string, form url.Values, out any, idempotent bool) error {
	start := time.Now()
	var err error
	if idempotent && c.p.opts.TransportRetries > 0 {
		b := retry.NewExponential(c.p.opts.RetryBackoff)
		b = retry.WithJitterPercent(20, b)
		b = retry.WithMaxRetries(uint64(c.p.opts.TransportRetries), b)
		err = retry.Do(ctx, b, func(ctx context.Context) error {
			e := c.once(ctx, method, path, form, out)
			if errors.Is(e, domain.ErrUnavailable) {
				c.p.log.Debug().Err(e).Str("op", op).Msg("transient music api failure, retrying")
				return retry.RetryableError(e)
			}
			return e
		})
	} else {
		err = c.once(ctx, method, path, form, out)
	}
	metrics.ObserveGatewayCall(op, outcomeLabel(err), time.Since(start))
	return err
}

func (c *Client) once(ctx context.Context, method, path string, form url.Values, out any) error {
	if err := c.p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	cctx, cancel := context.WithTimeout(ctx, c.p.opts.CallTimeout)
	defer cancel()

	var body io.Reader
	if form != nil {
		body = bytes.NewBufferString(form.Encode())
	}
	req, err := http.NewRequestWithContext(cctx, method, c.p.opts.BaseURL+path, body)
	if err != nil {
		return err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "OAuth "+c.token)
	}

	resp, err := c.p.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// per-call timeouts and transport faults alike
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", domain.ErrUnavailable, err)
	}
	var env envelope
	decErr := json.Unmarshal(raw, &env)
	if env.Error != nil {
		return newAPIError(resp.StatusCode, env.Error.Name, env.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, http.StatusText(resp.StatusCode), strings.TrimSpace(string(raw)))
	}
	if decErr != nil {
		return fmt.Errorf("%w: decode envelope: %v", domain.ErrOperationFailed, decErr)
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("%w: decode result: %v", domain.ErrOperationFailed, err)
		}
	}
	return nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrRevisionConflict):
		return "conflict"
	case errors.Is(err, domain.ErrRemoteNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
