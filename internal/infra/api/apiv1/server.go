package apiv1

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"telegram-playlist-bot/internal/application"
	"telegram-playlist-bot/internal/domain"
	"telegram-playlist-bot/internal/domain/model"
	"telegram-playlist-bot/internal/infra/logging"
)

// Core is the application surface served over HTTP. *application.Core
// implements it.
type Core interface {
	Mutate(ctx context.Context, req model.MutationRequest) (*model.MutationResult, error)
	CreatePlaylist(ctx context.Context, req model.CreatePlaylistRequest) (*model.Playlist, error)
	GetPlaylist(ctx context.Context, userID int64, playlistID, inviteToken string) (*model.Playlist, model.Role, error)
	PlaylistTracks(ctx context.Context, userID int64, playlistID, inviteToken string) (*model.PlaylistTracks, error)
	UpdatePlaylist(ctx context.Context, userID int64, playlistID string, patch application.PlaylistPatch) (*model.Playlist, error)
	DeletePlaylist(ctx context.Context, userID int64, playlistID string) error
	ListPlaylists(ctx context.Context, userID int64) (*application.PlaylistListing, error)
	RotateInvite(ctx context.Context, userID int64, playlistID string) (*model.Playlist, error)
	RedeemInvite(ctx context.Context, userID int64, token string) (*model.Playlist, bool, error)
	QuotaFor(ctx context.Context, userID int64) (*model.Quota, error)
	SetCredential(ctx context.Context, userID int64, token string) (string, error)
	UserStats(ctx context.Context, userID int64) (*model.UserStats, error)
	PlaylistStats(ctx context.Context, userID int64, playlistID string) (*model.PlaylistStats, error)
	Attribution(ctx context.Context, userID int64, playlistID string, trackID int64) (*model.Attribution, error)
	History(ctx context.Context, userID int64, playlistID string, limit int) ([]*model.AuditEntry, error)
	StartPayment(ctx context.Context, userID int64, tier model.Tier, chatID int64) (*application.PaymentStart, error)
	PreConfirm(ctx context.Context, payload string, amount int64) error
	Reconcile(ctx context.Context, conf model.PaymentConfirmation) (*model.Activation, error)
}

var _ Core = (*application.Core)(nil)

type Server struct {
	core Core
	log  *zerolog.Logger
}

func NewServer(core Core, logger *zerolog.Logger) *Server {
	return &Server{core: core, log: logger}
}

// RegisterAPIV1 mounts the v1 routes on r. Authentication is applied by the caller.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/mutations", s.mutate)

		r.Post("/playlists", s.createPlaylist)
		r.Route("/playlists/{playlistID}", func(r chi.Router) {
			r.Get("/", s.getPlaylist)
			r.Patch("/", s.updatePlaylist)
			r.Delete("/", s.deletePlaylist)
			r.Post("/invite", s.rotateInvite)
			r.Get("/stats", s.playlistStats)
			r.Get("/history", s.history)
			r.Get("/tracks", s.playlistTracks)
			r.Get("/tracks/{trackID}/attribution", s.attribution)
		})
		r.Post("/invitations/redeem", s.redeemInvite)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/quota", s.quota)
			r.Get("/playlists", s.listPlaylists)
			r.Get("/stats", s.userStats)
			r.Put("/credential", s.setCredential)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/intents", s.createIntent)
			r.Post("/pre-confirm", s.preConfirm)
			r.Post("/reconcile", s.reconcile)
		})
	})
}

// ---- helpers ----

const maxBody = 1 << 20

func decode(r *http.Request, dst any) error {
	if r.Body == nil {
		return domain.ErrInvalidArgument
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Join(domain.ErrInvalidArgument, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func pathInt64(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	return v, nil
}

// actingUser reads the user the front end acts for from ?user_id=.
func actingUser(r *http.Request) (int64, error) {
	v, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || v <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	return v, nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := mapError(err)
	l := logging.With(r.Context(), s.log)
	if status >= http.StatusInternalServerError {
		l.Error().Err(err).Str("path", r.URL.Path).Str("code", body.Code).Msg("api request failed")
	} else {
		l.Debug().Err(err).Str("path", r.URL.Path).Str("code", body.Code).Msg("api request rejected")
	}
	writeJSON(w, status, errorEnvelope{Error: body})
}
