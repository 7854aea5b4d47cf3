package apiv1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"telegram-playlist-bot/internal/application"
	"telegram-playlist-bot/internal/domain"
	"telegram-playlist-bot/internal/domain/model"
	"telegram-playlist-bot/internal/infra/logging"
)

// Playlist is the wire form of a playlist record. InviteToken is only shown
// to the owner.
type Playlist struct {
	ID              string     `json:"id"`
	OwnerID         int64      `json:"owner_id"`
	Title           string     `json:"title"`
	InsertPosition  string     `json:"insert_position"`
	RemoteOwnerID   string     `json:"remote_owner_id"`
	RemoteKind      int64      `json:"remote_kind"`
	Role            string     `json:"role,omitempty"`
	InviteToken     string     `json:"invite_token,omitempty"`
	InviteExpiresAt *time.Time `json:"invite_expires_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toPlaylist(p *model.Playlist, role model.Role) Playlist {
	out := Playlist{
		ID:             p.ID,
		OwnerID:        p.OwnerID,
		Title:          p.Title,
		InsertPosition: string(p.InsertPosition),
		RemoteOwnerID:  p.Remote.OwnerID,
		RemoteKind:     p.Remote.Kind,
		Role:           string(role),
		CreatedAt:      p.CreatedAt,
	}
	if role == model.RoleOwner {
		out.InviteToken = p.InviteToken
		out.InviteExpiresAt = p.InviteExpiresAt
	}
	return out
}

// ---- mutations ----

func (s *Server) mutate(w http.ResponseWriter, r *http.Request) {
	var req model.MutationRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	ctx := logging.WithPlaylistID(logging.WithTgID(r.Context(), req.UserID), req.PlaylistID)
	res, err := s.core.Mutate(ctx, req)
	if err != nil {
		s.fail(w, r.WithContext(ctx), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ---- playlists ----

func (s *Server) createPlaylist(w http.ResponseWriter, r *http.Request) {
	var req model.CreatePlaylistRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.core.CreatePlaylist(logging.WithTgID(r.Context(), req.UserID), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlaylist(p, model.RoleOwner))
}

func (s *Server) getPlaylist(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, role, err := s.core.GetPlaylist(r.Context(), userID, chi.URLParam(r, "playlistID"), r.URL.Query().Get("invite"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlaylist(p, role))
}

func (s *Server) playlistTracks(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tr, err := s.core.PlaylistTracks(r.Context(), userID, chi.URLParam(r, "playlistID"), r.URL.Query().Get("invite"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

type updatePlaylistRequest struct {
	UserID         int64   `json:"user_id"`
	Title          *string `json:"title,omitempty"`
	InsertPosition *string `json:"insert_position,omitempty"`
}

func (s *Server) updatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req updatePlaylistRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	patch := application.PlaylistPatch{Title: req.Title}
	if req.InsertPosition != nil {
		pos := model.InsertPosition(*req.InsertPosition)
		patch.InsertPosition = &pos
	}
	p, err := s.core.UpdatePlaylist(r.Context(), req.UserID, chi.URLParam(r, "playlistID"), patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlaylist(p, model.RoleOwner))
}

func (s *Server) deletePlaylist(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.core.DeletePlaylist(r.Context(), userID, chi.URLParam(r, "playlistID")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type userRequest struct {
	UserID int64 `json:"user_id"`
}

func (s *Server) rotateInvite(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.core.RotateInvite(r.Context(), req.UserID, chi.URLParam(r, "playlistID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlaylist(p, model.RoleOwner))
}

type redeemRequest struct {
	UserID int64  `json:"user_id"`
	Token  string `json:"token"`
}

func (s *Server) redeemInvite(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	p, joined, err := s.core.RedeemInvite(r.Context(), req.UserID, req.Token)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Joined   bool     `json:"joined"`
		Playlist Playlist `json:"playlist"`
	}{Joined: joined, Playlist: toPlaylist(p, model.RoleContributor)})
}

func (s *Server) playlistStats(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.core.PlaylistStats(r.Context(), userID, chi.URLParam(r, "playlistID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type historyEntry struct {
	ID        string          `json:"id"`
	UserID    int64           `json:"user_id"`
	Operation string          `json:"operation"`
	Track     *model.TrackRef `json:"track,omitempty"`
	Position  *int            `json:"position,omitempty"`
	Outcome   string          `json:"outcome"`
	Attempts  int             `json:"attempts,omitempty"`
	At        time.Time       `json:"at"`
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.core.History(r.Context(), userID, chi.URLParam(r, "playlistID"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		items = append(items, historyEntry{
			ID:        e.ID,
			UserID:    e.UserID,
			Operation: e.Operation,
			Track:     e.Track,
			Position:  e.Position,
			Outcome:   string(e.Outcome),
			Attempts:  e.Attempts,
			At:        e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) attribution(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	trackID, err := pathInt64(r, "trackID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	a, err := s.core.Attribution(r.Context(), userID, chi.URLParam(r, "playlistID"), trackID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ---- users ----

func (s *Server) quota(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q, err := s.core.QuotaFor(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) listPlaylists(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	l, err := s.core.ListPlaylists(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := struct {
		Owned  []Playlist `json:"owned"`
		Shared []Playlist `json:"shared"`
	}{Owned: make([]Playlist, 0, len(l.Owned)), Shared: make([]Playlist, 0, len(l.Shared))}
	for _, p := range l.Owned {
		resp.Owned = append(resp.Owned, toPlaylist(p, model.RoleOwner))
	}
	for _, p := range l.Shared {
		resp.Shared = append(resp.Shared, toPlaylist(p, model.RoleContributor))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) userStats(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.core.UserStats(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type credentialRequest struct {
	Token string `json:"token"`
}

// setCredential stores a personal music token. An empty token clears it.
func (s *Server) setCredential(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req credentialRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	account, err := s.core.SetCredential(logging.WithTgID(r.Context(), userID), userID, req.Token)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if account == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"account_id": account})
}

// ---- payments ----

type intentRequest struct {
	UserID int64      `json:"user_id"`
	Tier   model.Tier `json:"tier"`
	ChatID int64      `json:"chat_id,omitempty"`
}

type intentResponse struct {
	PaymentID string        `json:"payment_id"`
	Status    string        `json:"status"`
	Invoice   model.Invoice `json:"invoice"`
	Sent      bool          `json:"sent"`
}

func (s *Server) createIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.UserID <= 0 || !req.Tier.Paid() {
		s.fail(w, r, domain.ErrInvalidArgument)
		return
	}
	st, err := s.core.StartPayment(r.Context(), req.UserID, req.Tier, req.ChatID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, intentResponse{
		PaymentID: st.Intent.ID,
		Status:    string(st.Intent.Status),
		Invoice:   *st.Invoice,
		Sent:      st.Sent,
	})
}

type preConfirmRequest struct {
	Payload string `json:"payload"`
	Amount  int64  `json:"amount"`
}

func (s *Server) preConfirm(w http.ResponseWriter, r *http.Request) {
	var req preConfirmRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.core.PreConfirm(r.Context(), req.Payload, req.Amount); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) reconcile(w http.ResponseWriter, r *http.Request) {
	var req model.PaymentConfirmation
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	act, err := s.core.Reconcile(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}
