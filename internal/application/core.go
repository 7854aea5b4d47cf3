package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"telegram-playlist-bot/internal/config"
	"telegram-playlist-bot/internal/domain"
	"telegram-playlist-bot/internal/domain/model"
	"telegram-playlist-bot/internal/usecase"
)

// Core composes the use cases into the operations transports call. The chat
// front end and the Telegram payment rail never reach a use case directly.
type Core struct {
	Users     usecase.UserUseCase
	Playlists usecase.PlaylistUseCase
	Access    usecase.AccessUseCase
	Mutations usecase.MutationUseCase
	Quota     usecase.QuotaUseCase
	Payments  usecase.PaymentUseCase
	Stats     usecase.StatsUseCase
}

// PlaylistPatch carries the optional fields of a playlist update.
type PlaylistPatch struct {
	Title          *string
	InsertPosition *model.InsertPosition
}

type PlaylistListing struct {
	Owned  []*model.Playlist
	Shared []*model.Playlist
}

// PaymentStart is the result of starting a purchase. Sent is true when the
// invoice was delivered to a chat through the payment rail.
type PaymentStart struct {
	Intent  *model.PaymentIntent
	Invoice *model.Invoice
	Sent    bool
}

func (c *Core) Mutate(ctx context.Context, req model.MutationRequest) (*model.MutationResult, error) {
	return c.Mutations.Mutate(ctx, req)
}

func (c *Core) CreatePlaylist(ctx context.Context, req model.CreatePlaylistRequest) (*model.Playlist, error) {
	return c.Playlists.Create(ctx, req)
}

// UpdatePlaylist applies the rename first so a denied rename leaves the
// insert position untouched as well.
func (c *Core) UpdatePlaylist(ctx context.Context, userID int64, playlistID string, patch PlaylistPatch) (*model.Playlist, error) {
	if patch.Title == nil && patch.InsertPosition == nil {
		return nil, domain.ErrInvalidArgument
	}
	var (
		p   *model.Playlist
		err error
	)
	if patch.Title != nil {
		if p, err = c.Playlists.Rename(ctx, userID, playlistID, *patch.Title); err != nil {
			return nil, err
		}
	}
	if patch.InsertPosition != nil {
		if p, err = c.Playlists.SetInsertPosition(ctx, userID, playlistID, *patch.InsertPosition); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (c *Core) GetPlaylist(ctx context.Context, userID int64, playlistID, inviteToken string) (*model.Playlist, model.Role, error) {
	return c.Playlists.Get(ctx, userID, playlistID, strings.TrimSpace(inviteToken))
}

func (c *Core) PlaylistTracks(ctx context.Context, userID int64, playlistID, inviteToken string) (*model.PlaylistTracks, error) {
	return c.Playlists.Tracks(ctx, userID, playlistID, strings.TrimSpace(inviteToken))
}

func (c *Core) DeletePlaylist(ctx context.Context, userID int64, playlistID string) error {
	return c.Playlists.Delete(ctx, userID, playlistID)
}

func (c *Core) ListPlaylists(ctx context.Context, userID int64) (*PlaylistListing, error) {
	owned, shared, err := c.Playlists.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &PlaylistListing{Owned: owned, Shared: shared}, nil
}

func (c *Core) RotateInvite(ctx context.Context, userID int64, playlistID string) (*model.Playlist, error) {
	return c.Access.RotateInvite(ctx, userID, playlistID)
}

func (c *Core) RedeemInvite(ctx context.Context, userID int64, token string) (*model.Playlist, bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, false, domain.ErrInvalidArgument
	}
	return c.Access.RedeemInvite(ctx, userID, token)
}

func (c *Core) QuotaFor(ctx context.Context, userID int64) (*model.Quota, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return c.Quota.Quota(ctx, userID)
}

// SetCredential stores token, or clears the stored credential when token is empty.
func (c *Core) SetCredential(ctx context.Context, userID int64, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", c.Users.ClearMusicCredential(ctx, userID)
	}
	return c.Users.SetMusicCredential(ctx, userID, token)
}

func (c *Core) UserStats(ctx context.Context, userID int64) (*model.UserStats, error) {
	return c.Stats.UserStats(ctx, userID)
}

func (c *Core) PlaylistStats(ctx context.Context, userID int64, playlistID string) (*model.PlaylistStats, error) {
	return c.Stats.PlaylistStats(ctx, userID, playlistID)
}

func (c *Core) Attribution(ctx context.Context, userID int64, playlistID string, trackID int64) (*model.Attribution, error) {
	return c.Stats.Attribution(ctx, userID, playlistID, trackID)
}

func (c *Core) History(ctx context.Context, userID int64, playlistID string, limit int) ([]*model.AuditEntry, error) {
	return c.Stats.History(ctx, userID, playlistID, limit)
}

// StartPayment records a pending intent for tier. With a non-zero chatID the
// invoice is also sent through the payment rail.
func (c *Core) StartPayment(ctx context.Context, userID int64, tier model.Tier, chatID int64) (*PaymentStart, error) {
	if chatID != 0 {
		intent, inv, err := c.Payments.SendInvoice(ctx, chatID, userID, tier)
		if err != nil {
			return nil, err
		}
		return &PaymentStart{Intent: intent, Invoice: inv, Sent: true}, nil
	}
	intent, inv, err := c.Payments.CreateIntent(ctx, userID, tier)
	if err != nil {
		return nil, err
	}
	return &PaymentStart{Intent: intent, Invoice: inv}, nil
}

func (c *Core) PreConfirm(ctx context.Context, payload string, amount int64) error {
	return c.Payments.PreConfirm(ctx, payload, amount)
}

func (c *Core) Reconcile(ctx context.Context, conf model.PaymentConfirmation) (*model.Activation, error) {
	return c.Payments.Reconcile(ctx, conf)
}

// TierCatalog builds the purchasable tiers from config. Ceilings are fixed
// at 5, 10 and unlimited; prices and durations are configurable.
func TierCatalog(cfg *config.Config) (*model.TierCatalog, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	spec := func(t model.Tier, ceiling model.Limit, o config.TierOffer) model.TierSpec {
		return model.TierSpec{
			Tier:       t,
			Ceiling:    ceiling,
			PriceStars: o.PriceStars,
			Duration:   time.Duration(o.DurationDays) * 24 * time.Hour,
		}
	}
	cat, err := model.NewTierCatalog(cfg.Playlist.BaseLimit,
		spec(model.Tier5, model.Finite(5), cfg.Tiers.Tier5),
		spec(model.Tier10, model.Finite(10), cfg.Tiers.Tier10),
		spec(model.TierUnlimited, model.Unlimited, cfg.Tiers.Unlimited),
	)
	if err != nil {
		return nil, fmt.Errorf("tier catalog: %w", err)
	}
	return cat, nil
}
