package usecase

import (
	"context"
	"errors"
	"fmt"

	"telegram-playlist-bot/internal/domain"
	"telegram-playlist-bot/internal/domain/model"
	"telegram-playlist-bot/internal/domain/ports/adapter"
	"telegram-playlist-bot/internal/domain/ports/repository"
)

// GatewayResolver picks the music-service credential for a call. A playlist is
// always addressed with its owner's credential, falling back to the service
// default when the owner has none.
type GatewayResolver struct {
	provider adapter.GatewayProvider
	cipher   adapter.Cipher
	users    repository.UserRepository
}

func NewGatewayResolver(provider adapter.GatewayProvider, cipher adapter.Cipher, users repository.UserRepository) *GatewayResolver {
	return &GatewayResolver{provider: provider, cipher: cipher, users: users}
}

func (r *GatewayResolver) ForUser(u *model.User) (adapter.PlaylistGateway, error) {
	if !u.HasCredential() || r.cipher == nil {
		return r.provider.For(""), nil
	}
	token, err := r.cipher.Decrypt(*u.MusicCredential)
	if err != nil {
		return nil, fmt.Errorf("unseal music credential: %w", err)
	}
	return r.provider.For(token), nil
}

func (r *GatewayResolver) ForPlaylist(ctx context.Context, tx repository.Tx, p *model.Playlist) (adapter.PlaylistGateway, error) {
	owner, err := r.users.FindByID(ctx, tx, p.OwnerID)
	if errors.Is(err, domain.ErrNotFound) {
		return r.provider.For(""), nil
	}
	if err != nil {
		return nil, err
	}
	return r.ForUser(owner)
}

// ensureUser returns the stored user, creating a bare record on first contact.
func ensureUser(ctx context.Context, users repository.UserRepository, tx repository.Tx, id int64, username string) (*model.User, error) {
	u, err := users.FindByID(ctx, tx, id)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	u, err = model.NewUser(id, username)
	if err != nil {
		return nil, err
	}
	if err := users.Save(ctx, tx, u); err != nil {
		return nil, err
	}
	return u, nil
}
