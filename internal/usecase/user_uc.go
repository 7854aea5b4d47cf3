package usecase

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-playlist-bot/internal/domain"
	"telegram-playlist-bot/internal/domain/model"
	"telegram-playlist-bot/internal/domain/ports/adapter"
	"telegram-playlist-bot/internal/domain/ports/repository"
	"telegram-playlist-bot/internal/infra/logging"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

// UserUseCase exposes user-related operations used by bot flows.
type UserUseCase interface {
	RegisterOrFetch(ctx context.Context, tgID int64, username string) (*model.User, error)
	// SetMusicCredential validates token against the music service and stores
	// it sealed. Playlists the user creates afterwards live in that account.
	SetMusicCredential(ctx context.Context, tgID int64, token string) (accountID string, err error)
	ClearMusicCredential(ctx context.Context, tgID int64) error
}

type userUC struct {
	users    repository.UserRepository
	provider adapter.GatewayProvider
	cipher   adapter.Cipher
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, provider adapter.GatewayProvider, cipher adapter.Cipher, tm repository.TransactionManager, logger *zerolog.Logger) *userUC {
	return &userUC{
		users:    users,
		provider: provider,
		cipher:   cipher,
		tm:       tm,
		log:      logger,
	}
}

func (u *userUC) RegisterOrFetch(ctx context.Context, tgID int64, username string) (*model.User, error) {
	defer logging.TraceDuration(u.log, "UserUC.RegisterOrFetch")()

	var user *model.User
	txOpts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	err := u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		usr, err := ensureUser(ctx, u.users, tx, tgID, username)
		if err != nil {
			return err
		}
		if username != "" && usr.Username != username {
			usr.Username = username
		}
		usr.Touch()
		if err := u.users.Save(ctx, tx, usr); err != nil {
			u.log.Error().Err(err).Msg("failed to update user")
			return err
		}
		user = usr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (u *userUC) SetMusicCredential(ctx context.Context, tgID int64, token string) (string, error) {
	defer logging.TraceDuration(u.log, "UserUC.SetMusicCredential")()

	token = strings.TrimSpace(token)
	if tgID <= 0 || token == "" {
		return "", domain.ErrInvalidArgument
	}
	if u.cipher == nil {
		return "", domain.ErrOperationFailed
	}
	account, err := u.provider.For(token).AccountID(ctx)
	if err != nil {
		return "", err
	}
	sealed, err := u.cipher.Encrypt(token)
	if err != nil {
		return "", err
	}
	if _, err := ensureUser(ctx, u.users, repository.NoTX, tgID, ""); err != nil {
		return "", err
	}
	if err := u.users.SetMusicCredential(ctx, repository.NoTX, tgID, &sealed); err != nil {
		return "", err
	}
	u.log.Info().Int64("user_id", tgID).Str("account", account).Msg("music credential stored")
	return account, nil
}

func (u *userUC) ClearMusicCredential(ctx context.Context, tgID int64) error {
	defer logging.TraceDuration(u.log, "UserUC.ClearMusicCredential")()

	if tgID <= 0 {
		return domain.ErrInvalidArgument
	}
	return u.users.SetMusicCredential(ctx, repository.NoTX, tgID, nil)
}
