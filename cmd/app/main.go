// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"telegram-playlist-bot/internal/application"
	"telegram-playlist-bot/internal/config"
	"telegram-playlist-bot/internal/domain/ports/adapter"
	"telegram-playlist-bot/internal/infra/adapters/music"
	tele "telegram-playlist-bot/internal/infra/adapters/telegram"
	"telegram-playlist-bot/internal/infra/api"
	pg "telegram-playlist-bot/internal/infra/db/postgres"
	"telegram-playlist-bot/internal/infra/i18n"
	"telegram-playlist-bot/internal/infra/logging"
	"telegram-playlist-bot/internal/infra/metrics"
	red "telegram-playlist-bot/internal/infra/redis"
	"telegram-playlist-bot/internal/infra/sched"
	"telegram-playlist-bot/internal/infra/security"
	"telegram-playlist-bot/internal/infra/worker"
	"telegram-playlist-bot/internal/usecase"
)

// set by -ldflags
var (
	version = "dev"
	commit  = "none"
)

// devEncryptionKey is only accepted with -dev.
const devEncryptionKey = "0123456789abcdef0123456789abcdef"

func main() {
	cfg, err := config.LoadFromFlags()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("playlist bot stopped")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	logger.Info().Str("version", version).Bool("dev", cfg.Runtime.Dev).Msg("starting playlist bot")

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool); err != nil {
		return err
	}
	go pg.ReportPoolStats(ctx, pool, 15*time.Second, logging.Component(logger, "DBPool"))

	userRepo := pg.NewUserRepo(pool)
	playlistRepo := pg.NewPlaylistRepo(pool)
	accessRepo := pg.NewAccessRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	payRepo := pg.NewPaymentRepo(pool)
	auditRepo := pg.NewAuditRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Encryption ----
	key := cfg.Security.EncryptionKey
	if key == "" {
		if !cfg.Runtime.Dev {
			return errors.New("security.encryption_key is required outside dev mode")
		}
		logger.Warn().Msg("security.encryption_key not set; using the dev key (INSECURE)")
		key = devEncryptionKey
	}
	cipher, err := security.NewEncryptionService(key)
	if err != nil {
		return err
	}

	// ---- Music service ----
	provider := music.NewProvider(music.Options{
		BaseURL:          cfg.Music.BaseURL,
		DefaultToken:     cfg.Music.DefaultToken,
		CallTimeout:      cfg.Music.CallTimeout,
		TransportRetries: cfg.Music.TransportRetries,
		RequestsPerSec:   cfg.Music.RequestsPerSecond,
		Burst:            cfg.Music.Burst,
	}, logger)
	gateways := usecase.NewGatewayResolver(provider, cipher, userRepo)

	// ---- Redis throttle (optional) ----
	policy := usecase.MutationPolicy{
		MaxAttempts: cfg.Playlist.RetryCeiling,
		BaseBackoff: cfg.Playlist.RetryBackoff,
	}
	if cfg.Redis.MutationLimit > 0 {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		defer rc.Close()
		policy.Throttle = red.NewRateLimiter(rc)
		policy.ThrottleLimit = cfg.Redis.MutationLimit
		policy.ThrottleWindow = cfg.Redis.MutationWindow
		logger.Info().Int("limit", cfg.Redis.MutationLimit).Dur("window", cfg.Redis.MutationWindow).Msg("mutation throttle enabled")
	}

	// ---- Telegram payment rail ----
	var (
		invoices adapter.InvoiceSender
		botAPI   tele.BotAPI
	)
	if cfg.Bot.Token == "noop" {
		logger.Warn().Msg("bot.token=noop; invoices are only logged")
		invoices = tele.NewNoopInvoiceSender(logging.Component(logger, "NoopTelegram"))
	} else {
		bot, err := tele.NewBotAPI(cfg.Bot.Token)
		if err != nil {
			return err
		}
		botAPI = bot
		invoices = tele.NewStarsInvoiceSender(bot)
	}

	// ---- Use cases ----
	catalog, err := application.TierCatalog(cfg)
	if err != nil {
		return err
	}
	accessUC := usecase.NewAccessUseCase(playlistRepo, accessRepo, userRepo, auditRepo, cfg.Playlist.InviteTTL, logging.Component(logger, "AccessUC"))
	quotaUC := usecase.NewQuotaUseCase(playlistRepo, subRepo, catalog, logging.Component(logger, "QuotaUC"))
	userUC := usecase.NewUserUseCase(userRepo, provider, cipher, tm, logging.Component(logger, "UserUC"))
	playlistUC := usecase.NewPlaylistUseCase(playlistRepo, userRepo, auditRepo, accessUC, quotaUC, gateways, tm, cfg.Playlist.InviteTTL, logging.Component(logger, "PlaylistUC"))
	mutationUC := usecase.NewMutationUseCase(accessUC, auditRepo, gateways, policy, logging.Component(logger, "MutationUC"))
	paymentUC := usecase.NewPaymentUseCase(payRepo, subRepo, userRepo, catalog, invoices, tm, logging.Component(logger, "PaymentUC"))
	subUC := usecase.NewSubscriptionUseCase(subRepo, logging.Component(logger, "SubscriptionUC"))
	statsUC := usecase.NewStatsUseCase(auditRepo, playlistRepo, accessRepo, accessUC, logging.Component(logger, "StatsUC"))

	core := &application.Core{
		Users:     userUC,
		Playlists: playlistUC,
		Access:    accessUC,
		Mutations: mutationUC,
		Quota:     quotaUC,
		Payments:  paymentUC,
		Stats:     statsUC,
	}

	// ---- Background work ----
	var wg sync.WaitGroup
	spawn := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Str("task", name).Msg("background task stopped")
			}
		}()
	}

	if botAPI != nil {
		updPool := worker.NewPool(cfg.Bot.Workers, logging.Component(logger, "UpdatePool"))
		updPool.Start(ctx)
		defer updPool.Stop()
		texts, err := i18n.NewBundle(i18n.LocalesFS)
		if err != nil {
			return err
		}
		handler := tele.NewUpdateHandler(botAPI, paymentUC, accessUC, userUC, texts, updPool, logger)
		spawn("telegram_updates", func(ctx context.Context) error { return handler.Run(ctx, cfg.Bot.PollTimeout) })
	}
	expiry := sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval, subUC, logging.Component(logger, "ExpiryWorker"))
	spawn("subscription_expiry", expiry.Run)
	sweeper := sched.NewIntentSweeper(paymentUC, cfg.Scheduler.ExpiryInterval, cfg.Scheduler.StaleIntentAfter, logging.Component(logger, "IntentSweeper"))
	spawn("stale_intents", sweeper.Run)

	// ---- Internal HTTP API ----
	if cfg.HTTP.ServiceSecret == "" {
		logger.Warn().Msg("http.service_secret not set; /v1 rejects every request")
	}
	auth := api.NewAuthManager(cfg.HTTP.ServiceSecret)
	apiLog := logging.Component(logger, "API")
	srv := api.NewServer(cfg.HTTP, api.NewRouter(core, auth, pool.Ping, cfg.HTTP.RequestTimeout, apiLog), apiLog)
	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	// ---- Graceful shutdown ----
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err = <-errc:
		if err != nil {
			logger.Error().Err(err).Msg("http api failed")
		}
		stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.Warn().Err(serr).Msg("http shutdown")
	}
	wg.Wait()
	logger.Info().Msg("shutdown complete")
	return err
}
