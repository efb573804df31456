// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"telegram-invoicing-bot/internal/application"
	"telegram-invoicing-bot/internal/config"
	"telegram-invoicing-bot/internal/domain/ports/adapter"
	"telegram-invoicing-bot/internal/domain/ports/repository"
	"telegram-invoicing-bot/internal/infra/adapters/business"
	tele "telegram-invoicing-bot/internal/infra/adapters/telegram"
	pg "telegram-invoicing-bot/internal/infra/db/postgres"
	httpapi "telegram-invoicing-bot/internal/infra/http"
	"telegram-invoicing-bot/internal/infra/i18n"
	"telegram-invoicing-bot/internal/infra/logging"
	"telegram-invoicing-bot/internal/infra/memory"
	"telegram-invoicing-bot/internal/infra/metrics"
	red "telegram-invoicing-bot/internal/infra/redis"
	"telegram-invoicing-bot/internal/infra/sched"
	"telegram-invoicing-bot/internal/infra/security"
	"telegram-invoicing-bot/internal/infra/worker"
	"telegram-invoicing-bot/internal/usecase"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

var botCommands = []string{"start", "createcompany", "clients", "articles", "stock", "subscription", "cancel", "help", "ticket"}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("bot stopped")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister(prometheus.DefaultRegisterer)
	metrics.SetBuildInfo(version, commit)
	logger.Info().Str("version", version).Str("mode", cfg.Bot.Mode).Bool("dev", cfg.Runtime.Dev).Msg("starting")

	checks := map[string]httpapi.Check{}

	// ---- Encryption ----
	var sealer red.Sealer
	if cfg.Security.EncryptionKey != "" {
		enc, err := security.NewEncryptionService(cfg.Security.EncryptionKey)
		if err != nil {
			return fmt.Errorf("encryption: %w", err)
		}
		sealer = enc
	} else if cfg.Session.Backend == config.BackendRedis {
		logger.Warn().Msg("security.encryption_key not set; sessions are stored in clear text")
	}

	// ---- Redis (sessions, locks, rate limit, user cache) ----
	var redisClient red.RedisClient
	if cfg.Redis.URL != "" {
		c, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer c.Close()
		redisClient = c
		checks["redis"] = c.Ping
	}

	// ---- Sessions ----
	var (
		sessionRepo repository.SessionRepository
		locker      repository.Locker
		limiter     tele.Limiter
	)
	switch cfg.Session.Backend {
	case config.BackendRedis:
		sessionRepo = red.NewSessionRepo(redisClient, cfg.Session.IdleTTL(), sealer)
		locker = red.NewLocker(redisClient, 0)
	default:
		mem := memory.NewSessionRepo(cfg.Session.IdleTTL())
		sessionRepo = mem
		locker = memory.NewLocker(0)
		sweeper := sched.NewSessionSweeper(cfg.Session.SweepInterval, mem, logger)
		go func() { _ = sweeper.Run(ctx) }()
	}
	if redisClient != nil {
		limiter = red.NewRateLimiter(redisClient)
	}
	sessions := usecase.NewSessionUseCase(sessionRepo, locker, cfg.Session.LockTTL, logger)

	// ---- Business backend ----
	api, closeAPI, err := newBusinessAPI(ctx, cfg, redisClient, checks, logger)
	if err != nil {
		return err
	}
	defer closeAPI()

	// ---- Telegram ----
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "fr")
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}

	notifyPool := worker.NewPool(cfg.Bot.NotifyWorkers, logger)
	notifyPool.Start(ctx)
	defer notifyPool.Stop()

	var (
		bot      adapter.TelegramBotAdapter
		notifier adapter.AdminNotifier
		realBot  *tele.Bot
		botAPI   tele.API
	)
	if cfg.Bot.Token == "" {
		noop := tele.NewNoopBot(logger)
		bot, notifier = noop, noop
		logger.Warn().Msg("[DEV MODE] no bot token; outbound messages are only logged")
	} else {
		a, err := tele.NewBotAPI(cfg.Bot.Token)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		botAPI = a
		realBot = tele.NewBot(a, cfg.Bot.SendRate, logger)
		bot = realBot
		notifier = tele.NewAdminNotifier(realBot, notifyPool, cfg.Bot.AdminIDs, logger)
	}

	presenter := application.NewPresenter(bot, tr, cfg.Plans.Currency, logger)
	dispatcher := application.NewDispatcher(sessions, api, notifier, presenter, application.Options{
		Currency:     cfg.Plans.Currency,
		Location:     cfg.Plans.Location(),
		SupportURL:   cfg.Bot.SupportURL,
		MobileMoney:  cfg.Plans.MobileMoney,
		BankTransfer: cfg.Plans.BankTransfer,
		Dev:          cfg.Runtime.Dev,
	}, logger)

	receiver := tele.NewReceiver(dispatcher, bot, limiter, tele.ReceiverOptions{
		Workers:     cfg.Bot.Workers,
		RateLimit:   cfg.Bot.RateLimit,
		LimitedText: tr.T("rate_limited"),
	}, logger)
	receiver.Start(ctx)
	defer receiver.Stop()

	var sink httpapi.UpdateSink
	if realBot != nil {
		cmds := make([]tele.Command, 0, len(botCommands))
		for _, name := range botCommands {
			cmds = append(cmds, tele.Command{Name: name, Description: tr.T("cmd_" + name)})
		}
		if err := realBot.SetCommands(ctx, cmds); err != nil {
			logger.Warn().Err(err).Msg("setMyCommands failed")
		}

		switch cfg.Bot.Mode {
		case config.ModeWebhook:
			if err := realBot.SetWebhook(ctx, cfg.Bot.WebhookURL, cfg.Bot.WebhookSecret); err != nil {
				return fmt.Errorf("set webhook: %w", err)
			}
			sink = receiver
			logger.Info().Str("url", logging.Redact(cfg.Bot.WebhookURL, cfg.Runtime.Dev)).Msg("webhook registered")
		default:
			if err := realBot.DeleteWebhook(ctx); err != nil {
				logger.Warn().Err(err).Msg("deleteWebhook failed")
			}
			go func() {
				if err := receiver.Poll(ctx, botAPI); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error().Err(err).Msg("telegram polling stopped")
				}
			}()
		}
	}

	// ---- HTTP ----
	srv := httpapi.NewServer(httpapi.Options{
		Port:          cfg.HTTP.Port,
		WebhookSecret: cfg.Bot.WebhookSecret,
		JWTSecret:     cfg.HTTP.AdminJWTSecret,
	}, sink, api, presenter, checks, logger)
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Start() }()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-srvErr:
		if err != nil {
			logger.Error().Err(err).Msg("http server failed")
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	return nil
}

// newBusinessAPI returns the configured backend and its cleanup.
func newBusinessAPI(ctx context.Context, cfg *config.Config, redisClient red.RedisClient, checks map[string]httpapi.Check, logger *zerolog.Logger) (adapter.BusinessAPI, func(), error) {
	if cfg.Business.Backend == config.BackendHTTP {
		c, err := business.NewHTTPClient(cfg.Business.BaseURL, cfg.Business.APIToken, cfg.Business.Timeout, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("business client: %w", err)
		}
		return c, func() {}, nil
	}

	if cfg.Database.Migrate {
		if err := pg.Migrate(cfg.Database.URL, logger); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	pool, err := pg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	checks["postgres"] = func(ctx context.Context) error { return pool.Ping(ctx) }
	go pg.ReportPoolStats(ctx, pool, 15*time.Second)

	return usecase.NewBusinessUseCase(repositories(pool, redisClient, cfg, logger), pg.NewTxManager(pool),
		cfg.Plans.Prices, cfg.Plans.Location(), logger), pool.Close, nil
}

func repositories(pool *pgxpool.Pool, redisClient red.RedisClient, cfg *config.Config, logger *zerolog.Logger) usecase.Repositories {
	var users repository.UserRepository = pg.NewUserRepo(pool)
	if redisClient != nil {
		users = pg.NewUserRepoCacheDecorator(users, redisClient, cfg.Redis.CacheTTL, logger)
	}
	return usecase.Repositories{
		Users:     users,
		Companies: pg.NewCompanyRepo(pool),
		Clients:   pg.NewClientRepo(pool),
		Articles:  pg.NewArticleRepo(pool),
		Movements: pg.NewMovementRepo(pool),
		Payments:  pg.NewPaymentRepo(pool),
	}
}
