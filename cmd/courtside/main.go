package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"courtside/internal/api"
	"courtside/internal/cache"
	"courtside/internal/config"
	"courtside/internal/database"
	"courtside/internal/domain"
	"courtside/internal/events"
	"courtside/internal/grid"
	"courtside/internal/metrics"
	"courtside/internal/notify"
	"courtside/internal/service"
	"courtside/internal/sweeper"
)

func main() {
	cfg, err := config.Load(os.Getenv("COURTSIDE_CONFIG_PATH"))
	if err != nil {
		bootLogger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg)

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid timezone")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus(&logger)

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if cfg.Redis.PubSubEnabled {
			bridge := events.NewRedisBridge(rdb, bus, cfg.Redis.PubSubChannel, &logger)
			if err := bridge.Start(ctx); err != nil {
				logger.Fatal().Err(err).Msg("failed to start change bridge")
			}
			defer bridge.Close()
		}
	}

	db, err := database.NewDB(cfg.Database.Path, bus, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	profiles := cache.NewProfileCache(db, rdb, cfg.ProfileCacheTTL(), &logger)
	notifier := newNotifier(cfg, profiles, &logger)

	first, last := cfg.CalendarHours()
	availability := service.NewAvailabilityService(db, cfg.RecurrenceHardCap(), loc, &logger)
	invites := service.NewInviteService(db, profiles, db, db, notifier, cfg.InviteTTL(), loc, &logger)
	calendar := service.NewCalendarService(db, profiles, grid.HourWindow{First: first, Last: last}, &logger)
	inbox := service.NewInboxService(db, &logger)

	sw := sweeper.New(invites, cfg.SweepInterval(), cfg.SweepBatchSize(), &logger)
	go sw.Start(ctx)
	defer sw.Stop()

	backup := database.NewBackupService(db, cfg.Backup, cfg.BackupInterval(), &logger)
	go backup.Start(ctx)

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	rps, burst := cfg.RateLimit()
	server := api.NewHTTPServer(api.Services{
		Availability: availability,
		Invites:      invites,
		Calendar:     calendar,
		Inbox:        inbox,
		Changes:      db,
	}, api.Options{Port: cfg.HTTP.Port, RateLimitRPS: rps, RateLimitBurst: burst}, &logger)

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("HTTP shutdown error")
		}
	}()

	logger.Info().Int("port", cfg.HTTP.Port).Str("timezone", loc.String()).Msg("Courtside started")
	if err := server.Start(); err != nil {
		logger.Error().Err(err).Msg("HTTP server error")
	}
	logger.Info().Msg("Courtside stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil || cfg.Logging.Level == "" {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.Logging.Console {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// newNotifier prefers Telegram and falls back to the log when the bot is
// disabled or cannot start.
func newNotifier(cfg *config.Config, profiles domain.ProfileDirectory, logger *zerolog.Logger) domain.Notifier {
	if !cfg.Telegram.Enabled {
		return notify.NewLogNotifier(logger)
	}
	if cfg.Telegram.BotToken == "" || cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Warn().Msg("telegram.enabled is set without telegram.bot_token, notifications go to the log")
		return notify.NewLogNotifier(logger)
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("create bot error, notifications go to the log")
		return notify.NewLogNotifier(logger)
	}
	bot.Debug = cfg.Telegram.Debug
	logger.Info().Str("bot", bot.Self.UserName).Msg("Telegram notifications enabled")
	return notify.NewTelegramNotifier(bot, profiles, nil, notify.DefaultRetryConfig(), logger)
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
