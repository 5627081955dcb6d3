package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tandemhq/profile-agent/internal/action"
	"github.com/tandemhq/profile-agent/internal/cleanup"
	"github.com/tandemhq/profile-agent/internal/config"
	"github.com/tandemhq/profile-agent/internal/conversation"
	"github.com/tandemhq/profile-agent/internal/drops"
	"github.com/tandemhq/profile-agent/internal/health"
	"github.com/tandemhq/profile-agent/internal/llm"
	"github.com/tandemhq/profile-agent/internal/match"
	"github.com/tandemhq/profile-agent/internal/metrics"
	"github.com/tandemhq/profile-agent/internal/persona"
	"github.com/tandemhq/profile-agent/internal/render"
	"github.com/tandemhq/profile-agent/internal/server"
	"github.com/tandemhq/profile-agent/internal/session"
	"github.com/tandemhq/profile-agent/internal/twilio"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Int("http_port", cfg.HTTPPort).
		Bool("llm_enabled", cfg.LLMEnabled()).
		Bool("twilio_enabled", cfg.TwilioEnabled()).
		Bool("redis_enabled", cfg.RedisEnabled()).
		Msg("starting profile agent")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	m := metrics.New()
	checker := health.NewChecker(logger)

	// Session store: redis with permanent in-process fallback, or memory
	// only when no redis is configured.
	var kv session.KV
	if cfg.RedisEnabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		redisKV := session.NewRedisKV(rdb)
		if err := redisKV.Ping(ctx); err != nil {
			logger.Warn().Err(err).Msg("redis unreachable at startup, store may degrade")
		}
		fallback := session.NewFallbackKV(redisKV, logger)
		fallback.OnDegrade = func() { m.StoreDegraded.Set(1) }
		checker.Register("redis", func(ctx context.Context) health.Status {
			if fallback.Degraded() {
				return health.StatusDegraded
			}
			if err := redisKV.Ping(ctx); err != nil {
				return health.StatusDegraded
			}
			return health.StatusOK
		})
		kv = fallback
	} else {
		logger.Warn().Msg("no redis configured, sessions are in-memory only")
		kv = session.NewMemoryKV()
	}
	store := session.NewStore(kv, logger)

	// Model provider. Without a key the turn loop still runs and answers
	// with the persona fallback line.
	provider := llm.NewClient(cfg.LLMAPIKey, logger,
		llm.WithBaseURL(cfg.LLMBaseURL),
		llm.WithModel(cfg.LLMModel),
		llm.WithMaxTokens(cfg.LLMMaxTokens),
		llm.WithHTTPClient(&http.Client{Timeout: cfg.LLMTimeout}),
	)
	if !cfg.LLMEnabled() {
		logger.Warn().Msg("no LLM API key configured, replies degrade to the fallback message")
	}

	// Renderer: external render service when configured, self-hosted share
	// links otherwise.
	var renderer action.Renderer
	local := render.NewLocalRenderer(cfg.PublicURL, cfg.ShareSigningKey, logger)
	if cfg.RenderEnabled() {
		renderer = render.NewServiceRenderer(cfg.RenderServiceURL, logger)
		logger.Info().Str("url", cfg.RenderServiceURL).Msg("using external render service")
	} else {
		renderer = local
	}

	var sender twilio.Sender
	if cfg.TwilioEnabled() {
		sender = twilio.NewClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)
	} else {
		sender = twilio.NewLogSender(logger)
	}

	finder := match.NewStoreFinder(store, logger)
	executor := action.NewExecutor(renderer, finder, store, cfg.MatchDropSize, logger)

	p, err := persona.Load(cfg.PersonaPath)
	if err != nil {
		logger.Warn().Err(err).Msg("persona file rejected, using defaults")
	}

	orch := conversation.New(store, provider, executor, sender, p, m, logger)

	// background cadence: recurring drops and session retention
	dropScheduler := drops.NewScheduler(store, finder, sender, match.FormatDrop, cfg.DropInterval, cfg.MatchDropSize, logger)
	go dropScheduler.Run(ctx)
	cleaner := cleanup.NewCleaner(store, cfg.SessionTTL, cfg.CleanupInterval, logger)
	cleaner.SetMetrics(m)
	go cleaner.Run(ctx)

	srv := server.NewServer(server.Config{
		ListenAddr:  fmt.Sprintf(":%d", cfg.HTTPPort),
		AdminAPIKey: cfg.AdminAPIKey,
		CORSOrigins: cfg.AdminCORSOrigins,
	}, orch, store, local, checker, m, logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-sigCh
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	done := make(chan struct{})
	go func() {
		if err := srv.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn().Msg("shutdown timed out")
	}
	logger.Info().Msg("profile agent stopped")
}
