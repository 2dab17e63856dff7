package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"kasbot/internal/entities"
	"kasbot/internal/infrastructure"
	"kasbot/internal/interfaces"
	kashttp "kasbot/internal/interfaces/http"
	"kasbot/internal/usecases"
)

const cleanupInterval = 5 * time.Minute

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the enabled messenger channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ks, err := buildKnowledge(ctx, cfg, cfg.Scraper.Enabled, logger)
	if err != nil {
		return err
	}
	defer ks.Close()

	// The first snapshot must exist before any request is served. It comes
	// from the knowledge file and cached pages; scraping starts with the
	// refresher below.
	snap, err := ks.provider.RefreshCached(ctx)
	if err != nil {
		return fmt.Errorf("initial knowledge load: %w", err)
	}
	logger.Info().
		Uint64("version", snap.Version).
		Int("products", snap.Health.Counts.Products).
		Bool("scraper", cfg.Scraper.Enabled).
		Msg("knowledge ready")

	if cfg.Scraper.Enabled {
		refresher := infrastructure.NewRefresher(ks.provider, cfg.Scraper.Interval, cfg.Scraper.PassTimeout, logger)
		go refresher.Run(ctx)
	}

	dialog := usecases.NewDialogService(ks.provider, usecases.ReplyFormatter{Strict: cfg.Reply.Strict}, logger)

	var whatsapp *infrastructure.WhatsAppClient
	if cfg.Telegram.Enabled || cfg.WhatsApp.Enabled {
		whatsapp, err = startChannels(ctx, dialog)
		if err != nil {
			return err
		}
		if whatsapp != nil {
			defer whatsapp.Disconnect()
		}
	}

	srv := newHTTPServer(ctx, ks.provider, dialog, whatsapp)
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func newHTTPServer(ctx context.Context, provider *infrastructure.KnowledgeProvider, dialog *usecases.DialogService, whatsapp *infrastructure.WhatsAppClient) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	var ipLimiter *infrastructure.MessageRateLimiter
	if rl := cfg.Server.RateLimit; rl.Enabled {
		ipLimiter = infrastructure.NewMessageRateLimiter(rl.RPS, rl.Burst)
		go ipLimiter.Cleanup(ctx, cleanupInterval)
	}

	auth := usecases.NewAuthUsecase(cfg.Auth)
	var link interfaces.WhatsAppLink
	if whatsapp != nil {
		link = whatsapp
	}

	routes := kashttp.Routes{
		Chat:         kashttp.NewHandler(dialog, cfg.Server.ErrorStatus, logger),
		Middleware:   kashttp.NewMiddleware(auth, ipLimiter, cfg.Server.AllowedOrigins, cfg.Server.ErrorStatus, logger),
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}
	if auth.Enabled() {
		routes.Admin = kashttp.NewAdminHandler(auth, usecases.NewAdminUsecase(provider, link), logger)
	} else {
		logger.Warn().Msg("admin endpoints disabled: set JWT_SECRET and ADMIN_PASSWORD_HASH to enable")
	}
	kashttp.SetupRoutes(r, routes)

	return &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

// startChannels connects the enabled messengers and routes their messages
// through one channel service.
func startChannels(ctx context.Context, dialog *usecases.DialogService) (*infrastructure.WhatsAppClient, error) {
	sessions := infrastructure.NewSessionManager(cfg.Channels.SessionIdleTTL)
	go sessions.Cleanup(ctx, cleanupInterval)

	var chatLimiter *infrastructure.MessageRateLimiter
	if rl := cfg.Channels.RateLimit; rl.Enabled {
		chatLimiter = infrastructure.NewMessageRateLimiter(rl.RPS, rl.Burst)
		go chatLimiter.Cleanup(ctx, cleanupInterval)
	}
	channels := usecases.NewChannelService(dialog, sessions, chatLimiter, logger)

	if cfg.Telegram.Enabled {
		tg, err := infrastructure.NewTelegramClient(cfg.Telegram.Token, cfg.Telegram.Debug, logger)
		if err != nil {
			return nil, err
		}
		go tg.Listen(ctx, func(ctx context.Context, msg entities.Message, start bool) {
			_ = channels.HandleMessage(ctx, msg, start, tg)
		})
	}

	if !cfg.WhatsApp.Enabled {
		return nil, nil
	}
	wa, err := infrastructure.NewWhatsAppClient(ctx, cfg.WhatsApp.StorePath, logger)
	if err != nil {
		return nil, err
	}
	wa.OnMessage(func(msg entities.Message) {
		go func() {
			wa.SendPresence(ctx, msg.From)
			_ = channels.HandleMessage(ctx, msg, false, wa)
		}()
	})
	if err := wa.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect whatsapp: %w", err)
	}
	return wa, nil
}
