package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"supportdesk/internal/config"
	"supportdesk/internal/entities"
	"supportdesk/internal/infrastructure"
	"supportdesk/internal/interfaces"
	httpiface "supportdesk/internal/interfaces/http"
	"supportdesk/internal/queue"
	"supportdesk/internal/usecases"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, webhook and inbound worker queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *config.Config) error {
	if !cfg.OpenAIEnabled() {
		return errors.New("openai.api_key is required to serve")
	}

	pg, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer pg.Close()
	s := newStores(pg)

	commerce := newCommerce(cfg)
	registry := newToolRegistry(cfg, commerce, s)
	agent := infrastructure.NewOpenAIAgent(infrastructure.OpenAIAgentConfig{
		APIKey:        cfg.OpenAI.APIKey,
		BaseURL:       cfg.OpenAI.BaseURL,
		Model:         cfg.OpenAI.Model,
		Moderation:    cfg.OpenAI.Moderation,
		MaxToolRounds: cfg.OpenAI.MaxToolRound,
	}, registry, s.threads)

	resolver := usecases.NewResolver(s.customers, s.conversations, map[entities.Channel]time.Duration{
		entities.ChannelWhatsApp: cfg.WhatsApp.Window,
		entities.ChannelWidget:   cfg.Widget.Window,
	})
	if cfg.WooCommerceEnabled() {
		resolver.WithCommerce(commerce)
	}
	dispatcher := usecases.NewDispatcher(agent, s.conversations, s.messages, s.config, cfg.OpenAI.SystemPrompt)
	locks := infrastructure.NewKeyedMutex()

	var alerter interfaces.Alerter
	var telegram *infrastructure.TelegramAlerter
	if cfg.TelegramEnabled() {
		telegram, err = infrastructure.NewTelegramAlerter(cfg.Telegram.BotToken, cfg.Telegram.AlertChatID)
		if err != nil {
			log.Warn().Err(err).Msg("telegram alerts disabled")
			telegram = nil
		} else {
			alerter = telegram
			log.Info().Str("bot", telegram.BotName()).Msg("telegram alerts enabled")
		}
	}

	// The device session delivers messages into the queue, which is created
	// after the messenger it depends on.
	var jobs *queue.Queue[*usecases.InboundJob]
	var device *infrastructure.WhatsAppDevice
	var messenger interfaces.Messenger
	switch cfg.WhatsApp.Mode {
	case config.ModeEvolution:
		messenger = infrastructure.NewEvolutionClient(cfg.Evolution.BaseURL, cfg.Evolution.APIKey, cfg.Evolution.Instance, cfg.WhatsApp.SendTimeout)
	case config.ModeDevice:
		device, err = infrastructure.NewWhatsAppDevice(ctx, cfg.WhatsApp.DeviceStorePath, func(in entities.InboundMessage) {
			job := &usecases.InboundJob{Message: in}
			if err := jobs.Submit(job); err != nil {
				jobs.Reject(context.Background(), job, err)
			}
		})
		if err != nil {
			return fmt.Errorf("whatsapp device: %w", err)
		}
		messenger = device
	default:
		messenger = infrastructure.NewWhatsAppCloudClient(cfg.WhatsApp.AccessToken, cfg.WhatsApp.PhoneNumberID, cfg.WhatsApp.APIVersion, cfg.WhatsApp.SendTimeout)
	}

	service := usecases.NewMessageService(resolver, dispatcher, s.messages, messenger, locks, s.usage)
	jobs = queue.New[*usecases.InboundJob]("inbound", service.Process, queue.Options{
		Size:        cfg.Queue.Size,
		Workers:     cfg.Queue.Workers,
		MaxAttempts: cfg.Queue.MaxAttempts,
		Backoff:     cfg.Queue.Backoff,
	}, usecases.NewDeadLetterRecorder(s.deadLetters, alerter))

	if device != nil {
		if err := device.Connect(ctx); err != nil {
			return fmt.Errorf("whatsapp device connect: %w", err)
		}
		defer device.Disconnect()
	}

	auth := usecases.NewAuthUsecase(s.users, cfg.Admin.JWTSecret)
	if err := auth.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
		log.Warn().Err(err).Msg("failed to ensure admin user")
	}

	dashboard := usecases.NewDashboardUsecase(usecases.DashboardUsecase{
		Conversations: s.conversations,
		Messages:      s.messages,
		Customers:     s.customers,
		Returns:       s.returns,
		Promotions:    s.promotions,
		DeadLetters:   s.deadLetters,
		Config:        s.config,
		Usage:         s.usage,
		Messenger:     messenger,
		Jobs:          jobs,
	})
	chat := usecases.NewChatUsecase(resolver, dispatcher, locks, s.usage)
	limiter := infrastructure.NewKeyedRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst)

	deps := httpiface.Deps{
		Webhook: httpiface.WebhookConfig{
			VerifyToken:      cfg.WhatsApp.VerifyToken,
			AppSecret:        cfg.WhatsApp.AppSecret,
			EnforceSignature: cfg.WhatsApp.EnforceSignature,
			EvolutionAPIKey:  cfg.Evolution.APIKey,
		},
		Jobs:       jobs,
		Queue:      jobs,
		Chat:       chat,
		Auth:       auth,
		Dashboard:  dashboard,
		Tools:      registry,
		ToolsKey:   cfg.Tools.APIKey,
		Health:     httpiface.NewHealthHandler(healthChecks(cfg, pg, commerce, device, telegram)...),
		Middleware: httpiface.NewMiddleware(cfg.Admin.JWTSecret, limiter),
		MaxBody:    cfg.HTTP.MaxBodyBytes,
	}
	if device != nil {
		deps.Device = device
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(httpiface.RequestLogger(), gin.Recovery())
	httpiface.SetupRoutes(r, deps)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return jobs.Run(gctx)
	})
	g.Go(func() error {
		limiter.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTP.Addr).Str("whatsapp_mode", string(cfg.WhatsApp.Mode)).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownWait)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func healthChecks(cfg *config.Config, pg *infrastructure.PostgresClient, commerce *infrastructure.WooCommerceClient, device *infrastructure.WhatsAppDevice, telegram *infrastructure.TelegramAlerter) []httpiface.HealthCheck {
	checks := []httpiface.HealthCheck{
		{Name: "database", Check: pg.Ping},
		{Name: "openai", Check: func(context.Context) error { return nil }},
	}

	wa := httpiface.HealthCheck{Name: "whatsapp"}
	switch {
	case device != nil:
		wa.Check = func(context.Context) error {
			if !device.Status().LoggedIn {
				return errors.New("device not paired")
			}
			return nil
		}
	case cfg.WhatsApp.Mode == config.ModeEvolution && cfg.Evolution.BaseURL != "":
		wa.Check = func(context.Context) error { return nil }
	case cfg.WhatsApp.Mode == config.ModeCloud && cfg.WhatsApp.AccessToken != "" && cfg.WhatsApp.PhoneNumberID != "":
		wa.Check = func(context.Context) error { return nil }
	}
	checks = append(checks, wa)

	woo := httpiface.HealthCheck{Name: "woocommerce"}
	if cfg.WooCommerceEnabled() {
		woo.Check = commerce.Ping
	}
	checks = append(checks, woo)

	tg := httpiface.HealthCheck{Name: "telegram", Optional: true}
	if telegram != nil {
		tg.Check = func(context.Context) error { return nil }
	}
	return append(checks, tg)
}
