package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nerdneilsfield/telegram-style-bot/internal/auth"
	"github.com/nerdneilsfield/telegram-style-bot/internal/config"
	"github.com/nerdneilsfield/telegram-style-bot/internal/i18n"
	"github.com/nerdneilsfield/telegram-style-bot/internal/logger"
	"github.com/nerdneilsfield/telegram-style-bot/internal/retry"
	"github.com/nerdneilsfield/telegram-style-bot/internal/session"
	"github.com/nerdneilsfield/telegram-style-bot/internal/storage"
	"github.com/nerdneilsfield/telegram-style-bot/internal/throttle"
	"github.com/nerdneilsfield/telegram-style-bot/pkg/imageapi"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	janitorInterval = time.Minute
	shutdownTimeout = 10 * time.Second
)

// StartBot initializes the bot and blocks until SIGINT/SIGTERM.
func StartBot(cfg *config.Config, version string, buildDate string) error {
	logger, err := logger.InitLogger(cfg.LogConfig.Level, cfg.LogConfig.Format, cfg.LogConfig.File)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting Telegram Bot...", zap.String("version", version), zap.String("buildDate", buildDate))

	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.BotToken, cfg.TelegramAPIURL)
	if err != nil {
		logger.Error("Failed to create bot", zap.Error(err))
		return fmt.Errorf("failed to create bot: %w", err)
	}
	logger.Info("Authorized on account", zap.String("username", api.Self.UserName))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := NewBotDeps(cfg, api, logger, version, buildDate)
	if err != nil {
		return err
	}
	defer cleanup()

	SetBotCommands(api, logger, deps.I18n)

	dispatcher := NewDispatcher(ctx, func(ctx context.Context, upd tgbotapi.Update) {
		HandleUpdate(ctx, upd, deps)
	}, logger)

	go runJanitor(ctx, deps)

	if cfg.Webhook.URL != "" {
		err = runWebhook(ctx, api, cfg, dispatcher, logger)
	} else {
		err = runPolling(ctx, api, dispatcher, logger)
	}

	logger.Info("Shutting down, waiting for in-flight work...")
	dispatcher.Wait()
	deps.Pipeline.Wait()
	logger.Info("Bot stopped")
	return err
}

// NewBotDeps wires every component from cfg. cleanup closes the database.
func NewBotDeps(cfg *config.Config, sender Sender, logger *zap.Logger, version, buildDate string) (BotDeps, func(), error) {
	cleanup := func() {}

	catalog, err := cfg.Catalog()
	if err != nil {
		return BotDeps{}, cleanup, fmt.Errorf("invalid style catalog: %w", err)
	}

	i18nManager, err := i18n.NewManager(cfg.DefaultLanguage, logger)
	if err != nil {
		return BotDeps{}, cleanup, fmt.Errorf("failed to initialize i18n manager: %w", err)
	}

	var history *storage.HistoryStore
	var preferences *storage.PreferenceStore
	if cfg.DBPath != "" {
		db, err := storage.Open(cfg.DBPath, logger)
		if err != nil {
			return BotDeps{}, cleanup, fmt.Errorf("failed to initialize database: %w", err)
		}
		cleanup = func() {
			if err := storage.Close(db); err != nil {
				logger.Warn("Failed to close database", zap.Error(err))
			}
		}
		history = storage.NewHistoryStore(db, logger)
		preferences = storage.NewPreferenceStore(db, logger)
		logger.Info("History and preferences enabled", zap.String("db_path", cfg.DBPath))
	} else {
		logger.Info("No dbPath configured, history and preferences disabled")
	}

	sessions := session.NewMemoryStore(catalog.Len(), cfg.SessionTTL())

	width, height := cfg.ImageSize()
	imageClient := imageapi.NewClient(imageapi.Options{
		BaseURL:   cfg.ImageAPI.BaseURL,
		Width:     width,
		Height:    height,
		Timeout:   cfg.ImageTimeout(),
		UserAgent: cfg.ImageAPI.UserAgent,
	}, nil, logger.Named("image_api"))

	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Backoff:     retry.Exponential(cfg.RetryBaseDelay()),
		Retryable:   imageapi.IsRetryable,
	}

	limiter := throttle.New(cfg.Throttle.GenerationsPerMinute, cfg.Throttle.Burst)
	if limiter != nil {
		logger.Info("Generation throttle enabled",
			zap.Int("per_minute", cfg.Throttle.GenerationsPerMinute),
			zap.Int("burst", cfg.Throttle.Burst))
	}

	deps := BotDeps{
		Bot:         sender,
		Config:      cfg,
		Catalog:     catalog,
		Sessions:    sessions,
		Throttle:    limiter,
		History:     history,
		Preferences: preferences,
		Authorizer:  auth.NewAuthorizer(cfg.Admins.AdminUserIDs),
		I18n:        i18nManager,
		Languages:   NewLanguageCache(),
		Logger:      logger,
		Version:     version,
		BuildDate:   buildDate,
	}
	deps.Pipeline = NewPipeline(PipelineOptions{
		Bot:      sender,
		Fetcher:  imageClient,
		Policy:   policy,
		Sessions: sessions,
		Catalog:  catalog,
		History:  history,
		I18n:     i18nManager,
		Logger:   logger,
	})
	return deps, cleanup, nil
}

// SetBotCommands registers the command list once per available language.
func SetBotCommands(api Sender, logger *zap.Logger, tr *i18n.Manager) {
	build := func(lang string) []tgbotapi.BotCommand {
		names := []string{"start", "help", "styles", "gen", "cancel", "history", "language", "version"}
		commands := make([]tgbotapi.BotCommand, 0, len(names))
		for _, name := range names {
			commands = append(commands, tgbotapi.BotCommand{Command: name, Description: tr.T(lang, "command_desc_"+name)})
		}
		return commands
	}

	if _, err := api.Request(tgbotapi.NewSetMyCommands(build(tr.DefaultLanguage())...)); err != nil {
		logger.Error("Failed to set bot commands", zap.Error(err))
		return
	}
	for _, code := range tr.LanguageCodes() {
		cfg := tgbotapi.NewSetMyCommandsWithScopeAndLanguage(tgbotapi.NewBotCommandScopeDefault(), code, build(code)...)
		if _, err := api.Request(cfg); err != nil {
			logger.Warn("Failed to set localized bot commands", zap.String("lang", code), zap.Error(err))
		}
	}
	logger.Info("Successfully set bot commands")
}

func runPolling(ctx context.Context, api *tgbotapi.BotAPI, dispatcher *Dispatcher, logger *zap.Logger) error {
	// getUpdates 在设置了 webhook 时会失败
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		logger.Warn("Failed to delete webhook before polling", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)
	logger.Info("Bot started in polling mode, listening for updates...")

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			dispatcher.Dispatch(update)
		}
	}
}

func runWebhook(ctx context.Context, api *tgbotapi.BotAPI, cfg *config.Config, dispatcher *Dispatcher, logger *zap.Logger) error {
	path := WebhookPath(cfg.BotToken)
	wh, err := tgbotapi.NewWebhook(strings.TrimSuffix(cfg.Webhook.URL, "/") + path)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if _, err := api.Request(wh); err != nil {
		return fmt.Errorf("failed to register webhook: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(path, NewWebhookHandler(api.HandleUpdate, dispatcher.Dispatch, logger))
	server := &http.Server{
		Addr:              cfg.Webhook.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Bot started in webhook mode", zap.String("listen", cfg.Webhook.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("webhook server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Webhook server shutdown incomplete", zap.Error(err))
	}
	return nil
}

// NewWebhookHandler decodes one update per request and hands it to dispatch.
// Undecodable bodies get 400.
func NewWebhookHandler(parse func(*http.Request) (*tgbotapi.Update, error), dispatch func(tgbotapi.Update), logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		update, err := parse(r)
		if err != nil {
			logger.Warn("Invalid webhook update", zap.Error(err))
			http.Error(w, "Invalid update", http.StatusBadRequest)
			return
		}
		dispatch(*update)
		w.WriteHeader(http.StatusOK)
	})
}

func runJanitor(ctx context.Context, deps BotDeps) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := deps.Sessions.Sweep(now); n > 0 {
				deps.Logger.Info("Expired sessions evicted", zap.Int("count", n))
			}
			deps.Throttle.Sweep(now)
		}
	}
}
