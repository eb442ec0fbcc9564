package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/avolkov/webtracker/internal/config"
	"github.com/avolkov/webtracker/internal/httpapi"
	apimw "github.com/avolkov/webtracker/internal/httpapi/middleware"
	"github.com/avolkov/webtracker/internal/logging"
	"github.com/avolkov/webtracker/internal/notify"
	"github.com/avolkov/webtracker/internal/probe"
	"github.com/avolkov/webtracker/internal/repo"
	"github.com/avolkov/webtracker/internal/repo/memory"
	"github.com/avolkov/webtracker/internal/repo/postgres"
	"github.com/avolkov/webtracker/internal/repo/sqlite"
	"github.com/avolkov/webtracker/internal/retry"
	"github.com/avolkov/webtracker/internal/schedule"
	"github.com/avolkov/webtracker/internal/tracker"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewLogger(cfg.LogDir, os.Getenv("DEBUG") != "")
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resources, logs, closeStore, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store_open_failed", zap.Error(err))
	}
	defer closeStore()

	alertRetry := retry.Policy{
		Attempts: cfg.NotifyRetryAttempts,
		Backoff:  retry.Linear(cfg.NotifyRetryBackoff),
	}

	var notifier notify.Notifier
	var channels notify.Multi
	if tg := notify.NewTelegram(cfg.TelegramBotToken, cfg.AdminChatIDs, alertRetry, logger); tg != nil {
		channels = append(channels, tg)
	}
	if sl := notify.NewSlack(cfg.SlackWebhook); sl != nil {
		channels = append(channels, sl)
	}
	if len(channels) > 0 {
		notifier = channels
	} else {
		logger.Warn("alerts_disabled", zap.String("reason", "no telegram token or slack webhook configured"))
	}

	executor := probe.NewExecutor(logger, probe.MailerConfig{
		TestEmail:     cfg.TestEmail,
		AdminEmail:    cfg.AdminEmail,
		Code:          cfg.MailerCode,
		VerifySiteURL: cfg.MailerVerifySiteURL,
		AdminSiteURL:  cfg.MailerAdminSiteURL,
	})

	registry := schedule.NewRegistry(logger)
	defer registry.StopAll()

	tr := tracker.New(logger, resources, logs, registry, executor, notifier, cfg.AdminUserIDs)
	if err := tr.ScheduleAll(ctx); err != nil {
		logger.Fatal("schedule_all_failed", zap.Error(err))
	}

	api := httpapi.NewServer(logger, tr)
	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: api.Router(keys, cfg.AllowedOrigins, cfg.PublicRPM, cfg.PublicBurst, cfg.AdminRPM, cfg.AdminBurst),
	}

	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("api_serve_failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.ResourceStore, repo.LogStore, func(), error) {
	switch {
	case cfg.DatabaseURL != "":
		st, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, nil, nil, err
		}
		logger.Info("store_postgres")
		return st, st, st.Close, nil
	case cfg.SQLitePath != "":
		st, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("store_sqlite", zap.String("path", cfg.SQLitePath))
		return st, st, func() { _ = st.Close() }, nil
	default:
		logger.Warn("store_memory", zap.String("reason", "no DATABASE_URL or SQLITE_PATH; data is lost on restart"))
		st := memory.New()
		return st, st, func() {}, nil
	}
}
