package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callflow-platform/internal/audit"
	"callflow-platform/internal/auth"
	"callflow-platform/internal/calls"
	"callflow-platform/internal/config"
	"callflow-platform/internal/email"
	"callflow-platform/internal/flow"
	"callflow-platform/internal/httpapi"
	"callflow-platform/internal/inbound"
	"callflow-platform/internal/leads"
	"callflow-platform/internal/orgs"
	"callflow-platform/internal/recording"
	"callflow-platform/internal/reporting"
	"callflow-platform/internal/telephony"
	"callflow-platform/internal/tier"
	"callflow-platform/internal/transcribe"
	"callflow-platform/pkg/logger"
	"callflow-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	voice, err := telephony.NewTwilioClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.RequestTimeout)
	if err != nil {
		log.Error("telephony init failed", "err", err)
		os.Exit(1)
	}

	var transcriber transcribe.Transcriber = transcribe.Disabled{}
	if cfg.Transcribe.Endpoint != "" {
		transcriber = transcribe.NewHTTPClient(cfg.Transcribe.Endpoint, cfg.Transcribe.APIKey, cfg.Transcribe.RequestTimeout)
	}

	notifier := email.NewSender(email.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		From:     cfg.SMTP.From,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
	}, log)

	gate := tier.StaticGate{}

	orgSvc := orgs.NewService(orgs.NewPostgresRepo(db), gate)
	callSvc := calls.NewService(calls.NewPostgresRepo(db), log)
	leadSvc := leads.NewService(leads.NewPostgresRepo(db), callSvc, notifier, log)
	flowStore := flow.NewConfigStore(flow.NewPostgresRepo(db), rdb, orgSvc, gate, log)
	trail := audit.NewService(audit.NewPostgresRepo(db))
	engine := flow.NewEngine(flowStore, callSvc, leadSvc, trail, log)
	inboundRouter := inbound.NewRouter(orgSvc, leadSvc, gate, log, cfg.App.PublicBaseURL)
	recordingProc := recording.NewProcessor(callSvc, leadSvc, orgSvc, flowStore, transcriber, gate, log)
	reportSvc := reporting.NewService(reporting.NewPostgresRepo(db))

	limiter := httpapi.RedisLimiter{RDB: rdb}

	api := httpapi.Handlers{
		Auth:          authManager,
		Voice:         voice,
		Orgs:          orgSvc,
		Calls:         callSvc,
		Flows:         flowStore,
		Audit:         trail,
		Reports:       reportSvc,
		Gate:          gate,
		Limiter:       limiter,
		Log:           log,
		PublicBaseURL: cfg.App.PublicBaseURL,
		DB:            db,
		RDB:           rdb,
	}
	hooks := httpapi.WebhookHandlers{
		Inbound:    inboundRouter,
		Engine:     engine,
		Recordings: recordingProc,
		Limiter:    limiter,
		Log:        log,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, api, hooks, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
