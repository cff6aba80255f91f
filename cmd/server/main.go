package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Skotchmaster/blog/internal/config"
	"github.com/Skotchmaster/blog/internal/events"
	"github.com/Skotchmaster/blog/internal/handlers"
	"github.com/Skotchmaster/blog/internal/hash"
	"github.com/Skotchmaster/blog/internal/logging"
	"github.com/Skotchmaster/blog/internal/metrics"
	loggingmw "github.com/Skotchmaster/blog/internal/middleware/logging"
	"github.com/Skotchmaster/blog/internal/repo"
	"github.com/Skotchmaster/blog/internal/search"
	"github.com/Skotchmaster/blog/internal/service"
	"github.com/Skotchmaster/blog/internal/tokens"
	httpserver "github.com/Skotchmaster/blog/internal/transport/http"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	ctx := logging.IntoContext(context.Background(), logger)

	db, err := config.InitDB(ctx, cfg)
	if err != nil {
		logger.Error("db_init_failed", "error", err)
		os.Exit(1)
	}

	hasher, err := hash.New(cfg.PasswordHash)
	if err != nil {
		logger.Error("hasher_init_failed", "error", err)
		os.Exit(1)
	}
	if hash.Unsalted(hasher) {
		logger.Warn("unsalted_password_hash", "hint", "set PASSWORD_HASH=bcrypt for new deployments")
	}

	tk, err := tokens.New(tokens.Config{AccessSecret: cfg.AccessSecret, RefreshSecret: cfg.RefreshSecret})
	if err != nil {
		logger.Error("tokens_init_failed", "error", err)
		os.Exit(1)
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		if err := events.EnsureTopics(cfg.KafkaBrokers[0], events.TopicUsers, events.TopicPosts); err != nil {
			logger.Warn("kafka_topics_not_ensured", "error", err)
		}
		publisher = events.NewProducer(cfg.KafkaBrokers)
	}

	var index *search.Index
	if cfg.ESURL != "" {
		es, err := search.NewClient(ctx, search.ClientConfig{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword})
		if err != nil {
			logger.Error("es_init_failed", "error", err)
			os.Exit(1)
		}
		index = search.New(es, cfg.ESIndex)
		if err := index.Ensure(ctx); err != nil {
			logger.Error("es_index_failed", "index", cfg.ESIndex, "error", err)
			os.Exit(1)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	store := repo.New(db)

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger, collector))

	deps := httpserver.Deps{
		Users: &handlers.UserHandler{
			Svc:     &service.UserService{Repo: store, Hasher: hasher, Tokens: tk, Events: publisher, Index: index},
			Metrics: collector,
		},
		Posts:   &handlers.PostHandler{Svc: &service.PostService{Repo: store, Events: publisher, Index: index}},
		Tokens:  tk,
		Metrics: metrics.Handler(reg),
		Ready: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("server_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	go func() {
		<-quit
		logger.Warn("force_exit")
		os.Exit(1)
	}()

	logger.Info("shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db_close_error", "error", err)
		}
	} else {
		logger.Error("db_handle_error", "error", err)
	}

	if err := publisher.Close(); err != nil {
		logger.Error("kafka_close_error", "error", err)
	}

	logger.Info("shutdown_complete")
}
