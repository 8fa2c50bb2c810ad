package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-forms-service/internal/app"
	"quiz-forms-service/internal/config"
	"quiz-forms-service/internal/infra/memory"
	"quiz-forms-service/internal/infra/postgres"
	infraredis "quiz-forms-service/internal/infra/redis"
	transport "quiz-forms-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwtSecret not configured")
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store app.Store
	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return err
		}
		conn := postgres.NewConnector(postgresOptions(cfg))
		defer conn.Close()
		store = postgres.NewStore(conn)
	} else {
		logger.Warn("postgres url not configured, using in-memory store")
		store = memory.NewStore()
	}

	cacheTTL := config.TTLDuration(cfg.Cache.TTL, time.Minute)
	feed := app.NewResponseFeed()
	var (
		cache    app.PublicQuizCache
		notifier app.CountNotifier = feed
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		cache = infraredis.NewPublicQuizCache(client, config.TTLDuration(cfg.Redis.TTL, cacheTTL), logger)

		relay := infraredis.NewCountRelay(client, feed, logger)
		notifier = relay
		go func() {
			if err := relay.Run(ctx, nil); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("count relay stopped", "err", err)
			}
		}()
	} else {
		cache = memory.NewPublicQuizCache(cacheTTL)
	}

	identity := app.NewIdentityService(store, logger)
	quizzes := app.NewQuizService(store, cache, logger)
	responses := app.NewResponseService(store, cache, notifier, logger)
	auth := transport.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, identity, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	transport.NewHandler(quizzes, responses, auth, logger).Register(mux)
	transport.NewWSHandler(quizzes, feed, auth, logger).Register(mux)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		// WriteTimeout applies to hijacked websocket connections too, so keep it unset when empty.
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 0),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting quiz service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
