package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"pennytrail/internal/account"
	"pennytrail/internal/auth"
	"pennytrail/internal/config"
	"pennytrail/internal/handlers"
	"pennytrail/internal/logging"
	"pennytrail/internal/metrics"
	"pennytrail/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// NewRootCmd creates the server command. Flags override environment values.
func NewRootCmd() *cobra.Command {
	v := config.NewViper()
	var envFile string

	cmd := &cobra.Command{
		Use:           "pennytrail-server",
		Short:         "Penny Trail personal finance API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return config.LoadEnvFile(envFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				cmd.PrintErrln("Error:", err)
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat))
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional .env file to load")
	cmd.Flags().Int("port", 5000, "HTTP listen port")
	cmd.PersistentFlags().String("db", "pennytrail.db", "database connection string (SQLite path or postgres:// URL)")
	mustBind(v.BindPFlag(config.KeyPort, cmd.Flags().Lookup("port")))
	mustBind(v.BindPFlag(config.KeyDatabase, cmd.PersistentFlags().Lookup("db")))

	cmd.AddCommand(NewMigrateCmd(v))
	return cmd
}

func mustBind(err error) {
	if err != nil {
		panic(err)
	}
}

// app is the assembled service.
type app struct {
	store    storage.Store
	handlers *handlers.Handlers
	metrics  *metrics.Metrics
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}

	m := metrics.New()
	accounts := account.NewService(store, auth.NewBcryptHasher(auth.WithCost(cfg.BcryptCost)), tokens)
	h := handlers.NewHandlers(accounts, store, auth.NewGuard(tokens, store), m, cfg.Production())
	return &app{store: store, handlers: h, metrics: m}, nil
}

// setupRouter wraps the API routes in the shared middleware chain.
func setupRouter(a *app, cfg *config.Config, logger zerolog.Logger) http.Handler {
	var h http.Handler = a.metrics.Middleware(a.handlers.Routes())
	h = handlers.CORS(handlers.DefaultCORSConfig(cfg.CORSOrigins))(h)
	h = middleware.Recoverer(h)
	h = logging.Middleware(logger)(h)
	h = middleware.RealIP(h)
	h = middleware.RequestID(h)
	return h
}

func serve(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		return err
	}
	defer a.store.Close()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           setupRouter(a, cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("environment", cfg.Environment).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return oops.Code("SERVER_FAILED").Wrap(err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
