package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/handlers"
	"sales-dashboard/internal/middleware"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/server"
	"sales-dashboard/internal/session"
	"sales-dashboard/internal/storage"
	"sales-dashboard/internal/theme"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfgFile string
	v       *viper.Viper
	cfg     *config.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "sales-dashboard",
		Short: "Server-rendered sales analytics dashboard",
		Long: `sales-dashboard renders the analytics backend as a web dashboard:
revenue and category charts, forecasts, CSV upload and transformation.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "YAML config file")
	flags.String("backend-url", "", "analytics backend base URL")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (json, text)")
	a.bind(flags.Lookup("backend-url"), "backend.base_url")
	a.bind(flags.Lookup("log-level"), "logger.level")
	a.bind(flags.Lookup("log-format"), "logger.format")

	root.AddCommand(a.serveCmd())
	root.AddCommand(a.exportCmd())
	root.AddCommand(versionCmd())
	return root
}

func (a *app) bind(flag *pflag.Flag, key string) {
	if err := a.v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag.Name, err))
	}
}

func (a *app) load(_ *cobra.Command, _ []string) error {
	cfg, err := config.LoadViper(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = observability.NewLogger(cfg.Logger)
	slog.SetDefault(a.logger)
	return nil
}

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard web server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ln, err := net.Listen("tcp", a.cfg.Address())
			if err != nil {
				return fmt.Errorf("listen %s: %w", a.cfg.Address(), err)
			}
			return serve(cmd.Context(), a.cfg, ln, a.logger)
		},
	}

	flags := cmd.Flags()
	flags.String("host", "", "listen host")
	flags.Int("port", 0, "listen port")
	flags.String("storage", "", "durable storage file")
	a.bind(flags.Lookup("host"), "server.host")
	a.bind(flags.Lookup("port"), "server.port")
	a.bind(flags.Lookup("storage"), "storage.path")
	return cmd
}

// serve runs the dashboard on ln until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, ln net.Listener, logger *slog.Logger) error {
	logger.Info("starting application",
		"version", handlers.Version,
		"backend", cfg.Backend.BaseURL,
	)

	store, err := storage.Open(cfg.Storage.Path, cfg.Storage.Passphrase)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	logger.Info("storage ready", "path", store.Path(), "encrypted", store.IsEncrypted())

	sessions := session.NewManager(session.Deps{
		Store:         store,
		BackendURL:    cfg.Backend.BaseURL,
		HTTPClient:    backendClient(cfg.Backend),
		ToastDuration: cfg.UI.ToastDuration,
		DefaultTheme:  theme.Mode(cfg.UI.DefaultTheme),
		Logger:        logger,
	}, cfg.Session)

	limiter := middleware.NewRateLimiter(cfg.Security)

	httpServer := &http.Server{
		Handler:      server.NewHandler(cfg, sessions, store, limiter, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)
	gracefulServer.Go("session-janitor", sessions.Run)
	gracefulServer.Go("rate-limit-janitor", limiter.Run)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		sessions.Close()
		return nil
	})
	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("flushing storage", "path", store.Path())
		return store.Flush()
	})

	if err := gracefulServer.Serve(ctx, ln); err != nil {
		return err
	}
	logger.Info("application stopped gracefully")
	return nil
}

func backendClient(cfg config.BackendConfig) *http.Client {
	if cfg.Timeout == 0 {
		return http.DefaultClient
	}
	return &http.Client{Timeout: cfg.Timeout}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		// The version needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(handlers.Version)
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
