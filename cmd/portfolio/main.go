package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Zachkp/portfolio/internal/admin"
	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/contact"
	"github.com/Zachkp/portfolio/internal/inbox"
	"github.com/Zachkp/portfolio/internal/logging"
	"github.com/Zachkp/portfolio/internal/notify"
	"github.com/Zachkp/portfolio/internal/privacy"
	"github.com/Zachkp/portfolio/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Portfolio site backend",
	Long: `Serves the portfolio site and its contact endpoint. Submissions are validated,
logged and forwarded to the channels listed in NOTIFIERS.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		notifier, err := notify.Build(a.cfg, notify.Deps{
			Logger:     a.logger,
			HTTPClient: notify.NewHTTPClient(a.cfg.NotifyTimeout),
			Inbox:      a.store,
		})
		if err != nil {
			return err
		}

		svc := contact.NewService(notifier, a.logger, contact.WithTimeout(a.cfg.NotifyTimeout))
		deps := server.Deps{
			Contact: contact.NewHandler(svc, a.hasher, a.logger),
			Hasher:  a.hasher,
			Logger:  a.logger,
		}
		if a.store != nil {
			deps.Admin, err = admin.New(a.cfg.Admin, a.store, a.hasher, a.logger, admin.Options{
				Production: a.cfg.IsProduction(),
				Retention:  a.cfg.Inbox.Retention,
			})
			if err != nil {
				return err
			}
			a.logger.Info("admin access available at /admin/login")
		}

		a.logger.Info("starting portfolio",
			zap.String("env", a.cfg.Environment),
			zap.Strings("notifiers", a.cfg.Notifiers),
		)
		return server.New(a.cfg, deps).Run(ctx)
	},
}

// app holds what every subcommand needs.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	hasher *privacy.Hasher
	store  *inbox.Store
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
	})
	if err != nil {
		return nil, err
	}

	if cfg.PrivacySalt == "" {
		logger.Warn("PRIVACY_SALT not set; client hashes will change on restart")
	}
	hasher, err := privacy.NewHasher(cfg.PrivacySalt)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, hasher: hasher}
	if cfg.HasNotifier(config.NotifierInbox) {
		if a.store, err = openInbox(ctx, cfg); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func openInbox(ctx context.Context, cfg *config.Config) (*inbox.Store, error) {
	store, err := inbox.Open(ctx, cfg.Inbox.Driver, cfg.Inbox.DSN)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// inbox returns the open store, opening it on demand for maintenance
// commands run while the inbox channel is not enabled.
func (a *app) inbox(ctx context.Context) (*inbox.Store, error) {
	if a.store == nil {
		store, err := openInbox(ctx, a.cfg)
		if err != nil {
			return nil, err
		}
		a.store = store
	}
	return a.store, nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("failed to close inbox", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
