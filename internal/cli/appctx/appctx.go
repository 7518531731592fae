// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, logger setup, client dialing and the run
// journal to reduce boilerplate across commands.
package appctx

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rcmelo/snkbridge/internal/config"
	"github.com/rcmelo/snkbridge/internal/journal"
	"github.com/rcmelo/snkbridge/internal/odoo"
	"github.com/rcmelo/snkbridge/internal/sankhya"
)

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration
	Config *config.Config

	// Log is the configured logger, writing to stderr
	Log *logrus.Logger

	// Odoo is the authenticated target client (nil unless NeedsOdoo)
	Odoo *odoo.Client

	// Sankhya is the authenticated source client (nil unless NeedsSankhya)
	Sankhya *sankhya.Client

	// Journal is the opened run ledger (nil unless NeedsJournal)
	Journal *journal.Journal
}

// Close releases resources held by the App. Safe to call multiple times.
func (a *App) Close() {
	if a.Journal != nil {
		a.Journal.Close()
		a.Journal = nil
	}
}

// Options configures the bootstrap behavior.
type Options struct {
	// NeedsOdoo dials and authenticates the Odoo client.
	NeedsOdoo bool

	// NeedsSankhya logs into the Sankhya gateway.
	NeedsSankhya bool

	// NeedsJournal opens (and migrates) the run ledger.
	NeedsJournal bool
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
// Resources are released automatically when the wrapped function returns.
func WithApp(opts Options, fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(app, cmd, args)
	}
}

// Bootstrap initializes the App according to the given options.
// Callers are responsible for calling App.Close() when done.
func Bootstrap(cmd *cobra.Command, opts Options) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Flag overrides
	if f := cmd.Flag("log-level"); f != nil && f.Value.String() != "" {
		cfg.LogLevel = f.Value.String()
	}
	if f := cmd.Flag("output"); f != nil && f.Value.String() != "" {
		cfg.Output = f.Value.String()
	}
	if f := cmd.Flag("journal"); f != nil && f.Value.String() != "" {
		cfg.JournalPath = f.Value.String()
	}

	app := &App{
		Config: cfg,
		Log:    newLogger(cmd.ErrOrStderr(), cfg.LogLevel),
	}

	if opts.NeedsOdoo {
		if err := cfg.ValidateOdoo(); err != nil {
			return nil, err
		}
		client, err := odoo.Dial(odoo.Config{
			URL:      cfg.OdooURL,
			Database: cfg.OdooDB,
			Username: cfg.OdooUser,
			Password: cfg.OdooPassword,
		})
		if err != nil {
			return nil, err
		}
		app.Odoo = client
		app.Log.WithFields(logrus.Fields{
			"url": cfg.OdooURL,
			"db":  cfg.OdooDB,
			"uid": client.UID(),
		}).Debug("odoo connected")
	}

	if opts.NeedsSankhya {
		if err := cfg.ValidateSankhya(); err != nil {
			app.Close()
			return nil, err
		}
		client := sankhya.NewClient(sankhya.Config{
			BaseURL:  cfg.SankhyaBaseURL,
			AppKey:   cfg.SankhyaAppKey,
			Token:    cfg.SankhyaToken,
			Username: cfg.SankhyaUser,
			Password: cfg.SankhyaPassword,
		})
		if err := client.Login(cmd.Context()); err != nil {
			app.Close()
			return nil, err
		}
		app.Sankhya = client
		app.Log.WithField("url", cfg.SankhyaBaseURL).Debug("sankhya authenticated")
	}

	if opts.NeedsJournal {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Journal = j
	}

	return app, nil
}

func newLogger(w io.Writer, level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}
