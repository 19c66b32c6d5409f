// Package bot wires the intake conversation to the Telegram runtime.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"log/slog"

	"github.com/m3rciful/intakebot/archive"
	"github.com/m3rciful/intakebot/core/bootstrap"
	corecmd "github.com/m3rciful/intakebot/core/cmd"
	coreconfig "github.com/m3rciful/intakebot/core/config"
	"github.com/m3rciful/intakebot/core/logger"
	"github.com/m3rciful/intakebot/core/outbound"
	coretelegram "github.com/m3rciful/intakebot/core/telegram"
	"github.com/m3rciful/intakebot/core/telegram/commands"
	"github.com/m3rciful/intakebot/core/telegram/router"
	"github.com/m3rciful/intakebot/intake"
	"github.com/m3rciful/intakebot/mailer"
	"github.com/m3rciful/intakebot/photostore"
)

// App holds the assembled intake bot.
type App struct {
	cfg     *coreconfig.Config
	db      *sqlx.DB
	machine *intake.Machine
	photos  *photostore.Store

	dispatcher *outbound.Dispatcher

	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

type configCarrier struct {
	cfg *coreconfig.Config
}

// CoreConfig returns the embedded core configuration.
func (c configCarrier) CoreConfig() *coreconfig.Config {
	return c.cfg
}

// LoadConfig reads and validates configuration for the runner.
func LoadConfig(path string) (corecmd.ConfigCarrier, error) {
	cfg, err := coreconfig.Load(path)
	if err != nil {
		return nil, err
	}
	return configCarrier{cfg: cfg}, nil
}

// Bootstrap initializes infrastructure and assembles the application.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg := carrier.CoreConfig()

	result, err := bootstrap.Run(bootstrap.Options{Config: cfg})
	if err != nil {
		return nil, err
	}

	return New(cfg, result.DB)
}

// New assembles the application from prepared infrastructure. db may be nil
// when the record archive is not configured.
func New(cfg *coreconfig.Config, db *sqlx.DB) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bot: nil config provided")
	}

	photos, err := photostore.New(cfg.Intake.PhotoDir)
	if err != nil {
		return nil, fmt.Errorf("bot: photo store init failed: %w", err)
	}

	mail, err := mailer.New(cfg.Mail)
	if err != nil {
		return nil, fmt.Errorf("bot: mailer init failed: %w", err)
	}

	app := &App{
		cfg:        cfg,
		db:         db,
		photos:     photos,
		dispatcher: outbound.NewDispatcher(outbound.Options{}),
	}

	var archiver intake.Archiver
	if db != nil {
		archiver = archive.New(db)
	}

	app.machine = intake.NewMachine(intake.Config{
		Notifier: mail,
		Releaser: photos,
		Archiver: archiver,
		Enqueue: func(ctx context.Context, action string, run func() error) {
			if err := app.dispatcher.Enqueue(ctx, action, "notification", run); err != nil {
				logger.Warn(ctx, "intake", "enqueue.fallback",
					slog.String("action", action),
					slog.String("err", err.Error()),
				)
				_ = run()
			}
		},
	})

	return app, nil
}

// TelegramRunOptions builds runtime options for the shared runner.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()

	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Start a new request",
	})
	reg.RegisterCommand("/skip", commands.Command{
		Handler:     a.handleSkip,
		Description: "Finish without more photos",
	})

	reg.SetTextFallback(a.handleText)
	reg.SetPhotoFallback(a.handlePhoto)

	routes := router.CommandRoutes(reg)
	routes = append(routes, router.MessageRoutes(reg)...)

	return coretelegram.RunOptions{
		Config:      a.cfg,
		Registry:    reg,
		Dispatcher:  a.dispatcher,
		Middlewares: coretelegram.DefaultMiddlewares(),
		Routes:      routes,
		OnStart: func(ctx context.Context, _ coretelegram.Runtime) error {
			a.startSweeper()
			return nil
		},
		OnStop: func(ctx context.Context, _ coretelegram.Runtime) error {
			a.stopSweeper()
			if a.db != nil {
				return a.db.Close()
			}
			return nil
		},
	}, nil
}

// startSweeper launches the retention loop when a retention window is set.
func (a *App) startSweeper() {
	hours := a.cfg.Intake.RetentionHours
	if hours <= 0 {
		return
	}
	retention := time.Duration(hours) * time.Hour

	ctx, cancel := context.WithCancel(logger.Background())
	a.sweepCancel = cancel
	a.sweepDone = make(chan struct{})

	go func() {
		defer close(a.sweepDone)
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := a.machine.Store().RemoveIfFinishedBefore(time.Now().Add(-retention))
				if removed > 0 {
					logger.Info(ctx, "intake", "session.sweep",
						slog.Int("removed", removed),
						slog.Int("remaining", a.machine.Store().Len()),
					)
				}
			}
		}
	}()
}

func (a *App) stopSweeper() {
	if a.sweepCancel == nil {
		return
	}
	a.sweepCancel()
	<-a.sweepDone
	a.sweepCancel = nil
	a.sweepDone = nil
}
