package system

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/mimamori/internal/api"
	"github.com/julianstephens/mimamori/internal/cli"
	"github.com/julianstephens/mimamori/internal/logger"
	"github.com/julianstephens/mimamori/internal/models"
	"github.com/julianstephens/mimamori/internal/relay"
	"github.com/julianstephens/mimamori/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

// WatchCmd runs the anomaly scheduler, the relay worker and the family
// dashboard API until interrupted.
type WatchCmd struct {
	Ephemeral bool `help:"Keep all state in memory; nothing is persisted."`
	NoAPI     bool `name:"no-api" help:"Do not serve the HTTP API."`
	NoRelay   bool `name:"no-relay" help:"Do not run the relay worker."`
}

func (c *WatchCmd) Run(ctx *cli.Context) error {
	bg, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.run(bg, ctx)
}

func (c *WatchCmd) run(bg context.Context, ctx *cli.Context) error {
	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}
	svc, err := ctx.Service(bg)
	if err != nil {
		return err
	}

	log := logger.With("component", "watch")
	if c.Ephemeral {
		log.Warn("Running with in-memory storage; state is lost on exit")
	}

	unsubActivities := ctx.Store.SubscribeActivities(func(events []models.ActivityEvent) {
		if len(events) > 0 {
			log.Info("Activity recorded", "kind", events[0].Kind, "message", events[0].Message)
		}
	})
	defer unsubActivities()
	unsubAlerts := ctx.Store.SubscribeAlerts(func(alerts []models.Alert) {
		unread := 0
		for _, a := range alerts {
			if !a.IsRead {
				unread++
			}
		}
		log.Info("Alerts updated", "total", len(alerts), "unread", unread)
	})
	defer unsubAlerts()

	sched := scheduler.New(scheduler.Config{
		Period:       seconds(settings.DetectIntervalSec),
		InitialDelay: seconds(settings.InitialDelaySec),
		Cooldown:     seconds(settings.CooldownSec),
	}, scheduler.SystemClock, svc, ctx.Dispatcher())

	g, gctx := errgroup.WithContext(bg)

	sched.Start(gctx)
	g.Go(func() error {
		<-sched.Done()
		return nil
	})

	if !c.NoRelay {
		worker := relay.NewWorker(ctx.Store, relay.NewHTTPSender(ctx.RelayEndpoint), relay.WorkerConfig{Now: ctx.Now})
		worker.Start(gctx)
		g.Go(func() error {
			<-gctx.Done()
			drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			worker.Drain(drainCtx)
			return nil
		})
	}

	if !c.NoAPI {
		srv := &http.Server{
			Addr:              ctx.Addr,
			Handler:           api.NewRouter(api.Options{Service: svc}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("Serving family dashboard API", "addr", ctx.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("HTTP shutdown error", "error", err)
			}
			return nil
		})
	}

	fmt.Printf("👀 Watching (checks every %s). Press Ctrl+C to stop.\n", seconds(settings.DetectIntervalSec))
	err = g.Wait()
	log.Info("Watch stopped")
	return err
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
