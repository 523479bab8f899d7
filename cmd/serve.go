package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangamirror/internal/api"
	"github.com/brogergvhs/mangamirror/internal/config"
	"github.com/brogergvhs/mangamirror/internal/scheduler"
	"github.com/brogergvhs/mangamirror/internal/util"
)

var (
	flagAddr        string
	flagNoMigrate   bool
	flagNoScheduler bool
	flagOpenAdmin   bool
)

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic cache sweep",
		RunE:  runServe,
	}

	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (default from config, :8080)")
	serveCmd.Flags().BoolVar(&flagNoMigrate, "no-migrate", false, "skip applying database migrations on start")
	serveCmd.Flags().BoolVar(&flagNoScheduler, "no-sweep", false, "do not run the periodic cache sweep")
	serveCmd.Flags().BoolVar(&flagOpenAdmin, "insecure-open-admin", false, "serve admin endpoints without a token when none are configured")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := util.SignalContext(cmd.Context(), nil)
	defer cancel()

	a, err := newApp(ctx, config.Options{Addr: flagAddr, AllowOpenAdmin: flagOpenAdmin}, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cfg.ValidateServe(); err != nil {
		return err
	}

	if !flagNoMigrate {
		if err := a.migrate(); err != nil {
			return err
		}
	}

	pctx, pcancel := context.WithTimeout(ctx, 5*time.Second)
	if err := a.objects.Ping(pctx); err != nil {
		a.log.Warn("object storage not reachable", "err", err)
	}
	pcancel()

	var runner *scheduler.Runner
	if !flagNoScheduler {
		runner = scheduler.NewRunner(a.sweeper, scheduler.Config{
			Interval: a.cfg.SweepInterval,
			Limit:    a.cfg.SweepLimit,
			Logger:   a.log,
		})
		runner.Start(ctx)
	}

	srv := api.NewServer(a.ingest, a.pipeline, a.sweeper, api.Config{
		Addr:            a.cfg.Addr,
		AdminTokens:     a.cfg.AdminTokens,
		AllowOpenAdmin:  a.cfg.AllowOpenAdmin,
		ScrapePerMinute: a.cfg.ScrapePerMinute,
		SweepLimit:      a.cfg.SweepLimit,
		Logger:          a.log,
	})
	if len(a.cfg.AdminTokens) == 0 {
		a.log.Warn("allow_open_admin is set and no admin tokens are configured, admin endpoints are open")
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		a.log.Info("shutting down")
	}

	if err := srv.Shutdown(15 * time.Second); err != nil {
		a.log.Error("graceful shutdown failed", "err", err)
	}
	if runner != nil {
		runner.StopWait(5 * time.Second)
	}
	return nil
}
