package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"minibridge/internal/ics"
	appLog "minibridge/internal/log"
	"minibridge/internal/web"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(g *globalFlags) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload page and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.setup()
			if err != nil {
				return err
			}
			if listen != "" {
				a.cfg.Listen = listen
			}
			return serve(cmd.Context(), a)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config)")
	return cmd
}

// schedulePurge registers the parse cache purge on sched. An empty spec
// schedules nothing.
func schedulePurge(sched *cron.Cron, spec string, parser *ics.Parser) error {
	if spec == "" {
		return nil
	}
	if _, err := sched.AddFunc(spec, parser.Purge); err != nil {
		return fmt.Errorf("schedule cache purge %q: %w", spec, err)
	}
	return nil
}

func serve(parent context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := cron.New()
	if err := schedulePurge(sched, a.cfg.Cache.Purge, a.parser); err != nil {
		return err
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	srv := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           web.NewServer(a.cfg, a.svc).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("minibridge listening", "addr", srv.Addr, "version", version, "mode", a.cfg.Extraction.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	appLog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	appLog.Info("minibridge stopped")
	return nil
}
