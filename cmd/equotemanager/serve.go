package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/bher20/equotemanager/internal/api"
	"github.com/bher20/equotemanager/internal/auth"
	"github.com/bher20/equotemanager/internal/cron"
	"github.com/bher20/equotemanager/internal/quotes"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	servePort       int
	serveWithWorker bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and calculator UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		authSvc, err := auth.NewService(env.Store)
		if err != nil {
			return fmt.Errorf("init auth: %w", err)
		}
		quoteSvc := quotes.NewService(env.Store, env.Rates, env.quoteOptions())
		defer quoteSvc.Wait()

		if serveWithWorker {
			w := newWorker(env)
			go func() {
				if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					zap.L().Error("follow-up worker stopped", zap.Error(err))
				}
			}()
		}

		port := cfg.Server.Port
		if servePort > 0 {
			port = servePort
		}
		srv := &http.Server{
			Addr: fmt.Sprintf(":%d", port),
			Handler: api.NewRouter(api.Deps{
				Store:  env.Store,
				Rates:  env.Rates,
				Quotes: quoteSvc,
				Auth:   authSvc,
				Email:  env.Email,
			}, api.Config{
				AllowedOrigins:   cfg.Server.AllowedOrigins,
				SubmitRPS:        cfg.Server.SubmitRPS,
				SubmitBurst:      cfg.Server.SubmitBurst,
				FollowupInterval: cfg.Worker.Interval,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("equotemanager listening", zap.String("addr", srv.Addr))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		zap.L().Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func newWorker(env *appEnv) *cron.Worker {
	var alerter cron.Alerter
	if env.Alerter != nil {
		alerter = env.Alerter
	}
	return cron.NewWorker(env.Store, env.Email, alerter, cron.Config{
		Interval:   cfg.Worker.Interval,
		StaleAfter: cfg.Worker.StaleAfter,
		NotifyTo:   cfg.Notify.To,
	})
}

var workerOnce bool

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the stale-lead follow-up worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		w := newWorker(env)
		if workerOnce {
			rep, err := w.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stale=%d reminded=%d skipped=%t\n", rep.Stale, rep.Reminded, rep.Skipped)
			return nil
		}
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides server.port)")
	serveCmd.Flags().BoolVar(&serveWithWorker, "with-worker", false, "also run the follow-up worker in this process")
	workerCmd.Flags().BoolVar(&workerOnce, "once", false, "run a single follow-up pass and exit")
	rootCmd.AddCommand(serveCmd, workerCmd)
}
