package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"example.com/reps/internal/api"
	"example.com/reps/internal/exercises"
	httptransport "example.com/reps/internal/transport/http"
)

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve validation reports, the exercise catalog and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.EnsureSchema(ctx); err != nil {
				return err
			}
			pub := a.publisher()
			defer pub.Close()

			v, err := a.validator(store, pub)
			if err != nil {
				return err
			}
			catalog, err := exercises.Load(a.cfg.ExerciseMapPath)
			if err != nil {
				return err
			}

			mux := http.NewServeMux()
			api.NewHandler(v, catalog, a.logger.Named("api")).RegisterRoutes(mux)
			mux.Handle("/metrics", promhttp.Handler())

			server := httptransport.NewServer(httptransport.DefaultServerConfig(a.cfg.HTTPAddress),
				httptransport.LogRequests(a.logger.Named("http"), mux))

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("reps listening", zap.String("address", a.cfg.HTTPAddress))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("graceful shutdown failed", zap.Error(err))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&a.cfg.HTTPAddress, "address", a.cfg.HTTPAddress, "listen address")
	return cmd
}
