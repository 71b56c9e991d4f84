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

	"github.com/spf13/cobra"

	"github.com/warp/production-report/api"
	"github.com/warp/production-report/report"
)

func newReportCommand(a *app) *cobra.Command {
	var writeXLSX bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the report for the records stored so far",
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()

			ctx := cmd.Context()
			table, err := a.pipeline.Report(ctx)
			if writeXLSX && err == nil {
				table, err = a.pipeline.WriteReport(ctx)
			}
			if err != nil {
				a.log.Error().Err(err).Msg("Failed to build report")
				return err
			}
			report.Render(cmd.OutOrStdout(), table)
			return nil
		},
	}
	cmd.Flags().BoolVar(&writeXLSX, "xlsx", false, "also write the report workbook")
	return cmd
}

func newResetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete every stored record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()
			return a.pipeline.Reset(cmd.Context())
		},
	}
}

func newServeCommand(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()
			if port == 0 {
				port = a.cfg.Server.Port
			}
			return a.serve(port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default server.port)")
	return cmd
}

// serve runs the API until SIGINT/SIGTERM, then drains active requests.
func (a *app) serve(port int) error {
	handler := api.NewHandler(a.pipeline, a.store, a.log)
	router := api.NewRouter(handler)

	handler.Scheduler.CheckInterval = a.cfg.Server.ReconcileInterval
	handler.Scheduler.Start()
	defer handler.Scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Int("port", port).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}

	a.log.Info().Msg("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	a.log.Info().Msg("Server stopped")
	return nil
}
