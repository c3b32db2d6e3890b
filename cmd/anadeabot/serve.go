package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vintoniuk/anadeabot/internal/server"
	"github.com/vintoniuk/anadeabot/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve conversations over HTTP",
	Long: `Starts the HTTP API. Conversations are addressed by chat id:

  POST   /conversations/{id}/start
  POST   /conversations/{id}/messages   {"text": "..."}
  GET    /conversations/{id}
  DELETE /conversations/{id}

Health and Prometheus metrics are served on /healthz and /metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides http.addr)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	s, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		s.HTTP.Addr = addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Init(ctx, s.Telemetry, logger)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, s, logger, providers.Enabled())
	if err != nil {
		return err
	}
	defer a.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	opts := []server.Option{
		server.WithRegistry(reg),
		server.WithTurnTimeout(s.HTTP.TurnTimeout),
		server.WithLogger(logger),
	}
	for name, check := range a.checks {
		opts = append(opts, server.WithCheck(name, check))
	}
	srv := server.New(a.bot, opts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, s.HTTP.Addr, s.HTTP.ShutdownTimeout)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.HTTP.ShutdownTimeout)
		defer cancel()
		return providers.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
