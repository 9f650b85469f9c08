package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/go-i2p/logger"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-i2p/wgadmin/lib/api"
	"github.com/go-i2p/wgadmin/lib/metrics"
	"github.com/go-i2p/wgadmin/version"
)

var log = logger.GetGoI2PLogger()

func newServeCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides api.listen)")
	return cmd
}

// serve runs the API until ctx is canceled.
func (a *app) serve(ctx context.Context, listen string) error {
	cfg, engine, err := a.openEngine()
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.API.Listen = listen
	}
	if cfg.API.Token == "" {
		log.Warn("api.token is empty; the API accepts unauthenticated requests")
	}

	srv, err := api.New(api.ConfigFrom(cfg.API), engine)
	if err != nil {
		return err
	}
	ln, err := srv.Listen()
	if err != nil {
		srv.Close()
		return err
	}

	metrics.RecordStartTime()
	log.WithField("version", version.Full()).
		WithField("addr", ln.Addr().String()).
		Info("wgadmin serving")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ln)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.API.ShutdownTimeout)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})
	return g.Wait()
}
