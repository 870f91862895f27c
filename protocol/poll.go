package protocol

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/datazip-inc/streamcatchup/telemetry"
	"github.com/datazip-inc/streamcatchup/types"
	"github.com/datazip-inc/streamcatchup/utils"
	"github.com/datazip-inc/streamcatchup/utils/logger"
	"github.com/datazip-inc/streamcatchup/utils/safego"
)

// pollCmd keeps the projections caught up until interrupted
var pollCmd = &cobra.Command{
	Use:     "poll",
	Short:   "poll command",
	Long:    "poll runs a batch every poll_interval until SIGINT or SIGTERM, serving metrics on metrics_addr",
	PreRunE: requireConfig,
	RunE: func(cmd *cobra.Command, _ []string) (err error) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		metrics := telemetry.New()
		job, err := buildRunner(ctx, config, metrics)
		if err != nil {
			return err
		}
		defer func() {
			err = utils.ErrExecSequential(func() error { return err }, job.Close)
		}()

		if config.MetricsAddr != "" {
			server := serveMetrics(config.MetricsAddr, metrics)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			}()
		}

		poller := job.Poll(ctx, config.PollIntervalOrDefault())
		select {
		case <-ctx.Done():
			poller.Stop()
		case <-poller.Done():
		}
		poller.Wait()

		// a cancelled context is a clean exit; print what was reached
		projections, err := job.Projections(context.Background())
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), types.Message{
			Type:        types.ProjectionMessage,
			Stream:      job.StreamID(),
			Projections: projections,
		})
	},
}

func serveMetrics(addr string, metrics *telemetry.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	safego.Run(func() {
		logger.Infof("serving metrics on %s/metrics", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("metrics server stopped: %s", err)
		}
	})
	return server
}
