package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/greatsami/g-drive-clone/logger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Drain the replication queue until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.inProcessQueue() {
			return errors.New("the memory queue is only reachable from serve; use a redis queue for standalone workers")
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv := &http.Server{Addr: a.cfg.Replication.MetricsAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.L().Warn("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()

		a.services.Workers.Run(ctx)
		return nil
	},
}

var replicateCmd = &cobra.Command{
	Use:   "replicate <file-id>...",
	Short: "Replicate the given files now, bypassing the queue",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		var failed int
		for _, raw := range args {
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid file id %q", raw)
			}
			if err := a.services.Replication.Replicate(ctx, uint(id)); err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "file %d: %v\n", id, err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "file %d: ok\n", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(args))
		}
		return nil
	},
}

var requeueOlderThan time.Duration

var requeueCmd = &cobra.Command{
	Use:   "requeue",
	Short: "Push replication units for files still pending",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.services.Replication.EnqueuePending(ctx, requeueOlderThan)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "queued %d files\n", n)
		return nil
	},
}

func init() {
	requeueCmd.Flags().DurationVar(&requeueOlderThan, "older-than", 0, "only files created before now minus this duration")
}
