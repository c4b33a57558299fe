package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/greatsami/g-drive-clone/database"
	"github.com/greatsami/g-drive-clone/handlers"
	"github.com/greatsami/g-drive-clone/logger"
	"github.com/greatsami/g-drive-clone/middleware"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveWithWorkers bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the cleanup sweeps",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := database.AutoMigrate(database.DB); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		handlers.SetServices(a.services)
		a.services.Cleanup.StartCleanupWorkers(ctx)

		workersDone := make(chan struct{})
		if serveWithWorkers || a.inProcessQueue() {
			go func() {
				a.services.Workers.Run(ctx)
				close(workersDone)
			}()
		} else {
			close(workersDone)
		}

		if a.cfg.Log.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		r := gin.New()
		r.Use(gin.Recovery(), middleware.RequestLogger())
		middleware.SetupPrometheus(r)
		handlers.RegisterRoutes(r)

		srv := &http.Server{
			Addr:    fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port),
			Handler: r,
		}
		errCh := make(chan error, 1)
		go func() {
			logger.L().Info("server listening", zap.String("addr", srv.Addr))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
		case <-ctx.Done():
			logger.L().Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.L().Warn("server shutdown failed", zap.Error(err))
			}
		}
		stop()
		<-workersDone
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveWithWorkers, "with-workers", false, "also run replication workers in this process")
}
