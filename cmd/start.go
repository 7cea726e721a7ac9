package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"reward-settler/core/logger"
	"reward-settler/core/middleware/auth"
	"reward-settler/core/middleware/rayid"
	"reward-settler/core/storage"
	"reward-settler/feature/reward"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// @title Reward Settler API
// @version 1.0
// @description Operator API for reward settlement and reconciliation.
// @host localhost:8080
// @BasePath /

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the reward settler server",
	Long:  `Starts the operator HTTP server and the background settlement loop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Build shared components (config, logger, store, ledger client)
		d, err := buildDeps()
		if err != nil {
			return err
		}
		logg := d.logger
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 2. Initialize audit archive storage (optional: the server runs
		// without it, exports just fail with a clear error)
		var exporter *reward.Exporter
		if client, err := storage.NewClient(d.cfg.Storage); err != nil {
			logg.Warn("Optional audit storage unavailable", zap.Error(err))
		} else {
			exporter = reward.NewExporter(client, d.cfg.Storage.Bucket, d.store, logg)
		}

		svc := d.buildService(exporter)

		// 3. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true, // We log our own startup message
		})

		// Middleware: ray ID first so everything is traceable
		app.Use(rayid.New())

		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// Auth protects the whole operator surface
		app.Use(auth.New(auth.Config{ApiKey: d.cfg.Server.ApiKey}))

		// 4. Register routes
		reward.NewHandler(svc).RegisterRoutes(app)

		// 5. Background settlement loop
		workerCtx, stopWorker := context.WithCancel(context.Background())
		defer stopWorker()
		go func() {
			logg.Info("Starting settlement loop",
				zap.Duration("interval", d.cfg.Settle.Interval()))
			if err := d.worker.Run(workerCtx); err != nil && workerCtx.Err() == nil {
				logg.Error("Settlement loop stopped", zap.Error(err))
			}
		}()

		// 6. Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", d.cfg.Server.Port))
			if err := app.Listen(":" + d.cfg.Server.Port); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 7. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		stopWorker()
		_ = app.Shutdown()
		return nil
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
