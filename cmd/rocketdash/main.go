package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/swelljoe/rocketdash/internal/config"
	"github.com/swelljoe/rocketdash/internal/db"
	"github.com/swelljoe/rocketdash/internal/handlers"
	"github.com/swelljoe/rocketdash/internal/logging"
	"github.com/swelljoe/rocketdash/internal/simulator"
	"github.com/swelljoe/rocketdash/internal/telemetry"
	"github.com/swelljoe/rocketdash/internal/weather"
)

var (
	configPath string
	staticDir  string
	psi        float64

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "rocketdash",
	Short: "Water rocket telemetry dashboards",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Format)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Print the simulator prediction for a launch pressure",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := simulator.New(cfg.Simulator)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(m.Predict(psi))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "rocketdash.yaml", "path to the YAML config file")
	serveCmd.Flags().StringVar(&staticDir, "static", "static", "directory served under /static/")
	simulateCmd.Flags().Float64Var(&psi, "psi", 60, "launch pressure in PSI")

	rootCmd.AddCommand(serveCmd, simulateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	// Initialize database connection
	deps := handlers.Deps{Config: cfg, Cache: telemetry.NewCache(), Logger: logger}
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Warn("database connection failed, continuing without database", zap.Error(err))
	} else {
		defer database.Close()
		deps.DB = database
		logger.Info("database connected", zap.String("path", cfg.DBPath))
	}

	watcher, err := telemetry.NewWatcher(cfg.DataDir, deps.Cache, logger)
	if err != nil {
		logger.Warn("not watching data directory", zap.String("dir", cfg.DataDir), zap.Error(err))
	} else {
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	if cfg.Weather.Enabled {
		client := weather.NewClient(cfg.Weather.BaseURL, cfg.Weather.UserAgent)
		deps.Weather = weather.NewService(client, logger)
	}

	handler, err := newServer(deps, staticDir)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", "http://localhost"+srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newServer wires the routes, the static files and request logging.
func newServer(deps handlers.Deps, static string) (http.Handler, error) {
	h, err := handlers.New(deps)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	// Serve static files
	fs := http.FileServer(http.Dir(static))
	mux.Handle("GET /static/", http.StripPrefix("/static/", fs))

	h.Register(mux)
	return logging.Middleware(deps.Logger, mux), nil
}
