package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/spreadmap/internal/assets"
	"github.com/MeKo-Tech/spreadmap/internal/batch"
	"github.com/MeKo-Tech/spreadmap/internal/export"
	"github.com/MeKo-Tech/spreadmap/internal/pdf"
	"github.com/MeKo-Tech/spreadmap/internal/server"
	"github.com/MeKo-Tech/spreadmap/internal/tile"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for batch extraction",
	Long: `Start an HTTP server that runs batch PLU extraction on stored projects.

The server provides the following endpoints:
  POST /extract        - Run extraction on a project ({"projectId": "..."})
  GET  /extract        - Orchestrator state and last summary
  POST /extract/abort  - Stop the active run before its next tile
  GET  /ws/extract     - WebSocket progress stream
  POST /plu            - Extract PLUs and offer details from text
  GET  /health         - Health check endpoint
  GET  /metrics        - Prometheus metrics

Projects are read from and written back to storage.projects_dir; the spread
export map is re-read from storage.export_file for every run.

Examples:
  spreadmap serve
  spreadmap serve --port 8080
  spreadmap serve --host 0.0.0.0 --port 3000 --cors-origin https://planner.example`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		host := cfg.Server.Host
		if cmd.Flags().Changed("host") {
			host, _ = cmd.Flags().GetString("host")
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		corsOrigin := cfg.Server.CORSOrigin
		if cmd.Flags().Changed("cors-origin") {
			corsOrigin, _ = cmd.Flags().GetString("cors-origin")
		}

		timeout := cfg.Server.TimeoutSec
		if cmd.Flags().Changed("timeout") {
			timeout, _ = cmd.Flags().GetInt("timeout")
		}

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if cmd.Flags().Changed("shutdown-timeout") {
			shutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
		}

		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		fs := afero.NewOsFs()
		parser, err := loadParser(fs, cfg)
		if err != nil {
			return err
		}
		exportFile := cfg.Storage.ExportFile
		orch := batch.New(
			pdf.AssetOpener(assets.NewDirStore(cfg.Storage.AssetsDir), cfg.Credentials()),
			parser,
			batch.WithMaxPLUSlots(cfg.Extraction.MaxPLUSlots),
			batch.WithProgress(batch.NewLogProgressCallback(slog.Default(), slog.LevelDebug).WithInterval(25)),
		)

		srv, err := server.NewServer(server.Config{
			CORSOrigin:   corsOrigin,
			Projects:     tile.NewFileStore(fs, cfg.Storage.ProjectsDir),
			Exports:      func(context.Context) (export.Map, error) { return export.Load(fs, exportFile) },
			Orchestrator: orch,
			Parser:       parser,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}
		defer func() { _ = srv.Close() }()

		mux := http.NewServeMux()
		srv.SetupRoutes(mux)

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(timeout) * time.Second,
			WriteTimeout:      time.Duration(timeout) * time.Second,
		}

		go func() {
			slog.Info("Starting extraction server", "host", host, "port", port,
				"projects_dir", cfg.Storage.ProjectsDir, "export_file", exportFile)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
		defer shutdownCancel()

		// A running extraction stops before its next tile.
		orch.Abort()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}

		if err := srv.Close(); err != nil {
			slog.Error("Server cleanup error", "error", err)
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("timeout", 300, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
}
