package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/manualindex/internal/api"
	"github.com/dgallion1/manualindex/internal/watcher"
	"github.com/spf13/cobra"
)

var watchLibrary bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the indexing service with its HTTP API",
	Long: `Serve starts the worker pool and the HTTP API. With --watch, PDFs
dropped into the library directory are queued automatically.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.APIKey == "" {
			return fmt.Errorf("MANUALINDEX_API_KEY must be set to serve the API")
		}
		st, orch, err := buildPipeline(cfg, log)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		orch.Start(ctx)

		if watchLibrary {
			w, err := watcher.New(func(path, filename string) error {
				_, err := orch.Submit(path, filename)
				return err
			}, log)
			if err != nil {
				return err
			}
			defer w.Close()
			go func() {
				if err := w.Watch(ctx, cfg.LibraryDir); err != nil {
					log.Error("library watcher stopped", "error", err)
				}
			}()
		}

		srv := api.NewServer(orch, st, log, cfg)
		httpServer := &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      srv,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Graceful shutdown.
		go func() {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			log.Info("shutting down...")

			orch.Stop()
			if path, err := orch.Stats().WriteReport(cfg.StatsDir); err != nil {
				log.Warn("stats report failed", "error", err)
			} else {
				log.Info("stats report written", "path", path)
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			httpServer.Shutdown(shutdownCtx)
		}()

		log.Info("starting manualindex", "port", cfg.Port, "workers", cfg.WorkerCount)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&watchLibrary, "watch", false, "watch the library directory for new PDFs")
	rootCmd.AddCommand(serveCmd)
}
