package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Index every PDF in the library and exit",
	Long: `Run performs a one-shot indexing pass: every PDF in the library
directory is queued, the worker pool drains the queue, and a stats report
is written before exit. Interrupting the run lets in-flight documents
finish.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, orch, err := buildPipeline(cfg, log)
		if err != nil {
			return err
		}
		defer st.Close()

		paths, err := filepath.Glob(filepath.Join(cfg.LibraryDir, "*.pdf"))
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no PDFs found in %s", cfg.LibraryDir)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		orch.Start(ctx)

		for _, p := range paths {
			if _, err := orch.Submit(p, filepath.Base(p)); err != nil {
				log.Warn("document rejected", "path", p, "error", err)
			}
		}
		log.Info("run started", "documents", len(paths), "workers", cfg.WorkerCount)

		// Every submitted document eventually lands in the report, whether it
		// succeeded, failed or was rejected at submit.
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
	wait:
		for {
			select {
			case <-ctx.Done():
				log.Info("interrupted, letting in-flight documents finish")
				break wait
			case <-ticker.C:
				if len(orch.Stats().Report().Documents) >= len(paths) {
					break wait
				}
			}
		}
		orch.Stop()

		rep := orch.Stats().Report()
		path, err := orch.Stats().WriteReport(cfg.StatsDir)
		if err != nil {
			log.Warn("stats report failed", "error", err)
		} else {
			log.Info("stats report written", "path", path)
		}
		log.Info("run finished",
			"submitted", rep.Submitted,
			"succeeded", rep.Succeeded,
			"failed", rep.Failed,
			"retried", rep.Retried,
			"cache_hits", rep.CacheHits,
			"chunks", rep.Chunks,
			"images", rep.Images,
		)
		if rep.Failed > 0 {
			return fmt.Errorf("%d of %d documents failed", rep.Failed, rep.Submitted)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
