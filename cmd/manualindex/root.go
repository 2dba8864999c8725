package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dgallion1/manualindex/internal/cache"
	"github.com/dgallion1/manualindex/internal/cleaner"
	"github.com/dgallion1/manualindex/internal/config"
	"github.com/dgallion1/manualindex/internal/imaging"
	"github.com/dgallion1/manualindex/internal/parser"
	"github.com/dgallion1/manualindex/internal/pipeline"
	"github.com/dgallion1/manualindex/internal/store"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "manualindex",
	Short: "Structural indexer for PDF service manuals",
	Long: `manualindex builds a retrieval index from PDF manuals: it reads each
document's table of contents into a section tree, maps page content onto
sections, cleans and chunks the text, optimizes embedded diagrams, and
persists everything into a SQLite catalog.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to YAML config file")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	if cfgFile != "" {
		return config.LoadFile(cfgFile)
	}
	return config.Load(), nil
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

// buildPipeline wires the store, cache and worker pool from configuration.
func buildPipeline(cfg config.Config, log *slog.Logger) (*store.Store, *pipeline.Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if err := cfg.CreateDirs(); err != nil {
		return nil, nil, err
	}

	st, err := store.Open(cfg.DBPath, cfg.CompanyName)
	if err != nil {
		return nil, nil, err
	}
	c, err := cache.New(cfg.CacheDir, cfg.CacheEnabled)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	codec := imaging.NewCodec(imaging.Config{
		Quality:   cfg.ImageQuality,
		MaxBytes:  cfg.MaxImageBytes,
		MaxDim:    cfg.ImageMaxDim,
		MinArea:   cfg.ImageMinArea,
		MinAspect: 0.5,
		MaxAspect: 2.0,
	})
	w := pipeline.NewWorker(parser.NewPDFDecoder(log), c, cleaner.New(), codec, st, log, cfg)
	return st, pipeline.NewOrchestrator(w, log), nil
}
