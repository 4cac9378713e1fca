package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/felipepimentel/aibook/internal/config"
)

// jobFlags are the command-line overrides shared by both subcommands.
type jobFlags struct {
	files        []string
	lang         string
	provider     string
	model        string
	outputDir    string
	detailLevel  string
	outputFormat string
	workers      int
	cachePath    string
	envFile      string
	verbose      bool
}

func (f *jobFlags) bind(cmd *cobra.Command, withAI bool) {
	fl := cmd.Flags()
	fl.StringSliceVarP(&f.files, "file", "f", nil, "EPUB file to process (repeatable)")
	fl.StringVarP(&f.lang, "lang", "l", "", "output language: en|ptbr (default: OUTPUT_LANGUAGE or DEFAULT_LANGUAGE)")
	fl.StringVar(&f.outputDir, "output_dir", "", "output directory (default: ./<book name>)")
	fl.StringVar(&f.envFile, "env", "", "read settings from this file instead of ./.env")
	fl.BoolVar(&f.verbose, "verbose", false, "log retries, backoff and cache activity")
	if !withAI {
		return
	}
	fl.StringVarP(&f.provider, "ai-provider", "a", "", "AI provider: openrouter|stackspot|gemini (default: AI_PROVIDER)")
	fl.StringVar(&f.model, "model", "", "model name (default: MODEL_NAME or the provider default)")
	fl.StringVar(&f.detailLevel, "detail_level", "medium", "summary detail: short|medium|long")
	fl.StringVar(&f.outputFormat, "output_format", "markdown", "extra output format: markdown|html")
	fl.IntVar(&f.workers, "workers", 0, "concurrent chapter requests (default: MAX_WORKERS or min(CPUs, 8))")
	fl.StringVar(&f.cachePath, "cache", "", "SQLite file caching summaries between runs (default: CACHE_PATH)")
}

// load builds the JobConfig: .env, then environment, then flags that were
// set explicitly.
func (f *jobFlags) load(cmd *cobra.Command) (*config.JobConfig, error) {
	var files []string
	if f.envFile != "" {
		files = append(files, f.envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}
	changed := cmd.Flags().Changed
	cfg.Inputs = f.files
	cfg.Verbose = f.verbose
	if changed("lang") {
		cfg.Language = f.lang
	}
	if changed("output_dir") {
		cfg.OutputDir = f.outputDir
	}
	if changed("ai-provider") {
		cfg.Provider = f.provider
	}
	if changed("model") {
		cfg.Model = f.model
	}
	if changed("detail_level") {
		cfg.DetailLevel = f.detailLevel
	}
	if changed("output_format") {
		cfg.OutputFormat = f.outputFormat
	}
	if changed("workers") {
		cfg.Workers = f.workers
	}
	if changed("cache") {
		cfg.CachePath = f.cachePath
	}
	return cfg, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func printJSON(w io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(b))
}
