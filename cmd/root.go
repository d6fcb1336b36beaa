package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chadmayfield/weathercache/internal/config"
	"github.com/chadmayfield/weathercache/internal/weather"
)

var (
	cfgFile   string
	logFormat string
	logFile   string
)

var rootCmd = &cobra.Command{
	Use:   "weathercache",
	Short: "Hourly weather data acquisition with a local cache",
	Long: `weathercache returns hourly precipitation and wind observations for a
location. Observations already stored in SQLite or PostgreSQL are served from
the store; otherwise they are downloaded once from the configured provider, or
generated by the mock source, and stored before being returned.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format, text or json (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also append logs to this file (overrides config)")
}

// Execute runs the root command and exits with the status matching the kind
// of error that ended the run.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	var werr *weather.Error
	if errors.As(err, &werr) {
		slog.Error("run failed", "kind", werr.Kind.String(), "op", werr.Op, "error", werr.Err)
	} else {
		slog.Error("run failed", "error", err)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(weather.ExitCode(err))
}

// loadConfig reads the configuration, lets the --log-format and --log-file
// flags override the configured values and installs the logger. The returned
// function closes the log file, if any.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, err
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if cmd.Flags().Changed("log-file") {
		cfg.LogFile = logFile
	}

	logger, closeFn, err := setupLogging(cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, closeFn, nil
}

// setupLogging installs the process logger writing to stderr and, when file is
// set, appending to file as well.
func setupLogging(format, file string) (*slog.Logger, func(), error) {
	var w io.Writer = os.Stderr
	closeFn := func() {}

	if file != "" {
		if dir := filepath.Dir(file); dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return nil, nil, fmt.Errorf("creating log directory: %w", err)
			}
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closeFn = func() { _ = f.Close() }
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, closeFn, nil
}
