package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chadmayfield/weathercache/internal/fetcher"
	"github.com/chadmayfield/weathercache/internal/store"
)

var (
	resetDrop bool
	resetYes  bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all stored observations",
	Long: `reset deletes every stored observation and keeps the schema. With --drop the
schema itself is removed; it is recreated the next time the store is opened.`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetDrop, "drop", false, "drop the schema instead of deleting rows")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "do not ask for confirmation")
	resetCmd.Flags().StringVar(&fetchMode, "mode", "", "data source whose store to reset, API or MOCK (overrides config)")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, logger, closeLog, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	if fetchMode != "" {
		cfg.Mode = fetchMode
	}
	mode, err := fetcher.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}
	cfg.Mode = string(mode)

	s, err := store.Open(cfg.Storage.Driver, cfg.DSN())
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	ctx := context.Background()
	count, err := s.Count(ctx)
	if err != nil {
		return err
	}

	target := cfg.DSN()
	if cfg.Storage.Driver == "postgres" {
		target = redactDSN(target)
	}

	if !resetYes {
		action := "Delete"
		if resetDrop {
			action = "Drop the schema and"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d observations in %s? [y/N] ", action, count, target)
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	if resetDrop {
		if err := s.Drop(ctx); err != nil {
			return err
		}
		logger.Info("schema dropped", "driver", cfg.Storage.Driver, "observations", count)
		return nil
	}

	if err := s.Reset(ctx); err != nil {
		return err
	}
	logger.Info("store reset", "driver", cfg.Storage.Driver, "observations", count)
	return nil
}
