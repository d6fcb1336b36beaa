package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chadmayfield/weathercache/internal/acquisition"
	"github.com/chadmayfield/weathercache/internal/config"
	"github.com/chadmayfield/weathercache/internal/fetcher"
	"github.com/chadmayfield/weathercache/internal/store"
)

var (
	fetchMode string
	fetchLon  float64
	fetchLat  float64
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Print observations for a location, downloading them if not cached (default command)",
	RunE:  runFetch,
}

func init() {
	addFetchFlags(fetchCmd)
	addFetchFlags(rootCmd)
	rootCmd.AddCommand(fetchCmd)

	// Make fetch the default command.
	rootCmd.RunE = runFetch
}

func addFetchFlags(c *cobra.Command) {
	c.Flags().StringVar(&fetchMode, "mode", "", "data source, API or MOCK (overrides config)")
	c.Flags().Float64Var(&fetchLon, "longitude", 0, "location longitude (overrides config)")
	c.Flags().Float64Var(&fetchLat, "latitude", 0, "location latitude (overrides config)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, logger, closeLog, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	if fetchMode != "" {
		cfg.Mode = fetchMode
	}

	loc := cfg.DefaultLocation()
	if cmd.Flags().Changed("longitude") {
		loc.Longitude = fetchLon
	}
	if cmd.Flags().Changed("latitude") {
		loc.Latitude = fetchLat
	}

	s, f, err := openPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc := acquisition.NewService(s, f, logger, nil)
	res, err := svc.Execute(ctx, loc)
	if err != nil {
		return err
	}

	return printResult(cmd.OutOrStdout(), res)
}

// openPipeline validates the mode, opens the store for it and builds the
// matching fetcher. An invalid mode fails before the store is touched.
func openPipeline(cfg *config.Config, logger *slog.Logger) (store.Store, fetcher.Fetcher, error) {
	mode, err := fetcher.ParseMode(cfg.Mode)
	if err != nil {
		return nil, nil, err
	}
	cfg.Mode = string(mode)

	s, err := store.Open(cfg.Storage.Driver, cfg.DSN())
	if err != nil {
		return nil, nil, err
	}
	logger.Info("database ready", "driver", cfg.Storage.Driver, "mode", cfg.Mode)

	f, err := fetcher.New(cfg.Mode, cfg.Source, s, logger, fetcher.WithTimeout(cfg.Fetch.Timeout))
	if err != nil {
		_ = s.Close()
		return nil, nil, err
	}
	return s, f, nil
}

func printResult(w io.Writer, res *acquisition.Result) error {
	if res.Status != nil {
		fmt.Fprintln(w, res.Status.String())
	}
	if len(res.Observations) == 0 {
		fmt.Fprintf(w, "No data available for %s\n", res.Location)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tPRECIPITATION_PROBABILITY\tPRECIPITATION\tWIND_SPEED_10M")
	for _, o := range res.Observations {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.Time, o.PrecipitationProbability, o.Precipitation, o.WindSpeed10m)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	source := "fetched"
	if res.Cached {
		source = "cached"
	}
	fmt.Fprintf(w, "%d observations for %s (%s)\n", len(res.Observations), res.Location, source)
	return nil
}
