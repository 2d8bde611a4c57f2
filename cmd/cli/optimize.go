package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/kosarica/basket-service/internal/catalog"
	"github.com/kosarica/basket-service/internal/handlers"
	"github.com/kosarica/basket-service/internal/optimizer"
	"github.com/kosarica/basket-service/internal/report"
)

type optimizeOptions struct {
	snapshotPath string
	basketPath   string
	basketID     string
	output       string
	xlsxPath     string
	locale       string
	trace        bool

	// Overrides, applied only when the flag was set
	overrides catalog.SettingsDocument
}

var optimizeOpts optimizeOptions

// optimizeCmd represents the optimize command
var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Optimize a basket against a price snapshot",
	Long: `Split a basket between shops at the lowest cost. The snapshot is read from
a JSON file with --snapshot or loaded from the database. The basket is read
from a JSON file with --basket or loaded from the database with --basket-id.`,
	Example: `  basket optimize --snapshot snapshot.json --basket weekly.json
  basket optimize --basket-id weekly --priority fewest_shops --max-shops 2
  basket optimize --snapshot snapshot.json --basket weekly.json --output json
  basket optimize --snapshot snapshot.json --basket weekly.json --xlsx plan.xlsx`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := optimizeOpts
		if !cmd.Flags().Changed("seed") {
			opts.overrides.Seed = nil
		}
		if !cmd.Flags().Changed("max-shops") {
			opts.overrides.MaxShops = nil
		}
		if !cmd.Flags().Changed("priority") {
			opts.overrides.Priority = nil
		}
		return runOptimize(cmd.Context(), opts, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(optimizeCmd)

	flags := optimizeCmd.Flags()
	flags.StringVar(&optimizeOpts.snapshotPath, "snapshot", "", "Snapshot JSON file (defaults to the database)")
	flags.StringVar(&optimizeOpts.basketPath, "basket", "", "Basket JSON file")
	flags.StringVar(&optimizeOpts.basketID, "basket-id", "", "Stored basket id")
	flags.StringVarP(&optimizeOpts.output, "output", "o", "table", "Output format: table or json")
	flags.StringVar(&optimizeOpts.xlsxPath, "xlsx", "", "Also write the plan to an Excel workbook")
	flags.StringVar(&optimizeOpts.locale, "locale", "en", "Locale for money formatting")
	flags.BoolVar(&optimizeOpts.trace, "trace", false, "Include the decision trace in JSON output")

	optimizeOpts.overrides.Seed = new(int64)
	optimizeOpts.overrides.MaxShops = new(int)
	optimizeOpts.overrides.Priority = new(string)
	flags.Int64Var(optimizeOpts.overrides.Seed, "seed", 0, "Random seed for the stochastic strategies")
	flags.IntVar(optimizeOpts.overrides.MaxShops, "max-shops", 0, "Maximum number of shops (0 means no limit)")
	flags.StringVar(optimizeOpts.overrides.Priority, "priority", "", "Priority: lowest_total_cost, fewest_shops or balanced")
}

func runOptimize(ctx context.Context, opts optimizeOptions, out io.Writer) error {
	if (opts.basketPath == "") == (opts.basketID == "") {
		return fmt.Errorf("exactly one of --basket and --basket-id is required")
	}
	if opts.output != "table" && opts.output != "json" {
		return fmt.Errorf("unknown output format %q", opts.output)
	}

	var store *catalog.Store
	if opts.snapshotPath == "" || opts.basketID != "" {
		var err error
		if store, err = openStore(ctx); err != nil {
			return err
		}
	}

	var snap *catalog.Snapshot
	var err error
	if opts.snapshotPath != "" {
		snap, err = catalog.LoadSnapshotFile(opts.snapshotPath)
	} else {
		snap, err = store.LoadSnapshot(ctx)
	}
	if err != nil {
		return err
	}

	var basket *catalog.BasketDocument
	if opts.basketPath != "" {
		basket, err = catalog.LoadBasketFile(opts.basketPath)
	} else {
		basket, err = store.LoadBasket(ctx, opts.basketID)
	}
	if err != nil {
		return err
	}

	base := optimizer.DefaultSettings()
	engine := optimizer.Defaults()
	converter := optimizer.MustNewConverter(optimizer.DefaultReferenceCurrency, nil)
	if cfg != nil {
		if base, err = cfg.DefaultSettings(); err != nil {
			return err
		}
		engine = &cfg.Optimizer
		if converter, err = cfg.Converter(); err != nil {
			return err
		}
	}

	settings, err := basket.Settings.Apply(base)
	if err != nil {
		return err
	}
	if settings, err = opts.overrides.Apply(settings); err != nil {
		return err
	}
	lines := catalog.BuildLines(basket.Lines, settings)

	logger.Debug().
		Int("lines", len(lines)).
		Interface("stats", snap.Stats()).
		Str("priority", settings.Priority.String()).
		Msg("Optimizing basket")

	res, err := optimizer.NewOptimizer(snap, snap, converter, engine, nil).Optimize(ctx, snap.Request(lines, settings))
	if err != nil {
		return err
	}

	tag, err := language.Parse(opts.locale)
	if err != nil {
		return fmt.Errorf("invalid locale %q: %w", opts.locale, err)
	}
	formatter, err := report.NewFormatter(converter.Reference(), tag)
	if err != nil {
		return err
	}

	if opts.xlsxPath != "" {
		if err := writeWorkbook(opts.xlsxPath, res, formatter); err != nil {
			return err
		}
		logger.Info().Str("path", opts.xlsxPath).Msg("Workbook written")
	}

	if opts.output == "json" {
		resp := handlers.NewOptimizeResponse(res, converter.Reference(), opts.trace)
		resp.Snapshot = snap.LoadedAt()
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	return report.WriteTable(out, res, formatter)
}

func writeWorkbook(path string, res *optimizer.Result, f *report.Formatter) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create workbook: %w", err)
	}
	if err := report.WriteXLSX(file, res, f); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
