package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kosarica/basket-service/internal/catalog"
	"github.com/kosarica/basket-service/internal/database"
)

var (
	seedSnapshot string
	seedBaskets  []string
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the catalog schema and optionally seed it",
	Long: `Create the catalog tables if they do not exist. With --snapshot the prices, shops,
products and substitute groups of a snapshot file are imported; with --basket
each basket file is stored under its id.`,
	Example: `  basket migrate
  basket migrate --snapshot snapshot.json --basket weekly.json`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().StringVar(&seedSnapshot, "snapshot", "", "Snapshot JSON file to import")
	migrateCmd.Flags().StringSliceVar(&seedBaskets, "basket", nil, "Basket JSON files to store (repeatable)")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	logger.Info().Msg("Schema ready")

	if seedSnapshot != "" {
		doc, err := catalog.LoadSnapshotDocument(seedSnapshot)
		if err != nil {
			return err
		}
		if err := store.ImportSnapshot(ctx, doc); err != nil {
			return err
		}
		logger.Info().
			Str("file", seedSnapshot).
			Int("prices", len(doc.Prices)).
			Int("shops", len(doc.Shops)).
			Int("groups", len(doc.Groups)).
			Msg("Snapshot imported")
	}

	for _, path := range seedBaskets {
		doc, err := catalog.LoadBasketFile(path)
		if err != nil {
			return err
		}
		if doc.ID == "" {
			return fmt.Errorf("basket %s has no id", path)
		}
		if err := store.SaveBasket(ctx, doc); err != nil {
			return err
		}
		logger.Info().Str("id", doc.ID).Int("lines", len(doc.Lines)).Msg("Basket stored")
	}

	return nil
}
