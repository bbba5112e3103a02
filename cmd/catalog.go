package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bentacars/salesbot/internal/catalog"
	"github.com/bentacars/salesbot/internal/fetcher"
)

var catalogSheetURL string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the inventory catalog snapshot",
}

var catalogSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replace the stored catalog from the published inventory sheet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		sheetURL := catalogSheetURL
		if sheetURL == "" {
			sheetURL = cfg.Catalog.SheetURL
		}
		if sheetURL == "" {
			return eris.New("sheet URL is required (--url or BENTA_CATALOG_SHEET_URL)")
		}

		mapping, err := catalog.LoadMapping(cfg.Catalog.MappingPath)
		if err != nil {
			return eris.Wrap(err, "load column mapping")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		loader := catalog.NewLoader(fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}), sheetURL, mapping)
		vehicles, err := loader.Fetch(ctx)
		if err != nil {
			return eris.Wrap(err, "fetch catalog")
		}

		n, err := st.ReplaceVehicles(ctx, vehicles)
		if err != nil {
			return eris.Wrap(err, "replace vehicles")
		}

		zap.L().Info("catalog sync complete",
			zap.Int("vehicles", n),
			zap.String("url", sheetURL),
		)
		return nil
	},
}

var catalogStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored catalog size",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.CountVehicles(ctx)
		if err != nil {
			return eris.Wrap(err, "count vehicles")
		}

		fmt.Printf("catalog: %d vehicles (%s)\n", n, cfg.Store.Driver)
		return nil
	},
}

func init() {
	catalogSyncCmd.Flags().StringVar(&catalogSheetURL, "url", "", "published CSV URL (default from config)")
	catalogCmd.AddCommand(catalogSyncCmd)
	catalogCmd.AddCommand(catalogStatusCmd)
	rootCmd.AddCommand(catalogCmd)
}
