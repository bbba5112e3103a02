package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bentacars/salesbot/internal/catalog"
	"github.com/bentacars/salesbot/internal/fetcher"
	"github.com/bentacars/salesbot/internal/model"
)

var (
	importFilePath string
	importSheet    string
	importReplace  bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import vehicles from a local XLSX or CSV file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		mapping, err := catalog.LoadMapping(cfg.Catalog.MappingPath)
		if err != nil {
			return eris.Wrap(err, "load column mapping")
		}

		var vehicles []model.Vehicle
		switch strings.ToLower(filepath.Ext(importFilePath)) {
		case ".xlsx":
			vehicles, err = importXLSX(importFilePath, importSheet, mapping)
		case ".csv":
			vehicles, err = importCSV(importFilePath, mapping)
		default:
			return eris.Errorf("unsupported file type %q (want .xlsx or .csv)", importFilePath)
		}
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var n int
		if importReplace {
			n, err = st.ReplaceVehicles(ctx, vehicles)
		} else {
			n, err = st.UpsertVehicles(ctx, vehicles)
		}
		if err != nil {
			return eris.Wrap(err, "write vehicles")
		}

		zap.L().Info("import complete",
			zap.Int("vehicles", n),
			zap.String("file", importFilePath),
			zap.Bool("replace", importReplace),
		)
		return nil
	},
}

// importXLSX parses one named sheet, or every sheet in parallel when no
// sheet is given. Results keep workbook sheet order.
func importXLSX(path, sheet string, mapping *catalog.ColumnMapping) ([]model.Vehicle, error) {
	if sheet != "" {
		return catalog.ReadXLSX(path, sheet, mapping)
	}

	names, err := catalog.SheetNames(path)
	if err != nil {
		return nil, eris.Wrap(err, "list sheets")
	}

	perSheet := make([][]model.Vehicle, len(names))
	var g errgroup.Group
	g.SetLimit(4)
	for i, name := range names {
		g.Go(func() error {
			vs, err := catalog.ReadXLSX(path, name, mapping)
			if err != nil {
				return eris.Wrapf(err, "sheet %s", name)
			}
			perSheet[i] = vs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []model.Vehicle
	for _, vs := range perSheet {
		out = append(out, vs...)
	}
	return out, nil
}

func importCSV(path string, mapping *catalog.ColumnMapping) ([]model.Vehicle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close() //nolint:errcheck

	header, rows, err := fetcher.ReadCSV(f)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	return catalog.ParseRows(header, rows, mapping), nil
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to XLSX or CSV file (required)")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "XLSX sheet name (default: all sheets)")
	importCmd.Flags().BoolVar(&importReplace, "replace", false, "replace the stored catalog instead of merging")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
