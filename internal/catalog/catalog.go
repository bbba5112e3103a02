// Package catalog is the adapter between raw inventory exports (published
// CSV, dealer XLSX) and typed Vehicle records. All string-to-number coercion
// happens here; the match engine only ever sees typed rows.
package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bentacars/salesbot/internal/fetcher"
	"github.com/bentacars/salesbot/internal/model"
)

// Loader fetches and parses the published inventory sheet.
type Loader struct {
	fetcher *fetcher.HTTPFetcher
	url     string
	mapping *ColumnMapping
}

// NewLoader builds a Loader for a publish-to-web CSV URL.
func NewLoader(f *fetcher.HTTPFetcher, url string, mapping *ColumnMapping) *Loader {
	if mapping == nil {
		mapping = DefaultMapping()
	}
	return &Loader{fetcher: f, url: url, mapping: mapping}
}

// Fetch downloads the sheet and returns the coerced vehicle rows.
func (l *Loader) Fetch(ctx context.Context) ([]model.Vehicle, error) {
	body, err := l.fetcher.Download(ctx, l.url)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: fetch sheet")
	}
	defer body.Close() //nolint:errcheck

	header, rows, err := fetcher.ReadCSV(body)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: parse sheet")
	}

	vehicles := ParseRows(header, rows, l.mapping)
	zap.L().Info("catalog: sheet loaded",
		zap.String("url", l.url),
		zap.Int("rows", len(rows)),
		zap.Int("vehicles", len(vehicles)),
	)
	return vehicles, nil
}

// ParseRows maps raw rows onto Vehicle records using the column mapping.
// Rows without a SKU are skipped; unparseable numeric cells become zero
// values, which the match engine's price-measure rule later excludes.
func ParseRows(header []string, rows [][]string, mapping *ColumnMapping) []model.Vehicle {
	if mapping == nil {
		mapping = DefaultMapping()
	}

	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = mapping.Canonical(h)
	}

	vehicles := make([]model.Vehicle, 0, len(rows))
	for i, row := range rows {
		cells := make(map[string]string, len(cols))
		for j, col := range cols {
			if j < len(row) {
				cells[col] = row[j]
			}
		}

		v, ok := coerceRow(cells)
		if !ok {
			zap.L().Debug("catalog: skipping row without sku", zap.Int("row", i+1))
			continue
		}
		vehicles = append(vehicles, v)
	}

	return vehicles
}

func coerceRow(cells map[string]string) (model.Vehicle, bool) {
	sku := strings.TrimSpace(cells[ColSKU])
	if sku == "" {
		return model.Vehicle{}, false
	}

	v := model.Vehicle{
		SKU:          sku,
		Year:         parseInt(cells[ColYear]),
		Brand:        cells[ColBrand],
		Model:        cells[ColModel],
		Variant:      cells[ColVariant],
		Transmission: cells[ColTransmission],
		FuelType:     cells[ColFuelType],
		BodyType:     cells[ColBodyType],
		Color:        cells[ColColor],
		Mileage:      parseInt(cells[ColMileage]),
		DriveLink:    cells[ColDriveLink],
		VideoLink:    cells[ColVideoLink],
		SRP:          parsePrice(cells[ColSRP]),
		AllIn:        parsePrice(cells[ColAllIn]),
		City:         cells[ColCity],
		Province:     cells[ColProvince],
		PriceStatus:  cells[ColPriceStatus],
		UpdatedAt:    cells[ColUpdatedAt],
	}

	for i := 1; i <= model.MaxImages; i++ {
		img := strings.TrimSpace(cells[fmt.Sprintf("image_%d", i)])
		if img == "" {
			break
		}
		v.Images = append(v.Images, img)
	}

	return v, true
}

// parsePrice coerces a money cell ("₱1,250,000", "1250000.00") to a float.
// Returns 0 for anything unparseable.
func parsePrice(s string) float64 {
	for _, junk := range []string{"₱", "PHP", "Php", "php", ",", " "} {
		s = strings.ReplaceAll(s, junk, "")
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// parseInt coerces an integer cell, tolerating comma grouping and a
// trailing unit ("45,000 km").
func parseInt(s string) int {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimSuffix(s, "km")
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 0 {
		return 0
	}
	return v
}
