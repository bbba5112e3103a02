package catalog

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/bentacars/salesbot/internal/model"
)

// ColumnMapping maps sheet header spellings onto canonical column names.
// Dealers rename columns freely ("SRP (PHP)", "All-In DP"), so the mapping
// is loadable from YAML with built-in defaults.
type ColumnMapping struct {
	Aliases map[string][]string `yaml:"aliases"`

	// lookup is the flattened alias → canonical index, built lazily.
	lookup map[string]string
}

// Canonical column names. image_1..image_10 are handled positionally.
const (
	ColSKU          = "sku"
	ColYear         = "year"
	ColBrand        = "brand"
	ColModel        = "model"
	ColVariant      = "variant"
	ColTransmission = "transmission"
	ColFuelType     = "fuel_type"
	ColBodyType     = "body_type"
	ColColor        = "color"
	ColMileage      = "mileage"
	ColDriveLink    = "drive_link"
	ColVideoLink    = "video_link"
	ColSRP          = "srp"
	ColAllIn        = "all_in"
	ColCity         = "city"
	ColProvince     = "province"
	ColPriceStatus  = "price_status"
	ColUpdatedAt    = "updated_at"
)

// DefaultMapping covers the published BentaCars sheet headers plus common
// dealer variants.
func DefaultMapping() *ColumnMapping {
	return &ColumnMapping{
		Aliases: map[string][]string{
			ColSKU:          {"sku", "stock_no", "stock_number", "unit_id"},
			ColYear:         {"year", "model_year", "yr"},
			ColBrand:        {"brand", "make"},
			ColModel:        {"model"},
			ColVariant:      {"variant", "trim"},
			ColTransmission: {"transmission", "trans", "tranny"},
			ColFuelType:     {"fuel_type", "fuel"},
			ColBodyType:     {"body_type", "body", "type"},
			ColColor:        {"color", "colour"},
			ColMileage:      {"mileage", "odometer", "km"},
			ColDriveLink:    {"drive_link", "gdrive", "photos_link"},
			ColVideoLink:    {"video_link", "video"},
			ColSRP:          {"srp", "srp_php", "cash_price", "price"},
			ColAllIn:        {"all_in", "all_in_dp", "allin", "down_payment"},
			ColCity:         {"city", "location_city"},
			ColProvince:     {"province"},
			ColPriceStatus:  {"price_status", "status"},
			ColUpdatedAt:    {"updated_at", "last_updated", "date_updated"},
		},
	}
}

// LoadMapping reads a column mapping from a YAML file. Canonical names
// missing from the file fall back to the defaults; an empty path returns
// the defaults outright.
func LoadMapping(path string) (*ColumnMapping, error) {
	if path == "" {
		return DefaultMapping(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read mapping %s", path)
	}

	var m ColumnMapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "catalog: parse mapping")
	}

	defaults := DefaultMapping()
	if m.Aliases == nil {
		m.Aliases = map[string][]string{}
	}
	for canonical, aliases := range defaults.Aliases {
		if _, ok := m.Aliases[canonical]; !ok {
			m.Aliases[canonical] = aliases
		}
	}

	return &m, nil
}

// Canonical resolves a raw sheet header to its canonical column name.
// Unrecognized headers resolve to their normalized spelling so extra
// columns pass through harmlessly.
func (m *ColumnMapping) Canonical(header string) string {
	if m.lookup == nil {
		m.lookup = make(map[string]string)
		for canonical, aliases := range m.Aliases {
			for _, a := range aliases {
				m.lookup[normalizeHeader(a)] = canonical
			}
		}
		for i := 1; i <= model.MaxImages; i++ {
			key := fmt.Sprintf("image_%d", i)
			m.lookup[key] = key
		}
	}

	norm := normalizeHeader(header)
	if canonical, ok := m.lookup[norm]; ok {
		return canonical
	}
	return norm
}

// normalizeHeader lowercases a header and collapses separators so
// "All-In DP" and "all_in_dp" resolve identically.
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, sep := range []string{" ", "-", "/", "."} {
		s = strings.ReplaceAll(s, sep, "_")
	}
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_")
}
