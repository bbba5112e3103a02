package model

// MaxImages is the number of image columns a catalog row may carry.
const MaxImages = 10

// CardImages is the number of image slots projected into a VehicleCard.
const CardImages = 5

// Vehicle is one row of the catalog snapshot. Numeric fields are already
// coerced by the catalog adapter; the match engine never parses strings.
type Vehicle struct {
	SKU          string   `json:"sku"`
	Year         int      `json:"year"`
	Brand        string   `json:"brand"`
	Model        string   `json:"model"`
	Variant      string   `json:"variant"`
	Transmission string   `json:"transmission"`
	FuelType     string   `json:"fuel_type"`
	BodyType     string   `json:"body_type"`
	Color        string   `json:"color"`
	Mileage      int      `json:"mileage"`
	Images       []string `json:"images,omitempty"` // up to MaxImages
	DriveLink    string   `json:"drive_link,omitempty"`
	VideoLink    string   `json:"video_link,omitempty"`
	SRP          float64  `json:"srp"`    // cash reference price
	AllIn        float64  `json:"all_in"` // financing all-in down payment
	City         string   `json:"city"`
	Province     string   `json:"province"`
	PriceStatus  string   `json:"price_status"`
	UpdatedAt    string   `json:"updated_at"`
}

// VehicleCard is a Vehicle projected for presentation: exactly five image
// slots, empty string where the source row has no image at that index.
type VehicleCard struct {
	SKU          string  `json:"sku"`
	Year         int     `json:"year"`
	Brand        string  `json:"brand"`
	Model        string  `json:"model"`
	Variant      string  `json:"variant"`
	Transmission string  `json:"transmission"`
	FuelType     string  `json:"fuel_type"`
	BodyType     string  `json:"body_type"`
	Color        string  `json:"color"`
	Mileage      int     `json:"mileage"`
	City         string  `json:"city"`
	SRP          float64 `json:"srp"`
	AllIn        float64 `json:"all_in"`
	Image1       string  `json:"image_1"`
	Image2       string  `json:"image_2"`
	Image3       string  `json:"image_3"`
	Image4       string  `json:"image_4"`
	Image5       string  `json:"image_5"`
	DriveLink    string  `json:"drive_link"`
	VideoLink    string  `json:"video_link"`
}

// MatchResult is the match engine's output: a short human-readable summary
// and at most two ranked cards.
type MatchResult struct {
	Summary    string        `json:"summary"`
	TopMatches []VehicleCard `json:"top_matches"`
}
