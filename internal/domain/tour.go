package domain

import (
	"encoding/json"
	"math"
	"time"

	"github.com/wanderpeak/tours-api/internal/apperr"
)

// Tour difficulties.
const (
	DifficultyEasy      = "easy"
	DifficultyMedium    = "medium"
	DifficultyDifficult = "difficult"
)

var validDifficulties = map[string]bool{
	DifficultyEasy:      true,
	DifficultyMedium:    true,
	DifficultyDifficult: true,
}

// Location is a GeoJSON-style point on a tour itinerary.
// Coordinates are [longitude, latitude].
type Location struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
	Address     string     `json:"address,omitempty"`
	Description string     `json:"description,omitempty"`
	Day         int        `json:"day,omitempty"`
}

type Tour struct {
	ID              int64       `json:"id"`
	Name            string      `json:"name"`
	Slug            string      `json:"slug"`
	Duration        int         `json:"duration"`
	MaxGroupSize    int         `json:"max_group_size"`
	Difficulty      string      `json:"difficulty"`
	RatingsAverage  float64     `json:"ratings_average"`
	RatingsQuantity int         `json:"ratings_quantity"`
	Price           float64     `json:"price"`
	PriceDiscount   *float64    `json:"price_discount,omitempty"`
	Summary         string      `json:"summary"`
	Description     string      `json:"description,omitempty"`
	ImageCover      string      `json:"image_cover"`
	Images          []string    `json:"images"`
	StartDates      []time.Time `json:"start_dates"`
	SecretTour      bool        `json:"-"`
	StartLocation   Location    `json:"start_location"`
	Locations       []Location  `json:"locations"`
	Guides          []int64     `json:"guides"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// MarshalJSON adds the computed duration_weeks field to the wire form.
func (t Tour) MarshalJSON() ([]byte, error) {
	type alias Tour
	return json.Marshal(struct {
		alias
		DurationWeeks float64 `json:"duration_weeks"`
	}{
		alias:         alias(t),
		DurationWeeks: t.DurationWeeks(),
	})
}

func (t *Tour) DurationWeeks() float64 {
	return float64(t.Duration) / 7
}

// RoundRating keeps averages at one decimal place, matching what reviewers
// see on tour cards.
func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}

const (
	TourNameMinLength = 10
	TourNameMaxLength = 40
	DefaultRating     = 4.5
)

type CreateTourRequest struct {
	Name          string      `json:"name"`
	Duration      int         `json:"duration"`
	MaxGroupSize  int         `json:"max_group_size"`
	Difficulty    string      `json:"difficulty"`
	Price         float64     `json:"price"`
	PriceDiscount *float64    `json:"price_discount,omitempty"`
	Summary       string      `json:"summary"`
	Description   string      `json:"description,omitempty"`
	ImageCover    string      `json:"image_cover"`
	Images        []string    `json:"images,omitempty"`
	StartDates    []time.Time `json:"start_dates,omitempty"`
	SecretTour    bool        `json:"secret_tour,omitempty"`
	StartLocation Location    `json:"start_location"`
	Locations     []Location  `json:"locations,omitempty"`
	Guides        []int64     `json:"guides,omitempty"`
}

func (r *CreateTourRequest) Validate() error {
	fields := map[string]string{}
	if len(r.Name) < TourNameMinLength {
		fields["name"] = "A tour name must have at least 10 characters"
	} else if len(r.Name) > TourNameMaxLength {
		fields["name"] = "A tour name must have at most 40 characters"
	}
	if r.Duration <= 0 {
		fields["duration"] = "A tour must have a duration"
	}
	if r.MaxGroupSize <= 0 {
		fields["max_group_size"] = "A tour must have a group size"
	}
	if !validDifficulties[r.Difficulty] {
		fields["difficulty"] = "Difficulty is either: easy, medium, difficult"
	}
	if r.Price <= 0 {
		fields["price"] = "A tour must have a price"
	}
	if r.PriceDiscount != nil && *r.PriceDiscount >= r.Price {
		fields["price_discount"] = "Discount price must be below the regular price"
	}
	if r.Summary == "" {
		fields["summary"] = "A tour must have a summary"
	}
	if r.ImageCover == "" {
		fields["image_cover"] = "A tour must have a cover image"
	}
	if len(fields) > 0 {
		return apperr.ValidationFields(fields)
	}
	return nil
}

type UpdateTourRequest struct {
	Name          *string      `json:"name,omitempty"`
	Duration      *int         `json:"duration,omitempty"`
	MaxGroupSize  *int         `json:"max_group_size,omitempty"`
	Difficulty    *string      `json:"difficulty,omitempty"`
	Price         *float64     `json:"price,omitempty"`
	PriceDiscount *float64     `json:"price_discount,omitempty"`
	Summary       *string      `json:"summary,omitempty"`
	Description   *string      `json:"description,omitempty"`
	ImageCover    *string      `json:"image_cover,omitempty"`
	Images        *[]string    `json:"images,omitempty"`
	StartDates    *[]time.Time `json:"start_dates,omitempty"`
	SecretTour    *bool        `json:"secret_tour,omitempty"`
	StartLocation *Location    `json:"start_location,omitempty"`
	Locations     *[]Location  `json:"locations,omitempty"`
	Guides        *[]int64     `json:"guides,omitempty"`
}

func (r *UpdateTourRequest) Validate() error {
	fields := map[string]string{}
	if r.Name != nil {
		if len(*r.Name) < TourNameMinLength {
			fields["name"] = "A tour name must have at least 10 characters"
		} else if len(*r.Name) > TourNameMaxLength {
			fields["name"] = "A tour name must have at most 40 characters"
		}
	}
	if r.Duration != nil && *r.Duration <= 0 {
		fields["duration"] = "A tour must have a duration"
	}
	if r.Difficulty != nil && !validDifficulties[*r.Difficulty] {
		fields["difficulty"] = "Difficulty is either: easy, medium, difficult"
	}
	if r.Price != nil && *r.Price <= 0 {
		fields["price"] = "A tour must have a price"
	}
	if r.PriceDiscount != nil && r.Price != nil && *r.PriceDiscount >= *r.Price {
		fields["price_discount"] = "Discount price must be below the regular price"
	}
	if len(fields) > 0 {
		return apperr.ValidationFields(fields)
	}
	return nil
}

// TourStats is the per-difficulty aggregate reported by /tour-stats.
type TourStats struct {
	Difficulty string  `json:"difficulty"`
	NumTours   int     `json:"num_tours"`
	NumRatings int     `json:"num_ratings"`
	AvgRating  float64 `json:"avg_rating"`
	AvgPrice   float64 `json:"avg_price"`
	MinPrice   float64 `json:"min_price"`
	MaxPrice   float64 `json:"max_price"`
}

// MonthlyPlanEntry counts tour starts per month of a year.
type MonthlyPlanEntry struct {
	Month         int      `json:"month"`
	NumTourStarts int      `json:"num_tour_starts"`
	Tours         []string `json:"tours"`
}

// TourDistance is a tour paired with its distance from a reference point.
type TourDistance struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}
