package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wanderpeak/tours-api/internal/apperr"
	"github.com/wanderpeak/tours-api/internal/domain"
	"github.com/wanderpeak/tours-api/internal/http/response"
)

// Earth radii used to turn a surface distance into an angular radius.
const (
	earthRadiusMiles = 3963.2
	earthRadiusKm    = 6378.1
)

// Meters-to-unit conversion for the distances endpoint.
const (
	metersToMiles = 0.000621371
	metersToKm    = 0.001
)

// TourFilterColumns are the columns open to filtering and sorting on tour
// listings.
var TourFilterColumns = map[string]bool{
	"name":             true,
	"duration":         true,
	"max_group_size":   true,
	"difficulty":       true,
	"ratings_average":  true,
	"ratings_quantity": true,
	"price":            true,
	"created_at":       true,
}

// TourCatalog is the slice of the tour repository behind the non-CRUD
// endpoints.
type TourCatalog interface {
	Stats(ctx context.Context) ([]domain.TourStats, error)
	MonthlyPlan(ctx context.Context, year int) ([]domain.MonthlyPlanEntry, error)
	Within(ctx context.Context, lat, lng, radiusRadians float64) ([]domain.Tour, error)
	Distances(ctx context.Context, lat, lng, multiplier float64) ([]domain.TourDistance, error)
}

type ToursHandler struct {
	*Resource[domain.Tour, domain.CreateTourRequest, domain.UpdateTourRequest]
	catalog TourCatalog
}

func NewToursHandler(res *Resource[domain.Tour, domain.CreateTourRequest, domain.UpdateTourRequest], catalog TourCatalog) *ToursHandler {
	return &ToursHandler{Resource: res, catalog: catalog}
}

// TopCheap is the canned "best value" listing: the five highest-rated
// tours, cheapest first among equals.
func (h *ToursHandler) TopCheap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	q.Set("limit", "5")
	q.Set("sort", "-ratings_average,price")
	q.Set("page", "1")
	r.URL.RawQuery = q.Encode()
	h.List(w, r)
}

func (h *ToursHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalog.Stats(r.Context())
	if err != nil {
		response.Error(w, r, err, h.DevMode)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

func (h *ToursHandler) MonthlyPlan(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		response.Error(w, r, apperr.Validation("Invalid year: "+chi.URLParam(r, "year")), h.DevMode)
		return
	}

	plan, err := h.catalog.MonthlyPlan(r.Context(), year)
	if err != nil {
		response.Error(w, r, err, h.DevMode)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"plan": plan})
}

// ToursWithin lists tours starting inside a circle around the caller:
// /tours-within/{distance}/center/{latlng}/unit/{unit}.
func (h *ToursHandler) ToursWithin(w http.ResponseWriter, r *http.Request) {
	distance, err := strconv.ParseFloat(chi.URLParam(r, "distance"), 64)
	if err != nil || distance < 0 {
		response.Error(w, r, apperr.Validation("Invalid distance: "+chi.URLParam(r, "distance")), h.DevMode)
		return
	}
	lat, lng, err := parseLatLng(chi.URLParam(r, "latlng"))
	if err != nil {
		response.Error(w, r, err, h.DevMode)
		return
	}
	earthRadius, _, err := unitFactors(chi.URLParam(r, "unit"))
	if err != nil {
		response.Error(w, r, err, h.DevMode)
		return
	}

	tours, err := h.catalog.Within(r.Context(), lat, lng, distance/earthRadius)
	if err != nil {
		response.Error(w, r, err, h.DevMode)
		return
	}
	if tours == nil {
		tours = []domain.Tour{}
	}
	response.WriteList(w, http.StatusOK, len(tours), tours)
}

// Distances lists every tour with its distance from the caller:
// /distances/{latlng}/unit/{unit}.
func (h *ToursHandler) Distances(w http.ResponseWriter, r *http.Request) {
	lat, lng, err := parseLatLng(chi.URLParam(r, "latlng"))
	if err != nil {
		response.Error(w, r, err, h.DevMode)
		return
	}
	_, multiplier, err := unitFactors(chi.URLParam(r, "unit"))
	if err != nil {
		response.Error(w, r, err, h.DevMode)
		return
	}

	distances, err := h.catalog.Distances(r.Context(), lat, lng, multiplier)
	if err != nil {
		response.Error(w, r, err, h.DevMode)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"distances": distances})
}

func parseLatLng(raw string) (lat, lng float64, err error) {
	raw, _ = url.PathUnescape(raw)
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return 0, 0, apperr.Validation("Please provide latitude and longitude in the format lat,lng")
	}
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, lngErr := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if latErr != nil || lngErr != nil {
		return 0, 0, apperr.Validation("Please provide latitude and longitude in the format lat,lng")
	}
	return lat, lng, nil
}

func unitFactors(unit string) (earthRadius, multiplier float64, err error) {
	switch unit {
	case "mi":
		return earthRadiusMiles, metersToMiles, nil
	case "km":
		return earthRadiusKm, metersToKm, nil
	default:
		return 0, 0, apperr.Validation("Unit must be either mi or km")
	}
}
