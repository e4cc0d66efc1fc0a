// Package floorplan holds the trilateration result viewer: a floor plan with estimated
// positions and a paginated switcher to re-run the estimation on another floor.
package floorplan

import (
	"time"

	"github.com/google/uuid"
)

// MinTaps is the number of contributing taps trilateration needs.
const MinTaps = 3

type Location struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type TapPosition struct {
	TapUUID uuid.UUID `json:"tap_uuid"`
	Name    string    `json:"name"`
	X       int       `json:"x"`
	Y       int       `json:"y"`
}

type Floor struct {
	ID           uuid.UUID     `json:"id"`
	Number       int64         `json:"number"`
	Name         string        `json:"name"`
	TapPositions []TapPosition `json:"tap_positions"`
}

type Plan struct {
	ImageBase64  string  `json:"image_base64"`
	WidthPixels  int     `json:"width_pixels"`
	LengthPixels int     `json:"length_pixels"`
	WidthMeters  float64 `json:"width_meters"`
	LengthMeters float64 `json:"length_meters"`
}

// Position is one estimated location of the target, in plan pixels.
type Position struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Timestamp time.Time `json:"timestamp"`
}

// Result is a trilateration result as produced by the platform.
type Result struct {
	GeneratedAt       time.Time  `json:"generated_at"`
	TenantLocation    Location   `json:"tenant_location"`
	TenantFloor       Floor      `json:"tenant_floor"`
	TargetDescription string     `json:"target_description"`
	Plan              Plan       `json:"plan"`
	Locations         []Position `json:"locations"`
}

// FloorSummary is one row of a location's floor listing.
type FloorSummary struct {
	ID           uuid.UUID `json:"id"`
	Number       int64     `json:"number"`
	Name         string    `json:"name"`
	HasFloorPlan bool      `json:"has_floor_plan"`
	TapCount     int64     `json:"tap_count"`
}

// Eligible reports whether trilateration can run on the floor. The floor currently
// shown is excluded separately.
func (f FloorSummary) Eligible() bool {
	return f.HasFloorPlan && f.TapCount >= MinTaps
}

type FloorPage struct {
	Count  int64          `json:"count"`
	Floors []FloorSummary `json:"floors"`
}
