// Package geo provides great-circle distance and coarse grid quantization
// for deal coordinates.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// DefaultCellSizeDeg is the standard grid cell size (~1.1km of latitude).
const DefaultCellSizeDeg = 0.01

// HaversineKm returns the great-circle distance in kilometers between two
// WGS84 points.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// SnapToGrid rounds a coordinate to the nearest multiple of cellSizeDeg.
// The snapped point is the anchor of the cell the coordinate belongs to.
func SnapToGrid(lat, lng, cellSizeDeg float64) (float64, float64) {
	if cellSizeDeg <= 0 {
		cellSizeDeg = DefaultCellSizeDeg
	}
	return math.Round(lat/cellSizeDeg) * cellSizeDeg,
		math.Round(lng/cellSizeDeg) * cellSizeDeg
}

// GridCell returns a stable string key for the grid cell containing the
// coordinate. Two points in the same cell always share a key. Points on
// opposite sides of a cell boundary land in different cells even when they
// are close together; that approximation is accepted.
func GridCell(lat, lng, cellSizeDeg float64) string {
	sLat, sLng := SnapToGrid(lat, lng, cellSizeDeg)
	return fmt.Sprintf("%.4f:%.4f", sLat, sLng)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
