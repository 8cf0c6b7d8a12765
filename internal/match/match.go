// Package match implements nearest-candidate selection. It is pure: it
// reads a location snapshot and mutates nothing.
package match

import (
	"github.com/example/trip-dispatch/internal/geo"
	"github.com/example/trip-dispatch/internal/models"
)

// SelectNearest returns the driver closest to origin, skipping any id in
// excluded. Only drivers report locations, so every snapshot entry is a
// candidate. Distances compare after rounding; exact ties break by
// ascending driver id for determinism. The second return is false when
// no candidate remains.
func SelectNearest(origin models.Coord, snapshot []models.DriverLocation, excluded map[string]struct{}) (string, bool) {
	bestID := ""
	bestDist := 0.0
	found := false
	for _, d := range snapshot {
		if _, skip := excluded[d.DriverID]; skip {
			continue
		}
		dist := geo.DistanceKm(origin.Lat, origin.Lng, d.Lat, d.Lon)
		switch {
		case !found, dist < bestDist:
			bestID, bestDist, found = d.DriverID, dist, true
		case dist == bestDist && d.DriverID < bestID:
			bestID = d.DriverID
		}
	}
	return bestID, found
}
