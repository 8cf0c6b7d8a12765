package match

import (
	"testing"

	"github.com/example/trip-dispatch/internal/models"
)

func snapshot() []models.DriverLocation {
	return []models.DriverLocation{
		{DriverID: "d1", Lat: 4.60971, Lon: -74.08175},
		{DriverID: "d2", Lat: 4.61971, Lon: -74.09175},
	}
}

func TestSelectNearestPicksClosest(t *testing.T) {
	origin := models.Coord{Lat: 4.60971, Lng: -74.08175}
	id, ok := SelectNearest(origin, snapshot(), nil)
	if !ok {
		t.Fatal("expected a candidate")
	}
	if id != "d1" {
		t.Fatalf("expected d1, got %s", id)
	}
}

func TestSelectNearestHonorsExclusion(t *testing.T) {
	origin := models.Coord{Lat: 4.60971, Lng: -74.08175}
	excluded := map[string]struct{}{"d1": {}}
	id, ok := SelectNearest(origin, snapshot(), excluded)
	if !ok || id != "d2" {
		t.Fatalf("expected d2, got %s ok=%v", id, ok)
	}
}

func TestSelectNearestEmptyPool(t *testing.T) {
	origin := models.Coord{Lat: 0, Lng: 0}
	if _, ok := SelectNearest(origin, nil, nil); ok {
		t.Fatal("expected no candidate")
	}
	excluded := map[string]struct{}{"d1": {}, "d2": {}}
	if _, ok := SelectNearest(origin, snapshot(), excluded); ok {
		t.Fatal("expected no candidate when all excluded")
	}
}

func TestSelectNearestTieBreaksByID(t *testing.T) {
	origin := models.Coord{Lat: 0, Lng: 0}
	snap := []models.DriverLocation{
		{DriverID: "zeta", Lat: 1, Lon: 1},
		{DriverID: "alpha", Lat: 1, Lon: 1},
		{DriverID: "mike", Lat: 1, Lon: 1},
	}
	id, ok := SelectNearest(origin, snap, nil)
	if !ok || id != "alpha" {
		t.Fatalf("expected alpha on exact tie, got %s", id)
	}
}
