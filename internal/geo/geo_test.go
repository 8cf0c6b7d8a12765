package geo

import "testing"

func TestDistanceZero(t *testing.T) {
	if d := DistanceKm(4.60971, -74.08175, 4.60971, -74.08175); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestDistanceSymmetric(t *testing.T) {
	pairs := [][4]float64{
		{4.60971, -74.08175, 4.61971, -74.09175},
		{0, 0, 10, 10},
		{-33.45, -70.66, 40.41, -3.70},
	}
	for _, p := range pairs {
		ab := DistanceKm(p[0], p[1], p[2], p[3])
		ba := DistanceKm(p[2], p[3], p[0], p[1])
		if ab != ba {
			t.Fatalf("asymmetric: %f vs %f", ab, ba)
		}
	}
}

func TestDistanceRounded(t *testing.T) {
	d := DistanceKm(4.60971, -74.08175, 4.61971, -74.09175)
	if d != float64(int(d*100))/100 {
		t.Fatalf("not rounded to 2 decimals: %f", d)
	}
	if d <= 0 || d > 5 {
		t.Fatalf("implausible distance: %f", d)
	}
}

func TestValidCoord(t *testing.T) {
	cases := []struct {
		lat, lon float64
		ok       bool
	}{
		{0, 0, true},
		{90, 180, true},
		{-90, -180, true},
		{90.1, 0, false},
		{0, -180.5, false},
		{-91, 200, false},
	}
	for _, c := range cases {
		if got := ValidCoord(c.lat, c.lon); got != c.ok {
			t.Fatalf("ValidCoord(%f,%f)=%v want %v", c.lat, c.lon, got, c.ok)
		}
	}
}
