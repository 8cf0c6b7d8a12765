package location

import (
	"context"
	"errors"
	"testing"
)

func TestUpdateRejectsOutOfRange(t *testing.T) {
	s := NewMemoryStore()
	cases := [][2]float64{
		{90.1, 0},
		{-91, 0},
		{0, 180.5},
		{0, -181},
	}
	for _, c := range cases {
		if err := s.Update(context.Background(), "d1", c[0], c[1]); !errors.Is(err, ErrValidation) {
			t.Fatalf("Update(%f,%f): expected validation error, got %v", c[0], c[1], err)
		}
	}
	snap, _ := s.Snapshot(context.Background())
	if len(snap) != 0 {
		t.Fatal("rejected update leaked into snapshot")
	}
}

func TestUpdateLastWriterWins(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Update(ctx, "d1", 1, 1); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(ctx, "d1", 2, 3); err != nil {
		t.Fatal(err)
	}

	d, ok := s.Get("d1")
	if !ok || d.Lat != 2 || d.Lon != 3 {
		t.Fatalf("unexpected location: %+v", d)
	}
	if d.Updated.IsZero() {
		t.Fatal("timestamp not set")
	}

	snap, _ := s.Snapshot(ctx)
	if len(snap) != 1 {
		t.Fatalf("expected one driver, got %d", len(snap))
	}
}

func TestSnapshotIncludesAllKnownDrivers(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Update(ctx, "d1", 1, 1)
	_ = s.Update(ctx, "d2", 2, 2)
	_ = s.Update(ctx, "d3", 3, 3)

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap) != 3 {
		t.Fatalf("expected 3 drivers, got %d", len(snap))
	}
}
