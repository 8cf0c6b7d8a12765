package location

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/trip-dispatch/internal/geo"
	"github.com/example/trip-dispatch/internal/models"
)

// ErrValidation marks an out-of-range coordinate. The update is rejected
// but the connection stays open.
var ErrValidation = errors.New("validation error")

// Store holds each driver's last reported point. Updates are last-writer
// wins; readers tolerate staleness, so no coordination beyond the atomic
// upsert is needed. A driver stays in the snapshot after disconnecting.
type Store interface {
	Update(ctx context.Context, driverID string, lat, lon float64) error
	Snapshot(ctx context.Context) ([]models.DriverLocation, error)
}

// MemoryStore is the in-process implementation used by the matcher.
type MemoryStore struct {
	mu      sync.RWMutex
	drivers map[string]models.DriverLocation
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drivers: make(map[string]models.DriverLocation), now: time.Now}
}

func (s *MemoryStore) Update(_ context.Context, driverID string, lat, lon float64) error {
	if !geo.ValidCoord(lat, lon) {
		return fmt.Errorf("%w: coordinates out of range (%f, %f)", ErrValidation, lat, lon)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drivers[driverID] = models.DriverLocation{DriverID: driverID, Lat: lat, Lon: lon, Updated: s.now()}
	return nil
}

func (s *MemoryStore) Snapshot(_ context.Context) ([]models.DriverLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.DriverLocation, 0, len(s.drivers))
	for _, d := range s.drivers {
		out = append(out, d)
	}
	return out, nil
}

// Get is used by tests and the ops surface.
func (s *MemoryStore) Get(driverID string) (models.DriverLocation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drivers[driverID]
	return d, ok
}
