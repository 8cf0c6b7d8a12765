// Package dispatch owns the trip lifecycle: the offer state machine, the
// per-offer timeout, and trip persistence. Every transition on a trip is
// serialized behind that trip's lock and re-checked against the offer
// sequence number, so a reject, an accept, and a timeout racing for the
// same offer resolve to exactly one winner. Transitions on different
// trips never contend.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/trip-dispatch/internal/gateway"
	"github.com/example/trip-dispatch/internal/geo"
	"github.com/example/trip-dispatch/internal/location"
	"github.com/example/trip-dispatch/internal/match"
	"github.com/example/trip-dispatch/internal/models"
	"github.com/example/trip-dispatch/internal/observability"
)

var (
	// ErrNotFound marks a transition referencing an unknown trip. Logged
	// and ignored, never surfaced to the caller's connection.
	ErrNotFound = errors.New("trip not found")
	// ErrConflict marks a stale transition: wrong driver, wrong state, or
	// a superseded sequence number. Silent no-op toward the caller.
	ErrConflict = errors.New("concurrency conflict")
	// ErrValidation marks out-of-range trip coordinates.
	ErrValidation = errors.New("validation error")
)

// Presence is the slice of the registry the controller needs.
type Presence interface {
	TrackOffer(driverID, tripID string)
	ReleaseOffer(driverID, tripID string)
}

// Publisher is the messaging gateway contract: fire-and-forget group
// delivery to current members only.
type Publisher interface {
	Publish(group string, v any)
}

// Controller coordinates matching, offers, and trip state.
type Controller struct {
	locations location.Store
	presence  Presence
	hub       Publisher
	store     TripStore
	sched     Scheduler
	timeout   time.Duration
	logger    *slog.Logger

	mu    sync.Mutex
	trips map[string]*tripEntry

	now   func() time.Time
	newID func() string
}

// tripEntry pairs a trip with its lock and the currently armed timer.
// The lock serializes every transition on this trip.
type tripEntry struct {
	mu    sync.Mutex
	trip  *models.Trip
	timer TimerHandle
}

func NewController(locations location.Store, reg Presence, hub Publisher, store TripStore, sched Scheduler, timeout time.Duration, logger *slog.Logger) *Controller {
	return &Controller{
		locations: locations,
		presence:  reg,
		hub:       hub,
		store:     store,
		sched:     sched,
		timeout:   timeout,
		logger:    logger,
		trips:     make(map[string]*tripEntry),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// CreateTrip registers a passenger's request and immediately runs the
// first assignment pass. The returned trip is a snapshot copy.
func (c *Controller) CreateTrip(ctx context.Context, passengerID string, origin, dest models.Coord) (models.Trip, error) {
	if !geo.ValidCoord(origin.Lat, origin.Lng) || !geo.ValidCoord(dest.Lat, dest.Lng) {
		return models.Trip{}, fmt.Errorf("%w: trip coordinates out of range", ErrValidation)
	}

	now := c.now()
	trip := &models.Trip{
		ID:          c.newID(),
		PassengerID: passengerID,
		Origin:      origin,
		Destination: dest,
		State:       models.TripRequested,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	entry := &tripEntry{trip: trip}

	c.mu.Lock()
	c.trips[trip.ID] = entry
	c.mu.Unlock()

	if err := c.store.SaveTrip(ctx, trip); err != nil {
		c.logger.Error("trip save failed", "trip_id", trip.ID, "error", err)
	}
	observability.TripsCreated.Inc()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	c.offerNext(ctx, entry)
	return *entry.trip, nil
}

// Accept resolves the outstanding offer in the driver's favor. Valid
// only for the currently assigned driver while the trip is Offered and
// the sequence number still matches; anything else is a no-op reported
// as ErrConflict or ErrNotFound for internal logging.
func (c *Controller) Accept(ctx context.Context, driverID, tripID string, seq uint64) error {
	entry, ok := c.entry(tripID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, tripID)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	trip := entry.trip

	if err := c.checkOffered(trip, driverID, seq); err != nil {
		observability.StaleTransitions.Inc()
		return err
	}

	c.resolvePending(trip, models.OfferAccepted)
	trip.State = models.TripAccepted
	trip.UpdatedAt = c.now()
	c.cancelTimer(entry)
	c.presence.ReleaseOffer(driverID, tripID)
	observability.OffersResolved.WithLabelValues(string(models.OfferAccepted)).Inc()

	c.hub.Publish(gateway.DriverGroup(driverID), map[string]any{"status": "trip_accepted"})
	c.hub.Publish(gateway.PassengerGroup(trip.PassengerID), map[string]any{
		"status":    "trip_accepted",
		"driver_id": driverID,
	})
	c.persist(ctx, trip)
	return nil
}

// Reject resolves the offer against the driver and immediately re-enters
// assignment with the rejecting driver excluded. No waiting period.
func (c *Controller) Reject(ctx context.Context, driverID, tripID string, seq uint64) error {
	entry, ok := c.entry(tripID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, tripID)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	trip := entry.trip

	if err := c.checkOffered(trip, driverID, seq); err != nil {
		observability.StaleTransitions.Inc()
		return err
	}

	c.resolvePending(trip, models.OfferRejected)
	trip.State = models.TripRequested
	trip.AssignedDriver = ""
	trip.UpdatedAt = c.now()
	c.cancelTimer(entry)
	c.presence.ReleaseOffer(driverID, tripID)
	observability.OffersResolved.WithLabelValues(string(models.OfferRejected)).Inc()

	c.offerNext(ctx, entry)
	return nil
}

// Cancel transitions any non-terminal trip to Cancelled. Exposed for the
// external cancellation surface.
func (c *Controller) Cancel(ctx context.Context, tripID string) error {
	entry, ok := c.entry(tripID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, tripID)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	trip := entry.trip
	if trip.State == models.TripCancelled || trip.State == models.TripCompleted {
		return fmt.Errorf("%w: trip %s already %s", ErrConflict, tripID, trip.State)
	}

	if pending := trip.PendingOffer(); pending != nil {
		pending.Outcome = models.OfferSuperseded
		c.presence.ReleaseOffer(pending.DriverID, tripID)
	}
	c.cancelTimer(entry)
	trip.State = models.TripCancelled
	trip.AssignedDriver = ""
	trip.UpdatedAt = c.now()
	c.persist(ctx, trip)
	return nil
}

// Complete closes out an accepted trip.
func (c *Controller) Complete(ctx context.Context, tripID string) error {
	entry, ok := c.entry(tripID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, tripID)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	trip := entry.trip
	if trip.State != models.TripAccepted {
		return fmt.Errorf("%w: trip %s is %s", ErrConflict, tripID, trip.State)
	}
	trip.State = models.TripCompleted
	trip.UpdatedAt = c.now()
	c.persist(ctx, trip)
	return nil
}

// Redispatch retries assignment for an Unassignable trip. There is no
// automatic retry when a driver later appears; this is the external
// trigger for it.
func (c *Controller) Redispatch(ctx context.Context, tripID string) error {
	entry, ok := c.entry(tripID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, tripID)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	trip := entry.trip
	if trip.State != models.TripUnassignable {
		return fmt.Errorf("%w: trip %s is %s", ErrConflict, tripID, trip.State)
	}
	trip.State = models.TripRequested
	c.offerNext(ctx, entry)
	return nil
}

// Get returns a snapshot copy of the trip.
func (c *Controller) Get(tripID string) (models.Trip, bool) {
	entry, ok := c.entry(tripID)
	if !ok {
		return models.Trip{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	t := *entry.trip
	t.Offers = append([]models.OfferRecord(nil), entry.trip.Offers...)
	return t, true
}

// offerNext runs the Requested -> Offered transition: pick the nearest
// non-excluded driver, extend the offer, arm its timer. Callers hold
// entry.mu.
func (c *Controller) offerNext(ctx context.Context, entry *tripEntry) {
	trip := entry.trip

	snapshot, err := c.locations.Snapshot(ctx)
	if err != nil {
		c.logger.Error("location snapshot failed", "trip_id", trip.ID, "error", err)
		snapshot = nil
	}

	driverID, found := match.SelectNearest(trip.Origin, snapshot, trip.Excluded())
	if !found {
		trip.State = models.TripUnassignable
		trip.AssignedDriver = ""
		trip.UpdatedAt = c.now()
		observability.TripsUnassignable.Inc()
		c.logger.Warn("no drivers available", "trip_id", trip.ID, "excluded", len(trip.Excluded()))
		c.hub.Publish(gateway.PassengerGroup(trip.PassengerID), map[string]any{"status": "no_drivers_available"})
		c.persist(ctx, trip)
		return
	}

	now := c.now()
	trip.Seq++
	trip.Offers = append(trip.Offers, models.OfferRecord{
		DriverID:  driverID,
		Seq:       trip.Seq,
		OfferedAt: now,
		ExpiresAt: now.Add(c.timeout),
		Outcome:   models.OfferPending,
	})
	trip.State = models.TripOffered
	trip.AssignedDriver = driverID
	trip.UpdatedAt = now

	c.presence.TrackOffer(driverID, trip.ID)
	observability.OffersTotal.Inc()
	c.logger.Info("offer extended", "trip_id", trip.ID, "driver_id", driverID, "seq", trip.Seq)

	c.hub.Publish(gateway.DriverGroup(driverID), map[string]any{
		"type":    "trip_assigned",
		"trip_id": trip.ID,
		"origen":  trip.Origin,
		"destino": trip.Destination,
		"seq":     trip.Seq,
	})
	c.hub.Publish(gateway.PassengerGroup(trip.PassengerID), map[string]any{
		"status":    "trip_assigned",
		"driver_id": driverID,
	})
	c.persist(ctx, trip)

	seq := trip.Seq
	entry.timer = c.sched.Arm(trip.ID, seq, c.timeout, func() {
		c.expire(trip.ID, seq)
	})
}

// expire is the timer callback. It is valid only while the trip is still
// Offered with the sequence number it was armed for; a resolved or
// superseded offer makes it a no-op.
func (c *Controller) expire(tripID string, seq uint64) {
	entry, ok := c.entry(tripID)
	if !ok {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	trip := entry.trip

	if trip.State != models.TripOffered || trip.Seq != seq {
		observability.StaleTransitions.Inc()
		return
	}

	driverID := trip.AssignedDriver
	c.resolvePending(trip, models.OfferTimedOut)
	trip.State = models.TripRequested
	trip.AssignedDriver = ""
	trip.UpdatedAt = c.now()
	c.presence.ReleaseOffer(driverID, tripID)
	observability.OffersResolved.WithLabelValues(string(models.OfferTimedOut)).Inc()
	c.logger.Info("offer timed out", "trip_id", tripID, "driver_id", driverID, "seq", seq)

	c.hub.Publish(gateway.DriverGroup(driverID), map[string]any{
		"type":    "trip_timeout",
		"trip_id": tripID,
		"message": "trip reassigned due to no response",
	})

	ctx := context.Background()
	c.offerNext(ctx, entry)
}

// checkOffered is the compare-and-swap guard shared by accept and
// reject. seq zero means the client did not echo one; the assigned
// driver plus Offered state then identify the pending offer, since an
// excluded driver is never re-offered the same trip.
func (c *Controller) checkOffered(trip *models.Trip, driverID string, seq uint64) error {
	if trip.State != models.TripOffered {
		return fmt.Errorf("%w: trip %s is %s", ErrConflict, trip.ID, trip.State)
	}
	if trip.AssignedDriver != driverID {
		return fmt.Errorf("%w: trip %s not offered to %s", ErrConflict, trip.ID, driverID)
	}
	if seq != 0 && seq != trip.Seq {
		return fmt.Errorf("%w: trip %s seq %d superseded by %d", ErrConflict, trip.ID, seq, trip.Seq)
	}
	return nil
}

func (c *Controller) resolvePending(trip *models.Trip, outcome models.OfferOutcome) {
	if pending := trip.PendingOffer(); pending != nil {
		pending.Outcome = outcome
	}
}

func (c *Controller) cancelTimer(entry *tripEntry) {
	if entry.timer != nil {
		entry.timer.Cancel()
		entry.timer = nil
	}
}

func (c *Controller) persist(ctx context.Context, trip *models.Trip) {
	if err := c.store.UpdateTrip(ctx, trip); err != nil {
		c.logger.Error("trip update failed", "trip_id", trip.ID, "error", err)
	}
}

func (c *Controller) entry(tripID string) (*tripEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.trips[tripID]
	return e, ok
}
