package models

import "time"

// Coord is a geographic point. The wire form uses lat/lng keys to stay
// compatible with the existing mobile clients.
type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Role is the participant capability, fixed at connection time.
type Role string

const (
	RoleDriver    Role = "driver"
	RolePassenger Role = "passenger"
)

// TripState enumerates the trip lifecycle.
type TripState string

const (
	TripRequested    TripState = "requested"
	TripOffered      TripState = "offered"
	TripAccepted     TripState = "accepted"
	TripUnassignable TripState = "unassignable"
	TripCancelled    TripState = "cancelled"
	TripCompleted    TripState = "completed"
)

// Terminal reports whether no further automatic transition applies.
func (s TripState) Terminal() bool {
	switch s {
	case TripAccepted, TripUnassignable, TripCancelled, TripCompleted:
		return true
	}
	return false
}

// OfferOutcome is the single eventual resolution of one offer.
type OfferOutcome string

const (
	OfferPending    OfferOutcome = "pending"
	OfferAccepted   OfferOutcome = "accepted"
	OfferRejected   OfferOutcome = "rejected"
	OfferTimedOut   OfferOutcome = "timed_out"
	OfferSuperseded OfferOutcome = "superseded"
)

// OfferRecord is one append-only entry in a trip's offer history.
type OfferRecord struct {
	DriverID  string       `json:"driver_id"`
	Seq       uint64       `json:"seq"`
	OfferedAt time.Time    `json:"offered_at"`
	ExpiresAt time.Time    `json:"expires_at"`
	Outcome   OfferOutcome `json:"outcome"`
}

// Trip is the dispatch unit. It is owned by the lifecycle controller and
// mutated only through its transition functions; the sequence number
// guards every read-modify-write.
type Trip struct {
	ID             string        `json:"id"`
	PassengerID    string        `json:"passenger_id"`
	Origin         Coord         `json:"origen"`
	Destination    Coord         `json:"destino"`
	State          TripState     `json:"state"`
	AssignedDriver string        `json:"assigned_driver,omitempty"`
	Seq            uint64        `json:"seq"`
	Offers         []OfferRecord `json:"offers"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Excluded returns the ids of drivers who already rejected or timed out
// on this trip. Pending and accepted entries do not exclude.
func (t *Trip) Excluded() map[string]struct{} {
	out := make(map[string]struct{}, len(t.Offers))
	for _, o := range t.Offers {
		if o.Outcome == OfferRejected || o.Outcome == OfferTimedOut {
			out[o.DriverID] = struct{}{}
		}
	}
	return out
}

// PendingOffer returns the single pending entry, if any.
func (t *Trip) PendingOffer() *OfferRecord {
	for i := len(t.Offers) - 1; i >= 0; i-- {
		if t.Offers[i].Outcome == OfferPending {
			return &t.Offers[i]
		}
	}
	return nil
}

// ClientAction is the envelope for every inbound websocket message.
// Fields beyond Action are populated depending on the action.
type ClientAction struct {
	Action string  `json:"action"`
	Lat    float64 `json:"lat,omitempty"`
	Lon    float64 `json:"lon,omitempty"`
	Origin *Coord  `json:"origen,omitempty"`
	Dest   *Coord  `json:"destino,omitempty"`
	TripID string  `json:"trip_id,omitempty"`
	Seq    uint64  `json:"seq,omitempty"`
}

// DriverLocation is the location-feed record published to Kafka and
// mirrored into Redis by the consumer.
type DriverLocation struct {
	DriverID string    `json:"driver_id"`
	Lat      float64   `json:"lat"`
	Lon      float64   `json:"lon"`
	Updated  time.Time `json:"updated"`
}
