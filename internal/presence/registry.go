// Package presence tracks which participants are connected and which
// groups they belong to. Connectivity is advisory: a driver's last known
// location outlives the connection, and an outstanding offer is never
// cancelled on disconnect — the offer timeout handles silence of every
// kind.
package presence

import (
	"sync"

	"github.com/example/trip-dispatch/internal/gateway"
	"github.com/example/trip-dispatch/internal/models"
)

// DriverPresence is the registry's view of one driver.
type DriverPresence struct {
	Connected bool
	// Offers holds the trip ids of outstanding offers. Nothing stops a
	// driver from holding offers on several trips at once.
	Offers map[string]struct{}
}

type Registry struct {
	mu      sync.Mutex
	hub     *gateway.Hub
	drivers map[string]*DriverPresence
}

func NewRegistry(hub *gateway.Hub) *Registry {
	return &Registry{hub: hub, drivers: make(map[string]*DriverPresence)}
}

// RegisterDriver joins the driver to its personal group and the shared
// drivers group. The caller has already been authenticated and
// role-checked at the handshake.
func (r *Registry) RegisterDriver(driverID string, s gateway.Sender) {
	r.hub.Join(gateway.DriverGroup(driverID), s)
	r.hub.Join(gateway.AllDrivers, s)

	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.driverLocked(driverID)
	d.Connected = true
}

// RegisterPassenger joins the passenger's personal group only.
func (r *Registry) RegisterPassenger(passengerID string, s gateway.Sender) {
	r.hub.Join(gateway.PassengerGroup(passengerID), s)
}

// Unregister leaves all groups and flips connectivity. Outstanding
// offers are left untouched.
func (r *Registry) Unregister(participantID string, role models.Role, s gateway.Sender) {
	r.hub.LeaveAll(s)
	if role != models.RoleDriver {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.drivers[participantID]; ok {
		d.Connected = false
	}
}

// TrackOffer records an outstanding offer against the driver.
func (r *Registry) TrackOffer(driverID, tripID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.driverLocked(driverID)
	d.Offers[tripID] = struct{}{}
}

// ReleaseOffer clears a resolved offer.
func (r *Registry) ReleaseOffer(driverID, tripID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.drivers[driverID]; ok {
		delete(d.Offers, tripID)
	}
}

// Connected reports the driver's connectivity flag.
func (r *Registry) Connected(driverID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drivers[driverID]
	return ok && d.Connected
}

// OutstandingOffers returns the trip ids currently offered to the driver.
func (r *Registry) OutstandingOffers(driverID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drivers[driverID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(d.Offers))
	for id := range d.Offers {
		out = append(out, id)
	}
	return out
}

func (r *Registry) driverLocked(driverID string) *DriverPresence {
	d, ok := r.drivers[driverID]
	if !ok {
		d = &DriverPresence{Offers: make(map[string]struct{})}
		r.drivers[driverID] = d
	}
	return d
}
