package ws

import (
	"context"
	"errors"

	"github.com/gorilla/websocket"

	"github.com/example/trip-dispatch/internal/auth"
	"github.com/example/trip-dispatch/internal/dispatch"
	"github.com/example/trip-dispatch/internal/gateway"
	"github.com/example/trip-dispatch/internal/location"
	"github.com/example/trip-dispatch/internal/models"
	"github.com/example/trip-dispatch/internal/observability"
)

// actionHandler is implemented once per role. The role is fixed at
// connection time, so there is no per-message role dispatch.
type actionHandler interface {
	handle(ctx context.Context, act models.ClientAction)
}

// runSession registers the participant, pumps inbound messages to its
// role handler, and unregisters on any read error. Each session runs on
// its own goroutine; a failure here never touches other sessions or
// in-flight trips.
func (s *Server) runSession(ident auth.Identity, conn *websocket.Conn) {
	sess := gateway.NewWSSession(conn)
	defer sess.Close()

	var handler actionHandler
	switch ident.Role {
	case models.RoleDriver:
		s.presence.RegisterDriver(ident.ID, sess)
		handler = &driverSession{srv: s, driverID: ident.ID, sess: sess}
	case models.RolePassenger:
		s.presence.RegisterPassenger(ident.ID, sess)
		handler = &passengerSession{srv: s, passengerID: ident.ID, sess: sess}
	default:
		s.logger.Warn("connection refused", "participant", ident.ID, "role", ident.Role)
		return
	}

	observability.ConnectedParticipants.WithLabelValues(string(ident.Role)).Inc()
	s.logger.Info("participant connected", "participant", ident.ID, "role", ident.Role)
	defer func() {
		s.presence.Unregister(ident.ID, ident.Role, sess)
		observability.ConnectedParticipants.WithLabelValues(string(ident.Role)).Dec()
		s.logger.Info("participant disconnected", "participant", ident.ID, "role", ident.Role)
	}()

	ctx := context.Background()
	for {
		var act models.ClientAction
		if err := conn.ReadJSON(&act); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("read ended", "participant", ident.ID, "error", err)
			}
			return
		}
		observability.WSMessages.WithLabelValues(act.Action).Inc()
		handler.handle(ctx, act)
	}
}

type driverSession struct {
	srv      *Server
	driverID string
	sess     *gateway.WSSession
}

func (d *driverSession) handle(ctx context.Context, act models.ClientAction) {
	srv := d.srv
	switch act.Action {
	case "update_location":
		if err := srv.locations.Update(ctx, d.driverID, act.Lat, act.Lon); err != nil {
			if errors.Is(err, location.ErrValidation) {
				d.sess.Send(map[string]any{"error": "invalid coordinates"})
				return
			}
			srv.logger.Error("location update failed", "driver_id", d.driverID, "error", err)
			return
		}
		if srv.producer != nil {
			if err := srv.producer.PublishLocation(ctx, models.DriverLocation{DriverID: d.driverID, Lat: act.Lat, Lon: act.Lon}); err != nil {
				srv.logger.Warn("location feed publish failed", "driver_id", d.driverID, "error", err)
			}
		}
		d.sess.Send(map[string]any{"status": "location_updated"})

	case "accept_trip":
		err := srv.ctrl.Accept(ctx, d.driverID, act.TripID, act.Seq)
		d.logOutcome("accept_trip", act.TripID, err)

	case "reject_trip":
		err := srv.ctrl.Reject(ctx, d.driverID, act.TripID, act.Seq)
		d.logOutcome("reject_trip", act.TripID, err)

	default:
		srv.logger.Debug("unknown driver action", "driver_id", d.driverID, "action", act.Action)
	}
}

// Stale or misaddressed accept/reject attempts are a silent no-op toward
// the driver; they only show up in logs and metrics.
func (d *driverSession) logOutcome(action, tripID string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, dispatch.ErrNotFound):
		d.srv.logger.Warn("action on unknown trip", "action", action, "driver_id", d.driverID, "trip_id", tripID)
	case errors.Is(err, dispatch.ErrConflict):
		d.srv.logger.Info("stale action dropped", "action", action, "driver_id", d.driverID, "trip_id", tripID)
	default:
		d.srv.logger.Error("action failed", "action", action, "driver_id", d.driverID, "trip_id", tripID, "error", err)
	}
}

type passengerSession struct {
	srv         *Server
	passengerID string
	sess        *gateway.WSSession
}

func (p *passengerSession) handle(ctx context.Context, act models.ClientAction) {
	srv := p.srv
	switch act.Action {
	case "create_trip":
		if act.Origin == nil || act.Dest == nil {
			p.sess.Send(map[string]any{"error": "missing origen or destino"})
			return
		}
		trip, err := srv.ctrl.CreateTrip(ctx, p.passengerID, *act.Origin, *act.Dest)
		if err != nil {
			srv.logger.Warn("trip creation failed", "passenger_id", p.passengerID, "error", err)
			p.sess.Send(map[string]any{"error": "could not create trip"})
			return
		}
		srv.logger.Info("trip created", "trip_id", trip.ID, "passenger_id", p.passengerID, "state", trip.State)

	default:
		srv.logger.Debug("unknown passenger action", "passenger_id", p.passengerID, "action", act.Action)
	}
}
