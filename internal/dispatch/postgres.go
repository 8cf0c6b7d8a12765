package dispatch

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "github.com/lib/pq"

	"github.com/example/trip-dispatch/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) SaveTrip(ctx context.Context, t *models.Trip) error {
	offers, err := json.Marshal(t.Offers)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO trips(id, passenger_id, origin_lat, origin_lng, dest_lat, dest_lng, state, assigned_driver, seq, offers, created_at, updated_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		t.ID, t.PassengerID, t.Origin.Lat, t.Origin.Lng, t.Destination.Lat, t.Destination.Lng,
		t.State, t.AssignedDriver, t.Seq, offers, t.CreatedAt, t.UpdatedAt)
	return err
}

func (p *PostgresStore) UpdateTrip(ctx context.Context, t *models.Trip) error {
	offers, err := json.Marshal(t.Offers)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`UPDATE trips SET state=$1, assigned_driver=$2, seq=$3, offers=$4, updated_at=$5 WHERE id=$6`,
		t.State, t.AssignedDriver, t.Seq, offers, t.UpdatedAt, t.ID)
	return err
}

func (p *PostgresStore) Close() error { return p.db.Close() }
