// Package store persists itinerary records (name, start, ordered
// waypoints, end, creation time) in Postgres. The core engine only
// consumes the ordered stop list an itinerary yields.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"route-simulator/internal/geo"
	"route-simulator/internal/route"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// EnsureSchema creates the itinerary tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS itineraries (
			id         UUID PRIMARY KEY,
			name       TEXT NOT NULL UNIQUE,
			start_name TEXT NOT NULL,
			start_lat  DOUBLE PRECISION NOT NULL,
			start_lon  DOUBLE PRECISION NOT NULL,
			end_name   TEXT NOT NULL,
			end_lat    DOUBLE PRECISION NOT NULL,
			end_lon    DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS itinerary_waypoints (
			id           UUID PRIMARY KEY,
			itinerary_id UUID NOT NULL REFERENCES itineraries(id) ON DELETE CASCADE,
			position     INT NOT NULL,
			name         TEXT NOT NULL,
			lat          DOUBLE PRECISION NOT NULL,
			lon          DOUBLE PRECISION NOT NULL,
			UNIQUE (itinerary_id, position)
		)`,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Waypoint is an intermediate stop of a persisted itinerary, ordered
// by position.
type Waypoint struct {
	ID    uuid.UUID
	Name  string
	Point geo.Point
}

// Itinerary is a persisted route definition: start, ordered waypoints,
// end.
type Itinerary struct {
	ID        uuid.UUID
	Name      string
	Start     route.Stop
	Waypoints []Waypoint
	End       route.Stop
	CreatedAt time.Time
}

// Stops flattens the itinerary into the ordered stop list the composer
// consumes: start, waypoints by position, end.
func (it *Itinerary) Stops() []route.Stop {
	stops := make([]route.Stop, 0, len(it.Waypoints)+2)
	stops = append(stops, it.Start)
	for _, w := range it.Waypoints {
		stops = append(stops, route.Stop{Name: w.Name, Point: w.Point})
	}
	return append(stops, it.End)
}

var ErrNotFound = errors.New("store: itinerary not found")

// LoadItinerary fetches one itinerary and its waypoints by name.
func LoadItinerary(ctx context.Context, db *sql.DB, name string) (*Itinerary, error) {
	it := &Itinerary{}
	q := `SELECT id, name, start_name, start_lat, start_lon, end_name, end_lat, end_lon, created_at
	      FROM itineraries WHERE name = $1`
	err := db.QueryRowContext(ctx, q, name).Scan(
		&it.ID, &it.Name,
		&it.Start.Name, &it.Start.Point.Lat, &it.Start.Point.Lon,
		&it.End.Name, &it.End.Point.Lat, &it.End.Point.Lon,
		&it.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return nil, fmt.Errorf("query itinerary: %w", err)
	}

	wq := `SELECT id, name, lat, lon FROM itinerary_waypoints
	       WHERE itinerary_id = $1 ORDER BY position`
	rows, err := db.QueryContext(ctx, wq, it.ID)
	if err != nil {
		return nil, fmt.Errorf("query waypoints: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var w Waypoint
		if err := rows.Scan(&w.ID, &w.Name, &w.Point.Lat, &w.Point.Lon); err != nil {
			return nil, err
		}
		it.Waypoints = append(it.Waypoints, w)
	}
	return it, rows.Err()
}

// SaveItinerary inserts a new itinerary with its waypoints in one
// transaction. Missing ids are generated.
func SaveItinerary(ctx context.Context, db *sql.DB, it *Itinerary) error {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now()
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO itineraries (id, name, start_name, start_lat, start_lon, end_name, end_lat, end_lon, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		it.ID, it.Name,
		it.Start.Name, it.Start.Point.Lat, it.Start.Point.Lon,
		it.End.Name, it.End.Point.Lat, it.End.Point.Lon,
		it.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert itinerary: %w", err)
	}
	for i, w := range it.Waypoints {
		id := w.ID
		if id == uuid.Nil {
			id = uuid.New()
			it.Waypoints[i].ID = id
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO itinerary_waypoints (id, itinerary_id, position, name, lat, lon)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			id, it.ID, i, w.Name, w.Point.Lat, w.Point.Lon,
		)
		if err != nil {
			return fmt.Errorf("insert waypoint %d: %w", i, err)
		}
	}
	return tx.Commit()
}
