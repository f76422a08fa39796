// README: Trip plan store backed by SQLite (local runs and tests).
package tripplan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ryokou/internal/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS trip_plans (
    id               TEXT PRIMARY KEY,
    destination_id   TEXT NOT NULL,
    departure_date   TEXT NOT NULL,
    return_date      TEXT NOT NULL,
    origin           TEXT NOT NULL,
    destination_name TEXT NOT NULL,
    destination_key  TEXT NOT NULL,
    latitude         REAL NOT NULL DEFAULT 0,
    longitude        REAL NOT NULL DEFAULT 0,
    flight_budget    REAL NOT NULL DEFAULT 0,
    hotel_budget     REAL NOT NULL DEFAULT 0,
    is_favorite      INTEGER NOT NULL DEFAULT 0,
    selected_flight  BLOB,
    selected_hotel   BLOB,
    itinerary        BLOB NOT NULL,
    created_at       TEXT NOT NULL,
    updated_at       TEXT NOT NULL,
    UNIQUE (destination_id, departure_date, return_date)
);
CREATE INDEX IF NOT EXISTS trip_plans_departure_idx ON trip_plans (departure_date DESC);
`

// SQLiteStore keeps dates as YYYY-MM-DD text and timestamps as RFC 3339 text,
// both of which sort chronologically.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the schema if needed. db must use the modernc "sqlite" driver.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("create trip_plans schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteColumns = `
    id, destination_id, departure_date, return_date, origin, destination_name,
    latitude, longitude, flight_budget, hotel_budget, is_favorite,
    selected_flight, selected_hotel, itinerary, created_at, updated_at`

func (s *SQLiteStore) Upsert(ctx context.Context, w Write) (*TripPlan, error) {
	p := w.Plan
	b, err := encodeBlobs(p)
	if err != nil {
		return nil, err
	}
	var favorite any
	if w.Favorite != nil {
		favorite = *w.Favorite
	}
	now := p.UpdatedAt.UTC().Format(time.RFC3339Nano)

	row := s.db.QueryRowContext(ctx, `
        INSERT INTO trip_plans (
            id, destination_id, departure_date, return_date, origin, destination_name, destination_key,
            latitude, longitude, flight_budget, hotel_budget, is_favorite,
            selected_flight, selected_hotel, itinerary, created_at, updated_at
        ) VALUES (
            ?1, ?2, ?3, ?4, ?5, ?6, ?7,
            ?8, ?9, ?10, ?11, COALESCE(?12, 0),
            ?13, ?14, ?15, ?16, ?16
        )
        ON CONFLICT (destination_id, departure_date, return_date) DO UPDATE SET
            origin = excluded.origin,
            destination_name = excluded.destination_name,
            destination_key = excluded.destination_key,
            latitude = excluded.latitude,
            longitude = excluded.longitude,
            flight_budget = excluded.flight_budget,
            hotel_budget = excluded.hotel_budget,
            is_favorite = COALESCE(?12, trip_plans.is_favorite),
            selected_flight = excluded.selected_flight,
            selected_hotel = excluded.selected_hotel,
            itinerary = excluded.itinerary,
            updated_at = excluded.updated_at
        RETURNING`+sqliteColumns,
		p.ID, p.DestinationID, p.DepartureDate.String(), p.ReturnDate.String(), p.Origin, p.DestinationName, foldName(p.DestinationName),
		p.Latitude, p.Longitude, p.FlightBudgetUSD, p.HotelBudgetUSD, favorite,
		nullable(b.flight), nullable(b.hotel), b.itinerary, now,
	)
	return scanSQLite(row)
}

func (s *SQLiteStore) SetFavorite(ctx context.Context, key Key, favorite bool) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE trip_plans
        SET is_favorite = ?, updated_at = ?
        WHERE destination_id = ? AND departure_date = ? AND return_date = ?`,
		favorite, time.Now().UTC().Format(time.RFC3339Nano),
		key.DestinationID, key.DepartureDate.String(), key.ReturnDate.String(),
	)
	return affectedOne(res, err)
}

func (s *SQLiteStore) Get(ctx context.Context, key Key) (*TripPlan, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT`+sqliteColumns+`
        FROM trip_plans
        WHERE destination_id = ? AND departure_date = ? AND return_date = ?`,
		key.DestinationID, key.DepartureDate.String(), key.ReturnDate.String(),
	)
	return scanSQLite(row)
}

func (s *SQLiteStore) Search(ctx context.Context, folded string) ([]TripPlan, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT`+sqliteColumns+`
        FROM trip_plans
        WHERE ?1 = '' OR instr(destination_key, ?1) > 0
        ORDER BY departure_date DESC, return_date DESC, destination_id`,
		folded,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TripPlan
	for rows.Next() {
		p, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, key Key) error {
	res, err := s.db.ExecContext(ctx, `
        DELETE FROM trip_plans
        WHERE destination_id = ? AND departure_date = ? AND return_date = ?`,
		key.DestinationID, key.DepartureDate.String(), key.ReturnDate.String(),
	)
	return affectedOne(res, err)
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row scanner) (*TripPlan, error) {
	var p TripPlan
	var departure, ret, created, updated string
	var b blobs
	err := row.Scan(
		&p.ID, &p.DestinationID, &departure, &ret, &p.Origin, &p.DestinationName,
		&p.Latitude, &p.Longitude, &p.FlightBudgetUSD, &p.HotelBudgetUSD, &p.IsFavorite,
		&b.flight, &b.hotel, &b.itinerary, &created, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if p.DepartureDate, err = types.ParseDate(departure); err != nil {
		return nil, err
	}
	if p.ReturnDate, err = types.ParseDate(ret); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if err := b.decodeInto(&p); err != nil {
		return nil, err
	}
	return &p, nil
}
