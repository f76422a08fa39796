// README: Trip plan store backed by PostgreSQL (schema in migrations/).
package tripplan

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ryokou/internal/types"
)

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const pgColumns = `
    id, destination_id, departure_date, return_date, origin, destination_name,
    latitude, longitude, flight_budget, hotel_budget, is_favorite,
    selected_flight, selected_hotel, itinerary, created_at, updated_at`

func (s *PostgresStore) Upsert(ctx context.Context, w Write) (*TripPlan, error) {
	p := w.Plan
	b, err := encodeBlobs(p)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRow(ctx, `
        INSERT INTO trip_plans (
            id, destination_id, departure_date, return_date, origin, destination_name, destination_key,
            latitude, longitude, flight_budget, hotel_budget, is_favorite,
            selected_flight, selected_hotel, itinerary, created_at, updated_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7,
            $8, $9, $10, $11, COALESCE($12::boolean, FALSE),
            $13, $14, $15, $16, $16
        )
        ON CONFLICT (destination_id, departure_date, return_date) DO UPDATE SET
            origin = EXCLUDED.origin,
            destination_name = EXCLUDED.destination_name,
            destination_key = EXCLUDED.destination_key,
            latitude = EXCLUDED.latitude,
            longitude = EXCLUDED.longitude,
            flight_budget = EXCLUDED.flight_budget,
            hotel_budget = EXCLUDED.hotel_budget,
            is_favorite = COALESCE($12::boolean, trip_plans.is_favorite),
            selected_flight = EXCLUDED.selected_flight,
            selected_hotel = EXCLUDED.selected_hotel,
            itinerary = EXCLUDED.itinerary,
            updated_at = EXCLUDED.updated_at
        RETURNING `+pgColumns,
		p.ID, p.DestinationID, p.DepartureDate.Time(), p.ReturnDate.Time(), p.Origin, p.DestinationName, foldName(p.DestinationName),
		p.Latitude, p.Longitude, p.FlightBudgetUSD, p.HotelBudgetUSD, w.Favorite,
		nullable(b.flight), nullable(b.hotel), b.itinerary, p.UpdatedAt,
	)
	return scanPostgres(row)
}

func (s *PostgresStore) SetFavorite(ctx context.Context, key Key, favorite bool) error {
	tag, err := s.db.Exec(ctx, `
        UPDATE trip_plans
        SET is_favorite = $4, updated_at = NOW()
        WHERE destination_id = $1 AND departure_date = $2 AND return_date = $3`,
		key.DestinationID, key.DepartureDate.Time(), key.ReturnDate.Time(), favorite,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key Key) (*TripPlan, error) {
	row := s.db.QueryRow(ctx, `
        SELECT`+pgColumns+`
        FROM trip_plans
        WHERE destination_id = $1 AND departure_date = $2 AND return_date = $3`,
		key.DestinationID, key.DepartureDate.Time(), key.ReturnDate.Time(),
	)
	return scanPostgres(row)
}

func (s *PostgresStore) Search(ctx context.Context, folded string) ([]TripPlan, error) {
	rows, err := s.db.Query(ctx, `
        SELECT`+pgColumns+`
        FROM trip_plans
        WHERE $1 = '' OR strpos(destination_key, $1) > 0
        ORDER BY departure_date DESC, return_date DESC, destination_id`,
		folded,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TripPlan
	for rows.Next() {
		p, err := scanPostgres(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, key Key) error {
	tag, err := s.db.Exec(ctx, `
        DELETE FROM trip_plans
        WHERE destination_id = $1 AND departure_date = $2 AND return_date = $3`,
		key.DestinationID, key.DepartureDate.Time(), key.ReturnDate.Time(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPostgres(row pgx.Row) (*TripPlan, error) {
	var p TripPlan
	var departure, ret time.Time
	var b blobs
	err := row.Scan(
		&p.ID, &p.DestinationID, &departure, &ret, &p.Origin, &p.DestinationName,
		&p.Latitude, &p.Longitude, &p.FlightBudgetUSD, &p.HotelBudgetUSD, &p.IsFavorite,
		&b.flight, &b.hotel, &b.itinerary, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.DepartureDate = types.DateOf(departure)
	p.ReturnDate = types.DateOf(ret)
	if err := b.decodeInto(&p); err != nil {
		return nil, err
	}
	return &p, nil
}
