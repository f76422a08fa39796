// README: Trip plan repository contract and the blob encoding shared by both backends.
package tripplan

import (
	"context"
	"encoding/json"
	"fmt"

	"ryokou/internal/modules/planner"
	"ryokou/internal/types"
)

// Repository persists trip plans. Implementations must make Upsert a single
// atomic statement on the natural key.
type Repository interface {
	// Upsert inserts or updates the plan for w.Plan.Key and returns the stored row.
	Upsert(ctx context.Context, w Write) (*TripPlan, error)
	SetFavorite(ctx context.Context, key Key, favorite bool) error
	Get(ctx context.Context, key Key) (*TripPlan, error)
	// Search returns plans whose folded destination name contains folded,
	// newest departure first. An empty filter matches everything.
	Search(ctx context.Context, folded string) ([]TripPlan, error)
	Delete(ctx context.Context, key Key) error
}

type blobs struct {
	flight    []byte
	hotel     []byte
	itinerary []byte
}

func encodeBlobs(p TripPlan) (blobs, error) {
	var b blobs
	var err error
	if p.SelectedFlight != nil {
		if b.flight, err = json.Marshal(p.SelectedFlight); err != nil {
			return b, fmt.Errorf("encode selected flight: %w", err)
		}
	}
	if p.SelectedHotel != nil {
		if b.hotel, err = json.Marshal(p.SelectedHotel); err != nil {
			return b, fmt.Errorf("encode selected hotel: %w", err)
		}
	}
	if b.itinerary, err = json.Marshal(p.Itinerary); err != nil {
		return b, fmt.Errorf("encode itinerary: %w", err)
	}
	return b, nil
}

func (b blobs) decodeInto(p *TripPlan) error {
	if len(b.flight) > 0 {
		var f types.FlightResult
		if err := json.Unmarshal(b.flight, &f); err != nil {
			return fmt.Errorf("decode selected flight: %w", err)
		}
		p.SelectedFlight = &f
	}
	if len(b.hotel) > 0 {
		var h types.HotelResult
		if err := json.Unmarshal(b.hotel, &h); err != nil {
			return fmt.Errorf("decode selected hotel: %w", err)
		}
		p.SelectedHotel = &h
	}
	var it planner.Itinerary
	if err := json.Unmarshal(b.itinerary, &it); err != nil {
		return fmt.Errorf("decode itinerary: %w", err)
	}
	p.Itinerary = it
	return nil
}

// nullable maps an absent blob to SQL NULL.
func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
