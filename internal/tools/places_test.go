package tools

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPlaceSearch(t *testing.T) {
	var gotQuery map[string]string
	done := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"categories": q.Get("categories"),
			"filter":     q.Get("filter"),
			"limit":      q.Get("limit"),
			"apiKey":     q.Get("apiKey"),
		}
		done <- struct{}{}
		_, _ = w.Write([]byte(`{"features":[
			{"properties":{"name":"Le Procope","address_line1":"13 Rue de l'Ancienne Comédie","lat":48.853,"lon":2.339,"distance":420}},
			{"properties":{"address_line1":"No name street","lat":48.85,"lon":2.34}},
			{"properties":{"name":"No address","lat":48.85,"lon":2.34}},
			{"properties":{"name":"Chez Janou","address_line1":"2 Rue Roger Verlomme","lat":48.8566,"lon":2.3652}}
		]}`))
	}))
	defer srv.Close()

	search := NewRestaurantSearch(NewClient(time.Second, nil, 0), srv.URL, "geo-key")
	results, err := search.Search(context.Background(), PlaceSearchArgs{Latitude: 48.8566, Longitude: 2.3522})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	<-done

	want := map[string]string{
		"categories": "catering.restaurant",
		"filter":     "circle:2.3522,48.8566,5000",
		"limit":      "10",
		"apiKey":     "geo-key",
	}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Fatalf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}

	if len(results) != 2 {
		t.Fatalf("expected incomplete places to be dropped, got %+v", results)
	}
	if *results[0].Distance != 420 {
		t.Fatalf("provider distance not kept: %+v", results[0])
	}
	// Chez Janou lies on the same latitude, ~951 m east.
	if d := *results[1].Distance; math.Abs(d-951) > 20 {
		t.Fatalf("computed distance = %.1f", d)
	}
}

func TestShoppingSearchCategoryAndFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("categories") != "commercial.shopping_mall" {
			t.Errorf("unexpected category %q", r.URL.Query().Get("categories"))
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	search := NewShoppingSearch(NewClient(time.Second, nil, 0), srv.URL, "bad-key")
	if search.Name() != NameSearchShopping {
		t.Fatalf("unexpected name %q", search.Name())
	}
	_, err := search.Search(context.Background(), PlaceSearchArgs{Latitude: 35.6762, Longitude: 139.6503, Radius: maxPrice(1500), Limit: intPtr(3)})
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
}
