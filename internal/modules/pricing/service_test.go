package pricing

import (
	"context"
	"errors"
	"math"
	"testing"

	"tripnow/internal/maps"
)

func TestService_Fare(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		duration float64
		class    string
		want     int64 // minor units
	}{
		{name: "car base fare", distance: 0, duration: 0, class: "car", want: 5000},
		{name: "car trip", distance: 10, duration: 20, class: "car", want: 50*100 + 150*100 + 60*100},
		{name: "auto trip", distance: 3.5, duration: 12, class: "auto", want: 2500 + 4200 + 2400},
		{name: "motorcycle half minutes", distance: 1, duration: 3, class: "motorcycle", want: 2000 + 800 + 450},
		{name: "bike alias", distance: 1, duration: 3, class: "bike", want: 2000 + 800 + 450},
		{name: "class is case-insensitive", distance: 0, duration: 0, class: " AUTO ", want: 2500},
		{name: "unknown class uses car", distance: 0, duration: 0, class: "helicopter", want: 5000},
		{name: "empty class uses car", distance: 0, duration: 0, class: "", want: 5000},
		{name: "NaN distance is zero", distance: math.NaN(), duration: 0, class: "car", want: 5000},
		{name: "negative duration is zero", distance: 0, duration: -4, class: "car", want: 5000},
		{name: "infinite distance is zero", distance: math.Inf(1), duration: 1, class: "car", want: 5300},
		// 50 + 1.234*15 = 68.51
		{name: "rounds half up to cents", distance: 1.234, duration: 0, class: "car", want: 6851},
	}

	s := NewService(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Fare(tt.distance, tt.duration, tt.class)
			if got.Amount != tt.want {
				t.Errorf("Fare() = %d, want %d", got.Amount, tt.want)
			}
			if got.Currency == "" {
				t.Errorf("Fare() currency empty")
			}
		})
	}
}

func TestService_FareMonotonic(t *testing.T) {
	s := NewService(nil, nil)
	for _, class := range s.Classes() {
		prev := s.Fare(0, 0, class).Amount
		for d := 0.5; d <= 40; d += 0.5 {
			got := s.Fare(d, d*2, class).Amount
			if got < prev {
				t.Fatalf("%s: fare decreased at %.1f km: %d < %d", class, d, got, prev)
			}
			if got < 0 {
				t.Fatalf("%s: negative fare %d", class, got)
			}
			if again := s.Fare(d, d*2, class).Amount; again != got {
				t.Fatalf("%s: fare not deterministic: %d vs %d", class, got, again)
			}
			prev = got
		}
	}
}

func TestService_FareSaturatesOnHugeInputs(t *testing.T) {
	s := NewService(nil, nil)
	inputs := []struct{ distance, duration float64 }{
		{1e15, 0},
		{1e17, 0},
		{1e17, 1e17},
		{1e300, 0},
		{1e308, 1e308},
		{math.MaxFloat64, math.MaxFloat64},
	}
	for _, class := range s.Classes() {
		prev := s.Fare(0, 0, class).Amount
		for _, in := range inputs {
			got := s.Fare(in.distance, in.duration, class).Amount
			if got < 0 {
				t.Fatalf("%s: negative fare %d for %g km / %g min", class, got, in.distance, in.duration)
			}
			if got < prev {
				t.Fatalf("%s: fare decreased at %g km / %g min: %d < %d", class, in.distance, in.duration, got, prev)
			}
			prev = got
		}
		if prev != math.MaxInt64 {
			t.Fatalf("%s: expected saturation at MaxInt64, got %d", class, prev)
		}
	}
}

func TestService_SetRatesKeepsDefaultClass(t *testing.T) {
	s := NewService(nil, nil)
	s.SetRates([]Rate{{VehicleClass: "XL", BaseFare: 80, PerKm: 20, PerMinute: 4}})

	if got := s.NormalizeClass("xl"); got != "xl" {
		t.Fatalf("NormalizeClass(xl) = %s", got)
	}
	if got := s.Fare(0, 0, "unknown").Amount; got != 5000 {
		t.Fatalf("default class fare = %d, want 5000", got)
	}
	if got := s.Fare(1, 1, "xl").Amount; got != 10400 {
		t.Fatalf("xl fare = %d, want 10400", got)
	}
}

type stubRouter struct {
	est maps.RouteEstimate
	err error
}

func (r stubRouter) Route(context.Context, maps.Location, maps.Location) (maps.RouteEstimate, error) {
	return r.est, r.err
}

func TestService_Quote(t *testing.T) {
	s := NewService(nil, stubRouter{est: maps.RouteEstimate{DistanceKm: 4.2, DurationMin: 11, DistanceLabel: "4.2 km", DurationLabel: "11 mins"}})

	q, err := s.Quote(context.Background(), maps.Location{Address: "A"}, maps.Location{Address: "B"}, "")
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	// 50 + 4.2*15 + 11*3 = 146
	if q.Fare.Amount != 14600 || q.VehicleClass != "car" || q.DurationMin != 11 {
		t.Fatalf("unexpected quote %+v", q)
	}

	all, err := s.QuoteAll(context.Background(), maps.Location{Address: "A"}, maps.Location{Address: "B"})
	if err != nil {
		t.Fatalf("QuoteAll() error = %v", err)
	}
	if len(all) != 3 || all[0].VehicleClass != "auto" || all[2].VehicleClass != "motorcycle" {
		t.Fatalf("unexpected quotes %+v", all)
	}
}

func TestService_QuoteProviderError(t *testing.T) {
	s := NewService(nil, stubRouter{err: maps.ErrRouteNotFound})
	_, err := s.Quote(context.Background(), maps.Location{Address: "A"}, maps.Location{Address: "B"}, "car")
	if !errors.Is(err, maps.ErrRouteNotFound) {
		t.Fatalf("expected ErrRouteNotFound, got %v", err)
	}

	_, err = NewService(nil, nil).Quote(context.Background(), maps.Location{Address: "A"}, maps.Location{Address: "B"}, "car")
	if !errors.Is(err, maps.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}
