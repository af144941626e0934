// README: Pricing service computes fares and fare previews.
package pricing

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"tripnow/internal/maps"
	"tripnow/internal/types"
)

type Router interface {
	Route(ctx context.Context, origin, destination maps.Location) (maps.RouteEstimate, error)
}

type Service struct {
	store  *Store
	router Router

	mu    sync.RWMutex
	rates map[string]Rate
}

func NewService(store *Store, router Router) *Service {
	s := &Service{store: store, router: router}
	s.SetRates(DefaultRates)
	return s
}

// SetRates replaces the rate table. The default class must stay priced, so
// rates lacking it keep the built-in default entry.
func (s *Service) SetRates(rates []Rate) {
	table := make(map[string]Rate, len(rates)+1)
	for _, r := range DefaultRates {
		if r.VehicleClass == DefaultClass {
			table[DefaultClass] = r
		}
	}
	for _, r := range rates {
		key := strings.ToLower(strings.TrimSpace(r.VehicleClass))
		if key == "" {
			continue
		}
		if r.Currency == "" {
			r.Currency = types.DefaultCurrency
		}
		r.VehicleClass = key
		table[key] = r
	}
	s.mu.Lock()
	s.rates = table
	s.mu.Unlock()
}

// LoadRates pulls overrides from the store, if one is configured.
func (s *Service) LoadRates(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	rates, err := s.store.ListRates(ctx)
	if err != nil {
		return fmt.Errorf("load fare rates: %w", err)
	}
	if len(rates) == 0 {
		return nil
	}
	merged := append([]Rate{}, DefaultRates...)
	merged = append(merged, rates...)
	s.SetRates(merged)
	return nil
}

// NormalizeClass resolves aliases and unknown classes to a priced class.
func (s *Service) NormalizeClass(class string) string {
	key := strings.ToLower(strings.TrimSpace(class))
	if alias, ok := classAliases[key]; ok {
		key = alias
	}
	s.mu.RLock()
	_, ok := s.rates[key]
	s.mu.RUnlock()
	if !ok {
		return DefaultClass
	}
	return key
}

// Classes lists priced vehicle classes in name order.
func (s *Service) Classes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.rates))
	for k := range s.rates {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Fare prices a trip. Malformed inputs count as zero, so the result is
// never negative.
func (s *Service) Fare(distanceKm, durationMin float64, class string) types.Money {
	key := s.NormalizeClass(class)
	s.mu.RLock()
	rate := s.rates[key]
	s.mu.RUnlock()

	total := rate.BaseFare + sanitize(distanceKm)*rate.PerKm + sanitize(durationMin)*rate.PerMinute
	return types.MoneyFromMajor(total, rate.Currency)
}

// Quote resolves the route and prices it for one class.
func (s *Service) Quote(ctx context.Context, pickup, dropoff maps.Location, class string) (Quote, error) {
	est, err := s.route(ctx, pickup, dropoff)
	if err != nil {
		return Quote{}, err
	}
	return s.quoteFor(est, class), nil
}

// QuoteAll prices one route for every class.
func (s *Service) QuoteAll(ctx context.Context, pickup, dropoff maps.Location) ([]Quote, error) {
	est, err := s.route(ctx, pickup, dropoff)
	if err != nil {
		return nil, err
	}
	classes := s.Classes()
	out := make([]Quote, 0, len(classes))
	for _, c := range classes {
		out = append(out, s.quoteFor(est, c))
	}
	return out, nil
}

func (s *Service) route(ctx context.Context, pickup, dropoff maps.Location) (maps.RouteEstimate, error) {
	if s.router == nil {
		return maps.RouteEstimate{}, maps.ErrProviderUnavailable
	}
	return s.router.Route(ctx, pickup, dropoff)
}

func (s *Service) quoteFor(est maps.RouteEstimate, class string) Quote {
	key := s.NormalizeClass(class)
	return Quote{
		VehicleClass:  key,
		Fare:          s.Fare(est.DistanceKm, float64(est.DurationMin), key),
		DistanceKm:    est.DistanceKm,
		DurationMin:   est.DurationMin,
		DistanceLabel: est.DistanceLabel,
		DurationLabel: est.DurationLabel,
	}
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
