// README: Distance/duration and geocoding adapter over the Google Maps APIs.
package maps

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"googlemaps.github.io/maps"

	"tripnow/internal/types"
)

var (
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	ErrRouteNotFound       = errors.New("route not found")
	ErrProviderError       = errors.New("routing provider error")
	ErrInvalidLocation     = errors.New("invalid location")
)

const defaultTimeout = 5 * time.Second

// Options configures the Google Maps backed services. An empty APIKey yields
// services whose calls fail with ErrProviderUnavailable.
type Options struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	Language   string
	Region     string
	HTTPClient *http.Client
}

// Location is either free text or a coordinate pair.
type Location struct {
	Address string
	Point   *types.Point
}

// ParseLocation treats "lat,lng" as a coordinate and anything else as an address.
func ParseLocation(s string) Location {
	s = strings.TrimSpace(s)
	if lat, lng, ok := strings.Cut(s, ","); ok {
		la, errLat := strconv.ParseFloat(strings.TrimSpace(lat), 64)
		ln, errLng := strconv.ParseFloat(strings.TrimSpace(lng), 64)
		p := types.Point{Lat: la, Lng: ln}
		if errLat == nil && errLng == nil && p.Valid() {
			return Location{Point: &p}
		}
	}
	return Location{Address: s}
}

func (l Location) query() (string, error) {
	if l.Point != nil {
		if !l.Point.Valid() {
			return "", ErrInvalidLocation
		}
		return strconv.FormatFloat(l.Point.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(l.Point.Lng, 'f', 6, 64), nil
	}
	if strings.TrimSpace(l.Address) == "" {
		return "", ErrInvalidLocation
	}
	return strings.TrimSpace(l.Address), nil
}

func (l Location) String() string {
	q, _ := l.query()
	return q
}

// RouteEstimate is the normalized provider answer. DistanceKm has two
// decimals and DurationMin is rounded to the nearest minute.
type RouteEstimate struct {
	DistanceKm    float64 `json:"distance"`
	DurationMin   int     `json:"duration"`
	DistanceLabel string  `json:"distanceText"`
	DurationLabel string  `json:"durationText"`
}

// RouteService handles interactions with the Distance Matrix and Geocoding APIs.
type RouteService struct {
	client   *maps.Client
	timeout  time.Duration
	language string
	region   string
}

func NewRouteService(opts Options) (*RouteService, error) {
	client, err := newClient(opts)
	if err != nil {
		return nil, err
	}
	return &RouteService{
		client:   client,
		timeout:  timeoutOrDefault(opts.Timeout),
		language: opts.Language,
		region:   opts.Region,
	}, nil
}

// Route returns driving distance and duration between origin and destination.
func (s *RouteService) Route(ctx context.Context, origin, destination Location) (RouteEstimate, error) {
	o, err := origin.query()
	if err != nil {
		return RouteEstimate{}, fmt.Errorf("origin: %w", err)
	}
	d, err := destination.query()
	if err != nil {
		return RouteEstimate{}, fmt.Errorf("destination: %w", err)
	}
	if s.client == nil {
		return RouteEstimate{}, fmt.Errorf("%w: maps api key not configured", ErrProviderUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.DistanceMatrix(ctx, &maps.DistanceMatrixRequest{
		Origins:      []string{o},
		Destinations: []string{d},
		Mode:         maps.TravelModeDriving,
		Language:     s.language,
	})
	if err != nil {
		return RouteEstimate{}, classify("distance matrix", err)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return RouteEstimate{}, fmt.Errorf("%w: empty distance matrix", ErrProviderError)
	}

	el := resp.Rows[0].Elements[0]
	switch el.Status {
	case "OK":
	case "NOT_FOUND", "ZERO_RESULTS":
		return RouteEstimate{}, fmt.Errorf("%w: %s -> %s (%s)", ErrRouteNotFound, o, d, el.Status)
	default:
		return RouteEstimate{}, fmt.Errorf("%w: element status %s", ErrProviderError, el.Status)
	}

	minutes := int(math.Round(el.Duration.Minutes()))
	return RouteEstimate{
		DistanceKm:    math.Round(float64(el.Distance.Meters)/10) / 100,
		DurationMin:   minutes,
		DistanceLabel: el.Distance.HumanReadable,
		DurationLabel: formatMinutes(minutes),
	}, nil
}

// Geocode resolves an address to the first matching coordinate.
func (s *RouteService) Geocode(ctx context.Context, address string) (types.Point, error) {
	loc := ParseLocation(address)
	if loc.Point != nil {
		return *loc.Point, nil
	}
	if _, err := loc.query(); err != nil {
		return types.Point{}, err
	}
	if s.client == nil {
		return types.Point{}, fmt.Errorf("%w: maps api key not configured", ErrProviderUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results, err := s.client.Geocode(ctx, &maps.GeocodingRequest{
		Address:  loc.Address,
		Region:   s.region,
		Language: s.language,
	})
	if err != nil {
		return types.Point{}, classify("geocode", err)
	}
	if len(results) == 0 {
		return types.Point{}, fmt.Errorf("%w: no coordinates for %q", ErrRouteNotFound, address)
	}
	ll := results[0].Geometry.Location
	return types.Point{Lat: ll.Lat, Lng: ll.Lng}, nil
}

func newClient(opts Options) (*maps.Client, error) {
	if opts.APIKey == "" {
		return nil, nil
	}
	clientOpts := []maps.ClientOption{maps.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, maps.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, maps.WithHTTPClient(opts.HTTPClient))
	}
	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return client, nil
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultTimeout
	}
	return d
}

// classify maps client errors onto the adapter's error kinds. The client
// reports non-OK top-level statuses as "maps: STATUS - message".
func classify(op string, err error) error {
	var urlErr *url.Error
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w: %v", op, ErrProviderUnavailable, err)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "ZERO_RESULTS"), strings.Contains(msg, "NOT_FOUND"):
		return fmt.Errorf("%s: %w: %v", op, ErrRouteNotFound, err)
	case strings.Contains(msg, "REQUEST_DENIED"), strings.Contains(msg, "OVER_QUERY_LIMIT"), strings.Contains(msg, "OVER_DAILY_LIMIT"):
		return fmt.Errorf("%s: %w: %v", op, ErrProviderUnavailable, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrProviderError, err)
}

func formatMinutes(m int) string {
	switch {
	case m < 60:
		if m == 1 {
			return "1 min"
		}
		return fmt.Sprintf("%d mins", m)
	case m%60 == 0:
		return fmt.Sprintf("%d h", m/60)
	default:
		return fmt.Sprintf("%d h %d mins", m/60, m%60)
	}
}
