package maps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"googlemaps.github.io/maps"
)

const maxSuggestions = 5

// PlacesService handles interactions with the Place Autocomplete API.
type PlacesService struct {
	client   *maps.Client
	timeout  time.Duration
	language string
	region   string
}

func NewPlacesService(opts Options) (*PlacesService, error) {
	client, err := newClient(opts)
	if err != nil {
		return nil, err
	}
	return &PlacesService{
		client:   client,
		timeout:  timeoutOrDefault(opts.Timeout),
		language: opts.Language,
		region:   opts.Region,
	}, nil
}

// Suggestions returns up to five address predictions for partial input.
func (s *PlacesService) Suggestions(ctx context.Context, input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if len(input) < 3 {
		return nil, fmt.Errorf("%w: input must be at least 3 characters", ErrInvalidLocation)
	}
	if s.client == nil {
		return nil, fmt.Errorf("%w: maps api key not configured", ErrProviderUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	r := &maps.PlaceAutocompleteRequest{
		Input:    input,
		Language: s.language,
	}
	if s.region != "" {
		r.Components = map[maps.Component][]string{maps.ComponentCountry: {s.region}}
	}

	resp, err := s.client.PlaceAutocomplete(ctx, r)
	if err != nil {
		return nil, classify("place autocomplete", err)
	}

	out := make([]string, 0, maxSuggestions)
	for _, p := range resp.Predictions {
		if p.Description == "" {
			continue
		}
		out = append(out, p.Description)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out, nil
}
