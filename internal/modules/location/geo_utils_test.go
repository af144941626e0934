package location

import (
	"math"
	"testing"

	"tripnow/internal/modules/driver"
	"tripnow/internal/types"
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lng1      float64
		lat2      float64
		lng2      float64
		wantKm    float64
		tolerance float64
	}{
		{
			name: "same point",
			lat1: 28.6139, lng1: 77.2090,
			lat2: 28.6139, lng2: 77.2090,
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name: "India Gate to Connaught Place (~2.4km)",
			lat1: 28.6129, lng1: 77.2295,
			lat2: 28.6315, lng2: 77.2167,
			wantKm:    2.4,
			tolerance: 0.3,
		},
		{
			name: "Delhi to Mumbai (~1150km)",
			lat1: 28.7041, lng1: 77.1025,
			lat2: 19.0760, lng2: 72.8777,
			wantKm:    1150,
			tolerance: 20,
		},
		{
			name: "one degree of latitude",
			lat1: 10, lng1: 77,
			lat2: 11, lng2: 77,
			wantKm:    111.195,
			tolerance: 0.01,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := haversineKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("haversineKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversineKm_Symmetry(t *testing.T) {
	d1 := DistanceKm(types.Point{Lat: 25, Lng: 121}, types.Point{Lat: 26, Lng: 122})
	d2 := DistanceKm(types.Point{Lat: 26, Lng: 122}, types.Point{Lat: 25, Lng: 121})
	if math.Abs(d1-d2) > 0.0001 {
		t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
	}
}

func TestSortByDistance(t *testing.T) {
	items := []NearbyDriver{
		{Driver: driver.Driver{ID: "c"}, DistanceKm: 5.0},
		{Driver: driver.Driver{ID: "a"}, DistanceKm: 1.0},
		{Driver: driver.Driver{ID: "b"}, DistanceKm: 3.0},
	}

	sortByDistance(items, func(n NearbyDriver) float64 { return n.DistanceKm })

	if items[0].Driver.ID != "a" || items[1].Driver.ID != "b" || items[2].Driver.ID != "c" {
		t.Errorf("unexpected sort order: %v", items)
	}
}

func TestSortByDistance_Empty(t *testing.T) {
	var items []NearbyDriver
	sortByDistance(items, func(n NearbyDriver) float64 { return n.DistanceKm })
}
