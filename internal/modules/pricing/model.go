// README: Pricing rate definition for each vehicle class.
package pricing

import "tripnow/internal/types"

type Rate struct {
	VehicleClass string
	BaseFare     float64
	PerKm        float64
	PerMinute    float64
	Currency     string
}

const DefaultClass = "car"

// DefaultRates is the built-in rate table; fare_rates rows override it.
var DefaultRates = []Rate{
	{VehicleClass: "auto", BaseFare: 25, PerKm: 12, PerMinute: 2, Currency: types.DefaultCurrency},
	{VehicleClass: "car", BaseFare: 50, PerKm: 15, PerMinute: 3, Currency: types.DefaultCurrency},
	{VehicleClass: "motorcycle", BaseFare: 20, PerKm: 8, PerMinute: 1.5, Currency: types.DefaultCurrency},
}

// classAliases maps alternate client spellings onto a rate table key.
var classAliases = map[string]string{
	"bike":  "motorcycle",
	"moto":  "motorcycle",
	"sedan": "car",
}

// Quote is a fare preview together with the route it was priced on.
type Quote struct {
	VehicleClass  string      `json:"vehicleType"`
	Fare          types.Money `json:"-"`
	DistanceKm    float64     `json:"distance"`
	DurationMin   int         `json:"duration"`
	DistanceLabel string      `json:"distanceText"`
	DurationLabel string      `json:"durationText"`
}
