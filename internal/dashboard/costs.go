package dashboard

import "github.com/nugget/wattdash/internal/telemetry"

// Prices are the fixed unit prices behind the cost figures.
type Prices struct {
	Currency string  `json:"currency"`
	Grid     float64 `json:"grid_per_kwh"`
	Solar    float64 `json:"solar_per_kwh"`
	Gas      float64 `json:"gas_per_m3"`
	Water    float64 `json:"water_per_m3"`
}

// DefaultPrices matches the panel's factory tariff.
var DefaultPrices = Prices{
	Currency: "EUR",
	Grid:     0.30,
	Solar:    0.30,
	Gas:      2.20,
	Water:    5.00,
}

// Costs are money figures derived from a snapshot.
type Costs struct {
	GridDaily       float64 `json:"grid_daily"`
	GasDaily        float64 `json:"gas_daily"`
	GridYTD         float64 `json:"grid_ytd"`
	SolarSavingsYTD float64 `json:"solar_savings_ytd"`
	GasYTD          float64 `json:"gas_ytd"`
	WaterYTD        float64 `json:"water_ytd"`
}

// ComputeCosts prices the consumption figures in s. Water year-to-date
// arrives in litres and is priced per cubic metre.
func ComputeCosts(s telemetry.Snapshot, p Prices) Costs {
	return Costs{
		GridDaily:       s.GridDaily * p.Grid,
		GasDaily:        s.GasConsumption * p.Gas,
		GridYTD:         s.GridYTD * p.Grid,
		SolarSavingsYTD: s.SolarYTD * p.Solar,
		GasYTD:          s.GasYTD * p.Gas,
		WaterYTD:        s.WaterYTD / 1000 * p.Water,
	}
}
