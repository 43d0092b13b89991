package dashboard

import (
	"math"
	"testing"

	"github.com/nugget/wattdash/internal/telemetry"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestComputeCosts(t *testing.T) {
	s := telemetry.Snapshot{
		GridDaily:      10,
		GasConsumption: 2.5,
		GridYTD:        1200,
		SolarYTD:       800,
		GasYTD:         300,
		WaterYTD:       45000, // litres
	}

	tests := []struct {
		name   string
		prices Prices
		want   Costs
	}{
		{
			name:   "default tariff",
			prices: DefaultPrices,
			want: Costs{
				GridDaily:       3.0,
				GasDaily:        5.5,
				GridYTD:         360,
				SolarSavingsYTD: 240,
				GasYTD:          660,
				WaterYTD:        225,
			},
		},
		{
			name:   "custom tariff",
			prices: Prices{Grid: 0.5, Solar: 0.1, Gas: 1, Water: 2},
			want: Costs{
				GridDaily:       5,
				GasDaily:        2.5,
				GridYTD:         600,
				SolarSavingsYTD: 80,
				GasYTD:          300,
				WaterYTD:        90,
			},
		},
		{
			name:   "free",
			prices: Prices{},
			want:   Costs{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeCosts(s, tt.prices)
			pairs := []struct {
				field     string
				got, want float64
			}{
				{"GridDaily", got.GridDaily, tt.want.GridDaily},
				{"GasDaily", got.GasDaily, tt.want.GasDaily},
				{"GridYTD", got.GridYTD, tt.want.GridYTD},
				{"SolarSavingsYTD", got.SolarSavingsYTD, tt.want.SolarSavingsYTD},
				{"GasYTD", got.GasYTD, tt.want.GasYTD},
				{"WaterYTD", got.WaterYTD, tt.want.WaterYTD},
			}
			for _, p := range pairs {
				if !approx(p.got, p.want) {
					t.Errorf("%s = %v, want %v", p.field, p.got, p.want)
				}
			}
		})
	}
}

func TestComputeCosts_ZeroSnapshot(t *testing.T) {
	if got := ComputeCosts(telemetry.Snapshot{}, DefaultPrices); got != (Costs{}) {
		t.Errorf("ComputeCosts(zero) = %+v, want zero costs", got)
	}
}
