package telemetry

import "time"

// ForecastDay is one entry of the multi-day forecast. Day 0 is the
// nearest day in the publisher's numbering.
type ForecastDay struct {
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Precipitation float64 `json:"precipitation"`
	Condition     string  `json:"condition"`
}

// Snapshot is the full telemetry record. It is a plain value: copying
// it shares nothing mutable, so a snapshot handed out by [Store] never
// changes under its holder.
type Snapshot struct {
	CurrentPower   float64 `json:"current_power"`   // W
	SolarPower     float64 `json:"solar_power"`     // W
	TotalPower     float64 `json:"total_power"`     // kWh, lifetime
	SolarDaily     float64 `json:"solar_daily"`     // kWh
	GridDaily      float64 `json:"grid_daily"`      // kWh
	GasConsumption float64 `json:"gas_consumption"` // m3, today
	GasCost        float64 `json:"gas_cost"`        // EUR, as published
	WaterDaily     float64 `json:"water_daily"`     // L
	WaterTotal     float64 `json:"water_total"`     // m3

	TempOutdoor      float64 `json:"temp_outdoor"`
	TempIndoor       float64 `json:"temp_indoor"`
	HumidityOutdoor  float64 `json:"humidity_outdoor"`
	HumidityIndoor   float64 `json:"humidity_indoor"`
	WeatherCondition string  `json:"weather_condition"`
	Pressure         float64 `json:"pressure"`     // hPa
	WindSpeed        float64 `json:"wind_speed"`   // km/h
	WindBearing      int     `json:"wind_bearing"` // degrees
	Sunrise          string  `json:"sunrise"`
	Sunset           string  `json:"sunset"`

	GridYTD  float64 `json:"grid_ytd"`  // kWh
	SolarYTD float64 `json:"solar_ytd"` // kWh
	GasYTD   float64 `json:"gas_ytd"`   // m3
	WaterYTD float64 `json:"water_ytd"` // L

	Forecast [ForecastDays]ForecastDay `json:"forecast"`

	// UpdatedAt is when the most recent update was applied. Zero until
	// the first message arrives.
	UpdatedAt time.Time `json:"updated_at"`
}

// set writes v into slot. Callers hold the store lock.
func (s *Snapshot) set(slot Slot, v Value) {
	if day, part, ok := slot.forecast(); ok {
		d := &s.Forecast[day]
		switch part {
		case ForecastHigh:
			d.High = v.Float()
		case ForecastLow:
			d.Low = v.Float()
		case ForecastPrecip:
			d.Precipitation = v.Float()
		case ForecastCondition:
			d.Condition = v.Text()
		}
		return
	}

	switch slot {
	case SlotCurrentPower:
		s.CurrentPower = v.Float()
	case SlotTotalPower:
		s.TotalPower = v.Float()
	case SlotSolarPower:
		s.SolarPower = v.Float()
	case SlotGasConsumption:
		s.GasConsumption = v.Float()
	case SlotGasCost:
		s.GasCost = v.Float()
	case SlotSolarDaily:
		s.SolarDaily = v.Float()
	case SlotTempIndoor:
		s.TempIndoor = v.Float()
	case SlotWaterDaily:
		s.WaterDaily = v.Float()
	case SlotWaterTotal:
		s.WaterTotal = v.Float()
	case SlotGridDaily:
		s.GridDaily = v.Float()
	case SlotWeatherCondition:
		s.WeatherCondition = v.Text()
	case SlotTempOutdoor:
		s.TempOutdoor = v.Float()
	case SlotHumidityOutdoor:
		s.HumidityOutdoor = v.Float()
	case SlotHumidityIndoor:
		s.HumidityIndoor = v.Float()
	case SlotPressure:
		s.Pressure = v.Float()
	case SlotWindSpeed:
		s.WindSpeed = v.Float()
	case SlotWindBearing:
		s.WindBearing = v.Int()
	case SlotSunrise:
		s.Sunrise = v.Text()
	case SlotSunset:
		s.Sunset = v.Text()
	case SlotGridYTD:
		s.GridYTD = v.Float()
	case SlotGasYTD:
		s.GasYTD = v.Float()
	case SlotSolarYTD:
		s.SolarYTD = v.Float()
	case SlotWaterYTD:
		s.WaterYTD = v.Float()
	}
}
