package telemetry

import "fmt"

// Kind is the storage type behind a [Slot].
type Kind uint8

const (
	// KindFloat slots hold a float64 reading.
	KindFloat Kind = iota + 1
	// KindInt slots hold a whole number; the decoded reading is
	// truncated toward zero.
	KindInt
	// KindText slots hold bounded text.
	KindText
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Slot identifies one datum inside a [Snapshot].
type Slot uint8

// Scalar slots, in registry order.
const (
	SlotCurrentPower Slot = iota
	SlotTotalPower
	SlotSolarPower
	SlotGasConsumption
	SlotGasCost
	SlotSolarDaily
	SlotTempIndoor
	SlotWaterDaily
	SlotWaterTotal
	SlotGridDaily
	SlotWeatherCondition
	SlotTempOutdoor
	SlotHumidityOutdoor
	SlotHumidityIndoor
	SlotPressure
	SlotWindSpeed
	SlotWindBearing
	SlotSunrise
	SlotSunset
	SlotGridYTD
	SlotGasYTD
	SlotSolarYTD
	SlotWaterYTD

	// slotForecastBase is the first forecast slot. Forecast slots are
	// laid out day-major: day 0 high, low, precip, condition, then day 1.
	slotForecastBase
)

// ForecastDays is the length of the forecast sequence.
const ForecastDays = 7

// ForecastPart selects one datum of a [ForecastDay].
type ForecastPart uint8

const (
	ForecastHigh ForecastPart = iota
	ForecastLow
	ForecastPrecip
	ForecastCondition

	forecastParts
)

// slotCount is the total number of slots in a Snapshot.
const slotCount = int(slotForecastBase) + ForecastDays*int(forecastParts)

// ForecastSlot returns the slot for one part of one forecast day.
// day must be in [0, ForecastDays).
func ForecastSlot(day int, part ForecastPart) Slot {
	return slotForecastBase + Slot(day*int(forecastParts)) + Slot(part)
}

// forecast splits a forecast slot into its day and part. ok is false
// for scalar slots.
func (s Slot) forecast() (day int, part ForecastPart, ok bool) {
	if s < slotForecastBase || int(s) >= slotCount {
		return 0, 0, false
	}
	off := int(s - slotForecastBase)
	return off / int(forecastParts), ForecastPart(off % int(forecastParts)), true
}

// String returns the topic that fills the slot.
func (s Slot) String() string {
	if int(s) < slotCount {
		return registry.fields[registry.bySlot[s]].Topic
	}
	return fmt.Sprintf("slot(%d)", uint8(s))
}

// Rule describes how a payload becomes a stored value.
type Rule struct {
	Kind Kind
	// Divisor scales numeric readings at decode time (stored = parsed /
	// Divisor). Zero means no scaling.
	Divisor float64
	// MaxLen is the longest text, in bytes, a text slot keeps.
	MaxLen int
	// Notify marks condition fields whose change should reach the
	// display without waiting for its next tick.
	Notify bool
}

// Field is one registry entry.
type Field struct {
	Topic string
	Slot  Slot
	Rule  Rule
}

// Text bounds for the bounded text slots.
const (
	MaxConditionLen         = 31
	MaxTimeOfDayLen         = 7
	MaxForecastConditionLen = 15
)

var (
	ruleFloat    = Rule{Kind: KindFloat}
	ruleKilo     = Rule{Kind: KindFloat, Divisor: 1000}
	ruleInt      = Rule{Kind: KindInt}
	ruleTimeText = Rule{Kind: KindText, MaxLen: MaxTimeOfDayLen}
)

type fieldTable struct {
	fields  []Field
	byTopic map[string]int
	bySlot  [slotCount]int
}

var registry = buildRegistry()

func buildRegistry() *fieldTable {
	fields := []Field{
		{"current_power", SlotCurrentPower, ruleFloat},
		{"total_power", SlotTotalPower, ruleKilo}, // Wh -> kWh
		{"solar_power", SlotSolarPower, ruleFloat},
		{"gas_consumption", SlotGasConsumption, ruleFloat},
		{"gas_cost", SlotGasCost, ruleFloat},
		{"solar_daily", SlotSolarDaily, ruleKilo}, // Wh -> kWh
		{"temp_indoor", SlotTempIndoor, ruleFloat},
		{"water_daily", SlotWaterDaily, ruleFloat},
		{"water_total", SlotWaterTotal, ruleFloat},
		{"grid_daily", SlotGridDaily, ruleFloat},
		{"weather_condition", SlotWeatherCondition, Rule{Kind: KindText, MaxLen: MaxConditionLen, Notify: true}},
		{"weather_temp", SlotTempOutdoor, ruleFloat},
		{"weather_humidity", SlotHumidityOutdoor, ruleFloat},
		{"humidity_indoor", SlotHumidityIndoor, ruleFloat},
		{"weather_pressure", SlotPressure, ruleFloat},
		{"weather_wind_speed", SlotWindSpeed, ruleFloat},
		{"weather_wind_bearing", SlotWindBearing, ruleInt},
		{"sun_rise", SlotSunrise, ruleTimeText},
		{"sun_set", SlotSunset, ruleTimeText},
		{"grid_ytd", SlotGridYTD, ruleFloat},
		{"gas_ytd", SlotGasYTD, ruleFloat},
		{"solar_ytd", SlotSolarYTD, ruleFloat},
		{"water_ytd", SlotWaterYTD, ruleFloat},
	}

	for day := range ForecastDays {
		prefix := fmt.Sprintf("forecast_%d_", day)
		fields = append(fields,
			Field{prefix + "high", ForecastSlot(day, ForecastHigh), ruleFloat},
			Field{prefix + "low", ForecastSlot(day, ForecastLow), ruleFloat},
			Field{prefix + "precip", ForecastSlot(day, ForecastPrecip), ruleFloat},
			Field{prefix + "condition", ForecastSlot(day, ForecastCondition),
				Rule{Kind: KindText, MaxLen: MaxForecastConditionLen, Notify: true}},
		)
	}

	t := &fieldTable{
		fields:  fields,
		byTopic: make(map[string]int, len(fields)),
	}
	seen := make(map[Slot]bool, len(fields))
	for i, f := range fields {
		if _, dup := t.byTopic[f.Topic]; dup {
			panic("telemetry: duplicate topic " + f.Topic)
		}
		if seen[f.Slot] {
			panic(fmt.Sprintf("telemetry: slot %d registered twice", f.Slot))
		}
		seen[f.Slot] = true
		t.byTopic[f.Topic] = i
		t.bySlot[f.Slot] = i
	}
	if len(fields) != slotCount {
		panic(fmt.Sprintf("telemetry: %d fields registered for %d slots", len(fields), slotCount))
	}
	return t
}

// Resolve returns the registry entry for topic. Matching is exact and
// case-sensitive over the whole string; ok is false for anything else.
func Resolve(topic string) (Field, bool) {
	i, ok := registry.byTopic[topic]
	if !ok {
		return Field{}, false
	}
	return registry.fields[i], true
}

// Fields returns a copy of the registry in registry order.
func Fields() []Field {
	out := make([]Field, len(registry.fields))
	copy(out, registry.fields)
	return out
}

// Topics returns every registered topic in registry order. This is the
// order subscriptions are issued in.
func Topics() []string {
	out := make([]string, len(registry.fields))
	for i, f := range registry.fields {
		out[i] = f.Topic
	}
	return out
}
