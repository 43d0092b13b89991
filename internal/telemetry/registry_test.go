package telemetry

import (
	"strings"
	"testing"
)

func TestResolve_EveryRegisteredTopic(t *testing.T) {
	for _, f := range Fields() {
		got, ok := Resolve(f.Topic)
		if !ok {
			t.Errorf("Resolve(%q) not found", f.Topic)
			continue
		}
		if got.Slot != f.Slot {
			t.Errorf("Resolve(%q).Slot = %v, want %v", f.Topic, got.Slot, f.Slot)
		}
	}
}

func TestResolve_ExactMatchOnly(t *testing.T) {
	for _, f := range Fields() {
		for _, topic := range []string{
			f.Topic + "x",
			"x" + f.Topic,
			f.Topic[:len(f.Topic)-1],
			strings.ToUpper(f.Topic),
			" " + f.Topic,
			f.Topic + "/",
		} {
			if _, ok := Resolve(topic); ok {
				t.Errorf("Resolve(%q) matched, want no match", topic)
			}
		}
	}
}

func TestResolve_Unknown(t *testing.T) {
	for _, topic := range []string{"", "homeassistant/status", "forecast_7_high", "forecast_0", "current"} {
		if _, ok := Resolve(topic); ok {
			t.Errorf("Resolve(%q) matched, want no match", topic)
		}
	}
}

func TestRegistry_Shape(t *testing.T) {
	fields := Fields()
	if len(fields) != 23+ForecastDays*4 {
		t.Fatalf("len(Fields()) = %d, want %d", len(fields), 23+ForecastDays*4)
	}
	if fields[0].Topic != "current_power" {
		t.Errorf("first topic = %q, want current_power", fields[0].Topic)
	}
	if last := fields[len(fields)-1].Topic; last != "forecast_6_condition" {
		t.Errorf("last topic = %q, want forecast_6_condition", last)
	}

	topics := Topics()
	for i, f := range fields {
		if topics[i] != f.Topic {
			t.Errorf("Topics()[%d] = %q, want %q", i, topics[i], f.Topic)
		}
	}
}

func TestRegistry_Rules(t *testing.T) {
	tests := []struct {
		topic   string
		kind    Kind
		divisor float64
		maxLen  int
		notify  bool
	}{
		{"current_power", KindFloat, 0, 0, false},
		{"total_power", KindFloat, 1000, 0, false},
		{"solar_daily", KindFloat, 1000, 0, false},
		{"weather_wind_bearing", KindInt, 0, 0, false},
		{"weather_condition", KindText, 0, 31, true},
		{"sun_rise", KindText, 0, 7, false},
		{"sun_set", KindText, 0, 7, false},
		{"forecast_3_condition", KindText, 0, 15, true},
		{"forecast_3_precip", KindFloat, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			f, ok := Resolve(tt.topic)
			if !ok {
				t.Fatalf("Resolve(%q) not found", tt.topic)
			}
			if f.Rule.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", f.Rule.Kind, tt.kind)
			}
			if f.Rule.Divisor != tt.divisor {
				t.Errorf("Divisor = %v, want %v", f.Rule.Divisor, tt.divisor)
			}
			if f.Rule.MaxLen != tt.maxLen {
				t.Errorf("MaxLen = %d, want %d", f.Rule.MaxLen, tt.maxLen)
			}
			if f.Rule.Notify != tt.notify {
				t.Errorf("Notify = %v, want %v", f.Rule.Notify, tt.notify)
			}
		})
	}
}

func TestFields_ReturnsCopy(t *testing.T) {
	a := Fields()
	a[0].Topic = "mutated"
	if _, ok := Resolve("current_power"); !ok {
		t.Fatal("mutating Fields() result changed the registry")
	}
	if Fields()[0].Topic != "current_power" {
		t.Error("mutating Fields() result changed later results")
	}
}

func TestForecastSlot_RoundTrip(t *testing.T) {
	for day := range ForecastDays {
		for part := ForecastHigh; part < forecastParts; part++ {
			slot := ForecastSlot(day, part)
			gotDay, gotPart, ok := slot.forecast()
			if !ok || gotDay != day || gotPart != part {
				t.Errorf("ForecastSlot(%d, %d).forecast() = (%d, %d, %v)", day, part, gotDay, gotPart, ok)
			}
		}
	}
	if _, _, ok := SlotWaterYTD.forecast(); ok {
		t.Error("scalar slot reported as forecast slot")
	}
}

func TestSlot_String(t *testing.T) {
	if got := SlotSunrise.String(); got != "sun_rise" {
		t.Errorf("SlotSunrise.String() = %q, want sun_rise", got)
	}
	if got := ForecastSlot(2, ForecastLow).String(); got != "forecast_2_low" {
		t.Errorf("ForecastSlot(2, low).String() = %q, want forecast_2_low", got)
	}
}
