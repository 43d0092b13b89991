package telemetry

import (
	"strings"
	"testing"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		payload string
		want    float64
	}{
		{"1500", 1500},
		{"-3.25", -3.25},
		{" 21.5\n", 21.5},
		{"1e3", 1000},
		{"abc", 0},
		{"", 0},
		{"unavailable", 0},
		{"unknown", 0},
		{"12abc", 0},
		{"NaN", 0},
		{"+Inf", 0},
		{"1500" + strings.Repeat(" ", 30) + "x", 1500}, // only 31 bytes considered
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			if got := ParseNumber([]byte(tt.payload)); got != tt.want {
				t.Errorf("ParseNumber(%q) = %v, want %v", tt.payload, got, tt.want)
			}
		})
	}
}

func TestTruncateText(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		limit   int
		want    string
	}{
		{"fits", "06:15", 7, "06:15"},
		{"exact", "06:15:3", 7, "06:15:3"},
		{"sunrise overflow", "06:15:30Z", 7, "06:15:3"},
		{"empty", "", 7, ""},
		{"zero limit", "anything", 0, ""},
		{"rune boundary", "Bewölkt", 4, "Bew"},
		{"condition", "partlycloudy-with-a-chance-of-meatballs", 31, "partlycloudy-with-a-chance-of-m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateText([]byte(tt.payload), tt.limit)
			if got != tt.want {
				t.Errorf("TruncateText(%q, %d) = %q, want %q", tt.payload, tt.limit, got, tt.want)
			}
			if len(got) > tt.limit && tt.limit >= 0 {
				t.Errorf("len = %d exceeds limit %d", len(got), tt.limit)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	t.Run("kWh scaling", func(t *testing.T) {
		f, _ := Resolve("total_power")
		v := Decode(f.Rule, []byte("12000"))
		if v.Kind() != KindFloat || v.Float() != 12.0 {
			t.Errorf("Decode(total_power, 12000) = %v (%v), want 12.0", v.Float(), v.Kind())
		}
	})

	t.Run("malformed numeric", func(t *testing.T) {
		f, _ := Resolve("current_power")
		if v := Decode(f.Rule, []byte("abc")); v.Float() != 0 {
			t.Errorf("Decode(current_power, abc) = %v, want 0", v.Float())
		}
	})

	t.Run("integer truncates", func(t *testing.T) {
		f, _ := Resolve("weather_wind_bearing")
		v := Decode(f.Rule, []byte("271.9"))
		if v.Kind() != KindInt || v.Int() != 271 {
			t.Errorf("Decode(wind_bearing, 271.9) = %d (%v), want 271", v.Int(), v.Kind())
		}
	})

	t.Run("text bounded", func(t *testing.T) {
		f, _ := Resolve("sun_rise")
		v := Decode(f.Rule, []byte("06:15:30Z"))
		if v.Kind() != KindText || v.Text() != "06:15:3" {
			t.Errorf("Decode(sun_rise, 06:15:30Z) = %q, want %q", v.Text(), "06:15:3")
		}
	})

	t.Run("payload not retained", func(t *testing.T) {
		f, _ := Resolve("weather_condition")
		buf := []byte("sunny")
		v := Decode(f.Rule, buf)
		copy(buf, "XXXXX")
		if v.Text() != "sunny" {
			t.Errorf("decoded text changed with payload buffer: %q", v.Text())
		}
	})
}
