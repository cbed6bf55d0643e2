package similarity

import (
	"fmt"
	"strconv"
	"strings"
)

var timeUnits = []struct {
	suffix string
	millis float64
}{
	{"ms", 1},
	{"s", 1000},
	{"m", 60 * 1000},
	{"h", 60 * 60 * 1000},
	{"d", 24 * 60 * 60 * 1000},
	{"w", 7 * 24 * 60 * 60 * 1000},
	{"M", 30 * 24 * 60 * 60 * 1000},
	{"y", 365 * 24 * 60 * 60 * 1000},
}

var distanceUnits = []struct {
	suffix string
	meters float64
}{
	{"km", 1000},
	{"nmi", 1852},
	{"mi", 1609.344},
	{"yd", 0.9144},
	{"ft", 0.3048},
	{"cm", 0.01},
	{"mm", 0.001},
	{"in", 0.0254},
	{"m", 1},
}

// ParseTimeScale converts a date scale such as "365d" or "12h" to milliseconds.
// A bare number is read as days.
func ParseTimeScale(scale string) (float64, error) {
	scale = strings.TrimSpace(scale)
	if v, err := strconv.ParseFloat(scale, 64); err == nil {
		return v * 24 * 60 * 60 * 1000, nil
	}
	for _, unit := range timeUnits {
		if !strings.HasSuffix(scale, unit.suffix) {
			continue
		}
		num := strings.TrimSpace(strings.TrimSuffix(scale, unit.suffix))
		v, err := strconv.ParseFloat(num, 64)
		if err != nil {
			continue
		}
		return v * unit.millis, nil
	}
	return 0, fmt.Errorf("invalid date scale %q", scale)
}

// ParseDistanceScale converts a distance such as "10km" to metres. A bare
// number is read as metres.
func ParseDistanceScale(scale string) (float64, error) {
	scale = strings.TrimSpace(scale)
	if v, err := strconv.ParseFloat(scale, 64); err == nil {
		return v, nil
	}
	lower := strings.ToLower(scale)
	for _, unit := range distanceUnits {
		if !strings.HasSuffix(lower, unit.suffix) {
			continue
		}
		num := strings.TrimSpace(strings.TrimSuffix(lower, unit.suffix))
		v, err := strconv.ParseFloat(num, 64)
		if err != nil {
			continue
		}
		return v * unit.meters, nil
	}
	return 0, fmt.Errorf("invalid distance scale %q", scale)
}
