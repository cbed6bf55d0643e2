package expr

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Lookup resolves a dotted path inside a document.
func Lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	}
	return nil, false
}

// Values flattens a doc value into its elements. A scalar is a one element list.
func Values(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []float64:
		out := make([]any, len(t))
		for i, f := range t {
			out[i] = f
		}
		return out
	}
	return []any{v}
}

func first(v any) (any, bool) {
	vals := Values(v)
	if len(vals) == 0 {
		return nil, false
	}
	return vals[0], true
}

// ToFloat coerces JSON numbers, numeric strings and booleans.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

// ToString renders scalars the way a keyword field stores them.
func ToString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case json.Number:
		return t.String(), true
	}
	return fmt.Sprint(v), true
}

// ToVector reads a dense vector from a decoded JSON list.
func ToVector(v any) ([]float64, bool) {
	switch t := v.(type) {
	case []float64:
		return t, true
	case []float32:
		out := make([]float64, len(t))
		for i, f := range t {
			out[i] = float64(f)
		}
		return out, true
	case []any:
		out := make([]float64, len(t))
		for i, item := range t {
			f, ok := ToFloat(item)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	}
	return nil, false
}

// CosineSimilarity returns 0 when either vector has no magnitude.
func CosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var dateLayouts = []string{
	"02/01/2006",
	"02/01/2006T15:04:05.000Z0700",
	"02-01-2006",
	"02-01-2006 15:04:05",
	"02-01-2006T15:04:05.000Z0700",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.000Z0700",
	time.RFC3339Nano,
	time.RFC3339,
}

// ParseDate accepts the date formats of a Date attribute, and epoch millis.
func ParseDate(v any) (int64, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UnixMilli(), true
			}
		}
	}
	f, ok := ToFloat(v)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// ParseGeo accepts "lat,lon", {lat, lon} and GeoJSON style [lon, lat].
func ParseGeo(v any) (lat, lon float64, ok bool) {
	switch t := v.(type) {
	case string:
		parts := strings.Split(t, ",")
		if len(parts) != 2 {
			return 0, 0, false
		}
		la, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lo, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		return la, lo, err1 == nil && err2 == nil
	case map[string]any:
		la, ok1 := ToFloat(t["lat"])
		lo, ok2 := ToFloat(t["lon"])
		return la, lo, ok1 && ok2
	case []any:
		if len(t) != 2 {
			return 0, 0, false
		}
		lo, ok1 := ToFloat(t[0])
		la, ok2 := ToFloat(t[1])
		return la, lo, ok1 && ok2
	}
	return 0, 0, false
}

const earthRadiusMeters = 6371008.7714

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}

// javaString renders a param the way the store prints a script's params.
func javaString(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatFloat(t, 'f', 1, 64)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		return javaString(float64(t))
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case []string:
		parts := make([]string, len(t))
		copy(parts, t)
		return "[" + strings.Join(parts, ", ") + "]"
	case []any, []float64, []float32, [][]float32, [][]float64:
		vals := reflectList(t)
		if vals == nil {
			vals = Values(t)
		}
		parts := make([]string, len(vals))
		for i, item := range vals {
			parts[i] = javaString(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		return javaMap(t)
	case map[string]float64:
		m := make(map[string]any, len(t))
		for k, f := range t {
			m[k] = f
		}
		return javaMap(m)
	}
	return fmt.Sprint(v)
}

func reflectList(v any) []any {
	switch t := v.(type) {
	case []float32:
		out := make([]any, len(t))
		for i, f := range t {
			out[i] = float64(f)
		}
		return out
	case [][]float32:
		out := make([]any, len(t))
		for i, f := range t {
			out[i] = f
		}
		return out
	case [][]float64:
		out := make([]any, len(t))
		for i, f := range t {
			out[i] = f
		}
		return out
	}
	return nil
}

func javaMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + javaString(m[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
