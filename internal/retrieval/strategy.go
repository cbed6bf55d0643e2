package retrieval

import (
	"sort"
	"strings"

	"github.com/RGU-Computing/clood/internal/expr"
	"github.com/RGU-Computing/clood/internal/model"
)

const (
	StrategyBestMatch = "Best Match"
	StrategyNNValue   = "NN value"
	StrategyMaximum   = "Maximum"
	StrategyMinimum   = "Minimum"
	StrategyMean      = "Mean"
	StrategyMedian    = "Median"
	StrategyMode      = "Mode"
	StrategyMajority  = "Majority"
	StrategyMinority  = "Minority"
)

// Aggregate applies a reuse strategy to the values of field over the ranked
// neighbours. Unknown strategies, and numeric strategies over non-numeric
// values, take the top neighbour's value.
func Aggregate(strategy, field string, bestK []model.Case) (any, bool) {
	var vals []any
	for _, c := range bestK {
		if v, ok := c[field]; ok && v != nil {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return nil, false
	}
	switch normalizeStrategy(strategy) {
	case StrategyMaximum:
		return extreme(vals, 1), true
	case StrategyMinimum:
		return extreme(vals, -1), true
	case StrategyMean:
		if nums, ok := numbers(vals); ok {
			total := 0.0
			for _, n := range nums {
				total += n
			}
			return total / float64(len(nums)), true
		}
	case StrategyMedian:
		if nums, ok := numbers(vals); ok {
			sort.Float64s(nums)
			mid := len(nums) / 2
			if len(nums)%2 == 1 {
				return nums[mid], true
			}
			return (nums[mid-1] + nums[mid]) / 2, true
		}
	case StrategyMode:
		return byFrequency(vals, true), true
	case StrategyMinority:
		return byFrequency(vals, false), true
	}
	return vals[0], true
}

func normalizeStrategy(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "maximum", "max":
		return StrategyMaximum
	case "minimum", "min":
		return StrategyMinimum
	case "mean", "average":
		return StrategyMean
	case "median":
		return StrategyMedian
	case "mode", "majority":
		return StrategyMode
	case "minority":
		return StrategyMinority
	}
	return StrategyBestMatch
}

func numbers(vals []any) ([]float64, bool) {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		f, ok := expr.ToFloat(v)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

// extreme returns the largest (dir 1) or smallest (dir -1) value, comparing
// numerically when every value is a number and as text otherwise.
func extreme(vals []any, dir int) any {
	if nums, ok := numbers(vals); ok {
		best := 0
		for i := range nums {
			if (dir > 0 && nums[i] > nums[best]) || (dir < 0 && nums[i] < nums[best]) {
				best = i
			}
		}
		return vals[best]
	}
	best := 0
	for i := range vals {
		c := strings.Compare(marshalKey(vals[i]), marshalKey(vals[best]))
		if (dir > 0 && c > 0) || (dir < 0 && c < 0) {
			best = i
		}
	}
	return vals[best]
}

// byFrequency returns the most (or least) frequent value; ties go to the
// value seen first.
func byFrequency(vals []any, most bool) any {
	counts := map[string]int{}
	order := []string{}
	first := map[string]any{}
	for _, v := range vals {
		k := marshalKey(v)
		if _, ok := counts[k]; !ok {
			order = append(order, k)
			first[k] = v
		}
		counts[k]++
	}
	best := order[0]
	for _, k := range order[1:] {
		if (most && counts[k] > counts[best]) || (!most && counts[k] < counts[best]) {
			best = k
		}
	}
	return first[best]
}
