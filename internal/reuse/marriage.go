package reuse

import "sort"

// StableMarriage pairs rows with columns of scores by Gale-Shapley, rows
// proposing. Both sides rank partners by score, higher first, ties by index.
// The result holds the matched column of each row, or -1.
func StableMarriage(scores [][]float64) []int {
	rows := len(scores)
	match := make([]int, rows)
	for i := range match {
		match[i] = -1
	}
	if rows == 0 || len(scores[0]) == 0 {
		return match
	}
	cols := len(scores[0])

	prefs := make([][]int, rows)
	for r := range scores {
		order := make([]int, cols)
		for c := range order {
			order[c] = c
		}
		sort.SliceStable(order, func(a, b int) bool {
			return scores[r][order[a]] > scores[r][order[b]]
		})
		prefs[r] = order
	}
	// rank[c][r] is the position of row r in column c's preferences
	rank := make([][]int, cols)
	for c := 0; c < cols; c++ {
		order := make([]int, rows)
		for r := range order {
			order[r] = r
		}
		sort.SliceStable(order, func(a, b int) bool {
			return scores[order[a]][c] > scores[order[b]][c]
		})
		rank[c] = make([]int, rows)
		for pos, r := range order {
			rank[c][r] = pos
		}
	}

	partner := make([]int, cols)
	for c := range partner {
		partner[c] = -1
	}
	next := make([]int, rows)
	free := make([]int, 0, rows)
	for r := 0; r < rows; r++ {
		free = append(free, r)
	}
	for len(free) > 0 {
		r := free[0]
		free = free[1:]
		for next[r] < cols {
			c := prefs[r][next[r]]
			next[r]++
			cur := partner[c]
			if cur == -1 {
				partner[c], match[r] = r, c
				break
			}
			if rank[c][r] < rank[c][cur] {
				partner[c], match[r] = r, c
				match[cur] = -1
				free = append(free, cur)
				break
			}
		}
	}
	return match
}
