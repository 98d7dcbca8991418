package output

import (
	"sort"

	"github.com/inodb/vibe-perm/internal/driver"
	"github.com/inodb/vibe-perm/internal/score"
)

// BenjaminiHochberg returns q-values for p in input order, matching R's
// p.adjust(p, method = "BH").
func BenjaminiHochberg(p []float64) []float64 {
	n := len(p)
	q := make([]float64, n)
	if n == 0 {
		return q
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return p[order[a]] > p[order[b]]
	})

	running := 1.0
	for k, idx := range order {
		rank := n - k
		running = min(running, p[idx]*float64(n)/float64(rank))
		q[idx] = running
	}
	return q
}

// AdjustBH fills QValue for every test across the genes that ran it.
// Skipped genes and tests without a simulated null do not count toward the
// number of hypotheses.
func AdjustBH(results []*driver.GeneResult, tests []score.Test) {
	for _, t := range tests {
		var rows []*driver.TestResult
		var p []float64
		for _, res := range results {
			if tr, ok := res.Tests[t]; ok && tr.Simulated() {
				rows = append(rows, tr)
				p = append(p, tr.PValue)
			}
		}
		for i, q := range BenjaminiHochberg(p) {
			rows[i].QValue = q
		}
	}
}
