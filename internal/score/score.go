// Package score holds the statistics computed on observed and simulated
// mutation sets. Scorers are pure functions of their input.
package score

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/inodb/vibe-perm/internal/genemodel"
	"github.com/inodb/vibe-perm/internal/mutation"
)

// Test names a statistical test.
type Test string

// Supported tests.
const (
	TestClustering   Test = "clustering"
	TestInactivating Test = "inactivating"
	TestRecurrence   Test = "recurrence"
)

// Tests lists every supported test in reporting order.
var Tests = []Test{TestClustering, TestInactivating, TestRecurrence}

// ParseTest validates a test name.
func ParseTest(s string) (Test, error) {
	for _, t := range Tests {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown test %q", s)
}

// Tail is the direction in which a score is extreme.
type Tail uint8

// Tails.
const (
	Upper Tail = iota // larger scores are more extreme
	Lower             // smaller scores are more extreme
)

// Scorer maps a mutation set on a gene to a scalar statistic.
type Scorer interface {
	Test() Test
	Tail() Tail
	Score(m *genemodel.Model, pts []mutation.Point) float64
}

// Clustering measures how concentrated missense mutations are on few codons:
// 1 - H/ln(n), with H the entropy of per-codon missense proportions and n the
// missense count. All missense on one codon scores 1, all on distinct codons
// scores 0. Fewer than two missense mutations score 0.
type Clustering struct{}

// Test implements Scorer.
func (Clustering) Test() Test { return TestClustering }

// Tail implements Scorer.
func (Clustering) Tail() Tail { return Upper }

// Score implements Scorer.
func (Clustering) Score(m *genemodel.Model, pts []mutation.Point) float64 {
	counts := missenseCodonCounts(m, pts)
	n := 0
	for _, c := range counts {
		n += c
	}
	if n < 2 {
		return 0
	}

	p := make([]float64, len(counts))
	for i, c := range counts {
		p[i] = float64(c) / float64(n)
	}
	return math.Max(0, 1-stat.Entropy(p)/math.Log(float64(n)))
}

// Inactivating is the fraction of mutations that are nonsense or
// splice-disrupting. An empty set scores 0.
type Inactivating struct{}

// Test implements Scorer.
func (Inactivating) Test() Test { return TestInactivating }

// Tail implements Scorer.
func (Inactivating) Tail() Tail { return Upper }

// Score implements Scorer.
func (Inactivating) Score(_ *genemodel.Model, pts []mutation.Point) float64 {
	if len(pts) == 0 {
		return 0
	}
	k := 0
	for _, p := range pts {
		if p.Consequence.Inactivating() {
			k++
		}
	}
	return float64(k) / float64(len(pts))
}

// Recurrence counts missense mutations that fall on recurrently hit codons:
// codons with at least MinCount missense mutations that also carry at least
// MinFraction of all missense mutations in the set.
type Recurrence struct {
	MinCount    int
	MinFraction float64
}

// DefaultRecurrence returns the recurrence thresholds used when none are configured.
func DefaultRecurrence() Recurrence {
	return Recurrence{MinCount: 2, MinFraction: 0.02}
}

// Test implements Scorer.
func (Recurrence) Test() Test { return TestRecurrence }

// Tail implements Scorer.
func (Recurrence) Tail() Tail { return Upper }

// Score implements Scorer.
func (s Recurrence) Score(m *genemodel.Model, pts []mutation.Point) float64 {
	counts := missenseCodonCounts(m, pts)
	n := 0
	for _, c := range counts {
		n += c
	}
	recurrent := 0
	for _, c := range counts {
		if c >= s.MinCount && float64(c)/float64(n) >= s.MinFraction {
			recurrent += c
		}
	}
	return float64(recurrent)
}

// missenseCodonCounts returns the number of missense mutations per hit codon,
// in ascending codon order.
func missenseCodonCounts(m *genemodel.Model, pts []mutation.Point) []int {
	codons := make([]int, 0, len(pts))
	for _, p := range pts {
		if p.Consequence == mutation.Missense {
			codons = append(codons, m.CodonIndex(p.Position))
		}
	}
	if len(codons) == 0 {
		return nil
	}
	slices.Sort(codons)

	var counts []int
	run := 1
	for i := 1; i < len(codons); i++ {
		if codons[i] == codons[i-1] {
			run++
			continue
		}
		counts = append(counts, run)
		run = 1
	}
	return append(counts, run)
}

// For returns the scorer for a test.
func For(t Test, rec Recurrence) (Scorer, error) {
	switch t {
	case TestClustering:
		return Clustering{}, nil
	case TestInactivating:
		return Inactivating{}, nil
	case TestRecurrence:
		return rec, nil
	default:
		return nil, fmt.Errorf("unknown test %q", t)
	}
}
