// Package nulldist runs the per-gene simulation rounds, collects the null
// score distribution and derives add-one empirical p-values.
package nulldist

import (
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/inodb/vibe-perm/internal/mutation"
	"github.com/inodb/vibe-perm/internal/score"
	"github.com/inodb/vibe-perm/internal/simulate"
)

// Epsilon absorbs floating-point noise when comparing null and observed scores.
const Epsilon = 1e-10

// Distribution is the null score distribution of one test on one gene.
type Distribution struct {
	Observed float64
	Null     []float64
	Tail     score.Tail
}

// PValue returns (k + 1) / (N + 1) where k counts null scores at least as
// extreme as the observed score. The result lies in [1/(N+1), 1].
func (d Distribution) PValue() float64 {
	return d.PValueOf(d.Observed)
}

// PValueOf evaluates the p-value of an arbitrary score against the null.
func (d Distribution) PValueOf(observed float64) float64 {
	k := 0
	for _, s := range d.Null {
		switch d.Tail {
		case score.Lower:
			if s <= observed+Epsilon {
				k++
			}
		default:
			if s >= observed-Epsilon {
				k++
			}
		}
	}
	return float64(k+1) / float64(len(d.Null)+1)
}

// Summary returns the mean and standard deviation of the null scores.
func (d Distribution) Summary() (mean, stddev float64) {
	if len(d.Null) == 0 {
		return 0, 0
	}
	if len(d.Null) == 1 {
		return d.Null[0], 0
	}
	return stat.MeanStdDev(d.Null, nil)
}

// Aggregator runs simulation rounds. Rounds are split into contiguous chunks
// processed concurrently by up to Workers goroutines; every round draws from
// its own seeded stream, so the result does not depend on Workers.
type Aggregator struct {
	Rounds  int
	Workers int
}

// Evaluate scores the observed set and count-matched simulated sets.
func (a Aggregator) Evaluate(sim *simulate.Simulator, observed []mutation.Point, count int,
	scorer score.Scorer, src simulate.Source) Distribution {
	m := sim.Model()
	d := Distribution{
		Observed: scorer.Score(m, observed),
		Null:     make([]float64, max(0, a.Rounds)),
		Tail:     scorer.Tail(),
	}
	if a.Rounds <= 0 {
		return d
	}

	workers := max(1, min(a.Workers, a.Rounds))
	chunk := (a.Rounds + workers - 1) / workers

	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < a.Rounds; lo += chunk {
		hi := min(lo+chunk, a.Rounds)
		g.Go(func() error {
			buf := make([]mutation.Point, 0, count)
			pcg := rand.NewPCG(0, 0)
			r := rand.New(pcg)
			for round := lo; round < hi; round++ {
				src.Seed(pcg, round)
				buf = sim.SimulateRound(buf, count, r)
				d.Null[round] = scorer.Score(m, buf)
			}
			return nil
		})
	}
	// Chunks never fail; the group only bounds concurrency.
	g.Wait()

	return d
}
