package spectrum

import (
	"math/rand/v2"

	"github.com/inodb/vibe-perm/internal/codon"
	"github.com/inodb/vibe-perm/internal/mutation"
)

// Level records which step of the fallback chain resolved a context.
type Level uint8

// Fallback levels, from most to least specific.
const (
	LevelTrinucleotide Level = iota // the context's own counts
	LevelCenter                     // counts pooled over all flanks of the center base
	LevelUniform                    // equal weight on the three alternates
)

func (l Level) String() string {
	switch l {
	case LevelTrinucleotide:
		return "trinucleotide"
	case LevelCenter:
		return "center"
	default:
		return "uniform"
	}
}

// Observation is one observed substitution in its coding-strand context.
type Observation struct {
	Context Context
	Alt     byte
}

// Table maps each context to a distribution over the three alternates of its
// center base, in codon.Alternates order. A Table is immutable after Build and
// safe for concurrent use.
type Table struct {
	minCount int
	total    int
	counts   [NumContexts][3]int
	probs    [NumContexts][3]float64
	levels   [NumContexts]Level
}

// Build tallies observations and resolves every context through the fallback
// chain: trinucleotide counts when they reach minCount, else counts pooled by
// center base when those reach minCount, else uniform. minCount below 1 is
// treated as 1. Observations whose alternate equals the center base, or whose
// center is not A, C, G or T, are ignored.
func Build(obs []Observation, minCount int) *Table {
	if minCount < 1 {
		minCount = 1
	}
	t := &Table{minCount: minCount}

	var centers [4][3]int
	for _, o := range obs {
		ref := o.Context.Center()
		slot := codon.AlternateIndex(ref, o.Alt)
		if slot < 0 {
			continue
		}
		t.counts[o.Context][slot]++
		centers[codon.BaseIndex(ref)][slot]++
		t.total++
	}

	for c := Context(0); c < NumContexts; c++ {
		ci := codon.BaseIndex(c.Center())
		if ci < 0 {
			t.levels[c] = LevelUniform
			continue
		}
		switch {
		case sum3(t.counts[c]) >= minCount:
			t.probs[c] = normalize(t.counts[c])
			t.levels[c] = LevelTrinucleotide
		case sum3(centers[ci]) >= minCount:
			t.probs[c] = normalize(centers[ci])
			t.levels[c] = LevelCenter
		default:
			t.probs[c] = [3]float64{1.0 / 3, 1.0 / 3, 1.0 / 3}
			t.levels[c] = LevelUniform
		}
	}
	return t
}

// FromRecords extracts the coding-strand context of each record. seq returns
// the coding sequence for a gene; records whose gene has no sequence, or that
// do not validate against it, are skipped.
func FromRecords(records []mutation.Record, seq func(geneID string) (string, bool)) []Observation {
	obs := make([]Observation, 0, len(records))
	cached := make(map[string]string)
	for _, r := range records {
		s, ok := cached[r.GeneID]
		if !ok {
			s, ok = seq(r.GeneID)
			if !ok {
				cached[r.GeneID] = ""
				continue
			}
			cached[r.GeneID] = s
		}
		if r.Validate(s) != nil {
			continue
		}
		obs = append(obs, Observation{Context: ContextOf(s, r.CodingPosition), Alt: r.AltBase})
	}
	return obs
}

// Sample draws an alternate base for the center of ctx.
func (t *Table) Sample(ctx Context, r *rand.Rand) byte {
	alts := codon.Alternates(ctx.Center())
	p := &t.probs[ctx]
	u := r.Float64()
	switch {
	case u < p[0]:
		return alts[0]
	case u < p[0]+p[1]:
		return alts[1]
	default:
		return alts[2]
	}
}

// Probabilities returns the resolved distribution for ctx.
func (t *Table) Probabilities(ctx Context) [3]float64 {
	return t.probs[ctx]
}

// Level returns the fallback level used for ctx.
func (t *Table) Level(ctx Context) Level {
	return t.levels[ctx]
}

// Count returns the number of observations tallied for ctx itself.
func (t *Table) Count(ctx Context) int {
	return sum3(t.counts[ctx])
}

// Total returns the number of observations used.
func (t *Table) Total() int { return t.total }

// MinCount returns the effective fallback threshold.
func (t *Table) MinCount() int { return t.minCount }

func sum3(c [3]int) int {
	return c[0] + c[1] + c[2]
}

func normalize(c [3]int) [3]float64 {
	n := float64(sum3(c))
	return [3]float64{float64(c[0]) / n, float64(c[1]) / n, float64(c[2]) / n}
}
