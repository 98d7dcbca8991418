// Package simulate draws synthetic mutation sets for a single gene under the
// null model: positions from a sampling strategy, alternate bases from the
// shared context table, consequences from the gene model.
package simulate

import (
	"math/rand/v2"

	"github.com/inodb/vibe-perm/internal/genemodel"
	"github.com/inodb/vibe-perm/internal/mutation"
	"github.com/inodb/vibe-perm/internal/spectrum"
)

// Strategy chooses the coding position of each draw in a round.
type Strategy interface {
	Position(m *genemodel.Model, draw int, r *rand.Rand) int
}

// Uniform picks every position uniformly over [0, L), independently and
// with replacement.
type Uniform struct{}

// Position implements Strategy.
func (Uniform) Position(m *genemodel.Model, _ int, r *rand.Rand) int {
	return r.IntN(m.Len())
}

// ContextMatched keeps the observed context composition: draw i is placed
// uniformly among the positions sharing the i-th observed trinucleotide.
type ContextMatched struct {
	Contexts []spectrum.Context
}

// Position implements Strategy.
func (s ContextMatched) Position(m *genemodel.Model, draw int, r *rand.Rand) int {
	if len(s.Contexts) == 0 {
		return r.IntN(m.Len())
	}
	positions := m.PositionsWithContext(s.Contexts[draw%len(s.Contexts)])
	if len(positions) == 0 {
		return r.IntN(m.Len())
	}
	return positions[r.IntN(len(positions))]
}

// Simulator draws mutation sets for one gene. It holds no mutable state and
// may be shared by goroutines that each supply their own *rand.Rand.
type Simulator struct {
	model    *genemodel.Model
	table    *spectrum.Table
	strategy Strategy
}

// New creates a simulator. A nil strategy means Uniform.
func New(model *genemodel.Model, table *spectrum.Table, strategy Strategy) *Simulator {
	if strategy == nil {
		strategy = Uniform{}
	}
	return &Simulator{model: model, table: table, strategy: strategy}
}

// Model returns the gene model being simulated.
func (s *Simulator) Model() *genemodel.Model { return s.model }

// SimulateRound draws count mutations into dst[:0] and returns the result,
// growing dst only when its capacity is short.
func (s *Simulator) SimulateRound(dst []mutation.Point, count int, r *rand.Rand) []mutation.Point {
	dst = dst[:0]
	for i := 0; i < count; i++ {
		pos := s.strategy.Position(s.model, i, r)
		alt := s.table.Sample(s.model.ContextAt(pos), r)
		dst = append(dst, mutation.Point{
			Position:    pos,
			Alt:         alt,
			Consequence: s.model.ConsequenceOf(pos, alt),
		})
	}
	return dst
}
