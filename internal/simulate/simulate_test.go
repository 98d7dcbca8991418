package simulate

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/inodb/vibe-perm/internal/codon"
	"github.com/inodb/vibe-perm/internal/genemodel"
	"github.com/inodb/vibe-perm/internal/mutation"
	"github.com/inodb/vibe-perm/internal/spectrum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModel(t *testing.T) *genemodel.Model {
	t.Helper()
	cds := strings.Repeat("ATGGCTCAAGGATGGTTCAAACGT", 10)
	m, err := genemodel.New(genemodel.Annotation{GeneID: "G", CDS: cds}, 1)
	require.NoError(t, err)
	return m
}

func uniformTable() *spectrum.Table {
	return spectrum.Build(nil, 1)
}

func TestSimulateRound_CountAndBounds(t *testing.T) {
	m := testModel(t)
	sim := New(m, uniformTable(), nil)
	r := rand.New(rand.NewPCG(1, 1))

	var buf []mutation.Point
	for _, count := range []int{0, 1, 10, 57} {
		buf = sim.SimulateRound(buf, count, r)
		require.Len(t, buf, count)
		for _, p := range buf {
			assert.GreaterOrEqual(t, p.Position, 0)
			assert.Less(t, p.Position, m.Len())
			assert.NotEqual(t, m.RefBase(p.Position), p.Alt)
			assert.True(t, codon.IsBase(p.Alt))
			assert.Equal(t, m.ConsequenceOf(p.Position, p.Alt), p.Consequence)
		}
	}
}

func TestSimulateRound_ReusesBuffer(t *testing.T) {
	sim := New(testModel(t), uniformTable(), nil)
	r := rand.New(rand.NewPCG(1, 1))

	buf := make([]mutation.Point, 0, 16)
	out := sim.SimulateRound(buf, 16, r)
	assert.Same(t, &buf[:1][0], &out[0])
}

func TestSimulateRound_Reproducible(t *testing.T) {
	sim := New(testModel(t), uniformTable(), nil)
	src := NewSource(GeneSeed(7, "G"), 0)

	a := sim.SimulateRound(nil, 25, src.Rand(3))
	b := sim.SimulateRound(nil, 25, src.Rand(3))
	assert.Equal(t, a, b)

	c := sim.SimulateRound(nil, 25, src.Rand(4))
	assert.NotEqual(t, a, c)
}

func TestSimulateRound_UsesContextTable(t *testing.T) {
	m := testModel(t)
	// Every observed substitution is a transition
	var obs []spectrum.Observation
	transition := map[byte]byte{'A': 'G', 'G': 'A', 'C': 'T', 'T': 'C'}
	for c := spectrum.Context(0); c < spectrum.NumContexts; c++ {
		if alt, ok := transition[c.Center()]; ok {
			obs = append(obs, spectrum.Observation{Context: c, Alt: alt})
		}
	}
	sim := New(m, spectrum.Build(obs, 1), nil)

	for _, p := range sim.SimulateRound(nil, 200, rand.New(rand.NewPCG(5, 5))) {
		assert.Equal(t, transition[m.RefBase(p.Position)], p.Alt)
	}
}

func TestContextMatched_KeepsContexts(t *testing.T) {
	m := testModel(t)
	observed := []spectrum.Context{m.ContextAt(4), m.ContextAt(10), m.ContextAt(30)}
	sim := New(m, uniformTable(), ContextMatched{Contexts: observed})

	pts := sim.SimulateRound(nil, len(observed), rand.New(rand.NewPCG(9, 9)))
	require.Len(t, pts, len(observed))
	for i, p := range pts {
		assert.Equal(t, observed[i], m.ContextAt(p.Position))
	}
}

func TestContextMatched_UnknownContextFallsBack(t *testing.T) {
	m := testModel(t)
	missing := spectrum.MakeContext('N', 'N', 'N')
	sim := New(m, uniformTable(), ContextMatched{Contexts: []spectrum.Context{missing}})

	pts := sim.SimulateRound(nil, 5, rand.New(rand.NewPCG(2, 2)))
	require.Len(t, pts, 5)
	for _, p := range pts {
		assert.Less(t, p.Position, m.Len())
	}
}

func TestGeneSeed(t *testing.T) {
	assert.Equal(t, GeneSeed(1, "TP53"), GeneSeed(1, "TP53"))
	assert.NotEqual(t, GeneSeed(1, "TP53"), GeneSeed(2, "TP53"))
	assert.NotEqual(t, GeneSeed(1, "TP53"), GeneSeed(1, "KRAS"))
}

func TestSource_StreamsDiffer(t *testing.T) {
	seed := GeneSeed(1, "G")
	a := NewSource(seed, 0).Rand(0).Uint64()
	b := NewSource(seed, 1).Rand(0).Uint64()
	assert.NotEqual(t, a, b)

	pcg := rand.NewPCG(0, 0)
	NewSource(seed, 0).Seed(pcg, 0)
	assert.Equal(t, a, rand.New(pcg).Uint64())
}
