package genemodel

import (
	"testing"

	"github.com/inodb/vibe-perm/internal/mutation"
	"github.com/inodb/vibe-perm/internal/spectrum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name string
		ann  Annotation
		want error
	}{
		{"empty", Annotation{GeneID: "G"}, ErrEmptySequence},
		{"not codon aligned", Annotation{GeneID: "G", CDS: "ATGG"}, ErrMalformedAnnotation},
		{"invalid base", Annotation{GeneID: "G", CDS: "ATGNNN"}, ErrMalformedAnnotation},
		{"lowercase", Annotation{GeneID: "G", CDS: "atgaaa"}, ErrMalformedAnnotation},
		{"exon start at zero", Annotation{GeneID: "G", CDS: "ATGAAA", ExonStarts: []int{0}}, ErrMalformedAnnotation},
		{"exon start past end", Annotation{GeneID: "G", CDS: "ATGAAA", ExonStarts: []int{6}}, ErrMalformedAnnotation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.ann, 1)
			assert.Nil(t, m)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestConsequenceOf(t *testing.T) {
	// ATG GGT TGG TAA: Met Gly Trp Stop
	m, err := New(Annotation{GeneID: "G", TranscriptID: "T", CDS: "ATGGGTTGGTAA"}, 1)
	require.NoError(t, err)

	assert.Equal(t, 12, m.Len())
	assert.Equal(t, "G", m.GeneID())
	assert.Equal(t, "T", m.TranscriptID())

	tests := []struct {
		name string
		pos  int
		alt  byte
		want mutation.Consequence
	}{
		{"GGT>GGC synonymous", 5, 'C', mutation.Synonymous},
		{"GGT>TGT missense (Gly>Cys)", 3, 'T', mutation.Missense},
		{"TGG>TAG nonsense", 7, 'A', mutation.Nonsense},
		{"TGG>TGA nonsense", 8, 'A', mutation.Nonsense},
		{"TAA>CAA stop lost", 9, 'C', mutation.Other},
		{"TAA>TAG stays stop", 11, 'G', mutation.Synonymous},
		{"start codon change", 0, 'C', mutation.Missense},
		{"ref base", 3, 'G', mutation.Other},
		{"non-ACGT alternate", 3, 'N', mutation.Other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.ConsequenceOf(tt.pos, tt.alt))
		})
	}
}

func TestSpliceWindowOverridesCodon(t *testing.T) {
	// Two coding exons joined at CDS offset 6
	ann := Annotation{GeneID: "G", CDS: "ATGGGTTGGTAA", ExonStarts: []int{6}}

	m, err := New(ann, 2)
	require.NoError(t, err)

	for pos := 0; pos < m.Len(); pos++ {
		inWindow := pos >= 4 && pos <= 7
		assert.Equal(t, inWindow, m.InSpliceWindow(pos), "pos %d", pos)
	}
	// GGC at pos 5 would be synonymous; splice window wins
	assert.Equal(t, mutation.SpliceDisrupting, m.ConsequenceOf(5, 'C'))
	assert.Equal(t, mutation.SpliceDisrupting, m.ConsequenceOf(7, 'C'))
	assert.Equal(t, mutation.Missense, m.ConsequenceOf(3, 'T'))

	noWindow, err := New(ann, 0)
	require.NoError(t, err)
	assert.Equal(t, mutation.Synonymous, noWindow.ConsequenceOf(5, 'C'))
}

func TestContexts(t *testing.T) {
	m, err := New(Annotation{GeneID: "G", CDS: "ATGATGATG"}, 0)
	require.NoError(t, err)

	assert.Equal(t, "NAT", m.ContextAt(0).String())
	assert.Equal(t, "TGN", m.ContextAt(8).String())
	assert.Equal(t, byte('G'), m.RefBase(2))
	assert.Equal(t, 2, m.CodonIndex(8))

	atg := spectrum.MakeContext('A', 'T', 'G')
	assert.Equal(t, []int{1, 4, 7}, m.PositionsWithContext(atg))
	gat := spectrum.MakeContext('G', 'A', 'T')
	assert.Equal(t, []int{3, 6}, m.PositionsWithContext(gat))

	for pos := 0; pos < m.Len(); pos++ {
		assert.Contains(t, m.PositionsWithContext(m.ContextAt(pos)), pos)
	}
}
