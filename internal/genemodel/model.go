// Package genemodel provides the per-gene sequence model: coding sequence,
// trinucleotide contexts and the consequence of every possible substitution.
package genemodel

import (
	"errors"
	"fmt"

	"github.com/inodb/vibe-perm/internal/codon"
	"github.com/inodb/vibe-perm/internal/mutation"
	"github.com/inodb/vibe-perm/internal/spectrum"
)

// Model construction errors. ErrNotFound is returned by annotation sources
// that have no entry for a gene.
var (
	ErrEmptySequence       = errors.New("empty coding sequence")
	ErrMalformedAnnotation = errors.New("malformed sequence annotation")
	ErrNotFound            = errors.New("gene annotation not found")
)

// Annotation is the reference description of a gene needed to model it.
type Annotation struct {
	GeneID       string
	TranscriptID string
	CDS          string // coding sequence, uppercase, coding strand
	// ExonStarts lists CDS offsets at which a coding exon begins, excluding
	// the first exon (offset 0). Each offset marks an exon-exon junction.
	ExonStarts []int
}

// Model is an immutable per-gene sequence model. Consequences for every
// (position, alternate) pair are computed once at construction.
type Model struct {
	geneID       string
	transcriptID string
	cds          string
	contexts     []spectrum.Context
	consequences [][3]mutation.Consequence // indexed by codon.AlternateIndex
	splice       []bool
	byContext    map[spectrum.Context][]int
}

// New builds a model. spliceWindow is the number of exonic bases on each side
// of an exon-exon junction classified as splice-disrupting; 0 disables it.
func New(ann Annotation, spliceWindow int) (*Model, error) {
	n := len(ann.CDS)
	if n == 0 {
		return nil, fmt.Errorf("gene %s: %w", ann.GeneID, ErrEmptySequence)
	}
	if n%3 != 0 {
		return nil, fmt.Errorf("gene %s: %w: length %d is not a multiple of 3", ann.GeneID, ErrMalformedAnnotation, n)
	}
	for i := 0; i < n; i++ {
		if !codon.IsBase(ann.CDS[i]) {
			return nil, fmt.Errorf("gene %s: %w: invalid base %q at %d", ann.GeneID, ErrMalformedAnnotation, ann.CDS[i], i)
		}
	}
	if spliceWindow < 0 {
		spliceWindow = 0
	}

	m := &Model{
		geneID:       ann.GeneID,
		transcriptID: ann.TranscriptID,
		cds:          ann.CDS,
		contexts:     make([]spectrum.Context, n),
		consequences: make([][3]mutation.Consequence, n),
		splice:       make([]bool, n),
		byContext:    make(map[spectrum.Context][]int),
	}

	for _, start := range ann.ExonStarts {
		if start <= 0 || start >= n {
			return nil, fmt.Errorf("gene %s: %w: exon start %d outside (0, %d)", ann.GeneID, ErrMalformedAnnotation, start, n)
		}
		for i := max(0, start-spliceWindow); i < min(n, start+spliceWindow); i++ {
			m.splice[i] = true
		}
	}

	for pos := 0; pos < n; pos++ {
		ctx := spectrum.ContextOf(ann.CDS, pos)
		m.contexts[pos] = ctx
		m.byContext[ctx] = append(m.byContext[ctx], pos)

		ref := ann.CDS[pos]
		for slot, alt := range codon.Alternates(ref) {
			if m.splice[pos] {
				m.consequences[pos][slot] = mutation.SpliceDisrupting
				continue
			}
			m.consequences[pos][slot] = classify(ann.CDS, pos, alt)
		}
	}

	return m, nil
}

// classify translates the codon containing pos with the substitution applied.
func classify(cds string, pos int, alt byte) mutation.Consequence {
	start := pos - pos%3
	ref := cds[start : start+3]
	refAA := codon.Translate(ref)
	altAA := codon.Translate(codon.Mutate(ref, pos%3, alt))

	switch {
	case refAA == altAA:
		return mutation.Synonymous
	case altAA == '*':
		return mutation.Nonsense
	case refAA == '*':
		// stop lost
		return mutation.Other
	default:
		return mutation.Missense
	}
}

// GeneID returns the gene identifier.
func (m *Model) GeneID() string { return m.geneID }

// TranscriptID returns the transcript the model was built from.
func (m *Model) TranscriptID() string { return m.transcriptID }

// Len returns the coding length L.
func (m *Model) Len() int { return len(m.cds) }

// CDS returns the coding sequence.
func (m *Model) CDS() string { return m.cds }

// RefBase returns the reference base at pos.
func (m *Model) RefBase(pos int) byte { return m.cds[pos] }

// CodonIndex returns the 0-based codon containing pos.
func (m *Model) CodonIndex(pos int) int { return pos / 3 }

// ContextAt returns the trinucleotide surrounding pos.
func (m *Model) ContextAt(pos int) spectrum.Context { return m.contexts[pos] }

// InSpliceWindow reports whether pos lies next to an exon-exon junction.
func (m *Model) InSpliceWindow(pos int) bool { return m.splice[pos] }

// ConsequenceOf returns the class of substituting alt at pos. Substituting
// the reference base, or a non-ACGT base, yields mutation.Other.
func (m *Model) ConsequenceOf(pos int, alt byte) mutation.Consequence {
	slot := codon.AlternateIndex(m.cds[pos], alt)
	if slot < 0 {
		return mutation.Other
	}
	return m.consequences[pos][slot]
}

// PositionsWithContext returns every position whose trinucleotide is ctx.
// The returned slice must not be modified.
func (m *Model) PositionsWithContext(ctx spectrum.Context) []int {
	return m.byContext[ctx]
}
