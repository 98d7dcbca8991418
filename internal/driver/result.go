package driver

import (
	"sort"

	"github.com/inodb/vibe-perm/internal/mutation"
	"github.com/inodb/vibe-perm/internal/score"
)

// SkipReason explains why a gene was not tested.
type SkipReason string

// Skip reasons.
const (
	SkipEmptyGeneInput      SkipReason = "EmptyGeneInput"
	SkipMalformedAnnotation SkipReason = "MalformedSequenceAnnotation"
	SkipAnnotationNotFound  SkipReason = "AnnotationNotFound"
)

// TestResult is the outcome of one test on one gene.
type TestResult struct {
	Observed   float64
	PValue     float64
	QValue     float64 // filled by multiple-testing correction; 0 until then
	NullMean   float64
	NullStdDev float64
	Rounds     int // 0 when the test was scored but not simulated
}

// Simulated reports whether the null distribution was built, i.e. whether
// PValue, QValue, NullMean and NullStdDev carry values.
func (r *TestResult) Simulated() bool {
	return r.Rounds > 0
}

// GeneResult is the row reported for a gene.
type GeneResult struct {
	GeneID         string
	TranscriptID   string
	CodingLength   int
	MutationCount  int // valid mutations used for testing
	InvalidCount   int // records rejected during validation
	RecurrentCount int
	Tests          map[score.Test]*TestResult
	SkipReason     SkipReason
	SkipDetail     string
}

// Skipped reports whether the gene was skipped.
func (r *GeneResult) Skipped() bool {
	return r.SkipReason != ""
}

// GeneInput is a gene and its observed mutation records.
type GeneInput struct {
	GeneID  string
	Records []mutation.Record
}

// GroupByGene groups records by gene. With no genes given, every gene present
// in records is returned in gene ID order; otherwise the listed genes are
// returned in the given order, with no records for genes that have none.
func GroupByGene(records []mutation.Record, genes ...string) []GeneInput {
	byGene := make(map[string][]mutation.Record)
	for _, r := range records {
		byGene[r.GeneID] = append(byGene[r.GeneID], r)
	}

	if len(genes) == 0 {
		genes = make([]string, 0, len(byGene))
		for g := range byGene {
			genes = append(genes, g)
		}
		sort.Strings(genes)
	}

	inputs := make([]GeneInput, 0, len(genes))
	for _, g := range genes {
		inputs = append(inputs, GeneInput{GeneID: g, Records: byGene[g]})
	}
	return inputs
}
