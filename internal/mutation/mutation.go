// Package mutation defines somatic point-mutation records and the consequence
// classes shared by observed and simulated mutation sets.
package mutation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/inodb/vibe-perm/internal/codon"
)

// Consequence is the functional class of a coding point substitution.
type Consequence uint8

// Consequence classes.
const (
	Other Consequence = iota
	Synonymous
	Missense
	Nonsense
	SpliceDisrupting
)

var consequenceNames = [...]string{
	Other:            "other",
	Synonymous:       "synonymous",
	Missense:         "missense",
	Nonsense:         "nonsense",
	SpliceDisrupting: "splice_disrupting",
}

func (c Consequence) String() string {
	if int(c) < len(consequenceNames) {
		return consequenceNames[c]
	}
	return fmt.Sprintf("consequence(%d)", c)
}

// Inactivating returns true for nonsense and splice-disrupting mutations.
func (c Consequence) Inactivating() bool {
	return c == Nonsense || c == SpliceDisrupting
}

// ParseConsequence maps a class name back to a Consequence.
func ParseConsequence(s string) (Consequence, bool) {
	for i, name := range consequenceNames {
		if name == s {
			return Consequence(i), true
		}
	}
	return Other, false
}

// Record is a single observed somatic point mutation on a coding sequence.
// Bases are given on the coding strand.
type Record struct {
	GeneID         string
	TranscriptID   string
	SampleID       string
	CodingPosition int // 0-based, relative to CDS start
	RefBase        byte
	AltBase        byte
	Consequence    Consequence
}

// Point is one mutation of an observed or simulated set.
type Point struct {
	Position    int
	Alt         byte
	Consequence Consequence
}

// Record validation errors.
var (
	ErrInvalidPosition    = errors.New("invalid mutation position")
	ErrReferenceMismatch  = errors.New("reference base mismatch")
	ErrInvalidBase        = errors.New("invalid base")
	ErrTranscriptMismatch = errors.New("transcript mismatch")
)

// Validate checks a record against a coding sequence.
func (r Record) Validate(cds string) error {
	if r.CodingPosition < 0 || r.CodingPosition >= len(cds) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidPosition, r.CodingPosition, len(cds))
	}
	if !codon.IsBase(r.AltBase) || r.AltBase == r.RefBase {
		return fmt.Errorf("%w: %q>%q", ErrInvalidBase, r.RefBase, r.AltBase)
	}
	if r.RefBase != cds[r.CodingPosition] {
		return fmt.Errorf("%w: record has %q, sequence has %q at %d",
			ErrReferenceMismatch, r.RefBase, cds[r.CodingPosition], r.CodingPosition)
	}
	return nil
}

// CheckTranscript reports whether the record's coding position refers to the
// given transcript. Versions are ignored; an empty ID on either side matches.
func (r Record) CheckTranscript(transcriptID string) error {
	if r.TranscriptID == "" || transcriptID == "" {
		return nil
	}
	if StripVersion(r.TranscriptID) != StripVersion(transcriptID) {
		return fmt.Errorf("%w: record on %s, model on %s", ErrTranscriptMismatch, r.TranscriptID, transcriptID)
	}
	return nil
}

// StripVersion removes the version suffix from an Ensembl ID.
// e.g., "ENST00000456328.2" -> "ENST00000456328"
func StripVersion(id string) string {
	if !strings.HasPrefix(id, "ENS") {
		return id
	}
	if idx := strings.LastIndex(id, "."); idx != -1 {
		return id[:idx]
	}
	return id
}
