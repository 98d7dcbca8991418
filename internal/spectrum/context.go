// Package spectrum builds the trinucleotide mutation-context table that drives
// substitution sampling in simulated mutation sets.
package spectrum

import (
	"fmt"

	"github.com/inodb/vibe-perm/internal/codon"
)

// Context is a trinucleotide (5' flank, mutated base, 3' flank) on the coding
// strand. Flanks outside the coding sequence are encoded as N.
type Context uint8

// NumContexts is the number of encodable contexts over {A,C,G,T,N}^3.
const NumContexts = 125

const symbols = "ACGTN"

func symbolIndex(b byte) int {
	if i := codon.BaseIndex(b); i >= 0 {
		return i
	}
	return 4
}

// MakeContext encodes a trinucleotide.
func MakeContext(left, center, right byte) Context {
	return Context(symbolIndex(left)*25 + symbolIndex(center)*5 + symbolIndex(right))
}

// ContextOf returns the context surrounding seq[pos].
func ContextOf(seq string, pos int) Context {
	left, right := byte('N'), byte('N')
	if pos > 0 {
		left = seq[pos-1]
	}
	if pos+1 < len(seq) {
		right = seq[pos+1]
	}
	return MakeContext(left, seq[pos], right)
}

// ParseContext parses a three-letter context such as "TCG".
func ParseContext(s string) (Context, error) {
	if len(s) != 3 {
		return 0, fmt.Errorf("context %q: expected 3 bases", s)
	}
	for i := 0; i < 3; i++ {
		if symbolIndex(s[i]) == 4 && s[i] != 'N' {
			return 0, fmt.Errorf("context %q: invalid base %q", s, s[i])
		}
	}
	return MakeContext(s[0], s[1], s[2]), nil
}

// Center returns the mutated base.
func (c Context) Center() byte {
	return symbols[(int(c)/5)%5]
}

func (c Context) String() string {
	i := int(c)
	return string([]byte{symbols[i/25], symbols[(i/5)%5], symbols[i%5]})
}
