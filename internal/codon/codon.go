// Package codon provides the standard genetic code and base-level helpers
// used to classify point substitutions in coding sequence.
package codon

// Standard genetic code: DNA codon to amino acid (single letter).
var codonTable = map[string]byte{
	"TTT": 'F', "TTC": 'F', "TTA": 'L', "TTG": 'L',
	"TCT": 'S', "TCC": 'S', "TCA": 'S', "TCG": 'S',
	"TAT": 'Y', "TAC": 'Y', "TAA": '*', "TAG": '*',
	"TGT": 'C', "TGC": 'C', "TGA": '*', "TGG": 'W',

	"CTT": 'L', "CTC": 'L', "CTA": 'L', "CTG": 'L',
	"CCT": 'P', "CCC": 'P', "CCA": 'P', "CCG": 'P',
	"CAT": 'H', "CAC": 'H', "CAA": 'Q', "CAG": 'Q',
	"CGT": 'R', "CGC": 'R', "CGA": 'R', "CGG": 'R',

	"ATT": 'I', "ATC": 'I', "ATA": 'I', "ATG": 'M',
	"ACT": 'T', "ACC": 'T', "ACA": 'T', "ACG": 'T',
	"AAT": 'N', "AAC": 'N', "AAA": 'K', "AAG": 'K',
	"AGT": 'S', "AGC": 'S', "AGA": 'R', "AGG": 'R',

	"GTT": 'V', "GTC": 'V', "GTA": 'V', "GTG": 'V',
	"GCT": 'A', "GCC": 'A', "GCA": 'A', "GCG": 'A',
	"GAT": 'D', "GAC": 'D', "GAA": 'E', "GAG": 'E',
	"GGT": 'G', "GGC": 'G', "GGA": 'G', "GGG": 'G',
}

// Bases lists the coding alphabet in the order used for alternate-base tables.
var Bases = [4]byte{'A', 'C', 'G', 'T'}

// Translate translates an uppercase DNA codon to its amino acid.
// Returns 'X' for unknown codons and '*' for stop codons.
func Translate(codon string) byte {
	if len(codon) != 3 {
		return 'X'
	}
	if aa, ok := codonTable[codon]; ok {
		return aa
	}
	return 'X'
}

// IsStop returns true if the codon is a stop codon (TAA, TAG, TGA).
func IsStop(codon string) bool {
	return Translate(codon) == '*'
}

// Mutate applies a substitution to a codon at a specific position.
// positionInCodon is 0, 1, or 2 (first, second, or third base).
func Mutate(codon string, positionInCodon int, newBase byte) string {
	if len(codon) != 3 || positionInCodon < 0 || positionInCodon > 2 {
		return codon
	}
	var buf [3]byte
	copy(buf[:], codon)
	buf[positionInCodon] = newBase
	return string(buf[:])
}

// Complement returns the complement of a single uppercase base.
func Complement(base byte) byte {
	switch base {
	case 'A':
		return 'T'
	case 'T':
		return 'A'
	case 'G':
		return 'C'
	case 'C':
		return 'G'
	default:
		return 'N'
	}
}

// BaseIndex maps A, C, G, T to 0..3. Any other byte maps to -1.
func BaseIndex(base byte) int {
	switch base {
	case 'A':
		return 0
	case 'C':
		return 1
	case 'G':
		return 2
	case 'T':
		return 3
	default:
		return -1
	}
}

// IsBase reports whether b is one of A, C, G, T.
func IsBase(b byte) bool {
	return BaseIndex(b) >= 0
}

// Alternates returns the three bases other than ref, in ACGT order.
func Alternates(ref byte) [3]byte {
	var out [3]byte
	i := 0
	for _, b := range Bases {
		if b == ref {
			continue
		}
		if i == 3 {
			break
		}
		out[i] = b
		i++
	}
	return out
}

// AlternateIndex returns the slot of alt within Alternates(ref), or -1.
func AlternateIndex(ref, alt byte) int {
	ri, ai := BaseIndex(ref), BaseIndex(alt)
	if ri < 0 || ai < 0 || ri == ai {
		return -1
	}
	if ai > ri {
		return ai - 1
	}
	return ai
}
