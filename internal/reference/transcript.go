// Package reference builds coding-sequence annotations for genes from
// GENCODE GTF and FASTA files.
package reference

// Transcript represents a specific gene isoform.
type Transcript struct {
	ID           string // Transcript ID without version (e.g., ENST00000311936)
	GeneID       string // Parent gene ID
	GeneName     string // Parent gene symbol
	Chrom        string // Chromosome, without "chr"
	Strand       int8   // +1 or -1
	Biotype      string // Transcript biotype
	IsCanonical  bool   // Ensembl canonical flag
	IsMANESelect bool   // MANE Select transcript
	Exons        []Exon // Exons in ascending genomic order
	CDSStart     int64  // CDS start (genomic, 1-based), 0 if non-coding
	CDSEnd       int64  // CDS end (genomic, 1-based), 0 if non-coding
	CDSSequence  string // Coding DNA sequence, start through stop codon
}

// Exon represents a single exon within a transcript.
type Exon struct {
	Number   int   // Exon number (1-based)
	Start    int64 // Genomic start (1-based)
	End      int64 // Genomic end (1-based, inclusive)
	CDSStart int64 // CDS portion start, 0 if entirely non-coding
	CDSEnd   int64 // CDS portion end, 0 if entirely non-coding
}

// IsProteinCoding returns true if the transcript has a coding sequence.
func (t *Transcript) IsProteinCoding() bool {
	return t.CDSStart > 0 && t.CDSEnd > 0
}

// IsCoding reports whether the exon overlaps the CDS.
func (e *Exon) IsCoding() bool {
	return e.CDSStart > 0 && e.CDSEnd > 0
}

// CDSLength returns the summed length of the coding portions of all exons.
func (t *Transcript) CDSLength() int {
	n := 0
	for i := range t.Exons {
		if e := &t.Exons[i]; e.IsCoding() {
			n += int(e.CDSEnd - e.CDSStart + 1)
		}
	}
	return n
}

// CDSExonStarts returns the 0-based CDS offset at which each coding exon
// after the first begins, walking exons in transcription order.
func (t *Transcript) CDSExonStarts() []int {
	var starts []int
	offset := 0
	visit := func(e *Exon) {
		if !e.IsCoding() {
			return
		}
		if offset > 0 {
			starts = append(starts, offset)
		}
		offset += int(e.CDSEnd - e.CDSStart + 1)
	}
	if t.Strand == -1 {
		for i := len(t.Exons) - 1; i >= 0; i-- {
			visit(&t.Exons[i])
		}
	} else {
		for i := range t.Exons {
			visit(&t.Exons[i])
		}
	}
	return starts
}
