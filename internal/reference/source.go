package reference

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/inodb/vibe-perm/internal/genemodel"
)

// GENCODESource selects one coding transcript per gene from GENCODE
// annotations and serves it as a gene model annotation.
type GENCODESource struct {
	byGene    map[string][]*Transcript // gene symbol and gene ID -> transcripts
	overrides CanonicalOverrides
	count     int
}

// LoadGENCODE loads a GENCODE GTF and its pc_transcripts FASTA. Either file
// may be gzipped.
func LoadGENCODE(gtfPath, fastaPath string, overrides CanonicalOverrides) (*GENCODESource, error) {
	gtf, err := openMaybeGzip(gtfPath)
	if err != nil {
		return nil, fmt.Errorf("open GTF file: %w", err)
	}
	defer gtf.Close()

	fa, err := LoadFASTA(fastaPath)
	if err != nil {
		return nil, fmt.Errorf("load FASTA: %w", err)
	}

	return ParseGENCODE(gtf, fa, overrides)
}

// ParseGENCODE builds a source from GTF content and loaded FASTA sequences.
// Transcripts without a CDS or without a matching sequence are dropped.
func ParseGENCODE(gtf io.Reader, fa *FASTA, overrides CanonicalOverrides) (*GENCODESource, error) {
	transcripts, err := parseGTF(gtf)
	if err != nil {
		return nil, fmt.Errorf("load GTF: %w", err)
	}

	s := &GENCODESource{
		byGene:    make(map[string][]*Transcript),
		overrides: overrides,
	}
	for _, t := range transcripts {
		if !t.IsProteinCoding() {
			continue
		}
		seq, ok := fa.CDS(t.ID)
		if !ok || len(seq) != t.CDSLength() {
			continue
		}
		t.CDSSequence = seq
		s.count++
		if t.GeneName != "" {
			s.byGene[t.GeneName] = append(s.byGene[t.GeneName], t)
		}
		if t.GeneID != "" && t.GeneID != t.GeneName {
			s.byGene[t.GeneID] = append(s.byGene[t.GeneID], t)
		}
	}
	return s, nil
}

// Annotation implements driver.AnnotationSource. geneID may be a gene
// symbol or an Ensembl gene ID.
func (s *GENCODESource) Annotation(geneID string) (genemodel.Annotation, error) {
	t := s.Select(geneID)
	if t == nil {
		return genemodel.Annotation{}, fmt.Errorf("gene %s: %w", geneID, genemodel.ErrNotFound)
	}
	return genemodel.Annotation{
		GeneID:       geneID,
		TranscriptID: t.ID,
		CDS:          t.CDSSequence,
		ExonStarts:   t.CDSExonStarts(),
	}, nil
}

// Select returns the transcript used for a gene: the canonical override if
// present, then Ensembl canonical, then MANE Select, then the longest CDS.
// Returns nil for unknown genes.
func (s *GENCODESource) Select(geneID string) *Transcript {
	candidates := s.byGene[stripVersion(geneID)]
	if len(candidates) == 0 {
		return nil
	}
	if id, ok := s.overrides[geneID]; ok {
		for _, t := range candidates {
			if t.ID == id {
				return t
			}
		}
	}

	ranked := append([]*Transcript(nil), candidates...)
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.IsCanonical != b.IsCanonical {
			return a.IsCanonical
		}
		if a.IsMANESelect != b.IsMANESelect {
			return a.IsMANESelect
		}
		if la, lb := len(a.CDSSequence), len(b.CDSSequence); la != lb {
			return la > lb
		}
		return a.ID < b.ID
	})
	return ranked[0]
}

// TranscriptCount returns the number of usable coding transcripts.
func (s *GENCODESource) TranscriptCount() int {
	return s.count
}

// FASTASource serves coding sequences keyed by gene ID straight from a
// FASTA file. Annotations carry no exon junctions.
type FASTASource struct {
	fa *FASTA
}

// NewFASTASource wraps loaded FASTA records.
func NewFASTASource(fa *FASTA) *FASTASource {
	return &FASTASource{fa: fa}
}

// Annotation implements driver.AnnotationSource.
func (s *FASTASource) Annotation(geneID string) (genemodel.Annotation, error) {
	seq, ok := s.fa.CDS(geneID)
	if !ok {
		return genemodel.Annotation{}, fmt.Errorf("gene %s: %w", geneID, genemodel.ErrNotFound)
	}
	return genemodel.Annotation{GeneID: geneID, CDS: seq}, nil
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g gzipFile) Close() error {
	g.Reader.Close()
	return g.f.Close()
}

func openMaybeGzip(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open gzip reader: %w", err)
	}
	return gzipFile{Reader: gz, f: f}, nil
}
