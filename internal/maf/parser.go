// Package maf reads somatic point mutations from MAF (Mutation Annotation
// Format) files.
package maf

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/vibe-perm/internal/codon"
	"github.com/inodb/vibe-perm/internal/mutation"
)

// Standard MAF column names
const (
	ColHugoSymbol            = "Hugo_Symbol"
	ColTranscriptID          = "Transcript_ID"
	ColCDSPosition           = "CDS_position"
	ColCDSPositionAlt        = "CDS_Position"
	ColReferenceAllele       = "Reference_Allele"
	ColTumorSeqAllele2       = "Tumor_Seq_Allele2"
	ColVariantClassification = "Variant_Classification"
	ColVariantType           = "Variant_Type"
	ColTranscriptStrand      = "TRANSCRIPT_STRAND"
	ColTumorSampleBarcode    = "Tumor_Sample_Barcode"
)

// ColumnIndices holds the indices of the MAF columns used. Missing columns are -1.
type ColumnIndices struct {
	HugoSymbol            int
	TranscriptID          int
	CDSPosition           int
	ReferenceAllele       int
	TumorSeqAllele2       int
	VariantClassification int
	VariantType           int
	TranscriptStrand      int
	TumorSampleBarcode    int
}

// Stats counts the data rows read and why rows were skipped.
type Stats struct {
	Rows          int
	Records       int
	NotSNV        int
	NoCDSPosition int
}

// Parser reads mutation records from a MAF file.
type Parser struct {
	reader     *bufio.Reader
	file       *os.File
	gzipReader *gzip.Reader
	lineNumber int
	columns    ColumnIndices
	stats      Stats
	logger     *zap.Logger
}

// NewParser creates a new MAF parser for the given file.
// Supports both plain MAF and gzipped MAF (.maf.gz) files.
func NewParser(path string) (*Parser, error) {
	if path == "-" {
		return NewParserFromReader(os.Stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open maf file: %w", err)
	}

	p := &Parser{file: file, logger: zap.NewNop()}

	buf := make([]byte, 2)
	if _, err := io.ReadFull(file, buf); err != nil {
		file.Close()
		return nil, fmt.Errorf("read maf header: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("seek maf file: %w", err)
	}

	// gzip magic number (0x1f, 0x8b)
	if buf[0] == 0x1f && buf[1] == 0x8b {
		p.gzipReader, err = gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.reader = bufio.NewReader(p.gzipReader)
	} else {
		p.reader = bufio.NewReader(file)
	}

	if err := p.parseHeader(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader (e.g., stdin).
func NewParserFromReader(r io.Reader) (*Parser, error) {
	p := &Parser{
		reader: bufio.NewReader(r),
		logger: zap.NewNop(),
	}
	if err := p.parseHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

// SetLogger sets the logger used for skipped rows.
func (p *Parser) SetLogger(l *zap.Logger) {
	p.logger = l
}

// parseHeader reads and parses the MAF header line to find column indices.
func (p *Parser) parseHeader() error {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return &ParseError{Line: p.lineNumber, Message: "no header line found"}
			}
			return fmt.Errorf("read header: %w", err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return p.parseColumnIndices(line)
	}
}

func (p *Parser) parseColumnIndices(headerLine string) error {
	p.columns = ColumnIndices{
		HugoSymbol:            -1,
		TranscriptID:          -1,
		CDSPosition:           -1,
		ReferenceAllele:       -1,
		TumorSeqAllele2:       -1,
		VariantClassification: -1,
		VariantType:           -1,
		TranscriptStrand:      -1,
		TumorSampleBarcode:    -1,
	}

	for i, col := range strings.Split(headerLine, "\t") {
		switch col {
		case ColHugoSymbol:
			p.columns.HugoSymbol = i
		case ColTranscriptID:
			p.columns.TranscriptID = i
		case ColCDSPosition, ColCDSPositionAlt:
			p.columns.CDSPosition = i
		case ColReferenceAllele:
			p.columns.ReferenceAllele = i
		case ColTumorSeqAllele2:
			p.columns.TumorSeqAllele2 = i
		case ColVariantClassification:
			p.columns.VariantClassification = i
		case ColVariantType:
			p.columns.VariantType = i
		case ColTranscriptStrand:
			p.columns.TranscriptStrand = i
		case ColTumorSampleBarcode:
			p.columns.TumorSampleBarcode = i
		}
	}

	required := []struct {
		name string
		idx  int
	}{
		{ColHugoSymbol, p.columns.HugoSymbol},
		{ColCDSPosition, p.columns.CDSPosition},
		{ColReferenceAllele, p.columns.ReferenceAllele},
		{ColTumorSeqAllele2, p.columns.TumorSeqAllele2},
	}
	for _, r := range required {
		if r.idx == -1 {
			return &ParseError{
				Line:    p.lineNumber,
				Message: fmt.Sprintf("required column '%s' not found in header", r.name),
			}
		}
	}
	return nil
}

// Next reads the next single-nucleotide coding mutation. Rows that are not
// SNVs or carry no CDS position are skipped and counted in Stats.
// Returns nil, nil when there are no more records.
func (p *Parser) Next() (*mutation.Record, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return nil, nil
			}
			return nil, fmt.Errorf("read mutation line: %w", err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		p.stats.Rows++
		rec, err := p.parseLine(line)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			p.stats.Records++
			return rec, nil
		}
	}
}

// parseLine returns nil, nil for rows that are skipped.
func (p *Parser) parseLine(line string) (*mutation.Record, error) {
	fields := strings.Split(line, "\t")

	minCols := max(p.columns.HugoSymbol, p.columns.CDSPosition, p.columns.ReferenceAllele, p.columns.TumorSeqAllele2)
	if len(fields) <= minCols {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("expected at least %d columns, found %d", minCols+1, len(fields)),
		}
	}

	gene := fields[p.columns.HugoSymbol]
	ref := strings.ToUpper(fields[p.columns.ReferenceAllele])
	alt := strings.ToUpper(fields[p.columns.TumorSeqAllele2])

	variantType := field(fields, p.columns.VariantType)
	if (variantType != "" && variantType != "SNP") || len(ref) != 1 || len(alt) != 1 ||
		!codon.IsBase(ref[0]) || !codon.IsBase(alt[0]) || ref == alt {
		p.stats.NotSNV++
		p.logger.Debug("skipping non-SNV row",
			zap.Int("line", p.lineNumber),
			zap.String("gene", gene),
			zap.String("ref", ref),
			zap.String("alt", alt))
		return nil, nil
	}

	pos, ok, err := parseCDSPosition(fields[p.columns.CDSPosition])
	if err != nil {
		return nil, &ParseError{Line: p.lineNumber, Message: err.Error()}
	}
	if !ok {
		p.stats.NoCDSPosition++
		p.logger.Debug("skipping row without CDS position",
			zap.Int("line", p.lineNumber),
			zap.String("gene", gene))
		return nil, nil
	}

	refBase, altBase := ref[0], alt[0]
	if strand := field(fields, p.columns.TranscriptStrand); strand == "-" || strand == "-1" {
		refBase = codon.Complement(refBase)
		altBase = codon.Complement(altBase)
	}

	return &mutation.Record{
		GeneID:         gene,
		TranscriptID:   field(fields, p.columns.TranscriptID),
		SampleID:       field(fields, p.columns.TumorSampleBarcode),
		CodingPosition: pos - 1,
		RefBase:        refBase,
		AltBase:        altBase,
		Consequence:    classification(field(fields, p.columns.VariantClassification)),
	}, nil
}

// parseCDSPosition parses "35/570" or "35" into the 1-based position.
// Empty and "-" values report ok == false.
func parseCDSPosition(s string) (pos int, ok bool, err error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	if s == "" || s == "-" || s == "." {
		return 0, false, nil
	}
	// Ranges only occur for multi-base changes.
	if strings.Contains(s, "-") || strings.Contains(s, "?") {
		return 0, false, nil
	}
	pos, err = strconv.Atoi(s)
	if err != nil || pos < 1 {
		return 0, false, fmt.Errorf("invalid CDS position: %s", s)
	}
	return pos, true, nil
}

func classification(vc string) mutation.Consequence {
	switch vc {
	case "Missense_Mutation":
		return mutation.Missense
	case "Nonsense_Mutation":
		return mutation.Nonsense
	case "Silent":
		return mutation.Synonymous
	case "Splice_Site":
		return mutation.SpliceDisrupting
	}
	return mutation.Other
}

func field(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return fields[idx]
}

// ReadAll reads every remaining record.
func (p *Parser) ReadAll() ([]mutation.Record, error) {
	var records []mutation.Record
	for {
		rec, err := p.Next()
		if err != nil {
			return records, err
		}
		if rec == nil {
			return records, nil
		}
		records = append(records, *rec)
	}
}

// Columns returns the parsed column indices.
func (p *Parser) Columns() ColumnIndices {
	return p.columns
}

// Stats returns the row counts so far.
func (p *Parser) Stats() Stats {
	return p.stats
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	if p.gzipReader != nil {
		p.gzipReader.Close()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// ParseError represents an error during MAF parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("maf parse error at line %d: %s", e.Line, e.Message)
}
