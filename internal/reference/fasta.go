package reference

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// FASTA holds sequences from a GENCODE pc_transcripts or plain CDS FASTA file.
type FASTA struct {
	sequences map[string]string // id -> full sequence, upper case
	cdsRanges map[string][2]int // id -> [cdsStart, cdsEnd] (1-based from header)
	order     []string          // ids in file order
}

// LoadFASTA reads a FASTA file. Gzipped files are detected by the .gz suffix.
func LoadFASTA(path string) (*FASTA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FASTA file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}
	return ParseFASTA(reader)
}

// ParseFASTA parses FASTA content.
// GENCODE headers look like:
// >ENST00000456328.2|ENSG00000290825.1|OTTHUMG00000002860.3|OTTHUMT00000007999.2|DDX11L2-202|DDX11L2|459|UTR5:1-200|CDS:201-459|UTR3:460-1657|
func ParseFASTA(reader io.Reader) (*FASTA, error) {
	fa := &FASTA{
		sequences: make(map[string]string),
		cdsRanges: make(map[string][2]int),
	}

	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var currentID string
	var currentSeq strings.Builder
	flush := func() {
		if currentID != "" && currentSeq.Len() > 0 {
			if _, dup := fa.sequences[currentID]; !dup {
				fa.order = append(fa.order, currentID)
			}
			fa.sequences[currentID] = strings.ToUpper(currentSeq.String())
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, ">") {
			flush()
			currentID = parseFASTAHeader(line)
			if cdsStart, cdsEnd, ok := parseCDSRange(line); ok {
				fa.cdsRanges[currentID] = [2]int{cdsStart, cdsEnd}
			}
			currentSeq.Reset()
			continue
		}
		currentSeq.WriteString(strings.TrimSpace(line))
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan FASTA: %w", err)
	}
	return fa, nil
}

// parseFASTAHeader extracts the record ID: the first pipe- or
// space-delimited token, without version.
func parseFASTAHeader(header string) string {
	header = strings.TrimPrefix(header, ">")
	if idx := strings.IndexAny(header, "| \t"); idx != -1 {
		header = header[:idx]
	}
	return stripVersion(header)
}

// parseCDSRange extracts CDS start and end positions from a GENCODE FASTA header.
// Header format: >ENST...|...|CDS:90-920|...
// Returns 1-based start and end positions.
func parseCDSRange(header string) (start, end int, ok bool) {
	for _, field := range strings.Split(header, "|") {
		field = strings.TrimSpace(field)
		rangeStr, found := strings.CutPrefix(field, "CDS:")
		if !found {
			continue
		}
		s, e, found := strings.Cut(rangeStr, "-")
		if !found {
			return 0, 0, false
		}
		si, err1 := strconv.Atoi(s)
		ei, err2 := strconv.Atoi(e)
		if err1 != nil || err2 != nil {
			return 0, 0, false
		}
		return si, ei, true
	}
	return 0, 0, false
}

// CDS returns the coding sequence for an ID. When the header carried a CDS
// range only that portion is returned.
func (fa *FASTA) CDS(id string) (string, bool) {
	id = stripVersion(id)
	seq, ok := fa.sequences[id]
	if !ok {
		return "", false
	}
	if r, hasCDS := fa.cdsRanges[id]; hasCDS {
		start, end := r[0]-1, r[1]
		if start >= 0 && end <= len(seq) && start < end {
			return seq[start:end], true
		}
	}
	return seq, true
}

// IDs returns the record IDs in file order.
func (fa *FASTA) IDs() []string {
	return fa.order
}

// Len returns the number of loaded sequences.
func (fa *FASTA) Len() int {
	return len(fa.sequences)
}
