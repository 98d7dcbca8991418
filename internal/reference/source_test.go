package reference

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-perm/internal/genemodel"
)

func gtfLine(chrom, feature string, start, end int, strand, attrs string) string {
	return strings.Join([]string{chrom, "HAVANA", feature, strconv.Itoa(start), strconv.Itoa(end), ".", strand, ".", attrs}, "\t")
}

const (
	attrsT1 = `gene_id "ENSG00000000001.3"; transcript_id "ENST00000000001.2"; gene_name "GENEA"; transcript_type "protein_coding"; tag "basic"; tag "Ensembl_canonical";`
	attrsT2 = `gene_id "ENSG00000000001.3"; transcript_id "ENST00000000002.1"; gene_name "GENEA"; transcript_type "protein_coding"; tag "basic";`
	attrsT3 = `gene_id "ENSG00000000003.1"; transcript_id "ENST00000000003.1"; gene_name "GENEB"; transcript_type "protein_coding";`
	attrsT4 = `gene_id "ENSG00000000004.1"; transcript_id "ENST00000000004.1"; gene_name "GENEC"; transcript_type "protein_coding";`
)

func testGTF() string {
	lines := []string{
		"##description: test",
		// GENEA canonical, forward strand, two coding exons (9 + 15)
		gtfLine("chr1", "transcript", 100, 230, "+", attrsT1),
		gtfLine("chr1", "exon", 100, 120, "+", attrsT1+` exon_number 1;`),
		gtfLine("chr1", "exon", 200, 230, "+", attrsT1+` exon_number 2;`),
		gtfLine("chr1", "CDS", 112, 120, "+", attrsT1),
		gtfLine("chr1", "CDS", 200, 211, "+", attrsT1),
		gtfLine("chr1", "stop_codon", 212, 214, "+", attrsT1),
		// GENEA alternative, single exon, longer CDS
		gtfLine("chr1", "transcript", 100, 130, "+", attrsT2),
		gtfLine("chr1", "exon", 100, 130, "+", attrsT2),
		gtfLine("chr1", "CDS", 100, 126, "+", attrsT2),
		gtfLine("chr1", "stop_codon", 127, 129, "+", attrsT2),
		// GENEB reverse strand: exon at 400 is transcribed first (9 + 12)
		gtfLine("chr2", "transcript", 300, 408, "-", attrsT3),
		gtfLine("chr2", "exon", 300, 311, "-", attrsT3),
		gtfLine("chr2", "exon", 400, 408, "-", attrsT3),
		gtfLine("chr2", "CDS", 400, 408, "-", attrsT3),
		gtfLine("chr2", "CDS", 303, 311, "-", attrsT3),
		gtfLine("chr2", "stop_codon", 300, 302, "-", attrsT3),
		// GENEC has a FASTA sequence of the wrong length
		gtfLine("chr3", "transcript", 10, 20, "+", attrsT4),
		gtfLine("chr3", "exon", 10, 20, "+", attrsT4),
		gtfLine("chr3", "CDS", 10, 18, "+", attrsT4),
		"malformed line",
	}
	return strings.Join(lines, "\n") + "\n"
}

const (
	cdsT1 = "ATGGCTCAAGGATGGTTCAAATAA"
	cdsT2 = "ATGGCTCAAGGATGGTTCAAACGTTGGTAA"
	cdsT3 = "ATGGCTCAAGGATGGTTCTAG"
)

func testFASTA(t *testing.T) *FASTA {
	t.Helper()
	content := ">ENST00000000001.2|ENSG00000000001.3|-|-|GENEA-201|GENEA|32|UTR5:1-5|CDS:6-29|UTR3:30-32|\n" +
		"ggggg" + strings.ToLower(cdsT1[:10]) + "\n" + cdsT1[10:] + "AAA\n" +
		">ENST00000000002.1|ENSG00000000001.3|-|-|GENEA-202|GENEA|30|CDS:1-30|\n" + cdsT2 + "\n" +
		">ENST00000000003.1|ENSG00000000003.1|-|-|GENEB-201|GENEB|21|CDS:1-21|\n" + cdsT3 + "\n" +
		">ENST00000000004.1|ENSG00000000004.1|-|-|GENEC-201|GENEC|6|CDS:1-6|\nATGTAA\n"
	fa, err := ParseFASTA(strings.NewReader(content))
	require.NoError(t, err)
	return fa
}

func TestParseFASTA(t *testing.T) {
	fa := testFASTA(t)
	assert.Equal(t, 4, fa.Len())
	assert.Equal(t, []string{"ENST00000000001", "ENST00000000002", "ENST00000000003", "ENST00000000004"}, fa.IDs())

	seq, ok := fa.CDS("ENST00000000001.2")
	require.True(t, ok)
	assert.Equal(t, cdsT1, seq)

	_, ok = fa.CDS("ENST99999999999")
	assert.False(t, ok)
}

func TestParseCDSRange(t *testing.T) {
	s, e, ok := parseCDSRange(">ENST1|ENSG1|UTR5:1-89|CDS:90-920|UTR3:921-1000|")
	require.True(t, ok)
	assert.Equal(t, 90, s)
	assert.Equal(t, 920, e)

	_, _, ok = parseCDSRange(">ENST1|ENSG1|")
	assert.False(t, ok)
	_, _, ok = parseCDSRange(">ENST1|CDS:x-9|")
	assert.False(t, ok)
}

func TestParseGTF_CDSCoordinates(t *testing.T) {
	transcripts, err := parseGTF(strings.NewReader(testGTF()))
	require.NoError(t, err)
	require.Len(t, transcripts, 4)

	t1 := transcripts["ENST00000000001"]
	require.NotNil(t, t1)
	assert.Equal(t, "GENEA", t1.GeneName)
	assert.Equal(t, "ENSG00000000001", t1.GeneID)
	assert.Equal(t, "1", t1.Chrom)
	assert.True(t, t1.IsCanonical)
	assert.Equal(t, int64(112), t1.CDSStart)
	assert.Equal(t, int64(214), t1.CDSEnd)
	assert.Equal(t, 24, t1.CDSLength())
	assert.Equal(t, []int{9}, t1.CDSExonStarts())

	t3 := transcripts["ENST00000000003"]
	assert.Equal(t, int8(-1), t3.Strand)
	assert.Equal(t, 21, t3.CDSLength())
	assert.Equal(t, []int{9}, t3.CDSExonStarts())

	assert.Empty(t, transcripts["ENST00000000002"].CDSExonStarts())
}

func TestParseAttributes(t *testing.T) {
	attrs := parseAttributes(attrsT1)
	assert.Equal(t, "ENST00000000001.2", attrs["transcript_id"])
	assert.Equal(t, "basic,Ensembl_canonical", attrs["tag"])
}

func TestGENCODESource_Annotation(t *testing.T) {
	src, err := ParseGENCODE(strings.NewReader(testGTF()), testFASTA(t), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, src.TranscriptCount())

	ann, err := src.Annotation("GENEA")
	require.NoError(t, err)
	assert.Equal(t, "ENST00000000001", ann.TranscriptID)
	assert.Equal(t, cdsT1, ann.CDS)
	assert.Equal(t, []int{9}, ann.ExonStarts)

	m, err := genemodel.New(ann, 1)
	require.NoError(t, err)
	assert.True(t, m.InSpliceWindow(8))
	assert.True(t, m.InSpliceWindow(9))
	assert.False(t, m.InSpliceWindow(10))

	ann, err = src.Annotation("ENSG00000000003")
	require.NoError(t, err)
	assert.Equal(t, cdsT3, ann.CDS)
	assert.Equal(t, []int{9}, ann.ExonStarts)

	_, err = src.Annotation("GENEC")
	assert.ErrorIs(t, err, genemodel.ErrNotFound)
	_, err = src.Annotation("NOPE")
	assert.ErrorIs(t, err, genemodel.ErrNotFound)
}

func TestGENCODESource_CanonicalOverride(t *testing.T) {
	overrides, err := parseCanonicalOverrides(strings.NewReader(
		"hgnc_symbol\tensembl_gene\tensembl_canonical\tmskcc\tgenome_nexus_canonical_transcript\n" +
			"GENEA\tENSG00000000001\tENST00000000001\t-\tENST00000000002.1\n" +
			"GENEX\tENSG9\tENST9\t-\tnan\n"))
	require.NoError(t, err)
	assert.Equal(t, CanonicalOverrides{"GENEA": "ENST00000000002"}, overrides)

	src, err := ParseGENCODE(strings.NewReader(testGTF()), testFASTA(t), overrides)
	require.NoError(t, err)

	ann, err := src.Annotation("GENEA")
	require.NoError(t, err)
	assert.Equal(t, "ENST00000000002", ann.TranscriptID)
	assert.Equal(t, cdsT2, ann.CDS)
	assert.Empty(t, ann.ExonStarts)
}

func TestLoadGENCODE_Files(t *testing.T) {
	dir := t.TempDir()
	gtfPath := filepath.Join(dir, "annotation.gtf")
	faPath := filepath.Join(dir, "pc_transcripts.fa")
	require.NoError(t, os.WriteFile(gtfPath, []byte(testGTF()), 0o644))
	require.NoError(t, os.WriteFile(faPath, []byte(">ENST00000000003.1|CDS:1-21|\n"+cdsT3+"\n"), 0o644))

	src, err := LoadGENCODE(gtfPath, faPath, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, src.TranscriptCount())

	_, err = src.Annotation("GENEB")
	assert.NoError(t, err)
	_, err = src.Annotation("GENEA")
	assert.ErrorIs(t, err, genemodel.ErrNotFound)
}

func TestFASTASource(t *testing.T) {
	fa, err := ParseFASTA(strings.NewReader(">KRAS some description\nATGACTGAA\nTATAAA\n>TP53\natgtaa\n"))
	require.NoError(t, err)
	src := NewFASTASource(fa)

	ann, err := src.Annotation("KRAS")
	require.NoError(t, err)
	assert.Equal(t, "ATGACTGAATATAAA", ann.CDS)
	assert.Nil(t, ann.ExonStarts)

	ann, err = src.Annotation("TP53")
	require.NoError(t, err)
	assert.Equal(t, "ATGTAA", ann.CDS)

	_, err = src.Annotation("EGFR")
	assert.ErrorIs(t, err, genemodel.ErrNotFound)
}
