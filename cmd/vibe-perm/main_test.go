package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-perm/internal/driver"
	"github.com/inodb/vibe-perm/internal/score"
)

const testCDS = "ATGGCTCAAGGATGGTTCAAACGT" + "ATGGCTCAAGGATGGTTCAAACGT" + "ATGGCTCAAGGATGGTTCAAACGT"

const testMAF = "Hugo_Symbol\tVariant_Type\tReference_Allele\tTumor_Seq_Allele2\tCDS_position\tTumor_Sample_Barcode\n" +
	"G\tSNP\tT\tC\t2/72\tS1\n" +
	"G\tSNP\tC\tA\t5/72\tS2\n" +
	"G\tSNP\tC\tA\t5/72\tS3\n" +
	"G\tSNP\tT\tA\t13/72\tS4\n" +
	"G\tSNP\tC\tT\t1/72\tS5\n" + // reference is A
	"G\tDEL\tC\t-\t7/72\tS6\n" +
	"MISSING\tSNP\tA\tG\t10/300\tS7\n"

func writeInputs(t *testing.T) (dir, mafPath, faPath string) {
	t.Helper()
	dir = t.TempDir()
	t.Setenv("HOME", dir)
	mafPath = filepath.Join(dir, "cohort.maf")
	faPath = filepath.Join(dir, "cds.fa")
	require.NoError(t, os.WriteFile(mafPath, []byte(testMAF), 0o644))
	require.NoError(t, os.WriteFile(faPath, []byte(">G\n"+testCDS[:40]+"\n"+testCDS[40:]+"\n"), 0o644))
	return dir, mafPath, faPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestConfigFromViper(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg, seeded, err := configFromViper(v)
	require.NoError(t, err)
	assert.True(t, seeded)
	assert.Equal(t, driver.DefaultConfig(), cfg)

	v.Set(keyTests, "clustering, recurrence")
	v.Set(keySampling, "context")
	v.Set(keySeed, -1)
	cfg, seeded, err = configFromViper(v)
	require.NoError(t, err)
	assert.False(t, seeded)
	assert.Equal(t, []score.Test{score.TestClustering, score.TestRecurrence}, cfg.Tests)
	assert.Equal(t, driver.SamplingContext, cfg.Sampling)

	v.Set(keyMinInactivating, 3)
	cfg, _, err = configFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MinInactivating)

	v.Set(keyMinInactivating, -1)
	_, _, err = configFromViper(v)
	assert.ErrorIs(t, err, driver.ErrInvalidConfig)
	v.Set(keyMinInactivating, 0)

	v.Set(keyRounds, 0)
	_, _, err = configFromViper(v)
	assert.ErrorIs(t, err, driver.ErrInvalidConfig)

	v.Set(keyRounds, 10)
	v.Set(keyTests, "hotspots")
	_, _, err = configFromViper(v)
	assert.ErrorIs(t, err, driver.ErrInvalidConfig)
}

func TestRunCommand_CDSFASTA(t *testing.T) {
	dir, mafPath, faPath := writeInputs(t)
	outPath := filepath.Join(dir, "results.tsv")
	dbPath := filepath.Join(dir, "results.duckdb")

	_, err := execute(t, "run", "--cds-fasta", faPath, "--rounds", "200", "--seed", "7",
		"--tests", "clustering,inactivating,recurrence", "-o", outPath, "--db", dbPath, mafPath)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 3)

	header := strings.Split(lines[0], "\t")
	assert.Equal(t, "gene", header[0])
	assert.Equal(t, "skip_reason", header[len(header)-1])
	assert.Contains(t, header, "recurrence_q")

	g := strings.Split(lines[1], "\t")
	require.Len(t, g, len(header))
	assert.Equal(t, "G", g[0])
	assert.Equal(t, "72", g[2])
	assert.Equal(t, "4", g[3]) // valid SNVs
	assert.Equal(t, "1", g[4]) // reference mismatch
	assert.Equal(t, "2", g[5]) // two missense on codon 1
	assert.Equal(t, "NA", g[len(g)-1])

	missing := strings.Split(lines[2], "\t")
	assert.Equal(t, "MISSING", missing[0])
	assert.Equal(t, "AnnotationNotFound", missing[len(missing)-1])

	out, err := execute(t, "results", "--db", dbPath, "--gene", "G")
	require.NoError(t, err)
	assert.Contains(t, out, "G\tNA\t72\t4\t1\t2\t")

	out, err = execute(t, "results", "--db", dbPath, "--test", "clustering", "--max-q", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "200 rounds, seed 7, uniform sampling")
	assert.Contains(t, out, "cohort.maf (unchanged)")
	assert.Contains(t, out, "\nG ")
}

func TestRunCommand_Reproducible(t *testing.T) {
	_, mafPath, faPath := writeInputs(t)

	first, err := execute(t, "run", "--cds-fasta", faPath, "--rounds", "100", "--seed", "11", mafPath)
	require.NoError(t, err)
	second, err := execute(t, "run", "--cds-fasta", faPath, "--rounds", "100", "--seed", "11", "--workers", "3", "--round-workers", "4", mafPath)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRunCommand_InvalidRounds(t *testing.T) {
	_, mafPath, faPath := writeInputs(t)

	_, err := execute(t, "run", "--cds-fasta", faPath, "--rounds", "0", mafPath)
	assert.ErrorIs(t, err, driver.ErrInvalidConfig)
}

func TestRunCommand_MissingGENCODE(t *testing.T) {
	dir, mafPath, _ := writeInputs(t)

	_, err := execute(t, "run", "--data-dir", dir, mafPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vibe-perm download")
}

func TestFindGENCODEFiles(t *testing.T) {
	dir := t.TempDir()
	_, _, _, found := FindGENCODEFiles(dir, "GRCh38")
	assert.False(t, found)

	sub := filepath.Join(dir, "grch38")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	for _, name := range []string{"gencode.v46.annotation.gtf.gz", "gencode.v46.pc_transcripts.fa.gz", canonicalFileName} {
		require.NoError(t, os.WriteFile(filepath.Join(sub, name), nil, 0o644))
	}

	gtf, fasta, canonical, found := FindGENCODEFiles(dir, "GRCh38")
	require.True(t, found)
	assert.Equal(t, filepath.Join(sub, "gencode.v46.annotation.gtf.gz"), gtf)
	assert.Equal(t, filepath.Join(sub, "gencode.v46.pc_transcripts.fa.gz"), fasta)
	assert.Equal(t, filepath.Join(sub, canonicalFileName), canonical)
}

func TestConfigSetGet(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	out, err := execute(t, "config", "set", "simulation.rounds", "500")
	require.NoError(t, err)
	assert.Contains(t, out, "Set simulation.rounds = 500")

	out, err = execute(t, "config", "get", "simulation.rounds")
	require.NoError(t, err)
	assert.Equal(t, "500\n", out)

	out, err = execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "rounds: 500")

	_, err = execute(t, "config", "set", "simulation.rounds", "0")
	assert.ErrorIs(t, err, driver.ErrInvalidConfig)

	_, err = execute(t, "config", "set", "no.such.key", "1")
	assert.Error(t, err)
}

func TestGetGENCODEURLs(t *testing.T) {
	gtf, fasta := getGENCODEURLs("GRCh37")
	assert.Contains(t, gtf, "GRCh37_mapping")
	assert.True(t, strings.HasSuffix(fasta, "lift37.pc_transcripts.fa.gz"))

	gtf, _ = getGENCODEURLs("GRCh38")
	assert.True(t, strings.HasSuffix(gtf, "gencode.v46.annotation.gtf.gz"))
	assert.Equal(t, canonicalFileGRCh37, canonicalFileURL("grch37"))
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "2.0 MB", formatSize(2*1024*1024))
}
