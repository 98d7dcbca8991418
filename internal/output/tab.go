// Package output writes per-gene test results.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/vibe-perm/internal/driver"
	"github.com/inodb/vibe-perm/internal/score"
)

// NA marks a value that was not computed.
const NA = "NA"

// TabWriter writes gene results in tab-delimited format, one row per gene.
type TabWriter struct {
	w       *bufio.Writer
	tests   []score.Test
	columns []string
}

// NewTabWriter creates a writer with columns for each of the given tests.
func NewTabWriter(w io.Writer, tests []score.Test) *TabWriter {
	columns := []string{
		"gene",
		"transcript",
		"coding_length",
		"mutations",
		"invalid",
		"recurrent",
	}
	for _, t := range tests {
		columns = append(columns,
			string(t)+"_score",
			string(t)+"_p",
			string(t)+"_q",
			string(t)+"_null_mean",
			string(t)+"_null_sd",
		)
	}
	columns = append(columns, "skip_reason")

	return &TabWriter{
		w:       bufio.NewWriter(w),
		tests:   tests,
		columns: columns,
	}
}

// Columns returns the header columns.
func (tw *TabWriter) Columns() []string {
	return tw.columns
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes a single gene result. Tests that were not run are written as NA,
// as are the null statistics of tests that were scored but not simulated.
func (tw *TabWriter) Write(res *driver.GeneResult) error {
	values := make([]string, 0, len(tw.columns))
	values = append(values,
		res.GeneID,
		orNA(res.TranscriptID),
		countOrNA(res.CodingLength, res.CodingLength > 0),
		strconv.Itoa(res.MutationCount),
		strconv.Itoa(res.InvalidCount),
		countOrNA(res.RecurrentCount, !res.Skipped()),
	)
	for _, t := range tw.tests {
		tr, ok := res.Tests[t]
		if !ok {
			values = append(values, NA, NA, NA, NA, NA)
			continue
		}
		if !tr.Simulated() {
			values = append(values, formatFloat(tr.Observed), NA, NA, NA, NA)
			continue
		}
		values = append(values,
			formatFloat(tr.Observed),
			formatFloat(tr.PValue),
			formatFloat(tr.QValue),
			formatFloat(tr.NullMean),
			formatFloat(tr.NullStdDev),
		)
	}
	values = append(values, orNA(string(res.SkipReason)))

	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// WriteAll writes the header and every result, then flushes.
func (tw *TabWriter) WriteAll(results []*driver.GeneResult) error {
	if err := tw.WriteHeader(); err != nil {
		return err
	}
	for _, res := range results {
		if err := tw.Write(res); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func orNA(s string) string {
	if s == "" {
		return NA
	}
	return s
}

func countOrNA(n int, ok bool) string {
	if !ok {
		return NA
	}
	return strconv.Itoa(n)
}
