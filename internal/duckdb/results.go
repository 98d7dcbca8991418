package duckdb

import (
	"context"
	"database/sql"
	sqldriver "database/sql/driver"
	"fmt"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-perm/internal/driver"
	"github.com/inodb/vibe-perm/internal/score"
)

// Hit is one gene passing a significance threshold for a test.
type Hit struct {
	GeneID       string
	TranscriptID string
	Test         score.Test
	Result       driver.TestResult
}

// WriteGeneResults batch-inserts gene results using the Appender API.
// Tested genes get one row per test, in reporting order.
func (s *Store) WriteGeneResults(results []*driver.GeneResult) error {
	if len(results) == 0 {
		return nil
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(sqldriver.Conn), "", "gene_results")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, r := range results {
		if r.Skipped() || len(r.Tests) == 0 {
			if err := appender.AppendRow(
				r.GeneID, r.TranscriptID, int32(r.CodingLength), int32(r.MutationCount),
				int32(r.InvalidCount), int32(r.RecurrentCount),
				nil, nil, nil, nil, nil, nil, nil,
				string(r.SkipReason),
			); err != nil {
				return fmt.Errorf("append skipped gene %s: %w", r.GeneID, err)
			}
			continue
		}
		for _, t := range score.Tests {
			tr, ok := r.Tests[t]
			if !ok {
				continue
			}
			var p, q, mean, sd any
			if tr.Simulated() {
				p, q, mean, sd = tr.PValue, tr.QValue, tr.NullMean, tr.NullStdDev
			}
			if err := appender.AppendRow(
				r.GeneID, r.TranscriptID, int32(r.CodingLength), int32(r.MutationCount),
				int32(r.InvalidCount), int32(r.RecurrentCount),
				string(t), tr.Observed, p, q, mean, sd, int32(tr.Rounds),
				nil,
			); err != nil {
				return fmt.Errorf("append gene %s: %w", r.GeneID, err)
			}
		}
	}

	return appender.Flush()
}

// ClearGeneResults removes all stored gene results.
func (s *Store) ClearGeneResults() error {
	_, err := s.db.Exec("DELETE FROM gene_results")
	return err
}

// LookupGene returns the stored result for a gene, or nil if the gene was
// never written.
func (s *Store) LookupGene(geneID string) (*driver.GeneResult, error) {
	rows, err := s.db.Query(`SELECT
		transcript_id, coding_length, mutations, invalid, recurrent,
		test, observed, p_value, q_value, null_mean, null_sd, rounds, skip_reason
		FROM gene_results
		WHERE gene_id=?`, geneID)
	if err != nil {
		return nil, fmt.Errorf("query gene: %w", err)
	}
	defer rows.Close()

	var res *driver.GeneResult
	for rows.Next() {
		var (
			transcript, test, skip                sql.NullString
			length, mutations, invalid, recurrent int
			observed, p, q, mean, sd              sql.NullFloat64
			rounds                                sql.NullInt64
		)
		if err := rows.Scan(&transcript, &length, &mutations, &invalid, &recurrent,
			&test, &observed, &p, &q, &mean, &sd, &rounds, &skip); err != nil {
			return nil, fmt.Errorf("scan gene result: %w", err)
		}
		if res == nil {
			res = &driver.GeneResult{
				GeneID:         geneID,
				TranscriptID:   transcript.String,
				CodingLength:   length,
				MutationCount:  mutations,
				InvalidCount:   invalid,
				RecurrentCount: recurrent,
				Tests:          make(map[score.Test]*driver.TestResult),
				SkipReason:     driver.SkipReason(skip.String),
			}
		}
		if !test.Valid {
			continue
		}
		res.Tests[score.Test(test.String)] = &driver.TestResult{
			Observed:   observed.Float64,
			PValue:     p.Float64,
			QValue:     q.Float64,
			NullMean:   mean.Float64,
			NullStdDev: sd.Float64,
			Rounds:     int(rounds.Int64),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gene results: %w", err)
	}
	return res, nil
}

// Significant returns genes whose q-value for the test is at most maxQ,
// ordered by q-value, then p-value, then gene ID.
func (s *Store) Significant(test score.Test, maxQ float64) ([]Hit, error) {
	rows, err := s.db.Query(`SELECT
		gene_id, transcript_id, observed, p_value, q_value, null_mean, null_sd, rounds
		FROM gene_results
		WHERE test=? AND q_value<=?
		ORDER BY q_value, p_value, gene_id`, string(test), maxQ)
	if err != nil {
		return nil, fmt.Errorf("query significant genes: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		h := Hit{Test: test}
		var transcript sql.NullString
		if err := rows.Scan(&h.GeneID, &transcript, &h.Result.Observed, &h.Result.PValue,
			&h.Result.QValue, &h.Result.NullMean, &h.Result.NullStdDev, &h.Result.Rounds); err != nil {
			return nil, fmt.Errorf("scan significant gene: %w", err)
		}
		h.TranscriptID = transcript.String
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate significant genes: %w", err)
	}
	return hits, nil
}
