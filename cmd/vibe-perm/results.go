package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/inodb/vibe-perm/internal/duckdb"
	"github.com/inodb/vibe-perm/internal/output"
	"github.com/inodb/vibe-perm/internal/score"
)

func newResultsCmd() *cobra.Command {
	var (
		dbPath string
		gene   string
		test   string
		maxQ   float64
	)

	cmd := &cobra.Command{
		Use:   "results",
		Short: "Query results stored with 'run --db'",
		Example: `  vibe-perm results --db results.duckdb
  vibe-perm results --db results.duckdb --test inactivating --max-q 0.1
  vibe-perm results --db results.duckdb --gene KRAS`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return errors.New("--db is required")
			}
			store, err := duckdb.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if gene != "" {
				return showGene(out, store, gene)
			}

			t, err := score.ParseTest(test)
			if err != nil {
				return err
			}
			if err := showRunInfo(out, store); err != nil {
				return err
			}
			return showSignificant(out, store, t, maxQ)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "DuckDB database written by 'run --db'")
	cmd.Flags().StringVar(&gene, "gene", "", "Show all stored values for one gene")
	cmd.Flags().StringVar(&test, "test", string(score.TestClustering), "Test to list significant genes for")
	cmd.Flags().Float64Var(&maxQ, "max-q", 0.1, "Maximum Benjamini-Hochberg q-value")
	return cmd
}

func showGene(out io.Writer, store *duckdb.Store, gene string) error {
	res, err := store.LookupGene(gene)
	if err != nil {
		return err
	}
	if res == nil {
		return fmt.Errorf("gene %s not found", gene)
	}
	tw := output.NewTabWriter(out, score.Tests)
	if err := tw.WriteHeader(); err != nil {
		return err
	}
	if err := tw.Write(res); err != nil {
		return err
	}
	return tw.Flush()
}

func showRunInfo(out io.Writer, store *duckdb.Store) error {
	info, err := store.ReadRunInfo()
	if err != nil || info == nil {
		return err
	}
	fmt.Fprintf(out, "# run %s: %d rounds, seed %d, %s sampling\n",
		info.StartedAt.Local().Format(time.RFC3339), info.Rounds, info.Seed, info.Sampling)
	for _, in := range info.Inputs {
		state := "unchanged"
		if !in.Matches() {
			state = "changed since run"
		}
		fmt.Fprintf(out, "# input %s (%s)\n", in.Path, state)
	}
	return nil
}

func showSignificant(out io.Writer, store *duckdb.Store, t score.Test, maxQ float64) error {
	hits, err := store.Significant(t, maxQ)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "gene\ttranscript\tscore\tp\tq")
	for _, h := range hits {
		fmt.Fprintf(w, "%s\t%s\t%.4g\t%.4g\t%.4g\n", h.GeneID, h.TranscriptID, h.Result.Observed, h.Result.PValue, h.Result.QValue)
	}
	return w.Flush()
}
