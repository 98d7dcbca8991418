package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-perm/internal/driver"
	"github.com/inodb/vibe-perm/internal/duckdb"
	"github.com/inodb/vibe-perm/internal/maf"
	"github.com/inodb/vibe-perm/internal/mutation"
	"github.com/inodb/vibe-perm/internal/output"
	"github.com/inodb/vibe-perm/internal/reference"
	"github.com/inodb/vibe-perm/internal/score"
)

// Config keys
const (
	keyRounds          = "simulation.rounds"
	keySeed            = "simulation.seed"
	keyWorkers         = "simulation.workers"
	keyRoundWorkers    = "simulation.round_workers"
	keySampling        = "simulation.sampling"
	keyMinContext      = "context.min_count"
	keySpliceWindow    = "model.splice_window"
	keyTests           = "tests"
	keyMinRecurrent    = "recurrence.min_count"
	keyMinRecFrac      = "recurrence.min_fraction"
	keyMinInactivating = "inactivating.min_count"
)

// flagNames maps config keys to run flags.
var flagNames = map[string]string{
	keyRounds:          "rounds",
	keySeed:            "seed",
	keyWorkers:         "workers",
	keyRoundWorkers:    "round-workers",
	keySampling:        "sampling",
	keyMinContext:      "min-context-count",
	keySpliceWindow:    "splice-window",
	keyTests:           "tests",
	keyMinRecurrent:    "min-recurrent",
	keyMinRecFrac:      "min-recurrent-fraction",
	keyMinInactivating: "min-inactivating",
}

func setDefaults(v *viper.Viper) {
	def := driver.DefaultConfig()
	v.SetDefault(keyRounds, def.Rounds)
	v.SetDefault(keySeed, int64(def.Seed))
	v.SetDefault(keyWorkers, def.Workers)
	v.SetDefault(keyRoundWorkers, def.RoundWorkers)
	v.SetDefault(keySampling, string(def.Sampling))
	v.SetDefault(keyMinContext, def.MinContextCount)
	v.SetDefault(keySpliceWindow, def.SpliceWindow)
	v.SetDefault(keyTests, testNames(def.Tests))
	v.SetDefault(keyMinRecurrent, def.Recurrence.MinCount)
	v.SetDefault(keyMinRecFrac, def.Recurrence.MinFraction)
	v.SetDefault(keyMinInactivating, def.MinInactivating)
}

func testNames(tests []score.Test) []string {
	names := make([]string, len(tests))
	for i, t := range tests {
		names[i] = string(t)
	}
	return names
}

// configFromViper builds the driver configuration. A negative seed selects
// a random one; seeded reports whether the seed came from configuration.
func configFromViper(v *viper.Viper) (cfg driver.Config, seeded bool, err error) {
	cfg = driver.DefaultConfig()
	cfg.Rounds = v.GetInt(keyRounds)
	cfg.Workers = v.GetInt(keyWorkers)
	cfg.RoundWorkers = v.GetInt(keyRoundWorkers)
	cfg.Sampling = driver.Sampling(v.GetString(keySampling))
	cfg.MinContextCount = v.GetInt(keyMinContext)
	cfg.SpliceWindow = v.GetInt(keySpliceWindow)
	cfg.Recurrence = score.Recurrence{
		MinCount:    v.GetInt(keyMinRecurrent),
		MinFraction: v.GetFloat64(keyMinRecFrac),
	}
	cfg.MinInactivating = v.GetInt(keyMinInactivating)

	cfg.Tests = nil
	for _, item := range v.GetStringSlice(keyTests) {
		for _, name := range strings.Split(item, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			t, err := score.ParseTest(name)
			if err != nil {
				return cfg, false, fmt.Errorf("%w: %v", driver.ErrInvalidConfig, err)
			}
			cfg.Tests = append(cfg.Tests, t)
		}
	}

	if seed := v.GetInt64(keySeed); seed >= 0 {
		cfg.Seed = uint64(seed)
		seeded = true
	} else {
		cfg.Seed = rand.Uint64()
	}

	return cfg, seeded, cfg.Validate()
}

type runOptions struct {
	gtfPath       string
	fastaPath     string
	canonicalPath string
	cdsFASTAPath  string
	assembly      string
	dataDir       string
	genes         []string
	outputPath    string
	dbPath        string
}

func newRunCmd(logger func() *zap.Logger) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [flags] <maf-file>",
		Short: "Run the per-gene tests on a MAF file",
		Long: `Run the per-gene clustering, inactivating and recurrence tests on the
coding SNVs of a MAF file. Coding sequences come from GENCODE (GTF plus
pc_transcripts FASTA, found in the data directory after 'vibe-perm download'
or given explicitly), or from a FASTA of coding sequences named by gene.`,
		Example: `  vibe-perm run data_mutations.txt
  vibe-perm run --rounds 100000 --tests clustering,recurrence -o results.tsv cohort.maf
  vibe-perm run --cds-fasta genes.fa --seed -1 cohort.maf.gz
  vibe-perm run --db results.duckdb cohort.maf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger()
			defer log.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			out := cmd.OutOrStdout()
			if opts.outputPath != "" {
				f, err := os.Create(opts.outputPath)
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			return runTests(ctx, args[0], opts, out, log)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.gtfPath, "gtf", "", "GENCODE annotation GTF (default: found in the data directory)")
	f.StringVar(&opts.fastaPath, "fasta", "", "GENCODE pc_transcripts FASTA (default: found in the data directory)")
	f.StringVar(&opts.canonicalPath, "canonical", "", "Canonical transcript overrides TSV")
	f.StringVar(&opts.cdsFASTAPath, "cds-fasta", "", "FASTA of coding sequences with gene IDs as headers (replaces GENCODE input)")
	f.StringVar(&opts.assembly, "assembly", "GRCh38", "Genome assembly used to locate downloaded GENCODE files")
	f.StringVar(&opts.dataDir, "data-dir", "", "Data directory (default: ~/.vibe-perm)")
	f.StringSliceVar(&opts.genes, "genes", nil, "Only test these genes, in this order")
	f.StringVarP(&opts.outputPath, "output", "o", "", "Output file (default: stdout)")
	f.StringVar(&opts.dbPath, "db", "", "Also store results in this DuckDB database")

	def := driver.DefaultConfig()
	f.Int(flagNames[keyRounds], def.Rounds, "Simulation rounds per gene and test")
	f.Int64(flagNames[keySeed], int64(def.Seed), "Base random seed; negative picks one at random")
	f.Int(flagNames[keyWorkers], 0, "Genes analyzed in parallel (0: number of CPUs)")
	f.Int(flagNames[keyRoundWorkers], 0, "Parallel rounds within a gene (0 or 1: serial)")
	f.String(flagNames[keySampling], string(driver.SamplingUniform), "Position sampling: uniform or context")
	f.Int(flagNames[keyMinContext], def.MinContextCount, "Minimum observations before a context uses its own spectrum")
	f.Int(flagNames[keySpliceWindow], def.SpliceWindow, "Coding bases on each side of an exon junction counted as splice-disrupting")
	f.StringSlice(flagNames[keyTests], testNames(def.Tests), "Tests to run: clustering, inactivating, recurrence")
	f.Int(flagNames[keyMinRecurrent], def.Recurrence.MinCount, "Minimum missense mutations on a codon to count as recurrent")
	f.Float64(flagNames[keyMinRecFrac], def.Recurrence.MinFraction, "Minimum fraction of a gene's missense mutations on a recurrent codon")
	f.Int(flagNames[keyMinInactivating], def.MinInactivating, "Minimum inactivating mutations before the inactivating test is simulated")

	for key, name := range flagNames {
		_ = viper.BindPFlag(key, f.Lookup(name))
	}

	return cmd
}

func runTests(ctx context.Context, mafPath string, opts runOptions, out io.Writer, log *zap.Logger) error {
	started := time.Now()

	cfg, seeded, err := configFromViper(viper.GetViper())
	if err != nil {
		return err
	}
	if !seeded {
		log.Info("no seed configured, using random seed", zap.Uint64("seed", cfg.Seed))
	}

	records, err := readMAF(mafPath, log)
	if err != nil {
		return err
	}

	source, inputs, err := loadReference(opts, log)
	if err != nil {
		return err
	}
	inputs = append([]string{mafPath}, inputs...)

	table := driver.BuildContextTable(records, source, cfg.MinContextCount)
	log.Info("built context table",
		zap.Int("observations", table.Total()),
		zap.Int("min_count", table.MinCount()))

	runner, err := driver.NewRunner(cfg, table, source)
	if err != nil {
		return err
	}
	runner.SetLogger(log)

	results, runErr := runner.Run(ctx, driver.GroupByGene(records, opts.genes...))
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if runErr != nil {
		log.Warn("interrupted, writing completed genes", zap.Int("genes", len(results)))
	}

	output.AdjustBH(results, cfg.Tests)
	if err := output.NewTabWriter(out, cfg.Tests).WriteAll(results); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}

	if opts.dbPath != "" {
		if err := storeResults(opts.dbPath, results, cfg, started, inputs); err != nil {
			return err
		}
		log.Info("stored results", zap.String("db", opts.dbPath))
	}
	return runErr
}

func readMAF(path string, log *zap.Logger) ([]mutation.Record, error) {
	parser, err := maf.NewParser(path)
	if err != nil {
		return nil, err
	}
	defer parser.Close()
	parser.SetLogger(log)

	records, err := parser.ReadAll()
	if err != nil {
		return nil, err
	}
	st := parser.Stats()
	log.Info("read MAF",
		zap.String("path", path),
		zap.Int("rows", st.Rows),
		zap.Int("records", st.Records),
		zap.Int("not_snv", st.NotSNV),
		zap.Int("no_cds_position", st.NoCDSPosition))
	return records, nil
}

// loadReference returns the annotation source and the files it was read from.
func loadReference(opts runOptions, log *zap.Logger) (driver.AnnotationSource, []string, error) {
	if opts.cdsFASTAPath != "" {
		fa, err := reference.LoadFASTA(opts.cdsFASTAPath)
		if err != nil {
			return nil, nil, err
		}
		log.Info("loaded coding sequences", zap.String("path", opts.cdsFASTAPath), zap.Int("genes", fa.Len()))
		return reference.NewFASTASource(fa), []string{opts.cdsFASTAPath}, nil
	}

	gtfPath, fastaPath, canonicalPath := opts.gtfPath, opts.fastaPath, opts.canonicalPath
	if gtfPath == "" || fastaPath == "" {
		foundGTF, foundFASTA, foundCanonical, ok := FindGENCODEFiles(opts.dataDir, opts.assembly)
		if !ok || foundFASTA == "" {
			return nil, nil, fmt.Errorf("no GENCODE files for %s; run 'vibe-perm download --assembly %s' or pass --gtf and --fasta",
				opts.assembly, opts.assembly)
		}
		if gtfPath == "" {
			gtfPath = foundGTF
		}
		if fastaPath == "" {
			fastaPath = foundFASTA
		}
		if canonicalPath == "" {
			canonicalPath = foundCanonical
		}
	}
	inputs := []string{gtfPath, fastaPath}

	var overrides reference.CanonicalOverrides
	if canonicalPath != "" {
		var err error
		overrides, err = reference.LoadCanonicalOverrides(canonicalPath)
		if err != nil {
			log.Warn("could not load canonical overrides", zap.Error(err))
		} else {
			inputs = append(inputs, canonicalPath)
		}
	}

	src, err := reference.LoadGENCODE(gtfPath, fastaPath, overrides)
	if err != nil {
		return nil, nil, err
	}
	log.Info("loaded GENCODE",
		zap.String("gtf", gtfPath),
		zap.String("fasta", fastaPath),
		zap.Int("canonical_overrides", len(overrides)),
		zap.Int("coding_transcripts", src.TranscriptCount()))
	return src, inputs, nil
}

func storeResults(path string, results []*driver.GeneResult, cfg driver.Config, started time.Time, inputs []string) error {
	store, err := duckdb.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.ClearGeneResults(); err != nil {
		return fmt.Errorf("clearing previous results: %w", err)
	}
	if err := store.WriteGeneResults(results); err != nil {
		return err
	}

	info := duckdb.RunInfo{
		StartedAt: started.UTC(),
		Rounds:    cfg.Rounds,
		Seed:      cfg.Seed,
		Sampling:  string(cfg.Sampling),
	}
	info.Tests = testNames(cfg.Tests)
	for _, p := range inputs {
		if p == "-" {
			continue
		}
		if fp, err := duckdb.StatFile(p); err == nil {
			info.Inputs = append(info.Inputs, fp)
		}
	}
	return store.WriteRunInfo(info)
}
