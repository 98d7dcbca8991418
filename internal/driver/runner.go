// Package driver runs the per-gene simulation tests over a batch of genes and
// assembles the result table.
package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/inodb/vibe-perm/internal/genemodel"
	"github.com/inodb/vibe-perm/internal/mutation"
	"github.com/inodb/vibe-perm/internal/nulldist"
	"github.com/inodb/vibe-perm/internal/score"
	"github.com/inodb/vibe-perm/internal/simulate"
	"github.com/inodb/vibe-perm/internal/spectrum"
)

// AnnotationSource provides reference annotation by gene ID. Implementations
// return an error wrapping genemodel.ErrNotFound for unknown genes.
type AnnotationSource interface {
	Annotation(geneID string) (genemodel.Annotation, error)
}

// Runner analyzes genes against a shared, read-only context table.
type Runner struct {
	cfg     Config
	table   *spectrum.Table
	source  AnnotationSource
	scorers []score.Scorer
	logger  *zap.Logger
}

// NewRunner validates cfg and creates a runner.
func NewRunner(cfg Config, table *spectrum.Table, source AnnotationSource) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if table == nil {
		return nil, fmt.Errorf("%w: nil context table", ErrInvalidConfig)
	}

	scorers := make([]score.Scorer, 0, len(cfg.Tests))
	for _, t := range cfg.Tests {
		s, err := score.For(t, cfg.Recurrence)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		scorers = append(scorers, s)
	}

	return &Runner{
		cfg:     cfg,
		table:   table,
		source:  source,
		scorers: scorers,
		logger:  zap.NewNop(),
	}, nil
}

// SetLogger sets the logger for per-gene warnings and progress.
func (r *Runner) SetLogger(l *zap.Logger) {
	r.logger = l
}

// Run analyzes every gene. Results are returned in input order. Cancellation
// is checked between genes; on cancellation Run returns the results completed
// in order so far together with ctx.Err().
func (r *Runner) Run(ctx context.Context, genes []GeneInput) ([]*GeneResult, error) {
	workers := r.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	items := make(chan WorkItem, 2*workers)
	go func() {
		defer close(items)
		for i, g := range genes {
			select {
			case items <- WorkItem{Seq: i, Gene: g}:
			case <-ctx.Done():
				return
			}
		}
	}()

	results := make([]*GeneResult, 0, len(genes))
	err := OrderedCollect(r.ParallelAnalyze(ctx, items, workers), func(w WorkResult) error {
		results = append(results, w.Result)
		return nil
	})
	if err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	tested := 0
	for _, res := range results {
		if !res.Skipped() {
			tested++
		}
	}
	r.logger.Info("analysis complete",
		zap.Int("genes", len(results)),
		zap.Int("tested", tested),
		zap.Int("skipped", len(results)-tested))

	return results, nil
}

// AnalyzeGene runs every configured test on one gene. Failures are recorded
// on the result as a skip reason; AnalyzeGene never aborts the batch.
func (r *Runner) AnalyzeGene(in GeneInput) *GeneResult {
	res := &GeneResult{
		GeneID: in.GeneID,
		Tests:  make(map[score.Test]*TestResult, len(r.scorers)),
	}
	if len(in.Records) == 0 {
		return r.skip(res, SkipEmptyGeneInput, "no mutations")
	}

	ann, err := r.source.Annotation(in.GeneID)
	if err != nil {
		if errors.Is(err, genemodel.ErrNotFound) {
			return r.skip(res, SkipAnnotationNotFound, err.Error())
		}
		return r.skip(res, SkipMalformedAnnotation, err.Error())
	}
	res.TranscriptID = ann.TranscriptID

	model, err := genemodel.New(ann, r.cfg.SpliceWindow)
	if err != nil {
		if errors.Is(err, genemodel.ErrEmptySequence) {
			return r.skip(res, SkipEmptyGeneInput, err.Error())
		}
		return r.skip(res, SkipMalformedAnnotation, err.Error())
	}
	res.CodingLength = model.Len()

	observed := make([]mutation.Point, 0, len(in.Records))
	contexts := make([]spectrum.Context, 0, len(in.Records))
	for _, rec := range in.Records {
		err := rec.CheckTranscript(model.TranscriptID())
		if err == nil {
			err = rec.Validate(model.CDS())
		}
		if err != nil {
			res.InvalidCount++
			r.logger.Warn("rejected mutation record",
				zap.String("gene", in.GeneID),
				zap.String("sample", rec.SampleID),
				zap.String("transcript", rec.TranscriptID),
				zap.Int("position", rec.CodingPosition),
				zap.Error(err))
			continue
		}
		observed = append(observed, mutation.Point{
			Position:    rec.CodingPosition,
			Alt:         rec.AltBase,
			Consequence: model.ConsequenceOf(rec.CodingPosition, rec.AltBase),
		})
		contexts = append(contexts, model.ContextAt(rec.CodingPosition))
	}
	res.MutationCount = len(observed)
	if len(observed) == 0 {
		return r.skip(res, SkipEmptyGeneInput, fmt.Sprintf("all %d records rejected", res.InvalidCount))
	}
	res.RecurrentCount = int(r.cfg.Recurrence.Score(model, observed))

	var strategy simulate.Strategy = simulate.Uniform{}
	if r.cfg.Sampling == SamplingContext {
		strategy = simulate.ContextMatched{Contexts: contexts}
	}
	sim := simulate.New(model, r.table, strategy)
	seed := simulate.GeneSeed(r.cfg.Seed, in.GeneID)
	agg := nulldist.Aggregator{Rounds: r.cfg.Rounds, Workers: r.cfg.RoundWorkers}

	inactivating := 0
	for _, p := range observed {
		if p.Consequence.Inactivating() {
			inactivating++
		}
	}

	for _, s := range r.scorers {
		if s.Test() == score.TestInactivating && inactivating < r.cfg.MinInactivating {
			res.Tests[s.Test()] = &TestResult{Observed: s.Score(model, observed)}
			r.logger.Debug("inactivating test not simulated",
				zap.String("gene", in.GeneID),
				zap.Int("inactivating", inactivating),
				zap.Int("min", r.cfg.MinInactivating))
			continue
		}
		d := agg.Evaluate(sim, observed, len(observed), s, simulate.NewSource(seed, streamOf(s.Test())))
		mean, sd := d.Summary()
		res.Tests[s.Test()] = &TestResult{
			Observed:   d.Observed,
			PValue:     d.PValue(),
			NullMean:   mean,
			NullStdDev: sd,
			Rounds:     len(d.Null),
		}
	}

	r.logger.Debug("gene tested",
		zap.String("gene", in.GeneID),
		zap.Int("mutations", res.MutationCount),
		zap.Int("coding_length", res.CodingLength))
	return res
}

func (r *Runner) skip(res *GeneResult, reason SkipReason, detail string) *GeneResult {
	res.SkipReason = reason
	res.SkipDetail = detail
	r.logger.Info("gene skipped",
		zap.String("gene", res.GeneID),
		zap.String("reason", string(reason)),
		zap.String("detail", detail))
	return res
}

// streamOf gives each test a fixed stream so that enabling or disabling one
// test never changes another test's p-values.
func streamOf(t score.Test) uint64 {
	for i, known := range score.Tests {
		if known == t {
			return uint64(i)
		}
	}
	return uint64(len(score.Tests))
}

// BuildContextTable builds the shared context table from every record whose
// gene the source can annotate.
func BuildContextTable(records []mutation.Record, source AnnotationSource, minCount int) *spectrum.Table {
	obs := spectrum.FromRecords(records, func(geneID string) (string, bool) {
		ann, err := source.Annotation(geneID)
		if err != nil {
			return "", false
		}
		return ann.CDS, true
	})
	return spectrum.Build(obs, minCount)
}
