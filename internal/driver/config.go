package driver

import (
	"errors"
	"fmt"

	"github.com/inodb/vibe-perm/internal/score"
)

// Sampling selects how simulated positions are placed.
type Sampling string

// Sampling strategies.
const (
	SamplingUniform Sampling = "uniform"
	SamplingContext Sampling = "context"
)

// ErrInvalidConfig marks configuration errors that must stop a run before any
// gene is processed.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config controls a run.
type Config struct {
	Rounds          int    // simulation rounds per gene and test
	Workers         int    // genes analyzed concurrently; 0 means runtime.NumCPU()
	RoundWorkers    int    // goroutines per gene for simulation rounds; 0 or 1 is serial
	Seed            uint64 // run seed; per-gene seeds derive from it
	MinContextCount int    // fallback threshold of the context table
	SpliceWindow    int    // exonic bases per side of a junction treated as splice-disrupting
	Tests           []score.Test
	Sampling        Sampling
	Recurrence      score.Recurrence
	MinInactivating int // genes with fewer inactivating mutations get no inactivating p-value
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Rounds:          10000,
		Seed:            101,
		MinContextCount: 1,
		SpliceWindow:    1,
		Tests:           []score.Test{score.TestClustering, score.TestInactivating},
		Sampling:        SamplingUniform,
		Recurrence:      score.DefaultRecurrence(),
	}
}

// Validate reports structural configuration errors.
func (c Config) Validate() error {
	if c.Rounds <= 0 {
		return fmt.Errorf("%w: rounds must be positive, got %d", ErrInvalidConfig, c.Rounds)
	}
	if c.Workers < 0 || c.RoundWorkers < 0 {
		return fmt.Errorf("%w: worker counts must not be negative", ErrInvalidConfig)
	}
	if c.MinInactivating < 0 {
		return fmt.Errorf("%w: inactivating min count must not be negative, got %d", ErrInvalidConfig, c.MinInactivating)
	}
	if c.SpliceWindow < 0 {
		return fmt.Errorf("%w: splice window must not be negative, got %d", ErrInvalidConfig, c.SpliceWindow)
	}
	if len(c.Tests) == 0 {
		return fmt.Errorf("%w: no tests selected", ErrInvalidConfig)
	}
	seen := make(map[score.Test]bool, len(c.Tests))
	for _, t := range c.Tests {
		if _, err := score.ParseTest(string(t)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if seen[t] {
			return fmt.Errorf("%w: test %q selected twice", ErrInvalidConfig, t)
		}
		seen[t] = true
	}
	switch c.Sampling {
	case SamplingUniform, SamplingContext:
	default:
		return fmt.Errorf("%w: unknown sampling %q", ErrInvalidConfig, c.Sampling)
	}
	if c.Recurrence.MinCount < 1 {
		return fmt.Errorf("%w: recurrence min count must be at least 1", ErrInvalidConfig)
	}
	if c.Recurrence.MinFraction < 0 || c.Recurrence.MinFraction > 1 {
		return fmt.Errorf("%w: recurrence min fraction must be in [0, 1]", ErrInvalidConfig)
	}
	return nil
}
