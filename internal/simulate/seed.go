package simulate

import (
	"hash/fnv"
	"math/rand/v2"
)

// GeneSeed derives a gene's seed from the run seed and the gene ID, so a
// gene's null distribution does not depend on which other genes are in the run.
func GeneSeed(base uint64, geneID string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(geneID))
	return splitmix64(base ^ h.Sum64())
}

// Source identifies an independent family of per-round random streams.
type Source struct {
	gene   uint64
	stream uint64
}

// NewSource returns the stream family for a gene seed and a stream number
// (one stream per test).
func NewSource(geneSeed, stream uint64) Source {
	return Source{gene: geneSeed, stream: stream}
}

// Seed resets pcg to the stream of the given round.
func (s Source) Seed(pcg *rand.PCG, round int) {
	hi := splitmix64(s.gene ^ splitmix64(s.stream))
	lo := splitmix64(hi ^ splitmix64(uint64(round)+0x632be59bd9b4e019))
	pcg.Seed(hi, lo)
}

// Rand returns a generator positioned at the start of round.
func (s Source) Rand(round int) *rand.Rand {
	pcg := rand.NewPCG(0, 0)
	s.Seed(pcg, round)
	return rand.New(pcg)
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
