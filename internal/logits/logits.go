// Package logits implements the sampling pipeline applied to a model's
// raw output logits before a token is chosen: temperature scaling,
// top-k filtering, and nucleus (top-p) filtering, composed in
// insertion order, followed by a greedy or categorical sampler.
package logits

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/example/go-onnx-infer/internal/errs"
	"github.com/example/go-onnx-infer/internal/kernels"
)

// Processor transforms a row of logits into another row of the same
// length; filtered-out positions are set to -Inf so downstream stages
// (and the final softmax) treat them as impossible.
type Processor func(logits []float32) []float32

// Temperature divides every logit by t before returning. t <= 0 would
// invert or blow up the distribution, so it is rejected at construction
// time rather than silently clamped.
func Temperature(t float32) (Processor, error) {
	if t <= 0 {
		return nil, fmt.Errorf("%w: temperature must be > 0, got %v", errs.ErrInvalidArgument, t)
	}

	return func(logits []float32) []float32 {
		out := make([]float32, len(logits))
		for i, v := range logits {
			out[i] = v / t
		}

		return out
	}, nil
}

// TopK keeps the k highest logits and sets every other position to
// -Inf. k <= 0 or k >= len(logits) is a no-op.
func TopK(k int) Processor {
	return func(logits []float32) []float32 {
		if k <= 0 || k >= len(logits) {
			return append([]float32{}, logits...)
		}

		keep := kernels.TopK(logits, k)

		keepSet := make(map[int]bool, len(keep))
		for _, idx := range keep {
			keepSet[idx] = true
		}

		out := make([]float32, len(logits))

		for i, v := range logits {
			if keepSet[i] {
				out[i] = v
			} else {
				out[i] = float32(math.Inf(-1))
			}
		}

		return out
	}
}

// TopP implements nucleus sampling: logits are sorted descending by
// softmax probability, and the smallest prefix whose cumulative
// probability is >= p is kept; everything else is set to -Inf. The
// highest-probability token is always kept even if its own probability
// already exceeds p.
func TopP(p float32) Processor {
	return func(logits []float32) []float32 {
		if p <= 0 || p >= 1 {
			return append([]float32{}, logits...)
		}

		probs := kernels.Softmax(logits)

		order := make([]int, len(probs))
		for i := range order {
			order[i] = i
		}

		sort.SliceStable(order, func(i, j int) bool {
			return probs[order[i]] > probs[order[j]]
		})

		out := make([]float32, len(logits))
		for i := range out {
			out[i] = float32(math.Inf(-1))
		}

		var cum float32

		for _, idx := range order {
			out[idx] = logits[idx]
			cum += probs[idx]

			if cum >= p {
				break
			}
		}

		return out
	}
}

// Apply runs logits through each processor in order.
func Apply(logitsIn []float32, procs ...Processor) []float32 {
	out := logitsIn
	for _, p := range procs {
		out = p(out)
	}

	return out
}

// Sampler selects a single token index from a row of (possibly
// processed) logits.
type Sampler interface {
	Sample(logits []float32) int
}

// Greedy always selects the highest-logit index.
type Greedy struct{}

// Sample implements Sampler.
func (Greedy) Sample(logits []float32) int {
	best := 0
	bestV := logits[0]

	for i, v := range logits {
		if v > bestV {
			bestV = v
			best = i
		}
	}

	return best
}

// Categorical samples proportionally to softmax(logits) using the
// supplied random source.
type Categorical struct {
	Rand *rand.Rand
}

// Sample implements Sampler. Floating-point rounding can leave the
// cumulative sum just short of the drawn value on the final entry; in
// that case the last index (len(probs)-1) is returned rather than
// panicking or under-indexing.
func (c Categorical) Sample(logits []float32) int {
	probs := kernels.Softmax(logits)

	r := c.Rand.Float32()

	var cum float32

	for i, p := range probs {
		cum += p
		if r < cum {
			return i
		}
	}

	return len(probs) - 1
}
