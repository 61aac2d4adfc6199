// Package session implements the KV-cache-carrying generative session
// state machine that drives autoregressive ONNX text generation:
// prefill once on a prompt, then decode one token at a time, feeding
// each step's cache back into the next.
package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/example/go-onnx-infer/internal/backend"
	"github.com/example/go-onnx-infer/internal/errs"
	"github.com/example/go-onnx-infer/internal/tensor"
)

// Session is a single-thread-confined autoregressive generation
// session. Any shape or name mismatch surfaced by the backend is fatal
// to the session; callers must call ResetCache before reusing it.
type Session interface {
	// Prefill runs the prompt through the model once, populating the
	// KV cache, and returns the vocabulary-sized logits for the next
	// token.
	Prefill(ctx context.Context, tokenIDs []int64) ([]float32, error)
	// Decode runs a single new token through the model using the
	// current cache and returns the next-token logits.
	Decode(ctx context.Context, tokenID int64) ([]float32, error)
	// CacheSequenceLength returns how many positions the cache
	// currently covers.
	CacheSequenceLength() int
	// ResetCache drops all cached state so the session can be reused
	// for a new generation.
	ResetCache()
	// Close releases any backend resources held by the session.
	Close()
}

func cacheKey(layer int, suffix string) string {
	return fmt.Sprintf("past_key_values.%d.%s", layer, suffix)
}

func presentKey(layer int, suffix string) string {
	return fmt.Sprintf("present.%d.%s", layer, suffix)
}

// countLayers enumerates KV input names of the form
// "past_key_values.<n>.key" (decoder-only) or
// "past_key_values.<n>.decoder.key" (encoder-decoder) and returns 1 +
// the highest n found.
func countLayers(names []string) int {
	max := -1

	for _, name := range names {
		if !strings.HasPrefix(name, "past_key_values.") || !strings.HasSuffix(name, ".key") {
			continue
		}

		mid := strings.TrimSuffix(strings.TrimPrefix(name, "past_key_values."), ".key")
		mid = strings.TrimSuffix(mid, ".decoder")

		n, err := strconv.Atoi(mid)
		if err != nil {
			continue
		}

		if n > max {
			max = n
		}
	}

	return max + 1
}

func hasInput(names []string, target string) bool {
	for _, n := range names {
		if n == target {
			return true
		}
	}

	return false
}

func arange(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i)
	}

	return out
}

func ones(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = 1
	}

	return out
}

// lastPositionLogits slices a [1, n, vocab] logits tensor down to the
// [vocab] row at the final sequence position.
func lastPositionLogits(t *tensor.Tensor) ([]float32, error) {
	if t.Rank() != 3 {
		return nil, fmt.Errorf("%w: logits rank %d, want 3", errs.ErrShapeMismatch, t.Rank())
	}

	shape := t.Shape()
	n := shape[1]

	row, err := t.Slice(0, 0)
	if err != nil {
		return nil, err
	}

	row, err = row.Slice(0, int(n-1))
	if err != nil {
		return nil, err
	}

	return row.ToF32()
}

// maybeCastForCache converts a present-state F32 tensor to the cache's
// declared element type, which may be F16 for memory-constrained
// models.
func maybeCastForCache(t *tensor.Tensor, wantF16 bool) (*tensor.Tensor, error) {
	if !wantF16 {
		return t, nil
	}

	return t.CastToF16()
}

var _ backend.Backend // ensures this package only ever talks to the Backend facade
