// Package kernels implements the pure numeric building blocks shared by
// the generation engine and the vision post-processing core: softmax
// family, sigmoid, L2 normalization, top-k, non-maximum suppression,
// CTC greedy decoding, and box-format conversion. Every function
// returns a new slice and never mutates its input, mirroring the
// teacher's Softmax/LayerNorm style in
// internal/runtime/tensor/tensor.go.
package kernels

import (
	"fmt"
	"math"
	"sort"

	"github.com/example/go-onnx-infer/internal/errs"
)

// Softmax subtracts max(x) before exponentiating for numerical
// stability and returns a new, normalized slice summing to 1 ± 1e-5.
func Softmax(x []float32) []float32 {
	out := make([]float32, len(x))
	if len(x) == 0 {
		return out
	}

	maxV := maxOf(x)

	var sum float64
	for i, v := range x {
		e := math.Exp(float64(v - maxV))
		out[i] = float32(e)
		sum += e
	}

	if sum == 0 {
		return out
	}

	inv := float32(1.0 / sum)
	for i := range out {
		out[i] *= inv
	}

	return out
}

// LogSoftmax returns log(softmax(x)) computed via the stable
// log-sum-exp identity instead of taking log(Softmax(x)) directly.
func LogSoftmax(x []float32) []float32 {
	out := make([]float32, len(x))
	if len(x) == 0 {
		return out
	}

	maxV := maxOf(x)

	var sum float64
	for _, v := range x {
		sum += math.Exp(float64(v - maxV))
	}

	logSum := math.Log(sum)

	for i, v := range x {
		out[i] = float32(float64(v-maxV) - logSum)
	}

	return out
}

func maxOf(x []float32) float32 {
	maxV := float32(math.Inf(-1))
	for _, v := range x {
		if v > maxV {
			maxV = v
		}
	}

	return maxV
}

// Sigmoid applies 1/(1+exp(-x)) element-wise.
func Sigmoid(x []float32) []float32 {
	out := make([]float32, len(x))
	for i, v := range x {
		out[i] = sigmoidOne(v)
	}

	return out
}

func sigmoidOne(v float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(float64(-v))))
}

// L2Normalize divides x by its Euclidean norm. The zero vector maps to
// the zero vector rather than producing NaN.
func L2Normalize(x []float32) []float32 {
	out := make([]float32, len(x))

	var sumSq float64
	for _, v := range x {
		sumSq += float64(v) * float64(v)
	}

	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return out
	}

	inv := float32(1.0 / norm)
	for i, v := range x {
		out[i] = v * inv
	}

	return out
}

// DotProduct computes the inner product of a and b. Fails if their
// lengths differ.
func DotProduct(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: len(a)=%d, len(b)=%d", errs.ErrDimensionMismatch, len(a), len(b))
	}

	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}

	return float32(sum), nil
}

// TopK returns the indices of the k largest values, sorted descending.
// k=0 returns an empty slice; k >= len(values) returns a permutation of
// every index. Ties break toward the lower original index.
func TopK(values []float32, k int) []int {
	if k <= 0 {
		return []int{}
	}

	if k > len(values) {
		k = len(values)
	}

	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}

	sort.SliceStable(idx, func(i, j int) bool {
		if values[idx[i]] != values[idx[j]] {
			return values[idx[i]] > values[idx[j]]
		}

		return idx[i] < idx[j]
	})

	return idx[:k]
}

// Box is a packed [x1,y1,x2,y2] axis-aligned bounding box.
type Box [4]float32

func iou(a, b Box) float32 {
	x1 := max(a[0], b[0])
	y1 := max(a[1], b[1])
	x2 := min(a[2], b[2])
	y2 := min(a[3], b[3])

	interW := max(0, x2-x1)
	interH := max(0, y2-y1)
	inter := interW * interH

	areaA := max(0, a[2]-a[0]) * max(0, a[3]-a[1])
	areaB := max(0, b[2]-b[0]) * max(0, b[3]-b[1])

	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}

	return inter / union
}

// NMS runs greedy non-maximum suppression: sort by score descending,
// repeatedly take the highest remaining box, and suppress any
// unprocessed box whose IoU against it exceeds iouThreshold. Returns
// kept indices in selection (descending-score) order.
func NMS(boxes []Box, scores []float32, iouThreshold float32) []int {
	order := make([]int, len(boxes))
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	suppressed := make([]bool, len(boxes))

	var kept []int

	for _, i := range order {
		if suppressed[i] {
			continue
		}

		kept = append(kept, i)

		for _, j := range order {
			if j == i || suppressed[j] {
				continue
			}

			if iou(boxes[i], boxes[j]) > iouThreshold {
				suppressed[j] = true
			}
		}
	}

	return kept
}

// CTCGreedyDecode takes argmax at every timestep from a [timesteps,
// vocabSize] logits buffer, collapses consecutive duplicate tokens, and
// drops blanks. A token separated from an earlier occurrence by a
// blank survives as two occurrences.
func CTCGreedyDecode(logits []float32, timesteps, vocabSize, blankID int) []int {
	var out []int

	prev := -1

	for t := range timesteps {
		row := logits[t*vocabSize : (t+1)*vocabSize]

		best := 0
		bestV := row[0]

		for v := 1; v < vocabSize; v++ {
			if row[v] > bestV {
				bestV = row[v]
				best = v
			}
		}

		switch {
		case best == blankID:
			prev = -1
		case best == prev:
			// Consecutive duplicate: collapse.
		default:
			out = append(out, best)
			prev = best
		}
	}

	if out == nil {
		out = []int{}
	}

	return out
}

// Cxcywh2xyxy converts packed [cx,cy,w,h] boxes to [x1,y1,x2,y2].
func Cxcywh2xyxy(boxes []Box) []Box {
	out := make([]Box, len(boxes))
	for i, b := range boxes {
		cx, cy, w, h := b[0], b[1], b[2], b[3]
		out[i] = Box{cx - w/2, cy - h/2, cx + w/2, cy + h/2}
	}

	return out
}
