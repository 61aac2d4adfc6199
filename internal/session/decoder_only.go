package session

import (
	"context"
	"fmt"

	"github.com/example/go-onnx-infer/internal/backend"
	"github.com/example/go-onnx-infer/internal/errs"
	"github.com/example/go-onnx-infer/internal/tensor"
)

// DecoderOnlySession implements Session for decoder-only architectures
// (GPT-style): a single self-attention KV cache keyed
// "past_key_values.{layer}.{key|value}" on input and
// "present.{layer}.{key|value}" on output.
type DecoderOnlySession struct {
	be              backend.Backend
	numLayers       int
	numHeads        int64
	headDim         int64
	kvIsF16         bool
	hasPositionIDs  bool
	seqLen          int
	selfCache       map[string]*tensor.Tensor
}

// NewDecoderOnlySession inspects the backend's declared inputs to learn
// the KV-cache shape, element type, and layer count, then builds a
// fresh empty-cache session.
func NewDecoderOnlySession(be backend.Backend) (*DecoderOnlySession, error) {
	names := be.InputNames()
	numLayers := countLayers(names)

	if numLayers == 0 {
		return nil, fmt.Errorf("%w: no past_key_values.*.key inputs declared", errs.ErrModelSource)
	}

	sampleName := cacheKey(0, "key")

	shape, ok := be.InputShape(sampleName)
	if !ok || len(shape) != 4 {
		return nil, fmt.Errorf("%w: expected 4-d shape for %q", errs.ErrShapeMismatch, sampleName)
	}

	elemType, ok := be.InputElementType(sampleName)
	if !ok {
		return nil, fmt.Errorf("%w: no declared element type for %q", errs.ErrModelSource, sampleName)
	}

	s := &DecoderOnlySession{
		be:             be,
		numLayers:      numLayers,
		numHeads:       shape[1],
		headDim:        shape[3],
		kvIsF16:        elemType == tensor.F16,
		hasPositionIDs: hasInput(names, "position_ids"),
	}

	s.ResetCache()

	return s, nil
}

// ResetCache implements Session.
func (s *DecoderOnlySession) ResetCache() {
	s.seqLen = 0
	s.selfCache = make(map[string]*tensor.Tensor, s.numLayers*2)

	for layer := 0; layer < s.numLayers; layer++ {
		for _, suffix := range []string{"key", "value"} {
			empty, _ := s.emptyKVTensor()
			s.selfCache[cacheKey(layer, suffix)] = empty
		}
	}
}

func (s *DecoderOnlySession) emptyKVTensor() (*tensor.Tensor, error) {
	shape := []int64{1, s.numHeads, 0, s.headDim}

	if s.kvIsF16 {
		return tensor.FromF16(nil, shape)
	}

	return tensor.FromF32(nil, shape)
}

// CacheSequenceLength implements Session.
func (s *DecoderOnlySession) CacheSequenceLength() int {
	return s.seqLen
}

// Close implements Session.
func (s *DecoderOnlySession) Close() {
	s.be.Close()
}

// Prefill implements Session.
func (s *DecoderOnlySession) Prefill(ctx context.Context, tokenIDs []int64) ([]float32, error) {
	n := len(tokenIDs)

	inputIDs, err := tensor.FromI64(tokenIDs, []int64{1, int64(n)})
	if err != nil {
		return nil, err
	}

	attnMask, err := tensor.FromI64(ones(n), []int64{1, int64(n)})
	if err != nil {
		return nil, err
	}

	inputs := map[string]*tensor.Tensor{
		"input_ids":      inputIDs,
		"attention_mask": attnMask,
	}

	if s.hasPositionIDs {
		posIDs, err := tensor.FromI64(arange(n), []int64{1, int64(n)})
		if err != nil {
			return nil, err
		}

		inputs["position_ids"] = posIDs
	}

	for k, v := range s.selfCache {
		inputs[k] = v
	}

	outputs, err := s.be.Run(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("%w: decoder-only prefill: %v", errs.ErrBackendError, err)
	}

	logitsOut, ok := outputs["logits"]
	if !ok {
		return nil, fmt.Errorf("%w: missing 'logits' output", errs.ErrModelSource)
	}

	last, err := lastPositionLogits(logitsOut)
	if err != nil {
		return nil, err
	}

	if err := s.captureCache(outputs); err != nil {
		return nil, err
	}

	s.seqLen = n

	return last, nil
}

// Decode implements Session.
func (s *DecoderOnlySession) Decode(ctx context.Context, tokenID int64) ([]float32, error) {
	inputIDs, err := tensor.FromI64([]int64{tokenID}, []int64{1, 1})
	if err != nil {
		return nil, err
	}

	attnMask, err := tensor.FromI64(ones(s.seqLen+1), []int64{1, int64(s.seqLen + 1)})
	if err != nil {
		return nil, err
	}

	inputs := map[string]*tensor.Tensor{
		"input_ids":      inputIDs,
		"attention_mask": attnMask,
	}

	if s.hasPositionIDs {
		posIDs, err := tensor.FromI64([]int64{int64(s.seqLen)}, []int64{1, 1})
		if err != nil {
			return nil, err
		}

		inputs["position_ids"] = posIDs
	}

	for k, v := range s.selfCache {
		inputs[k] = v
	}

	outputs, err := s.be.Run(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("%w: decoder-only decode: %v", errs.ErrBackendError, err)
	}

	logitsOut, ok := outputs["logits"]
	if !ok {
		return nil, fmt.Errorf("%w: missing 'logits' output", errs.ErrModelSource)
	}

	last, err := lastPositionLogits(logitsOut)
	if err != nil {
		return nil, err
	}

	if err := s.captureCache(outputs); err != nil {
		return nil, err
	}

	s.seqLen++

	return last, nil
}

func (s *DecoderOnlySession) captureCache(outputs map[string]*tensor.Tensor) error {
	for layer := 0; layer < s.numLayers; layer++ {
		for _, suffix := range []string{"key", "value"} {
			present, ok := outputs[presentKey(layer, suffix)]
			if !ok {
				return fmt.Errorf("%w: missing %q output", errs.ErrModelSource, presentKey(layer, suffix))
			}

			cast, err := maybeCastForCache(present, s.kvIsF16)
			if err != nil {
				return err
			}

			s.selfCache[cacheKey(layer, suffix)] = cast
		}
	}

	return nil
}
