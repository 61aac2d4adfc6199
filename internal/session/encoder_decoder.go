package session

import (
	"context"
	"fmt"

	"github.com/example/go-onnx-infer/internal/backend"
	"github.com/example/go-onnx-infer/internal/errs"
	"github.com/example/go-onnx-infer/internal/tensor"
)

// EncoderDecoderSession implements Session for encoder-decoder
// architectures: a frozen cross-attention cache populated once from the
// encoder pass, plus a growing self-attention cache keyed
// "past_key_values.{layer}.{decoder|encoder}.{key|value}".
type EncoderDecoderSession struct {
	encoder             backend.Backend
	decoderNoPast       backend.Backend
	decoderWithPast     backend.Backend
	numLayers           int
	decoderStartTokenID int64

	seqLen         int
	encoderHidden  *tensor.Tensor
	encoderMask    *tensor.Tensor
	selfCache      map[string]*tensor.Tensor
	crossCache     map[string]*tensor.Tensor
}

// NewEncoderDecoderSession builds a session over three backends: the
// encoder, the first-step ("no past") decoder, and the with-past
// decoder used for every subsequent step.
func NewEncoderDecoderSession(encoder, decoderNoPast, decoderWithPast backend.Backend, decoderStartTokenID int64) (*EncoderDecoderSession, error) {
	numLayers := countLayers(decoderWithPast.InputNames())
	if numLayers == 0 {
		return nil, fmt.Errorf("%w: no past_key_values.*.decoder.key inputs declared", errs.ErrModelSource)
	}

	s := &EncoderDecoderSession{
		encoder:             encoder,
		decoderNoPast:       decoderNoPast,
		decoderWithPast:     decoderWithPast,
		numLayers:           numLayers,
		decoderStartTokenID: decoderStartTokenID,
	}

	s.ResetCache()

	return s, nil
}

func edSelfKey(layer int, suffix string) string {
	return fmt.Sprintf("past_key_values.%d.decoder.%s", layer, suffix)
}

func edCrossKey(layer int, suffix string) string {
	return fmt.Sprintf("past_key_values.%d.encoder.%s", layer, suffix)
}

func edSelfPresentKey(layer int, suffix string) string {
	return fmt.Sprintf("present.%d.decoder.%s", layer, suffix)
}

func edCrossPresentKey(layer int, suffix string) string {
	return fmt.Sprintf("present.%d.encoder.%s", layer, suffix)
}

// ResetCache implements Session.
func (s *EncoderDecoderSession) ResetCache() {
	s.seqLen = 0
	s.encoderHidden = nil
	s.encoderMask = nil
	s.selfCache = make(map[string]*tensor.Tensor, s.numLayers*2)
	s.crossCache = make(map[string]*tensor.Tensor, s.numLayers*2)
}

// CacheSequenceLength implements Session.
func (s *EncoderDecoderSession) CacheSequenceLength() int {
	return s.seqLen
}

// Close implements Session.
func (s *EncoderDecoderSession) Close() {
	s.encoder.Close()
	s.decoderNoPast.Close()
	s.decoderWithPast.Close()
}

// Prefill implements Session: runs the encoder once, then the
// first-step decoder, populating both caches.
func (s *EncoderDecoderSession) Prefill(ctx context.Context, srcIDs []int64) ([]float32, error) {
	n := len(srcIDs)

	inputIDs, err := tensor.FromI64(srcIDs, []int64{1, int64(n)})
	if err != nil {
		return nil, err
	}

	attnMask, err := tensor.FromI64(ones(n), []int64{1, int64(n)})
	if err != nil {
		return nil, err
	}

	encOutputs, err := s.encoder.Run(ctx, map[string]*tensor.Tensor{
		"input_ids":      inputIDs,
		"attention_mask": attnMask,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoder pass: %v", errs.ErrBackendError, err)
	}

	hidden, ok := encOutputs["last_hidden_state"]
	if !ok {
		return nil, fmt.Errorf("%w: missing 'last_hidden_state' output", errs.ErrModelSource)
	}

	s.encoderHidden = hidden
	s.encoderMask = attnMask

	startIDs, err := tensor.FromI64([]int64{s.decoderStartTokenID}, []int64{1, 1})
	if err != nil {
		return nil, err
	}

	decOutputs, err := s.decoderNoPast.Run(ctx, map[string]*tensor.Tensor{
		"input_ids":             startIDs,
		"encoder_hidden_states": s.encoderHidden,
		"encoder_attention_mask": s.encoderMask,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: first-step decoder pass: %v", errs.ErrBackendError, err)
	}

	logitsOut, ok := decOutputs["logits"]
	if !ok {
		return nil, fmt.Errorf("%w: missing 'logits' output", errs.ErrModelSource)
	}

	last, err := lastPositionLogits(logitsOut)
	if err != nil {
		return nil, err
	}

	for layer := 0; layer < s.numLayers; layer++ {
		for _, suffix := range []string{"key", "value"} {
			cross, ok := decOutputs[edCrossPresentKey(layer, suffix)]
			if !ok {
				return nil, fmt.Errorf("%w: missing %q output", errs.ErrModelSource, edCrossPresentKey(layer, suffix))
			}

			s.crossCache[edCrossKey(layer, suffix)] = cross

			self, ok := decOutputs[edSelfPresentKey(layer, suffix)]
			if !ok {
				return nil, fmt.Errorf("%w: missing %q output", errs.ErrModelSource, edSelfPresentKey(layer, suffix))
			}

			s.selfCache[edSelfKey(layer, suffix)] = self
		}
	}

	s.seqLen = 1

	return last, nil
}

// Decode implements Session: runs the with-past decoder using the
// retained encoder state, the frozen cross-cache, and the growing
// self-cache; only the self-cache is updated.
func (s *EncoderDecoderSession) Decode(ctx context.Context, tokenID int64) ([]float32, error) {
	inputIDs, err := tensor.FromI64([]int64{tokenID}, []int64{1, 1})
	if err != nil {
		return nil, err
	}

	inputs := map[string]*tensor.Tensor{
		"input_ids":              inputIDs,
		"encoder_hidden_states":  s.encoderHidden,
		"encoder_attention_mask": s.encoderMask,
	}

	for k, v := range s.selfCache {
		inputs[k] = v
	}

	for k, v := range s.crossCache {
		inputs[k] = v
	}

	outputs, err := s.decoderWithPast.Run(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("%w: with-past decoder pass: %v", errs.ErrBackendError, err)
	}

	logitsOut, ok := outputs["logits"]
	if !ok {
		return nil, fmt.Errorf("%w: missing 'logits' output", errs.ErrModelSource)
	}

	last, err := lastPositionLogits(logitsOut)
	if err != nil {
		return nil, err
	}

	for layer := 0; layer < s.numLayers; layer++ {
		for _, suffix := range []string{"key", "value"} {
			self, ok := outputs[edSelfPresentKey(layer, suffix)]
			if !ok {
				return nil, fmt.Errorf("%w: missing %q output", errs.ErrModelSource, edSelfPresentKey(layer, suffix))
			}

			s.selfCache[edSelfKey(layer, suffix)] = self
		}
	}

	s.seqLen++

	return last, nil
}
