//go:build ortgo

package backend

import (
	"context"
	"fmt"
	"sync"

	onnxruntime "github.com/yalue/onnxruntime_go"

	"github.com/example/go-onnx-infer/internal/errs"
	"github.com/example/go-onnx-infer/internal/tensor"
)

var ortInitOnce sync.Once

// Config holds onnxruntime library settings shared by every graph
// opened through this package. APIVersion is accepted for source
// compatibility with the purego backend's Config but unused here: the
// ortgo bindings pin their own bundled onnxruntime API version.
type Config struct {
	LibraryPath string
	APIVersion  uint32
}

// OrtgoBackend runs one ONNX graph through the yalue/onnxruntime_go
// cgo bindings, selected with the "ortgo" build tag as an alternate to
// the default purego backend.
type OrtgoBackend struct {
	spec    GraphSpec
	session *onnxruntime.DynamicAdvancedSession
}

// Open creates a backend for a single graph spec using the ortgo
// bindings. The onnxruntime shared library is initialized exactly once
// per process.
func Open(spec GraphSpec, cfg Config) (*OrtgoBackend, error) {
	var initErr error

	ortInitOnce.Do(func() {
		if cfg.LibraryPath != "" {
			onnxruntime.SetSharedLibraryPath(cfg.LibraryPath)
		}

		initErr = onnxruntime.InitializeEnvironment()
	})

	if initErr != nil {
		return nil, fmt.Errorf("%w: initialize onnxruntime: %v", errs.ErrBackendError, initErr)
	}

	inputNames := make([]string, len(spec.Inputs))
	for i, n := range spec.Inputs {
		inputNames[i] = n.Name
	}

	outputNames := make([]string, len(spec.Outputs))
	for i, n := range spec.Outputs {
		outputNames[i] = n.Name
	}

	session, err := onnxruntime.NewDynamicAdvancedSession(spec.Path, inputNames, outputNames, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: ort session for %q (%s): %v", errs.ErrBackendError, spec.Name, spec.Path, err)
	}

	return &OrtgoBackend{spec: spec, session: session}, nil
}

// InputNames implements Backend.
func (b *OrtgoBackend) InputNames() []string {
	names := make([]string, len(b.spec.Inputs))
	for i, n := range b.spec.Inputs {
		names[i] = n.Name
	}

	return names
}

// OutputNames implements Backend.
func (b *OrtgoBackend) OutputNames() []string {
	names := make([]string, len(b.spec.Outputs))
	for i, n := range b.spec.Outputs {
		names[i] = n.Name
	}

	return names
}

// InputShape implements Backend.
func (b *OrtgoBackend) InputShape(name string) ([]int64, bool) {
	n, ok := b.spec.inputSpec(name)
	if !ok {
		return nil, false
	}

	return n.Shape, true
}

// InputElementType implements Backend.
func (b *OrtgoBackend) InputElementType(name string) (tensor.ElementType, bool) {
	n, ok := b.spec.inputSpec(name)
	if !ok {
		return "", false
	}

	return n.DType, true
}

// Run implements Backend. Context cancellation is not honored mid-run:
// the underlying cgo call blocks until onnxruntime returns, matching
// the upstream bindings' synchronous API.
func (b *OrtgoBackend) Run(ctx context.Context, inputs map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ortInputs := make([]onnxruntime.Value, 0, len(inputs))
	inputOrder := make([]string, 0, len(inputs))

	defer func() {
		for _, v := range ortInputs {
			v.Destroy()
		}
	}()

	for _, name := range b.InputNames() {
		t, ok := inputs[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing required input %q", errs.ErrInvalidArgument, name)
		}

		v, err := tensorToOrtgo(t)
		if err != nil {
			return nil, fmt.Errorf("%w: input %q: %v", errs.ErrBackendError, name, err)
		}

		ortInputs = append(ortInputs, v)
		inputOrder = append(inputOrder, name)
	}

	outputNames := b.OutputNames()
	outputs := make([]onnxruntime.Value, len(outputNames))

	if err := b.session.Run(ortInputs, outputs); err != nil {
		return nil, fmt.Errorf("%w: run %q: %v", errs.ErrBackendError, b.spec.Name, err)
	}

	results := make(map[string]*tensor.Tensor, len(outputs))

	for i, v := range outputs {
		defer v.Destroy()

		t, err := ortgoToTensor(v)
		if err != nil {
			return nil, fmt.Errorf("%w: output %q: %v", errs.ErrBackendError, outputNames[i], err)
		}

		results[outputNames[i]] = t
	}

	_ = inputOrder

	return results, nil
}

// Close implements Backend. Safe to call multiple times.
func (b *OrtgoBackend) Close() {
	if b.session != nil {
		b.session.Destroy()
		b.session = nil
	}
}

func tensorToOrtgo(t *tensor.Tensor) (onnxruntime.Value, error) {
	shape := onnxruntime.NewShape(t.Shape()...)

	switch t.ElementType() {
	case tensor.F32:
		data, err := t.ToF32()
		if err != nil {
			return nil, err
		}

		return onnxruntime.NewTensor(shape, data)
	case tensor.I64:
		data, err := t.ToI64()
		if err != nil {
			return nil, err
		}

		return onnxruntime.NewTensor(shape, data)
	default:
		return nil, fmt.Errorf("%w: unsupported input element type %q", errs.ErrTypeMismatch, t.ElementType())
	}
}

func ortgoToTensor(v onnxruntime.Value) (*tensor.Tensor, error) {
	shape := []int64(v.GetShape())

	switch data := v.(type) {
	case *onnxruntime.Tensor[float32]:
		return tensor.FromF32(data.GetData(), shape)
	case *onnxruntime.Tensor[int64]:
		return tensor.FromI64(data.GetData(), shape)
	default:
		return nil, fmt.Errorf("%w: unsupported ortgo output value type %T", errs.ErrTypeMismatch, v)
	}
}
