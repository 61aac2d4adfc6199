//go:build !ortgo

package backend

import (
	"context"
	"fmt"

	ort "github.com/shota3506/onnxruntime-purego/onnxruntime"

	"github.com/example/go-onnx-infer/internal/errs"
	"github.com/example/go-onnx-infer/internal/tensor"
)

// Config holds onnxruntime library settings shared by every graph
// opened through this package.
type Config struct {
	LibraryPath string
	APIVersion  uint32
}

// PuregoBackend runs one ONNX graph through the purego onnxruntime
// bindings, the default backend for this toolkit.
type PuregoBackend struct {
	spec    GraphSpec
	runtime *ort.Runtime
	env     *ort.Env
	session *ort.Session
}

// Open creates a backend for a single graph spec using the purego ORT
// bindings.
func Open(spec GraphSpec, cfg Config) (*PuregoBackend, error) {
	if cfg.APIVersion == 0 {
		cfg.APIVersion = 23
	}

	runtime, err := ort.NewRuntime(cfg.LibraryPath, cfg.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: ort runtime for %q: %v", errs.ErrBackendError, spec.Name, err)
	}

	env, err := runtime.NewEnv("onnxinfer-"+spec.Name, ort.LoggingLevelWarning)
	if err != nil {
		_ = runtime.Close()
		return nil, fmt.Errorf("%w: ort env for %q: %v", errs.ErrBackendError, spec.Name, err)
	}

	session, err := runtime.NewSession(env, spec.Path, nil)
	if err != nil {
		env.Close()
		_ = runtime.Close()

		return nil, fmt.Errorf("%w: ort session for %q (%s): %v", errs.ErrBackendError, spec.Name, spec.Path, err)
	}

	return &PuregoBackend{
		spec:    spec,
		runtime: runtime,
		env:     env,
		session: session,
	}, nil
}

// InputNames implements Backend.
func (b *PuregoBackend) InputNames() []string {
	names := make([]string, len(b.spec.Inputs))
	for i, n := range b.spec.Inputs {
		names[i] = n.Name
	}

	return names
}

// OutputNames implements Backend.
func (b *PuregoBackend) OutputNames() []string {
	names := make([]string, len(b.spec.Outputs))
	for i, n := range b.spec.Outputs {
		names[i] = n.Name
	}

	return names
}

// InputShape implements Backend.
func (b *PuregoBackend) InputShape(name string) ([]int64, bool) {
	n, ok := b.spec.inputSpec(name)
	if !ok {
		return nil, false
	}

	return n.Shape, true
}

// InputElementType implements Backend.
func (b *PuregoBackend) InputElementType(name string) (tensor.ElementType, bool) {
	n, ok := b.spec.inputSpec(name)
	if !ok {
		return "", false
	}

	return n.DType, true
}

// Run implements Backend. F16 tensors must be widened to F32 with
// Tensor.ToF32 before being passed in; the purego bindings this backend
// wraps only exchange float32 and int64 buffers with the runtime.
func (b *PuregoBackend) Run(ctx context.Context, inputs map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error) {
	ortInputs := make(map[string]*ort.Value, len(inputs))

	for name, t := range inputs {
		v, err := tensorToORT(b.runtime, t)
		if err != nil {
			closeORTValues(ortInputs)
			return nil, fmt.Errorf("%w: input %q: %v", errs.ErrBackendError, name, err)
		}

		ortInputs[name] = v
	}

	defer closeORTValues(ortInputs)

	ortOutputs, err := b.session.Run(ctx, ortInputs)
	if err != nil {
		return nil, fmt.Errorf("%w: run %q: %v", errs.ErrBackendError, b.spec.Name, err)
	}
	defer closeORTValues(ortOutputs)

	results := make(map[string]*tensor.Tensor, len(ortOutputs))

	for name, v := range ortOutputs {
		t, err := ortToTensor(v)
		if err != nil {
			return nil, fmt.Errorf("%w: output %q: %v", errs.ErrBackendError, name, err)
		}

		results[name] = t
	}

	return results, nil
}

// Close implements Backend. Safe to call multiple times.
func (b *PuregoBackend) Close() {
	if b.session != nil {
		b.session.Close()
		b.session = nil
	}

	if b.env != nil {
		b.env.Close()
		b.env = nil
	}

	if b.runtime != nil {
		_ = b.runtime.Close()
		b.runtime = nil
	}
}

func tensorToORT(runtime *ort.Runtime, t *tensor.Tensor) (*ort.Value, error) {
	switch t.ElementType() {
	case tensor.F32:
		data, err := t.ToF32()
		if err != nil {
			return nil, err
		}

		return ort.NewTensorValue(runtime, data, t.Shape())
	case tensor.I64:
		data, err := t.ToI64()
		if err != nil {
			return nil, err
		}

		return ort.NewTensorValue(runtime, data, t.Shape())
	default:
		return nil, fmt.Errorf("%w: unsupported input element type %q", errs.ErrTypeMismatch, t.ElementType())
	}
}

func ortToTensor(v *ort.Value) (*tensor.Tensor, error) {
	elemType, err := v.GetTensorElementType()
	if err != nil {
		return nil, fmt.Errorf("get element type: %w", err)
	}

	switch elemType {
	case ort.ONNXTensorElementDataTypeFloat:
		data, shape, err := ort.GetTensorData[float32](v)
		if err != nil {
			return nil, err
		}

		return tensor.FromF32(data, shape)
	case ort.ONNXTensorElementDataTypeInt64:
		data, shape, err := ort.GetTensorData[int64](v)
		if err != nil {
			return nil, err
		}

		return tensor.FromI64(data, shape)
	default:
		return nil, fmt.Errorf("%w: unsupported ORT element type %d", errs.ErrTypeMismatch, elemType)
	}
}

func closeORTValues(vals map[string]*ort.Value) {
	for _, v := range vals {
		if v != nil {
			v.Close()
		}
	}
}
