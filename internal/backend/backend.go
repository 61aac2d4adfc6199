// Package backend defines the opaque ONNX execution facade the rest of
// the toolkit runs against, and the purego-backed implementation of it.
// A Backend is a named-input-tensor to named-output-tensor function:
// everything above it (sessions, generation loop, vision and audio
// pipelines) is written entirely against the interface and never
// touches onnxruntime types directly.
package backend

import (
	"context"

	"github.com/example/go-onnx-infer/internal/tensor"
)

// Backend runs a single loaded ONNX graph.
type Backend interface {
	// InputNames returns the graph's declared input names, in manifest
	// order.
	InputNames() []string
	// OutputNames returns the graph's declared output names, in
	// manifest order.
	OutputNames() []string
	// InputShape returns the declared shape for a named input; a
	// dimension of -1 means dynamic.
	InputShape(name string) ([]int64, bool)
	// InputElementType returns the declared element type for a named
	// input.
	InputElementType(name string) (tensor.ElementType, bool)
	// Run executes the graph with the given named inputs and returns
	// its named outputs.
	Run(ctx context.Context, inputs map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error)
	// Close releases all runtime resources. Safe to call multiple
	// times.
	Close()
}
