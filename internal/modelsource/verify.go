package modelsource

import (
	"context"
	"fmt"
	"io"
	"strings"

	ortbackend "github.com/example/go-onnx-infer/internal/backend"
	"github.com/example/go-onnx-infer/internal/errs"
	"github.com/example/go-onnx-infer/internal/tensor"
)

// VerifyOptions configures a resolved bundle's smoke test.
type VerifyOptions struct {
	ManifestPath string
	LibraryPath  string
	APIVersion   uint32
	Stdout       io.Writer
	Stderr       io.Writer
}

// Verify loads every graph a manifest declares, checks that its
// declared input shapes can build a valid zero-filled tensor, and runs
// each graph once end to end.
func Verify(opts VerifyOptions) error {
	if opts.ManifestPath == "" {
		return fmt.Errorf("%w: manifest path is required", errs.ErrInvalidArgument)
	}

	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}

	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	manifest, err := ortbackend.LoadManifest(opts.ManifestPath)
	if err != nil {
		return fmt.Errorf("%w: load manifest: %v", errs.ErrModelSource, err)
	}

	graphs := manifest.Graphs()

	for _, g := range graphs {
		for _, input := range g.Inputs {
			if _, err := zeroTensor(input.DType, input.Shape); err != nil {
				return fmt.Errorf("%w: graph %q input %q invalid: %v", errs.ErrModelSource, g.Name, input.Name, err)
			}
		}
	}

	var failures []string

	for _, g := range graphs {
		if err := smokeRun(context.Background(), g, ortbackend.Config{LibraryPath: opts.LibraryPath, APIVersion: opts.APIVersion}); err != nil {
			fmt.Fprintf(opts.Stderr, "FAIL %s: %v\n", g.Name, err)
			failures = append(failures, g.Name)

			continue
		}

		fmt.Fprintf(opts.Stdout, "PASS %s\n", g.Name)
	}

	if len(failures) > 0 {
		return fmt.Errorf("%w: verify failed for %d graph(s): %s", errs.ErrModelSource, len(failures), strings.Join(failures, ", "))
	}

	return nil
}

func smokeRun(ctx context.Context, g ortbackend.GraphSpec, cfg ortbackend.Config) error {
	be, err := ortbackend.Open(g, cfg)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer be.Close()

	inputs := make(map[string]*tensor.Tensor, len(g.Inputs))

	for _, input := range g.Inputs {
		t, err := zeroTensor(input.DType, input.Shape)
		if err != nil {
			return fmt.Errorf("build input %q tensor: %w", input.Name, err)
		}

		inputs[input.Name] = t
	}

	if _, err := be.Run(ctx, inputs); err != nil {
		return fmt.Errorf("run inference: %w", err)
	}

	return nil
}

// zeroTensor builds a zero-filled tensor for a declared shape,
// resolving any dynamic dimension (-1) to 1.
func zeroTensor(dtype tensor.ElementType, shape []int64) (*tensor.Tensor, error) {
	resolved := make([]int64, len(shape))
	count := int64(1)

	for i, d := range shape {
		if d < 0 {
			d = 1
		}

		resolved[i] = d
		count *= d
	}

	switch dtype {
	case tensor.F32:
		return tensor.FromF32(make([]float32, count), resolved)
	case tensor.I64:
		return tensor.FromI64(make([]int64, count), resolved)
	default:
		return nil, fmt.Errorf("%w: unsupported dtype %q for zero-fill", errs.ErrTypeMismatch, dtype)
	}
}
