// Package errs defines the sentinel error kinds shared across the
// inference core. Call sites wrap these with fmt.Errorf("...: %w", ...)
// so callers can match with errors.Is while still getting a contextual
// message.
package errs

import "errors"

var (
	// ErrShapeMismatch indicates a tensor's data length does not match
	// the product of its declared shape.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrTypeMismatch indicates an accessor was called against a tensor
	// whose element type cannot satisfy it (e.g. ToI64 on an F32 tensor).
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrAxisOutOfRange indicates an axis argument fell outside [0, rank).
	ErrAxisOutOfRange = errors.New("axis out of range")

	// ErrIndexOutOfRange indicates a normalized index fell outside the
	// bounds of the addressed axis.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrInvalidSqueeze indicates Squeeze(axis) was called on an axis
	// whose size is not 1.
	ErrInvalidSqueeze = errors.New("invalid squeeze")

	// ErrDimensionMismatch indicates a numeric kernel precondition on
	// operand lengths failed (e.g. DotProduct on unequal-length slices).
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrBackendError indicates the ONNX execution backend failed to
	// load or run a graph. It is fatal to the owning session; callers
	// must ResetCache before reuse.
	ErrBackendError = errors.New("backend error")

	// ErrModelSource indicates required model artifacts were missing or
	// unreadable at construction time.
	ErrModelSource = errors.New("model source error")

	// ErrInvalidArgument indicates a builder/constructor precondition
	// failed (e.g. temperature <= 0, empty EOS set).
	ErrInvalidArgument = errors.New("invalid argument")
)
