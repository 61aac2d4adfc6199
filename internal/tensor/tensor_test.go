package tensor

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/example/go-onnx-infer/internal/errs"
)

func TestFromF32_shapeMismatch(t *testing.T) {
	_, err := FromF32([]float32{1, 2, 3}, []int64{2, 2})
	if !errors.Is(err, errs.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestFromF32_roundTrip(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6}
	tt, err := FromF32(data, []int64{2, 3})
	if err != nil {
		t.Fatalf("FromF32: %v", err)
	}

	got, err := tt.ToF32()
	if err != nil {
		t.Fatalf("ToF32: %v", err)
	}

	if !reflect.DeepEqual(got, data) {
		t.Fatalf("got %v, want %v", got, data)
	}

	// Mutating the returned slice must not alter the tensor.
	got[0] = 999

	got2, _ := tt.ToF32()
	if got2[0] == 999 {
		t.Fatal("ToF32 returned a view, not a copy")
	}
}

func TestShape_isDefensiveCopy(t *testing.T) {
	tt, _ := FromF32([]float32{1, 2}, []int64{2})

	s1 := tt.Shape()
	s1[0] = 999

	s2 := tt.Shape()
	if s2[0] != 2 {
		t.Fatalf("mutating returned shape altered the tensor: %v", s2)
	}
}

func TestToF32_typeMismatch(t *testing.T) {
	tt, _ := FromI64([]int64{1, 2}, []int64{2})

	_, err := tt.ToF32()
	if !errors.Is(err, errs.ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestF16RoundTrip(t *testing.T) {
	tt, err := FromF32([]float32{0, 1, -1, 0.5, 65504, -65504}, []int64{6})
	if err != nil {
		t.Fatalf("FromF32: %v", err)
	}

	h, err := tt.CastToF16()
	if err != nil {
		t.Fatalf("CastToF16: %v", err)
	}

	got, err := h.ToF32()
	if err != nil {
		t.Fatalf("ToF32: %v", err)
	}

	want := []float32{0, 1, -1, 0.5, 65504, -65504}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-2 {
			t.Fatalf("index %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestF16ToF32_specialValues(t *testing.T) {
	tests := []struct {
		name string
		bits uint16
		want float32
	}{
		{"positive zero", 0x0000, 0},
		{"negative zero", 0x8000, float32(math.Copysign(0, -1))},
		{"one", 0x3c00, 1},
		{"negative two", 0xc000, -2},
		{"positive inf", 0x7c00, float32(math.Inf(1))},
		{"negative inf", 0xfc00, float32(math.Inf(-1))},
		{"smallest subnormal", 0x0001, float32(5.9604645e-08)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := F16ToF32(tt.bits)
			if math.IsInf(float64(tt.want), 0) {
				if got != tt.want {
					t.Fatalf("got %v, want %v", got, tt.want)
				}

				return
			}

			if math.Abs(float64(got-tt.want)) > 1e-9 && got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestF16_nan(t *testing.T) {
	got := F16ToF32(0x7e00)
	if !math.IsNaN(float64(got)) {
		t.Fatalf("expected NaN, got %v", got)
	}
}

func TestF32ToF16_overflowSaturatesToInf(t *testing.T) {
	got := F32ToF16(1e10)
	if F16ToF32(got) != float32(math.Inf(1)) {
		t.Fatalf("expected +Inf after overflow, got %v", F16ToF32(got))
	}

	got = F32ToF16(-1e10)
	if F16ToF32(got) != float32(math.Inf(-1)) {
		t.Fatalf("expected -Inf after overflow, got %v", F16ToF32(got))
	}
}

func TestSlice(t *testing.T) {
	// [2, 3] tensor: [[1,2,3],[4,5,6]]
	tt, _ := FromF32([]float32{1, 2, 3, 4, 5, 6}, []int64{2, 3})

	row1, err := tt.Slice(0, 1)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}

	if !reflect.DeepEqual(row1.Shape(), []int64{3}) {
		t.Fatalf("unexpected shape: %v", row1.Shape())
	}

	got, _ := row1.ToF32()
	if !reflect.DeepEqual(got, []float32{4, 5, 6}) {
		t.Fatalf("got %v", got)
	}
}

func TestSlice_negativeIndex(t *testing.T) {
	tt, _ := FromF32([]float32{1, 2, 3, 4, 5, 6}, []int64{2, 3})

	last, err := tt.Slice(0, -1)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}

	got, _ := last.ToF32()
	if !reflect.DeepEqual(got, []float32{4, 5, 6}) {
		t.Fatalf("got %v", got)
	}
}

func TestSlice_axisOutOfRange(t *testing.T) {
	tt, _ := FromF32([]float32{1, 2}, []int64{2})

	_, err := tt.Slice(5, 0)
	if !errors.Is(err, errs.ErrAxisOutOfRange) {
		t.Fatalf("expected ErrAxisOutOfRange, got %v", err)
	}
}

func TestSlice_indexOutOfRange(t *testing.T) {
	tt, _ := FromF32([]float32{1, 2}, []int64{2})

	_, err := tt.Slice(0, 7)
	if !errors.Is(err, errs.ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestSlice_middleAxis(t *testing.T) {
	// [1, 3, 2]: outer=1, axis=3, inner=2
	data := []float32{1, 2, 3, 4, 5, 6}
	tt, _ := FromF32(data, []int64{1, 3, 2})

	mid, err := tt.Slice(1, 1)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}

	if !reflect.DeepEqual(mid.Shape(), []int64{1, 2}) {
		t.Fatalf("unexpected shape: %v", mid.Shape())
	}

	got, _ := mid.ToF32()
	if !reflect.DeepEqual(got, []float32{3, 4}) {
		t.Fatalf("got %v", got)
	}
}

func TestSqueeze(t *testing.T) {
	tt, _ := FromF32([]float32{1, 2, 3}, []int64{1, 3, 1})

	sq := tt.Squeeze()
	if !reflect.DeepEqual(sq.Shape(), []int64{3}) {
		t.Fatalf("unexpected shape: %v", sq.Shape())
	}
}

func TestSqueeze_allOnesBecomesShapeOne(t *testing.T) {
	tt, _ := FromF32([]float32{42}, []int64{1, 1, 1})

	sq := tt.Squeeze()
	if !reflect.DeepEqual(sq.Shape(), []int64{1}) {
		t.Fatalf("unexpected shape: %v", sq.Shape())
	}
}

func TestSqueezeAxis_invalid(t *testing.T) {
	tt, _ := FromF32([]float32{1, 2, 3}, []int64{1, 3})

	_, err := tt.SqueezeAxis(1)
	if !errors.Is(err, errs.ErrInvalidSqueeze) {
		t.Fatalf("expected ErrInvalidSqueeze, got %v", err)
	}
}

func TestToF32Rows(t *testing.T) {
	tt, _ := FromF32([]float32{1, 2, 3, 4, 5, 6}, []int64{2, 3})

	rows, err := tt.ToF32Rows()
	if err != nil {
		t.Fatalf("ToF32Rows: %v", err)
	}

	want := [][]float32{{1, 2, 3}, {4, 5, 6}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("got %v, want %v", rows, want)
	}
}

func TestToF32Rows_requiresRank2(t *testing.T) {
	tt, _ := FromF32([]float32{1, 2, 3}, []int64{3})

	_, err := tt.ToF32Rows()
	if !errors.Is(err, errs.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}
