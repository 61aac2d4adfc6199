package vision

import "testing"

func TestDecodeYOLOv8_letterboxRoundTrip(t *testing.T) {
	lb := ComputeLetterbox(640, 480, 320)

	if lb.Scale != 0.5 || lb.ScaledW != 320 || lb.ScaledH != 240 || lb.PadX != 0 || lb.PadY != 40 {
		t.Fatalf("unexpected letterbox: %+v", lb)
	}

	const numClasses = 4
	const numCandidates = 1

	output := make([]float32, (4+numClasses)*numCandidates)
	output[0*numCandidates+0] = 160 // cx
	output[1*numCandidates+0] = 160 // cy
	output[2*numCandidates+0] = 40  // w
	output[3*numCandidates+0] = 40  // h
	output[(4+3)*numCandidates+0] = 0.9

	dets := DecodeYOLOv8(output, numClasses, numCandidates, lb, 0.5, 0.5, []string{"a", "b", "c", "d"})
	if len(dets) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(dets))
	}

	d := dets[0]
	if d.Label != "d" {
		t.Fatalf("Label = %q, want %q", d.Label, "d")
	}

	want := [4]float32{280, 200, 360, 280}
	got := [4]float32{d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2}

	if got != want {
		t.Fatalf("box = %v, want %v", got, want)
	}
}

func TestDecodeYOLOv8_belowThresholdDropped(t *testing.T) {
	lb := ComputeLetterbox(100, 100, 100)

	output := []float32{50, 50, 10, 10, 0.1}

	dets := DecodeYOLOv8(output, 1, 1, lb, 0.5, 0.5, []string{"x"})
	if len(dets) != 0 {
		t.Fatalf("expected no detections, got %d", len(dets))
	}
}

func TestDecodeYOLOv8_overlappingBoxesSuppressed(t *testing.T) {
	lb := ComputeLetterbox(100, 100, 100)

	const numClasses = 1
	const numCandidates = 2

	output := make([]float32, (4+numClasses)*numCandidates)
	// Candidate 0: box centered at (50,50), size 20x20, score 0.9.
	output[0*numCandidates+0] = 50
	output[1*numCandidates+0] = 50
	output[2*numCandidates+0] = 20
	output[3*numCandidates+0] = 20
	output[4*numCandidates+0] = 0.9
	// Candidate 1: nearly identical box, lower score.
	output[0*numCandidates+1] = 52
	output[1*numCandidates+1] = 52
	output[2*numCandidates+1] = 20
	output[3*numCandidates+1] = 20
	output[4*numCandidates+1] = 0.8

	dets := DecodeYOLOv8(output, numClasses, numCandidates, lb, 0.5, 0.5, []string{"x"})
	if len(dets) != 1 {
		t.Fatalf("expected overlapping candidate to be suppressed, got %d detections", len(dets))
	}

	if dets[0].Confidence != 0.9 {
		t.Fatalf("expected the higher-scoring box to survive, got score %v", dets[0].Confidence)
	}
}
