package vision

import (
	"github.com/example/go-onnx-infer/internal/kernels"
	"github.com/example/go-onnx-infer/internal/result"
)

// DecodeYOLOv8 decodes a YOLOv8-layout output tensor of shape
// [1, 4+numClasses, numCandidates]: rows 0..3 are cx,cy,w,h in
// letterboxed pixel space, rows 4..4+numClasses-1 are already-sigmoided
// per-class scores. Candidates below confThreshold are discarded before
// NMS; surviving candidates are returned in NMS selection (descending
// score) order, reprojected into the original image's coordinate space.
func DecodeYOLOv8(output []float32, numClasses, numCandidates int, lb Letterbox, confThreshold, iouThreshold float32, labels []string) []result.Detection {
	stride := numCandidates

	type candidate struct {
		box        kernels.Box
		score      float32
		classIndex int
	}

	var candidates []candidate

	for c := 0; c < numCandidates; c++ {
		bestScore := float32(-1)
		bestClass := -1

		for k := 0; k < numClasses; k++ {
			score := output[(4+k)*stride+c]
			if score > bestScore {
				bestScore = score
				bestClass = k
			}
		}

		if bestScore < confThreshold {
			continue
		}

		cx := output[0*stride+c]
		cy := output[1*stride+c]
		w := output[2*stride+c]
		h := output[3*stride+c]

		xyxy := kernels.Cxcywh2xyxy([]kernels.Box{{cx, cy, w, h}})[0]

		box := kernels.Box{
			ReverseLetterbox(xyxy[0], lb.PadX, lb.Scale),
			ReverseLetterbox(xyxy[1], lb.PadY, lb.Scale),
			ReverseLetterbox(xyxy[2], lb.PadX, lb.Scale),
			ReverseLetterbox(xyxy[3], lb.PadY, lb.Scale),
		}

		box[0] = clip(box[0], 0, float32(lb.OrigW))
		box[1] = clip(box[1], 0, float32(lb.OrigH))
		box[2] = clip(box[2], 0, float32(lb.OrigW))
		box[3] = clip(box[3], 0, float32(lb.OrigH))

		candidates = append(candidates, candidate{box: box, score: bestScore, classIndex: bestClass})
	}

	if len(candidates) == 0 {
		return nil
	}

	boxes := make([]kernels.Box, len(candidates))
	scores := make([]float32, len(candidates))

	for i, c := range candidates {
		boxes[i] = c.box
		scores[i] = c.score
	}

	kept := kernels.NMS(boxes, scores, iouThreshold)

	out := make([]result.Detection, 0, len(kept))

	for _, idx := range kept {
		c := candidates[idx]

		label := ""
		if c.classIndex < len(labels) {
			label = labels[c.classIndex]
		}

		out = append(out, result.Detection{
			Box: result.BoundingBox{
				X1: c.box[0], Y1: c.box[1], X2: c.box[2], Y2: c.box[3],
			},
			Label:      label,
			ClassIndex: c.classIndex,
			Confidence: c.score,
		})
	}

	return out
}
