// Package vision implements the post-processing stages shared by
// object detection and scene-text detection pipelines: letterbox
// resizing, YOLOv8 candidate decoding, and CRAFT-style heatmap-to-box
// extraction via connected-component labeling.
package vision

import "math"

// Letterbox describes a letterbox resize applied to an image of
// OrigW x OrigH, producing a ScaledW x ScaledH image padded into a
// Target x Target square.
type Letterbox struct {
	OrigW, OrigH     int
	ScaledW, ScaledH int
	Target           int
	Scale            float64
	PadX, PadY       int
}

// ComputeLetterbox computes the scale and padding for resizing an
// origW x origH image into a target x target square while preserving
// aspect ratio, matching ultralytics-style YOLO preprocessing.
func ComputeLetterbox(origW, origH, target int) Letterbox {
	scale := math.Min(float64(target)/float64(origW), float64(target)/float64(origH))

	scaledW := int(math.Round(float64(origW) * scale))
	scaledH := int(math.Round(float64(origH) * scale))

	padX := (target - scaledW) / 2
	padY := (target - scaledH) / 2

	return Letterbox{
		OrigW: origW, OrigH: origH,
		ScaledW: scaledW, ScaledH: scaledH,
		Target: target,
		Scale:  scale,
		PadX:   padX, PadY: padY,
	}
}

// GrayFill is the 114/255 gray padding value letterboxing uses to fill
// the border around the scaled image.
const GrayFill = float32(114.0 / 255.0)

// ApplyToImage letterbox-resizes a row-major RGB float32 buffer (values
// in [0,1], shape origH x origW x 3) into a target x target x 3 buffer,
// nearest-neighbor sampling the scaled region and gray-filling the
// border.
func ApplyToImage(src []float32, lb Letterbox) []float32 {
	out := make([]float32, lb.Target*lb.Target*3)
	for i := range out {
		out[i] = GrayFill
	}

	for y := 0; y < lb.ScaledH; y++ {
		srcY := int(float64(y) / lb.Scale)
		if srcY >= lb.OrigH {
			srcY = lb.OrigH - 1
		}

		for x := 0; x < lb.ScaledW; x++ {
			srcX := int(float64(x) / lb.Scale)
			if srcX >= lb.OrigW {
				srcX = lb.OrigW - 1
			}

			srcIdx := (srcY*lb.OrigW + srcX) * 3
			dstIdx := ((y+lb.PadY)*lb.Target + (x + lb.PadX)) * 3

			out[dstIdx+0] = src[srcIdx+0]
			out[dstIdx+1] = src[srcIdx+1]
			out[dstIdx+2] = src[srcIdx+2]
		}
	}

	return out
}

// ReverseLetterbox maps a single coordinate from letterboxed pixel
// space back to the original image.
func ReverseLetterbox(v float32, pad int, scale float64) float32 {
	return float32((float64(v) - float64(pad)) / scale)
}

func clip(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
