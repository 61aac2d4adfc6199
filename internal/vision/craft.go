package vision

import (
	"sort"

	"github.com/example/go-onnx-infer/internal/result"
)

// HeatmapSize is the H/2 x W/2 resolution of a CRAFT-style region and
// affinity heatmap pair, in pixels.
type HeatmapSize struct {
	Width, Height int
}

// DecodeCRAFT extracts text regions from a combined region+affinity
// heatmap (shape [1, height, width, 2], channel 0 region, channel 1
// affinity). Components are found via 4-connected BFS flood-fill over
// the mask binarized at lowTextThreshold; components below
// minComponentArea or whose mean region score is below textThreshold
// are dropped. Bounding boxes are scaled back to the original image by
// heatmap*2/scale (CRAFT heatmaps are half the letterboxed resolution)
// and returned sorted by confidence descending.
func DecodeCRAFT(heatmap []float32, size HeatmapSize, scale float64, origW, origH int, lowTextThreshold, textThreshold float32, minComponentArea int) []result.TextRegion {
	w, h := size.Width, size.Height

	regionOf := func(x, y int) float32 { return heatmap[(y*w+x)*2+0] }
	affinityOf := func(x, y int) float32 { return heatmap[(y*w+x)*2+1] }

	combined := make([]float32, w*h)
	for i := 0; i < w*h; i++ {
		x, y := i%w, i/w
		v := regionOf(x, y) + affinityOf(x, y)
		combined[i] = clip(v, 0, 1)
	}

	labels := make([]int, w*h)
	nextLabel := 1

	type box struct {
		minX, minY, maxX, maxY int
	}

	var boxes []box

	var pixelCounts []int

	var scoreSums []float32

	queue := make([]int, 0, w*h)

	for start := 0; start < w*h; start++ {
		if labels[start] != 0 || combined[start] < lowTextThreshold {
			continue
		}

		label := nextLabel
		nextLabel++

		queue = queue[:0]
		queue = append(queue, start)
		labels[start] = label

		b := box{minX: start % w, minY: start / w, maxX: start % w, maxY: start / w}

		count := 0

		var scoreSum float32

		for qi := 0; qi < len(queue); qi++ {
			idx := queue[qi]
			x, y := idx%w, idx/w

			count++
			scoreSum += regionOf(x, y)

			if x < b.minX {
				b.minX = x
			}

			if x > b.maxX {
				b.maxX = x
			}

			if y < b.minY {
				b.minY = y
			}

			if y > b.maxY {
				b.maxY = y
			}

			for _, d := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}

				nidx := ny*w + nx
				if labels[nidx] != 0 || combined[nidx] < lowTextThreshold {
					continue
				}

				labels[nidx] = label
				queue = append(queue, nidx)
			}
		}

		boxes = append(boxes, b)
		pixelCounts = append(pixelCounts, count)
		scoreSums = append(scoreSums, scoreSum)
	}

	type candidate struct {
		box   box
		score float32
	}

	var kept []candidate

	for i, b := range boxes {
		if pixelCounts[i] < minComponentArea {
			continue
		}

		mean := scoreSums[i] / float32(pixelCounts[i])
		if mean < textThreshold {
			continue
		}

		kept = append(kept, candidate{box: b, score: mean})
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].score > kept[j].score })

	out := make([]result.TextRegion, 0, len(kept))

	for _, c := range kept {
		factor := 2.0 / scale

		x1 := clip(float32(float64(c.box.minX)*factor), 0, float32(origW))
		y1 := clip(float32(float64(c.box.minY)*factor), 0, float32(origH))
		x2 := clip(float32(float64(c.box.maxX+1)*factor), 0, float32(origW))
		y2 := clip(float32(float64(c.box.maxY+1)*factor), 0, float32(origH))

		out = append(out, result.TextRegion{
			Box:        result.BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2},
			Confidence: c.score,
		})
	}

	return out
}
