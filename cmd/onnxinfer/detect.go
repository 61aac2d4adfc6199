package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/go-onnx-infer/internal/backend"
	"github.com/example/go-onnx-infer/internal/errs"
	"github.com/example/go-onnx-infer/internal/tensor"
	"github.com/example/go-onnx-infer/internal/vision"
	"github.com/spf13/cobra"
)

func newDetectCmd() *cobra.Command {
	var (
		inputPath     string
		graph         string
		origW, origH  int
		target        int
		confThreshold float32
		iouThreshold  float32
		labelsFn      string
	)

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Run a YOLOv8 detector graph over a pre-letterboxed float32 image tensor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			manifest, err := backend.LoadManifest(cfg.Paths.ManifestPath)
			if err != nil {
				return fmt.Errorf("load manifest: %w", err)
			}

			spec, ok := manifest.Graph(graph)
			if !ok {
				return fmt.Errorf("manifest declares no %q graph", graph)
			}

			be, err := backend.Open(spec, backend.Config{LibraryPath: cfg.Runtime.ORTLibraryPath, APIVersion: cfg.Runtime.ORTAPIVersion})
			if err != nil {
				return fmt.Errorf("open detector graph: %w", err)
			}
			defer be.Close()

			lb := vision.ComputeLetterbox(origW, origH, target)

			pixels, err := readFloat32Image(inputPath, origW, origH, lb)
			if err != nil {
				return err
			}

			image, err := tensor.FromF32(pixels, []int64{1, int64(lb.Target), int64(lb.Target), 3})
			if err != nil {
				return err
			}

			inputName := "images"
			if len(spec.Inputs) > 0 {
				inputName = spec.Inputs[0].Name
			}

			outputs, err := be.Run(context.Background(), map[string]*tensor.Tensor{inputName: image})
			if err != nil {
				return fmt.Errorf("run detector: %w", err)
			}

			outputName := "output0"
			if len(spec.Outputs) > 0 {
				outputName = spec.Outputs[0].Name
			}

			out, ok := outputs[outputName]
			if !ok {
				return fmt.Errorf("%w: missing %q output", errs.ErrModelSource, outputName)
			}

			shape := out.Shape()
			if len(shape) != 3 {
				return fmt.Errorf("%w: detector output rank %d, want 3", errs.ErrShapeMismatch, len(shape))
			}

			numClasses := int(shape[1]) - 4
			numCandidates := int(shape[2])

			raw, err := out.ToF32()
			if err != nil {
				return err
			}

			labels, err := loadLabels(cfg.Paths.AssetDir, labelsFn)
			if err != nil {
				return err
			}

			detections := vision.DecodeYOLOv8(raw, numClasses, numCandidates, lb, confThreshold, iouThreshold, labels)

			for _, d := range detections {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%.4f\t%.1f,%.1f,%.1f,%.1f\n",
					d.Label, d.Confidence, d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "", "Path to a row-major RGB float32 binary file, shape origH x origW x 3")
	cmd.Flags().StringVar(&graph, "graph", "detector", "Manifest graph name to run")
	cmd.Flags().IntVar(&origW, "width", 0, "Original image width in pixels")
	cmd.Flags().IntVar(&origH, "height", 0, "Original image height in pixels")
	cmd.Flags().IntVar(&target, "target", 640, "Letterbox target square size")
	cmd.Flags().Float32Var(&confThreshold, "conf", 0.25, "Minimum per-class confidence to keep a candidate")
	cmd.Flags().Float32Var(&iouThreshold, "iou", 0.45, "NMS IoU threshold")
	cmd.Flags().StringVar(&labelsFn, "labels", "labels.txt", "Label file name, resolved under the asset directory")

	return cmd
}

// readFloat32Image reads a raw little-endian float32 binary file laid
// out origH x origW x 3 in [0,1] and letterboxes it to lb.Target.
func readFloat32Image(path string, origW, origH int, lb vision.Letterbox) ([]float32, error) {
	if !strings.HasSuffix(path, ".bin") {
		return nil, fmt.Errorf("%w: expected a .bin raw float32 image at %q", errs.ErrInvalidArgument, path)
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("%w: read image %q: %v", errs.ErrInvalidArgument, path, err)
	}

	want := origW * origH * 3 * 4
	if len(data) != want {
		return nil, fmt.Errorf("%w: image %q is %d bytes, want %d for %dx%d RGB float32",
			errs.ErrInvalidArgument, path, len(data), want, origW, origH)
	}

	src := make([]float32, origW*origH*3)
	for i := range src {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		src[i] = math.Float32frombits(bits)
	}

	return vision.ApplyToImage(src, lb), nil
}
