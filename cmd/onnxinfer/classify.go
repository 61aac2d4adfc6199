package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/example/go-onnx-infer/internal/backend"
	"github.com/example/go-onnx-infer/internal/errs"
	"github.com/example/go-onnx-infer/internal/kernels"
	"github.com/example/go-onnx-infer/internal/result"
	"github.com/example/go-onnx-infer/internal/tensor"
	"github.com/example/go-onnx-infer/internal/tokenizer"
	"github.com/spf13/cobra"
)

func newClassifyCmd() *cobra.Command {
	var (
		text     string
		graph    string
		maxLen   int
		topN     int
		labelsFn string
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Run a single-pass WordPiece classifier graph over input text",
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
				return fmt.Errorf("open classifier graph: %w", err)
			}
			defer be.Close()

			wp, err := tokenizer.NewWordPiece(filepath.Join(cfg.Paths.AssetDir, "vocab.txt"))
			if err != nil {
				return fmt.Errorf("load wordpiece vocab: %w", err)
			}

			enc, err := wp.EncodeMax(text, maxLen)
			if err != nil {
				return fmt.Errorf("encode input: %w", err)
			}

			n := int64(len(enc.IDs))

			inputIDs, err := tensor.FromI64(enc.IDs, []int64{1, n})
			if err != nil {
				return err
			}

			attnMask, err := tensor.FromI64(enc.AttentionMask, []int64{1, n})
			if err != nil {
				return err
			}

			tokenTypes, err := tensor.FromI64(enc.TokenTypeIDs, []int64{1, n})
			if err != nil {
				return err
			}

			inputs := map[string]*tensor.Tensor{
				"input_ids":      inputIDs,
				"attention_mask": attnMask,
				"token_type_ids": tokenTypes,
			}

			outputs, err := be.Run(context.Background(), inputs)
			if err != nil {
				return fmt.Errorf("run classifier: %w", err)
			}

			logitsOut, ok := outputs["logits"]
			if !ok {
				return fmt.Errorf("%w: missing 'logits' output", errs.ErrModelSource)
			}

			row, err := logitsOut.ToF32()
			if err != nil {
				return err
			}

			labels, err := loadLabels(cfg.Paths.AssetDir, labelsFn)
			if err != nil {
				return err
			}

			ranked := rankClassifications(kernels.Softmax(row), labels)
			if topN > 0 && topN < len(ranked) {
				ranked = ranked[:topN]
			}

			for _, c := range ranked {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%.4f\n", c.Label, c.Confidence)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Input text to classify")
	cmd.Flags().StringVar(&graph, "graph", "classifier", "Manifest graph name to run")
	cmd.Flags().IntVar(&maxLen, "max-len", 512, "Maximum token sequence length")
	cmd.Flags().IntVar(&topN, "top", 5, "Number of top labels to print (0 prints all)")
	cmd.Flags().StringVar(&labelsFn, "labels", "labels.txt", "Label file name, resolved under the asset directory")

	return cmd
}

// rankClassifications pairs each score with its label (falling back to
// its numeric index when the label list runs short) and sorts
// descending by score.
func rankClassifications(scores []float32, labels []string) []result.Classification {
	out := make([]result.Classification, len(scores))

	for i, s := range scores {
		label := fmt.Sprintf("%d", i)
		if i < len(labels) {
			label = labels[i]
		}

		out[i] = result.Classification{Label: label, Index: i, Confidence: s}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })

	return out
}

// loadLabels resolves a classifier's label set. It first tries a plain
// newline-delimited labels file, falling back to a HuggingFace-style
// config.json's id2label map, indexed ascending by id.
func loadLabels(assetDir, labelsFn string) ([]string, error) {
	if labels, err := readLabelsFile(filepath.Join(assetDir, labelsFn)); err == nil {
		return labels, nil
	}

	data, err := os.ReadFile(filepath.Join(assetDir, "config.json"))
	if err != nil {
		return nil, nil
	}

	var cfg struct {
		ID2Label map[string]string `json:"id2label"`
	}

	if err := json.Unmarshal(data, &cfg); err != nil || len(cfg.ID2Label) == 0 {
		return nil, nil
	}

	ids := make([]int, 0, len(cfg.ID2Label))
	byID := make(map[int]string, len(cfg.ID2Label))

	for idStr, label := range cfg.ID2Label {
		var id int
		if _, err := fmt.Sscanf(idStr, "%d", &id); err != nil {
			continue
		}

		ids = append(ids, id)
		byID[id] = label
	}

	sort.Ints(ids)

	labels := make([]string, 0, len(ids))
	for _, id := range ids {
		labels = append(labels, byID[id])
	}

	return labels, nil
}

func readLabelsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var labels []string

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			labels = append(labels, line)
		}
	}

	return labels, nil
}
