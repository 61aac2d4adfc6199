package main

import (
	"fmt"
	"os"

	"github.com/example/go-onnx-infer/internal/modelsource"
	"github.com/spf13/cobra"
)

func newModelDownloadCmd() *cobra.Command {
	var repo string
	var outDir string
	var hfToken string

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download a model bundle's files from Hugging Face",
		RunE: func(_ *cobra.Command, _ []string) error {
			if hfToken == "" {
				hfToken = os.Getenv("HF_TOKEN")
			}

			err := modelsource.Fetch(modelsource.FetchOptions{
				Repo:    repo,
				OutDir:  outDir,
				HFToken: hfToken,
				Stdout:  os.Stdout,
				Stderr:  os.Stderr,
			})
			if err != nil {
				return fmt.Errorf("model download failed: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "onnx-infer/bert-base-wordpiece-classifier", "Model bundle repository")
	cmd.Flags().StringVar(&outDir, "out-dir", "models", "Directory where model files are stored")
	cmd.Flags().StringVar(&hfToken, "hf-token", "", "Hugging Face token (falls back to HF_TOKEN env var)")

	return cmd
}
