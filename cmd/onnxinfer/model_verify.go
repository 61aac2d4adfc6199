package main

import (
	"fmt"
	"os"

	"github.com/example/go-onnx-infer/internal/modelsource"
	"github.com/spf13/cobra"
)

func newModelVerifyCmd() *cobra.Command {
	var manifestPath string
	var ortAPIVersion uint32

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Smoke-test every graph in a manifest against the configured backend",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if manifestPath == "" {
				manifestPath = cfg.Paths.ManifestPath
			}

			err = modelsource.Verify(modelsource.VerifyOptions{
				ManifestPath: manifestPath,
				LibraryPath:  cfg.Runtime.ORTLibraryPath,
				APIVersion:   ortAPIVersion,
				Stdout:       os.Stdout,
				Stderr:       os.Stderr,
			})
			if err != nil {
				return fmt.Errorf("model verify failed: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Path to the graph manifest JSON (default: configured paths.manifest_path)")
	cmd.Flags().Uint32Var(&ortAPIVersion, "ort-api-version", 23, "ONNX Runtime C API version expected by the purego binding")

	return cmd
}
