package main

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"

	"github.com/example/go-onnx-infer/internal/backend"
	"github.com/example/go-onnx-infer/internal/config"
	"github.com/example/go-onnx-infer/internal/generate"
	"github.com/example/go-onnx-infer/internal/logits"
	"github.com/example/go-onnx-infer/internal/session"
	"github.com/example/go-onnx-infer/internal/tokenizer"
	"github.com/spf13/cobra"
)

func newGenerateCmd() *cobra.Command {
	var (
		prompt         string
		arch           string
		tokenizerKind  string
		maxNewTokens   int
		maxInputTokens int
		temperature    float32
		topK           int
		topP           float32
		greedy         bool
		eosIDs         []int64
		stopSeqs       []string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run autoregressive text generation against a decoder graph",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			manifest, err := backend.LoadManifest(cfg.Paths.ManifestPath)
			if err != nil {
				return fmt.Errorf("load manifest: %w", err)
			}

			tok, dec, err := loadTokenizer(cfg.Paths.AssetDir, tokenizerKind)
			if err != nil {
				return err
			}

			sess, closeFn, err := openGenerateSession(manifest, cfg, arch)
			if err != nil {
				return err
			}
			defer closeFn()

			var pipeline []logits.Processor
			if temperature != 1 {
				tempProc, err := logits.Temperature(temperature)
				if err != nil {
					return err
				}

				pipeline = append(pipeline, tempProc)
			}

			if topK > 0 {
				pipeline = append(pipeline, logits.TopK(topK))
			}

			if topP > 0 && topP < 1 {
				pipeline = append(pipeline, logits.TopP(topP))
			}

			var sampler logits.Sampler = logits.Greedy{}
			if !greedy {
				sampler = logits.Categorical{Rand: rand.New(rand.NewSource(1))}
			}

			genCfg := generate.Config{
				Session:        sess,
				Tokenizer:      tok,
				Decoder:        dec,
				EOSIDs:         eosIDs,
				StopSequences:  stopSeqs,
				MaxNewTokens:   maxNewTokens,
				MaxInputTokens: maxInputTokens,
				Pipeline:       pipeline,
				Sampler:        sampler,
				Listener: func(fragment string) {
					fmt.Fprint(cmd.OutOrStdout(), fragment)
				},
			}

			result, err := generate.RunMessage(context.Background(), prompt, genCfg)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "\n[%d tokens, %s]\n", result.Generated, result.Elapsed)

			return nil
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "Prompt text to generate from")
	cmd.Flags().StringVar(&arch, "arch", "decoder-only", "Graph architecture: decoder-only|encoder-decoder")
	cmd.Flags().StringVar(&tokenizerKind, "tokenizer", "bpe", "Tokenizer kind: bpe|wordpiece")
	cmd.Flags().IntVar(&maxNewTokens, "max-new-tokens", 64, "Maximum number of tokens to generate")
	cmd.Flags().IntVar(&maxInputTokens, "max-input-tokens", 0, "Truncate the encoded prompt to this many tokens (0 disables)")
	cmd.Flags().Float32Var(&temperature, "temperature", 1.0, "Softmax temperature")
	cmd.Flags().IntVar(&topK, "top-k", 0, "Keep only the k highest-probability tokens (0 disables)")
	cmd.Flags().Float32Var(&topP, "top-p", 0, "Nucleus sampling cumulative probability (0 disables)")
	cmd.Flags().BoolVar(&greedy, "greedy", false, "Always pick the highest-probability token")
	cmd.Flags().Int64SliceVar(&eosIDs, "eos-id", nil, "Token id(s) that end generation")
	cmd.Flags().StringSliceVar(&stopSeqs, "stop", nil, "Stop sequence(s); withheld from streamed output")

	return cmd
}

// loadTokenizer builds a tokenizer and matching TokenDecoder from the
// vocabulary files conventionally stored alongside a model bundle's
// manifest.
func loadTokenizer(assetDir, kind string) (tokenizer.Tokenizer, generate.TokenDecoder, error) {
	switch kind {
	case "wordpiece":
		wp, err := tokenizer.NewWordPiece(filepath.Join(assetDir, "vocab.txt"))
		if err != nil {
			return nil, nil, fmt.Errorf("load wordpiece vocab: %w", err)
		}

		return wp, wp.Decode, nil
	case "bpe":
		bpe, err := tokenizer.NewBPE(
			filepath.Join(assetDir, "vocab.json"),
			filepath.Join(assetDir, "merges.txt"),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("load bpe vocab: %w", err)
		}

		return bpe, bpe.Decode, nil
	default:
		return nil, nil, fmt.Errorf("unknown tokenizer kind %q", kind)
	}
}

// openGenerateSession opens the backend graph(s) a manifest declares
// for the requested architecture and wraps them in the matching
// session.Session implementation.
func openGenerateSession(manifest *backend.Manifest, cfg config.Config, arch string) (session.Session, func(), error) {
	beCfg := backend.Config{LibraryPath: cfg.Runtime.ORTLibraryPath, APIVersion: cfg.Runtime.ORTAPIVersion}

	switch arch {
	case "decoder-only":
		spec, ok := manifest.Graph("model")
		if !ok {
			return nil, nil, fmt.Errorf("manifest declares no %q graph", "model")
		}

		be, err := backend.Open(spec, beCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open decoder graph: %w", err)
		}

		sess, err := session.NewDecoderOnlySession(be)
		if err != nil {
			be.Close()
			return nil, nil, fmt.Errorf("build decoder-only session: %w", err)
		}

		return sess, sess.Close, nil
	case "encoder-decoder":
		names := []string{"encoder", "decoder_no_past", "decoder_with_past"}

		var backends []backend.Backend

		closeAll := func() {
			for _, b := range backends {
				b.Close()
			}
		}

		for _, name := range names {
			spec, ok := manifest.Graph(name)
			if !ok {
				closeAll()
				return nil, nil, fmt.Errorf("manifest declares no %q graph", name)
			}

			be, err := backend.Open(spec, beCfg)
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("open %q graph: %w", name, err)
			}

			backends = append(backends, be)
		}

		sess, err := session.NewEncoderDecoderSession(backends[0], backends[1], backends[2], 0)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("build encoder-decoder session: %w", err)
		}

		return sess, sess.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown arch %q", arch)
	}
}
