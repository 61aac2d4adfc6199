// Package generate implements the autoregressive text generation loop:
// prompt formatting, tokenization, prefill/decode against a
// session.Session, logits processing and sampling, and token streaming
// with stop-sequence and EOS handling.
package generate

import (
	"context"
	"fmt"
	"time"

	"github.com/example/go-onnx-infer/internal/errs"
	"github.com/example/go-onnx-infer/internal/logits"
	"github.com/example/go-onnx-infer/internal/session"
	"github.com/example/go-onnx-infer/internal/stream"
	"github.com/example/go-onnx-infer/internal/tokenizer"
)

// ChatTemplate formats a raw user message into the exact prompt text
// fed to the tokenizer.
type ChatTemplate func(message string) string

// TokenDecoder maps a single generated token id to its text fragment.
type TokenDecoder func(tokenID int64) string

// Listener receives each emitted text fragment as generation proceeds.
type Listener func(fragment string)

// Config configures one generation run.
type Config struct {
	Session          session.Session
	Tokenizer        tokenizer.Tokenizer
	Decoder          TokenDecoder
	ChatTemplate     ChatTemplate
	EOSIDs           []int64
	StopSequences    []string
	MaxNewTokens     int
	MaxInputTokens   int
	AppendEOSToInput bool
	Pipeline         []logits.Processor
	Sampler          logits.Sampler
	Listener         Listener
}

// Result summarizes a finished generation run.
type Result struct {
	Text      string
	Generated int
	Stopped   bool
	Elapsed   time.Duration
}

// RunMessage formats message through the optional chat template,
// tokenizes it, and drives the session through prefill and decode
// exactly as GenerationLoop specifies: the EOS check happens before
// any fragment is emitted for that step, so an EOS token never reaches
// the listener or the stream.
func RunMessage(ctx context.Context, message string, cfg Config) (Result, error) {
	if len(cfg.EOSIDs) == 0 {
		return Result{}, fmt.Errorf("%w: EOSIDs must be non-empty", errs.ErrInvalidArgument)
	}

	start := time.Now()

	formatted := message
	if cfg.ChatTemplate != nil {
		formatted = cfg.ChatTemplate(message)
	}

	var (
		enc tokenizer.Encoding
		err error
	)

	if cfg.MaxInputTokens > 0 {
		if maxEnc, ok := cfg.Tokenizer.(tokenizer.MaxLenEncoder); ok {
			enc, err = maxEnc.EncodeMax(formatted, cfg.MaxInputTokens)
		} else {
			enc, err = cfg.Tokenizer.Encode(formatted)
		}
	} else {
		enc, err = cfg.Tokenizer.Encode(formatted)
	}

	if err != nil {
		return Result{}, err
	}

	ids := enc.IDs

	if cfg.AppendEOSToInput && len(cfg.EOSIDs) > 0 {
		ids = append(ids, cfg.EOSIDs[0])
	}

	cfg.Session.ResetCache()

	curLogits, err := cfg.Session.Prefill(ctx, ids)
	if err != nil {
		return Result{}, err
	}

	eosSet := make(map[int64]bool, len(cfg.EOSIDs))
	for _, id := range cfg.EOSIDs {
		eosSet[id] = true
	}

	streamer := stream.NewTokenStreamer(cfg.StopSequences)

	generated := 0

	for i := 0; i < cfg.MaxNewTokens; i++ {
		processed := logits.Apply(curLogits, cfg.Pipeline...)
		tokenID := int64(cfg.Sampler.Sample(processed))

		if eosSet[tokenID] {
			break
		}

		fragment := cfg.Decoder(tokenID)
		emitted := streamer.Accept(fragment)
		generated++

		if cfg.Listener != nil && emitted != "" {
			cfg.Listener(emitted)
		}

		if streamer.IsStopped() {
			break
		}

		curLogits, err = cfg.Session.Decode(ctx, tokenID)
		if err != nil {
			return Result{}, err
		}
	}

	if !streamer.IsStopped() {
		remaining := streamer.Flush()
		if cfg.Listener != nil && remaining != "" {
			cfg.Listener(remaining)
		}
	}

	return Result{
		Text:      streamer.Text(),
		Generated: generated,
		Stopped:   streamer.IsStopped(),
		Elapsed:   time.Since(start),
	}, nil
}
