// Package tokenizer provides text tokenization for the inference core.
// Two concrete implementations are offered behind a shared interface:
// WordPiece (greedy longest-match subword, BERT-style) and byte-level
// BPE (GPT-2-style merge-rank-driven pair merging).
package tokenizer

// Encoding is the result of tokenizing one (or one pair of) input
// strings: three equal-length integer vectors ready to feed a model's
// input_ids / attention_mask / token_type_ids inputs.
type Encoding struct {
	IDs           []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
}

// Tokenizer encodes text into model input ids.
type Tokenizer interface {
	// Encode tokenizes a single string.
	Encode(text string) (Encoding, error)
}

// MaxLenEncoder is implemented by tokenizers that can truncate to a
// fixed length in the same pass as encoding, keeping the trailing
// special token (EOS or SEP) last. Both WordPiece and BPE implement
// it.
type MaxLenEncoder interface {
	EncodeMax(text string, maxLen int) (Encoding, error)
}
