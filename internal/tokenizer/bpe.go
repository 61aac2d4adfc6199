package tokenizer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/example/go-onnx-infer/internal/errs"
)

// pretokenizePattern approximates GPT-2's regex pre-tokenizer: splits
// into the start/end-of-text sentinels, contractions, runs of letters,
// runs of digits, runs of other non-space symbols, and runs of
// whitespace, each kept as its own token to merge within.
var pretokenizePattern = regexp.MustCompile(`<\|startoftext\|>|<\|endoftext\|>|'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+`)

// whitespaceRunPattern collapses runs of whitespace to a single space
// during normalization, ahead of pre-tokenization.
var whitespaceRunPattern = regexp.MustCompile(`\s+`)

// endOfWordMarker is suffixed onto the last character of every
// pre-tokenized piece before merging, so merge ranks can distinguish a
// word-final symbol from the same symbol elsewhere.
const endOfWordMarker = "</w>"

type bpePair struct {
	a, b string
}

// BPE implements GPT-2-style byte-level byte-pair-encoding: text is
// mapped to a byte-unicode alphabet, pre-tokenized, and each piece is
// iteratively merged according to a learned merge-rank table.
type BPE struct {
	vocab      map[string]int64
	ranks      map[bpePair]int
	byteToRune map[byte]rune
	runeToByte map[rune]byte
	reverse    map[int64]string
	bosID      int64
	eosID      int64
	padID      int64
	hasBOS     bool
	hasEOS     bool
	cache      map[string][]string
}

// BPEOption configures optional special tokens at construction time.
type BPEOption func(*BPE)

// WithBOS sets the id prepended to every encoding.
func WithBOS(id int64) BPEOption {
	return func(b *BPE) {
		b.bosID = id
		b.hasBOS = true
	}
}

// WithEOS sets the id appended to every encoding.
func WithEOS(id int64) BPEOption {
	return func(b *BPE) {
		b.eosID = id
		b.hasEOS = true
	}
}

// WithPad sets the id used to pad encodings up to a fixed length.
func WithPad(id int64) BPEOption {
	return func(b *BPE) {
		b.padID = id
	}
}

// NewBPE loads a GPT-2-style vocab.json (token -> id) and merges.txt
// (one "a b" pair per line, ordered by merge priority, first line after
// any "#version" header).
func NewBPE(vocabPath, mergesPath string, opts ...BPEOption) (*BPE, error) {
	vocabBytes, err := os.ReadFile(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open vocab %q: %v", errs.ErrModelSource, vocabPath, err)
	}

	var raw map[string]int64
	if err := json.Unmarshal(vocabBytes, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse vocab %q: %v", errs.ErrModelSource, vocabPath, err)
	}

	f, err := os.Open(mergesPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open merges %q: %v", errs.ErrModelSource, mergesPath, err)
	}
	defer f.Close()

	ranks := make(map[bpePair]int)

	scanner := bufio.NewScanner(f)

	rank := 0

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			continue
		}

		ranks[bpePair{parts[0], parts[1]}] = rank
		rank++
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read merges %q: %v", errs.ErrModelSource, mergesPath, err)
	}

	enc, dec := byteToUnicode()

	reverse := make(map[int64]string, len(raw))
	for tok, id := range raw {
		reverse[id] = tok
	}

	b := &BPE{
		vocab:      raw,
		ranks:      ranks,
		byteToRune: enc,
		runeToByte: dec,
		reverse:    reverse,
		cache:      make(map[string][]string),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

// Encode byte-level-BPE-encodes text, prepending/appending any
// configured BOS/EOS id. The attention mask is all ones; callers that
// need fixed-length batches should pad separately with PadTo or use
// EncodeMax for a single truncating, EOS-preserving pass.
func (b *BPE) Encode(text string) (Encoding, error) {
	ids := b.encodeIDs(text)

	return Encoding{
		IDs:           ids,
		AttentionMask: ones(len(ids)),
		TokenTypeIDs:  zeros(len(ids)),
	}, nil
}

// EncodeMax byte-level-BPE-encodes text, truncates to maxLen keeping
// EOS last, and right-pads with the pad id (0 unless WithPad is given)
// and zero mask entries. Matching WordPiece.EncodeMax,
// this is the single entry point callers with a fixed sequence length
// should use instead of Encode+PadTo.
func (b *BPE) EncodeMax(text string, maxLen int) (Encoding, error) {
	ids := b.encodeIDs(text)

	return b.PadTo(Encoding{
		IDs:           ids,
		AttentionMask: ones(len(ids)),
		TokenTypeIDs:  zeros(len(ids)),
	}, maxLen), nil
}

// encodeIDs normalizes and pre-tokenizes text, BPE-merges each piece,
// and looks the resulting symbols up in the vocabulary. Final symbols
// absent from the vocabulary are silently dropped, matching the
// reference tokenizer. BOS/EOS ids are added if configured.
func (b *BPE) encodeIDs(text string) []int64 {
	var ids []int64

	if b.hasBOS {
		ids = append(ids, b.bosID)
	}

	for _, piece := range pretokenizePattern.FindAllString(normalizeBPEText(text), -1) {
		for _, tok := range b.bpeMerge(b.toByteAlphabet(piece)) {
			id, ok := b.vocab[tok]
			if !ok {
				continue
			}

			ids = append(ids, id)
		}
	}

	if b.hasEOS {
		ids = append(ids, b.eosID)
	}

	return ids
}

// normalizeBPEText lowercases, collapses whitespace runs to single
// spaces, and strips leading/trailing whitespace ahead of
// pre-tokenization.
func normalizeBPEText(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	return whitespaceRunPattern.ReplaceAllString(text, " ")
}

// PadTo right-pads (or truncates) an encoding to length, extending the
// attention mask with zeros for padded positions. Truncation keeps the
// configured EOS id as the last position rather than slicing it off.
func (b *BPE) PadTo(enc Encoding, length int) Encoding {
	if len(enc.IDs) >= length {
		ids := append([]int64{}, enc.IDs[:length]...)
		mask := enc.AttentionMask[:length]
		types := enc.TokenTypeIDs[:length]

		if b.hasEOS && length > 0 && ids[length-1] != b.eosID {
			ids[length-1] = b.eosID
		}

		return Encoding{IDs: ids, AttentionMask: mask, TokenTypeIDs: types}
	}

	pad := length - len(enc.IDs)

	ids := append(append([]int64{}, enc.IDs...), make([]int64, pad)...)
	mask := append(append([]int64{}, enc.AttentionMask...), make([]int64, pad)...)
	types := append(append([]int64{}, enc.TokenTypeIDs...), make([]int64, pad)...)

	for i := len(enc.IDs); i < length; i++ {
		ids[i] = b.padID
	}

	return Encoding{IDs: ids, AttentionMask: mask, TokenTypeIDs: types}
}

// Decode maps a single token id back to its text fragment by reversing
// the byte-unicode alphabet. Unknown ids decode to the empty string.
func (b *BPE) Decode(id int64) string {
	tok, ok := b.reverse[id]
	if !ok {
		return ""
	}

	tok = strings.TrimSuffix(tok, endOfWordMarker)

	out := make([]byte, 0, len(tok))

	for _, r := range tok {
		if by, ok := b.runeToByte[r]; ok {
			out = append(out, by)
		}
	}

	return string(out)
}

func (b *BPE) toByteAlphabet(s string) string {
	var sb strings.Builder

	for _, by := range []byte(s) {
		sb.WriteRune(b.byteToRune[by])
	}

	return sb.String()
}

// bpeMerge iteratively merges the adjacent symbol pair with the lowest
// merge rank until no mergeable pair remains, following the standard
// byte-pair-encoding algorithm.
func (b *BPE) bpeMerge(word string) []string {
	if cached, ok := b.cache[word]; ok {
		return cached
	}

	symbols := splitRunes(word)
	if len(symbols) == 0 {
		return symbols
	}

	symbols[len(symbols)-1] += endOfWordMarker

	for {
		bestRank := -1
		bestIdx := -1

		for i := 0; i+1 < len(symbols); i++ {
			if r, ok := b.ranks[bpePair{symbols[i], symbols[i+1]}]; ok {
				if bestRank == -1 || r < bestRank {
					bestRank = r
					bestIdx = i
				}
			}
		}

		if bestIdx == -1 {
			break
		}

		merged := symbols[bestIdx] + symbols[bestIdx+1]

		next := make([]string, 0, len(symbols)-1)
		next = append(next, symbols[:bestIdx]...)
		next = append(next, merged)
		next = append(next, symbols[bestIdx+2:]...)
		symbols = next
	}

	b.cache[word] = symbols

	return symbols
}

func splitRunes(s string) []string {
	runes := []rune(s)
	out := make([]string, len(runes))

	for i, r := range runes {
		out[i] = string(r)
	}

	return out
}
