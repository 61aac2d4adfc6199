package tokenizer

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/example/go-onnx-infer/internal/errs"
)

// Special WordPiece tokens.
const (
	TokenCLS = "[CLS]"
	TokenSEP = "[SEP]"
	TokenUNK = "[UNK]"
)

// WordPiece implements greedy longest-match subword tokenization over a
// vocabulary ordered token -> id.
type WordPiece struct {
	vocab   map[string]int64
	reverse map[int64]string
	clsID   int64
	sepID   int64
	unkID   int64
	unkText string
}

// NewWordPiece loads a vocabulary file: one token per line, zero-based
// index is the token id. Falls back to id 0 for any special token
// absent from the vocab.
func NewWordPiece(vocabPath string) (*WordPiece, error) {
	f, err := os.Open(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open vocab %q: %v", errs.ErrModelSource, vocabPath, err)
	}
	defer f.Close()

	vocab := make(map[string]int64)

	var idx int64

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tok := scanner.Text()
		vocab[tok] = idx
		idx++
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read vocab %q: %v", errs.ErrModelSource, vocabPath, err)
	}

	return NewWordPieceFromVocab(vocab)
}

// NewWordPieceFromVocab builds a WordPiece tokenizer from an in-memory
// vocabulary, useful for tests and embedded vocab bytes.
func NewWordPieceFromVocab(vocab map[string]int64) (*WordPiece, error) {
	if len(vocab) == 0 {
		return nil, fmt.Errorf("%w: empty vocabulary", errs.ErrModelSource)
	}

	reverse := make(map[int64]string, len(vocab))
	for tok, id := range vocab {
		reverse[id] = tok
	}

	return &WordPiece{
		vocab:   vocab,
		reverse: reverse,
		clsID:   idOr(vocab, TokenCLS, 0),
		sepID:   idOr(vocab, TokenSEP, 0),
		unkID:   idOr(vocab, TokenUNK, 0),
		unkText: TokenUNK,
	}, nil
}

// Decode maps a single token id back to display text: continuation
// pieces ("##foo") lose their marker and attach directly to the prior
// fragment, other pieces get a leading space. Unknown ids decode to
// the empty string.
func (w *WordPiece) Decode(id int64) string {
	tok, ok := w.reverse[id]
	if !ok {
		return ""
	}

	if strings.HasPrefix(tok, "##") {
		return strings.TrimPrefix(tok, "##")
	}

	return " " + tok
}

func idOr(vocab map[string]int64, tok string, fallback int64) int64 {
	if id, ok := vocab[tok]; ok {
		return id
	}

	return fallback
}

// Encode tokenizes a single string: [CLS] tokens... [SEP], truncated to
// maxLen (last position is always [SEP]).
func (w *WordPiece) Encode(text string) (Encoding, error) {
	return w.EncodeMax(text, 512)
}

// EncodeMax tokenizes a single string with an explicit max length.
func (w *WordPiece) EncodeMax(text string, maxLen int) (Encoding, error) {
	ids := w.tokenizeToIDs(text)

	body := maxLen - 2
	if body < 0 {
		body = 0
	}

	if len(ids) > body {
		ids = ids[:body]
	}

	out := make([]int64, 0, len(ids)+2)
	out = append(out, w.clsID)
	out = append(out, ids...)
	out = append(out, w.sepID)

	return Encoding{
		IDs:           out,
		AttentionMask: ones(len(out)),
		TokenTypeIDs:  zeros(len(out)),
	}, nil
}

// EncodePair tokenizes a sentence pair as [CLS] A [SEP] B [SEP]. Token
// type is 0 through the first [SEP] inclusive, 1 afterward.
// Pair-length truncation removes from the longer side first.
func (w *WordPiece) EncodePair(textA, textB string, maxLen int) (Encoding, error) {
	idsA := w.tokenizeToIDs(textA)
	idsB := w.tokenizeToIDs(textB)

	budget := maxLen - 3
	if budget < 0 {
		budget = 0
	}

	for len(idsA)+len(idsB) > budget {
		if len(idsA) >= len(idsB) {
			idsA = idsA[:len(idsA)-1]
		} else {
			idsB = idsB[:len(idsB)-1]
		}
	}

	ids := make([]int64, 0, len(idsA)+len(idsB)+3)
	types := make([]int64, 0, len(idsA)+len(idsB)+3)

	ids = append(ids, w.clsID)
	types = append(types, 0)
	ids = append(ids, idsA...)
	types = append(types, zeros(len(idsA))...)
	ids = append(ids, w.sepID)
	types = append(types, 0)
	ids = append(ids, idsB...)
	types = append(types, ones64(len(idsB))...)
	ids = append(ids, w.sepID)
	types = append(types, 1)

	return Encoding{
		IDs:           ids,
		AttentionMask: ones(len(ids)),
		TokenTypeIDs:  types,
	}, nil
}

func (w *WordPiece) tokenizeToIDs(text string) []int64 {
	var out []int64

	for _, basic := range basicTokenize(text) {
		out = append(out, w.wordpieceTokenize(basic)...)
	}

	return out
}

// wordpieceTokenize greedily matches the longest vocabulary prefix from
// the left, shrinking by one rune at a time; continuation pieces after
// the first are prefixed with "##". Falls back to [UNK] for the whole
// word on any no-match.
func (w *WordPiece) wordpieceTokenize(word string) []int64 {
	runes := []rune(word)
	if len(runes) == 0 {
		return nil
	}

	var out []int64

	start := 0
	for start < len(runes) {
		end := len(runes)

		var matched string

		matchedID := int64(-1)

		for end > start {
			candidate := string(runes[start:end])
			if start > 0 {
				candidate = "##" + candidate
			}

			if id, ok := w.vocab[candidate]; ok {
				matched = candidate
				matchedID = id

				break
			}

			end--
		}

		if matchedID == -1 {
			return []int64{w.unkID}
		}

		out = append(out, matchedID)
		_ = matched
		start = end
	}

	return out
}

// basicTokenize lowercases, trims, and splits on whitespace while
// isolating Unicode punctuation as its own tokens.
func basicTokenize(text string) []string {
	text = strings.ToLower(strings.TrimSpace(text))

	var tokens []string

	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case isWordPiecePunct(r):
			flush()
			tokens = append(tokens, string(r))
		default:
			cur.WriteRune(r)
		}
	}

	flush()

	return tokens
}

// isWordPiecePunct covers the standard Unicode punctuation category
// bits (connector, dash, open/close, initial/final quote, other).
// Symbols (category S, e.g. '$' or '+') and CJK punctuation outside
// these categories are left as word characters (see the
// punctuation-category design note).
func isWordPiecePunct(r rune) bool {
	return unicode.IsPunct(r)
}

func ones(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = 1
	}

	return out
}

func ones64(n int) []int64 {
	return ones(n)
}

func zeros(n int) []int64 {
	return make([]int64, n)
}
