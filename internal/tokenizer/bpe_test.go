package tokenizer

import "testing"

// buildTestBPE constructs a tiny in-memory BPE instance without
// touching the filesystem, mirroring what NewBPE assembles from
// vocab.json/merges.txt.
func buildTestBPE(t *testing.T) *BPE {
	t.Helper()

	enc, dec := byteToUnicode()

	lo := string(enc['l'])
	oo := string(enc['o'])
	ww := string(enc['w'])

	vocab := map[string]int64{
		lo:           0,
		oo:           1,
		ww:           2,
		lo + oo:      3,
		ww + lo:      4,
		lo + oo + oo: 5,
	}

	ranks := map[bpePair]int{
		{lo, oo}: 0,
		{ww, lo}: 1,
	}

	reverse := make(map[int64]string, len(vocab))
	for tok, id := range vocab {
		reverse[id] = tok
	}

	return &BPE{
		vocab:      vocab,
		ranks:      ranks,
		byteToRune: enc,
		runeToByte: dec,
		reverse:    reverse,
		cache:      make(map[string][]string),
	}
}

func TestBPE_mergesLowestRankPairFirst(t *testing.T) {
	b := buildTestBPE(t)

	enc, _ := byteToUnicode()
	word := string(enc['l']) + string(enc['o']) + string(enc['o'])

	got := b.bpeMerge(word)
	want := []string{string(enc['l']) + string(enc['o']), string(enc['o']) + endOfWordMarker}

	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("bpeMerge(%q) = %v, want %v", word, got, want)
	}
}

func TestBPE_noMergeablePairReturnsSymbols(t *testing.T) {
	b := buildTestBPE(t)

	enc, _ := byteToUnicode()
	word := string(enc['w']) + string(enc['o'])

	got := b.bpeMerge(word)
	if len(got) != 2 {
		t.Fatalf("bpeMerge(%q) = %v, want 2 unmerged symbols", word, got)
	}
}

func TestBPE_encodeAddsBOSAndEOS(t *testing.T) {
	b := buildTestBPE(t)
	WithBOS(100)(b)
	WithEOS(200)(b)

	enc, err := b.Encode("lo")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if len(enc.IDs) < 2 || enc.IDs[0] != 100 || enc.IDs[len(enc.IDs)-1] != 200 {
		t.Fatalf("IDs = %v, want to start with 100 and end with 200", enc.IDs)
	}
}

func TestBPE_padTo_extendsAttentionMaskWithZeros(t *testing.T) {
	b := buildTestBPE(t)
	WithPad(999)(b)

	enc := Encoding{IDs: []int64{1, 2}, AttentionMask: []int64{1, 1}, TokenTypeIDs: []int64{0, 0}}
	padded := b.PadTo(enc, 5)

	if len(padded.IDs) != 5 {
		t.Fatalf("len(IDs) = %d, want 5", len(padded.IDs))
	}

	for i := 2; i < 5; i++ {
		if padded.IDs[i] != 999 || padded.AttentionMask[i] != 0 {
			t.Fatalf("padding position %d = (%d, mask %d), want (999, 0)", i, padded.IDs[i], padded.AttentionMask[i])
		}
	}
}

func TestBPE_padTo_truncatesOverLength(t *testing.T) {
	b := buildTestBPE(t)

	enc := Encoding{IDs: []int64{1, 2, 3}, AttentionMask: []int64{1, 1, 1}, TokenTypeIDs: []int64{0, 0, 0}}
	truncated := b.PadTo(enc, 2)

	if len(truncated.IDs) != 2 {
		t.Fatalf("len(IDs) = %d, want 2", len(truncated.IDs))
	}
}

func TestBPE_decode_roundTripsVocabToken(t *testing.T) {
	b := buildTestBPE(t)

	got := b.Decode(3) // "lo"
	if got != "lo" {
		t.Fatalf("Decode(3) = %q, want %q", got, "lo")
	}
}

func TestBPE_decode_unknownIDIsEmpty(t *testing.T) {
	b := buildTestBPE(t)

	if got := b.Decode(999); got != "" {
		t.Fatalf("Decode(999) = %q, want empty", got)
	}
}

func TestByteToUnicode_isBijective(t *testing.T) {
	encMap, decMap := byteToUnicode()
	if len(encMap) != 256 {
		t.Fatalf("len(encode) = %d, want 256", len(encMap))
	}

	for b, r := range encMap {
		if decMap[r] != b {
			t.Fatalf("round trip failed for byte %d -> rune %d -> byte %d", b, r, decMap[r])
		}
	}
}
