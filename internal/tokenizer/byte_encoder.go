package tokenizer

// byteToUnicode builds GPT-2's reversible byte <-> unicode mapping: the
// printable Latin-1 range maps to itself, every other byte value maps
// to a private codepoint starting at 256, so that arbitrary binary text
// survives a round trip through ordinary Go strings without ever
// producing control characters or invalid UTF-8.
func byteToUnicode() (encode map[byte]rune, decode map[rune]byte) {
	var bs []int

	for _, r := range [][2]int{{'!', '~'}, {0xA1, 0xAC}, {0xAE, 0xFF}} {
		for b := r[0]; b <= r[1]; b++ {
			bs = append(bs, b)
		}
	}

	present := make(map[int]bool, len(bs))
	for _, b := range bs {
		present[b] = true
	}

	encode = make(map[byte]rune, 256)
	decode = make(map[rune]byte, 256)

	n := 0

	for b := range 256 {
		var r rune
		if present[b] {
			r = rune(b)
		} else {
			r = rune(256 + n)
			n++
		}

		encode[byte(b)] = r
		decode[r] = byte(b)
	}

	return encode, decode
}
