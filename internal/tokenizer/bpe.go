package tokenizer

import (
	"strings"
	"unicode/utf8"
)

// GPT-2 split pattern. The lookahead needs a backtracking engine, hence regexp2.
const pretokenizePattern = `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`

// byteEncoder maps every byte to a printable rune so that BPE works on strings
// without whitespace or control characters. byteDecoder is its inverse.
var byteEncoder, byteDecoder = buildByteTables()

func buildByteTables() ([256]rune, map[rune]byte) {
	var enc [256]rune
	dec := make(map[rune]byte, 256)
	printable := func(b int) bool {
		return (b >= '!' && b <= '~') || (b >= 0xA1 && b <= 0xAC) || (b >= 0xAE && b <= 0xFF)
	}
	n := 0
	for b := 0; b < 256; b++ {
		r := rune(b)
		if !printable(b) {
			r = rune(256 + n)
			n++
		}
		enc[b] = r
		dec[r] = byte(b)
	}
	return enc, dec
}

func encodeBytes(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) * 2)
	for i := 0; i < len(s); i++ {
		sb.WriteRune(byteEncoder[s[i]])
	}
	return sb.String()
}

func decodeSymbols(s string, out []byte) []byte {
	for _, r := range s {
		if b, ok := byteDecoder[r]; ok {
			out = append(out, b)
		}
	}
	return out
}

type pair struct{ a, b string }

// bpe applies merges in rank order to a single pre-tokenized word and returns its symbols.
func (t *Tokenizer) bpe(word string) []string {
	if cached, ok := t.cache.Load(word); ok {
		return cached.([]string)
	}

	symbols := make([]string, 0, utf8.RuneCountInString(word))
	for _, r := range word {
		symbols = append(symbols, string(r))
	}

	for len(symbols) > 1 {
		best := -1
		bestRank := int(^uint(0) >> 1)
		for i := 0; i < len(symbols)-1; i++ {
			if rank, ok := t.ranks[pair{symbols[i], symbols[i+1]}]; ok && rank < bestRank {
				best, bestRank = i, rank
			}
		}
		if best < 0 {
			break
		}
		a, b := symbols[best], symbols[best+1]
		merged := make([]string, 0, len(symbols)-1)
		for i := 0; i < len(symbols); i++ {
			if i < len(symbols)-1 && symbols[i] == a && symbols[i+1] == b {
				merged = append(merged, a+b)
				i++
				continue
			}
			merged = append(merged, symbols[i])
		}
		symbols = merged
	}

	t.cache.Store(word, symbols)
	return symbols
}

// ByteSymbol returns the printable symbol byte b is mapped to in vocabulary files.
func ByteSymbol(b byte) string { return string(byteEncoder[b]) }
