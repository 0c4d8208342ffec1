// Package tokenizertest builds small in-memory vocabularies for tests.
package tokenizertest

import (
	"testing"

	"github.com/joseph-ayodele/canteen-orders/internal/tokenizer"
)

// ByteOffset is the ID of byte 0 in ByteVocab; byte b has ID ByteOffset+b.
const ByteOffset = 3

// ByteVocab returns a vocabulary with <|endoftext|>=0, <|im_start|>=1,
// <|im_end|>=2 and one entry per byte symbol, so that no text is out of vocabulary.
func ByteVocab() map[string]int32 {
	vocab := map[string]int32{
		tokenizer.EndOfText: 0,
		tokenizer.TurnStart: 1,
		tokenizer.TurnEnd:   2,
	}
	for b := 0; b < 256; b++ {
		vocab[tokenizer.ByteSymbol(byte(b))] = int32(ByteOffset + b)
	}
	return vocab
}

// New returns a byte-level tokenizer plus optional merges; each merge gets the
// next free ID after the byte symbols.
func New(tb testing.TB, merges ...[2]string) *tokenizer.Tokenizer {
	tb.Helper()
	vocab := ByteVocab()
	next := int32(ByteOffset + 256)
	for _, m := range merges {
		vocab[m[0]+m[1]] = next
		next++
	}
	tok, err := tokenizer.New(vocab, merges)
	if err != nil {
		tb.Fatalf("tokenizertest: %v", err)
	}
	return tok
}

// ID returns the byte-level ID of b in ByteVocab.
func ID(b byte) int32 { return int32(ByteOffset) + int32(b) }
