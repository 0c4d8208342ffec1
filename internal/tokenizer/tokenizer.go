// Package tokenizer implements the byte-level BPE tokenizer used by the
// on-device receipt model, including its special-token table and chat prompt format.
package tokenizer

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/dlclark/regexp2"
)

var ErrEmptyVocabulary = errors.New("tokenizer: empty vocabulary")

// Tokenizer converts text to token IDs and back. It is safe for concurrent use.
type Tokenizer struct {
	vocab     map[string]int32
	inverse   map[int32]string
	ranks     map[pair]int
	special   *SpecialTable
	splitter  *regexp2.Regexp
	cache     sync.Map // word -> []string
	vocabSize int
}

// Load reads vocab.json (token -> id) and merges.txt (one "a b" merge per line, in rank order).
func Load(vocabPath, mergesPath string) (*Tokenizer, error) {
	raw, err := os.ReadFile(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	vocab := make(map[string]int32)
	if err := json.Unmarshal(raw, &vocab); err != nil {
		return nil, fmt.Errorf("parse vocab %s: %w", vocabPath, err)
	}

	merges, err := readMerges(mergesPath)
	if err != nil {
		return nil, err
	}

	t, err := New(vocab, merges)
	if err != nil {
		return nil, err
	}
	slog.Default().Info("tokenizer.loaded",
		"vocab", len(vocab),
		"merges", len(merges),
		"special", len(t.special.ids),
	)
	return t, nil
}

func readMerges(path string) ([][2]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open merges: %w", err)
	}
	defer f.Close()

	var merges [][2]string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#version") {
			continue
		}
		parts := strings.Split(line, " ")
		if len(parts) != 2 {
			return nil, fmt.Errorf("merges %s: malformed line %q", path, line)
		}
		merges = append(merges, [2]string{parts[0], parts[1]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read merges: %w", err)
	}
	return merges, nil
}

// New builds a tokenizer from an in-memory vocabulary and ordered merge list.
// Missing special tokens are not an error; their accessors return fallback IDs.
func New(vocab map[string]int32, merges [][2]string) (*Tokenizer, error) {
	if len(vocab) == 0 {
		return nil, ErrEmptyVocabulary
	}
	splitter, err := regexp2.Compile(pretokenizePattern, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("compile pretokenizer: %w", err)
	}

	t := &Tokenizer{
		vocab:    vocab,
		inverse:  make(map[int32]string, len(vocab)),
		ranks:    make(map[pair]int, len(merges)),
		special:  newSpecialTable(vocab),
		splitter: splitter,
	}
	var maxID int32 = -1
	for tok, id := range vocab {
		t.inverse[id] = tok
		if id > maxID {
			maxID = id
		}
	}
	t.vocabSize = int(maxID) + 1
	for i, m := range merges {
		p := pair{m[0], m[1]}
		if _, dup := t.ranks[p]; !dup {
			t.ranks[p] = i
		}
	}
	return t, nil
}

// Special exposes the special-token table.
func (t *Tokenizer) Special() *SpecialTable { return t.special }

// VocabSize is one past the largest token ID in the vocabulary.
func (t *Tokenizer) VocabSize() int { return t.vocabSize }

func (t *Tokenizer) EndOfTextID() int32 { return t.special.idOr(EndOfText, fallbackEndOfTextID) }
func (t *Tokenizer) TurnStartID() int32 { return t.special.idOr(TurnStart, fallbackTurnStartID) }
func (t *Tokenizer) TurnEndID() int32   { return t.special.idOr(TurnEnd, fallbackTurnEndID) }

// StopIDs returns the IDs that always end generation.
func (t *Tokenizer) StopIDs() []int32 {
	return []int32{t.EndOfTextID(), t.TurnEndID()}
}

// Encode tokenizes text. Special tokens known to the vocabulary are matched
// verbatim and emitted as single IDs; everything else goes through BPE.
// Pieces missing from the vocabulary are emitted per symbol, and symbols that
// are also missing are dropped.
func (t *Tokenizer) Encode(text string, addTurnStart, addTurnEnd bool) []int32 {
	ids := make([]int32, 0, len(text)/3+2)
	if addTurnStart {
		ids = append(ids, t.TurnStartID())
	}

	start := 0
	for i := 0; i < len(text); {
		name := t.special.matchAt(text[i:])
		if name == "" {
			i++
			continue
		}
		ids = t.encodeOrdinary(text[start:i], ids)
		ids = append(ids, t.special.ids[name])
		i += len(name)
		start = i
	}
	ids = t.encodeOrdinary(text[start:], ids)

	if addTurnEnd {
		ids = append(ids, t.TurnEndID())
	}
	return ids
}

func (t *Tokenizer) encodeOrdinary(text string, ids []int32) []int32 {
	if text == "" {
		return ids
	}
	m, err := t.splitter.FindStringMatch(text)
	for err == nil && m != nil {
		for _, sym := range t.bpe(encodeBytes(m.String())) {
			if id, ok := t.vocab[sym]; ok {
				ids = append(ids, id)
				continue
			}
			for _, r := range sym {
				if id, ok := t.vocab[string(r)]; ok {
					ids = append(ids, id)
				}
			}
		}
		m, err = t.splitter.FindNextMatch(m)
	}
	return ids
}

// Decode converts IDs back to text. Leading and trailing turn-boundary and
// end-of-text tokens are stripped first; unknown IDs are skipped.
func (t *Tokenizer) Decode(ids []int32) string {
	ids = t.trimBoundaries(ids)
	out := make([]byte, 0, len(ids)*3)
	for _, id := range ids {
		if name, ok := t.special.Name(id); ok {
			out = append(out, name...)
			continue
		}
		tok, ok := t.inverse[id]
		if !ok {
			continue
		}
		out = decodeSymbols(tok, out)
	}
	return string(out)
}

func (t *Tokenizer) isBoundary(id int32) bool {
	return id == t.TurnStartID() || id == t.TurnEndID() || id == t.EndOfTextID()
}

func (t *Tokenizer) trimBoundaries(ids []int32) []int32 {
	for len(ids) > 0 && t.isBoundary(ids[0]) {
		ids = ids[1:]
	}
	for len(ids) > 0 && t.isBoundary(ids[len(ids)-1]) {
		ids = ids[:len(ids)-1]
	}
	return ids
}
