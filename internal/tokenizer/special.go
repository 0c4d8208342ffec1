package tokenizer

import "sort"

// Special token names recognized in the vocabulary.
const (
	EndOfText  = "<|endoftext|>"
	TurnStart  = "<|im_start|>"
	TurnEnd    = "<|im_end|>"
	RepoName   = "<repo_name>"
	RepoNameV2 = "<reponame>"
)

// Fallback IDs used when a boundary token is missing from the vocabulary.
const (
	fallbackEndOfTextID int32 = 0
	fallbackTurnStartID int32 = 1
	fallbackTurnEndID   int32 = 2
)

var specialNames = []string{EndOfText, TurnStart, TurnEnd, RepoName, RepoNameV2}

// SpecialTable maps special token names to IDs. It is built once and never mutated.
type SpecialTable struct {
	ids     map[string]int32
	byID    map[int32]string
	ordered []string // longest first, for matching inside raw text
}

func newSpecialTable(vocab map[string]int32) *SpecialTable {
	t := &SpecialTable{
		ids:  make(map[string]int32, len(specialNames)),
		byID: make(map[int32]string, len(specialNames)),
	}
	for _, name := range specialNames {
		id, ok := vocab[name]
		if !ok {
			continue
		}
		t.ids[name] = id
		t.byID[id] = name
		t.ordered = append(t.ordered, name)
	}
	sort.SliceStable(t.ordered, func(i, j int) bool { return len(t.ordered[i]) > len(t.ordered[j]) })
	return t
}

// Lookup returns the ID for name when the vocabulary defines it.
func (t *SpecialTable) Lookup(name string) (int32, bool) {
	id, ok := t.ids[name]
	return id, ok
}

// Name returns the special token name for id, if id is special.
func (t *SpecialTable) Name(id int32) (string, bool) {
	name, ok := t.byID[id]
	return name, ok
}

func (t *SpecialTable) idOr(name string, fallback int32) int32 {
	if id, ok := t.ids[name]; ok {
		return id
	}
	return fallback
}

// matchAt returns the special token that starts text, or "".
func (t *SpecialTable) matchAt(text string) string {
	for _, name := range t.ordered {
		if len(text) >= len(name) && text[:len(name)] == name {
			return name
		}
	}
	return ""
}
