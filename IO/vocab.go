package IO

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrVocabEmpty = errors.New("vocabulary has no padding entry")

const (
	PadID       = 0
	padToken    = "<pad>"
	Placeholder = "?" // rendered for the out-of-vocabulary slot
)

// Vocabulary is a character-level token table built once from training data.
//
// Id 0 is padding. Characters are ranked by frequency starting at id 1; only
// ids below Size are emitted when encoding, every other character maps to the
// out-of-vocabulary id Size. A model over this vocabulary therefore predicts
// Size+1 classes.
type Vocabulary struct {
	TokenToID map[string]int
	IDToToken []string
	Size      int
	Lowercase bool
}

// BuildVocab ranks every character in lines by count (ties broken by first
// appearance) and caps emitted ids at size. Blank-only input gives a table
// holding just the padding entry; it still encodes every line to all pads.
func BuildVocab(lines []string, size int, lowercase bool) (*Vocabulary, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyInput
	}
	if size < 2 {
		return nil, fmt.Errorf("vocab size %d leaves no room for characters", size)
	}
	type kv struct {
		k     string
		v     int
		first int
	}
	counts := make(map[string]*kv)
	order := 0
	for _, line := range lines {
		if lowercase {
			line = strings.ToLower(line)
		}
		for _, r := range line {
			k := string(r)
			if e, ok := counts[k]; ok {
				e.v++
				continue
			}
			counts[k] = &kv{k: k, v: 1, first: order}
			order++
		}
	}
	arr := make([]*kv, 0, len(counts))
	for _, e := range counts {
		arr = append(arr, e)
	}
	sort.Slice(arr, func(i, j int) bool {
		if arr[i].v == arr[j].v {
			return arr[i].first < arr[j].first
		}
		return arr[i].v > arr[j].v
	})

	idToToken := make([]string, 0, len(arr)+1)
	idToToken = append(idToToken, padToken)
	for _, e := range arr {
		idToToken = append(idToToken, e.k)
	}
	tok2id := make(map[string]int, len(idToToken))
	for i, t := range idToToken {
		tok2id[t] = i
	}
	return &Vocabulary{TokenToID: tok2id, IDToToken: idToToken, Size: size, Lowercase: lowercase}, nil
}

// OOV is the id every unknown or rank-capped character maps to.
func (v *Vocabulary) OOV() int { return v.Size }

// Classes is the number of distinct ids a sequence can hold (Size+1).
func (v *Vocabulary) Classes() int { return v.Size + 1 }

// Lookup maps a single character to its id.
func (v *Vocabulary) Lookup(tok string) int {
	if id, ok := v.TokenToID[tok]; ok && id > PadID && id < v.Size {
		return id
	}
	return v.OOV()
}

// Encode converts text to unpadded ids.
func (v *Vocabulary) Encode(text string) []int {
	if v.Lowercase {
		text = strings.ToLower(text)
	}
	ids := make([]int, 0, len(text))
	for _, r := range text {
		ids = append(ids, v.Lookup(string(r)))
	}
	return ids
}

// Pad fits ids to exactly maxLen: zeros are appended at the end, and overlong
// input is cut from the front ("pre") or the back ("post").
func Pad(ids []int, maxLen int, truncating string) []int {
	out := make([]int, maxLen)
	if len(ids) > maxLen {
		if truncating == "post" {
			ids = ids[:maxLen]
		} else {
			ids = ids[len(ids)-maxLen:]
		}
	}
	copy(out, ids)
	return out
}

// TextsToSequences encodes and pads every line.
func (v *Vocabulary) TextsToSequences(texts []string, maxLen int, truncating string) [][]int {
	out := make([][]int, len(texts))
	for i, t := range texts {
		out[i] = Pad(v.Encode(t), maxLen, truncating)
	}
	return out
}

// Decode renders ids back to a string. Padding is dropped, the OOV slot
// becomes Placeholder.
func (v *Vocabulary) Decode(ids []int) string {
	var sb strings.Builder
	for _, id := range ids {
		switch {
		case id == PadID:
			continue
		case id >= v.Size || id < 0 || id >= len(v.IDToToken):
			sb.WriteString(Placeholder)
		default:
			sb.WriteString(v.IDToToken[id])
		}
	}
	return sb.String()
}

// SequencesToTexts decodes a batch.
func (v *Vocabulary) SequencesToTexts(seqs [][]int) []string {
	out := make([]string, len(seqs))
	for i, s := range seqs {
		out[i] = v.Decode(s)
	}
	return out
}
