package IO

import (
	"encoding/json"
	"fmt"
	"os"
)

type vocabJSON struct {
	TokenToID map[string]int `json:"TokenToID"`
	IDToToken []string       `json:"IDToToken"`
	Size      int            `json:"Size"`
	Lowercase bool           `json:"Lowercase"`
}

// ExportVocabJSON writes the vocabulary so generation can run without the training file.
func ExportVocabJSON(path string, v *Vocabulary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(vocabJSON{
		TokenToID: v.TokenToID,
		IDToToken: v.IDToToken,
		Size:      v.Size,
		Lowercase: v.Lowercase,
	})
}

// ImportVocabJSON loads a vocabulary written by ExportVocabJSON.
func ImportVocabJSON(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var data vocabJSON
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(data.IDToToken) == 0 || data.IDToToken[PadID] != padToken {
		return nil, fmt.Errorf("%s: %w", path, ErrVocabEmpty)
	}
	if data.TokenToID == nil {
		data.TokenToID = make(map[string]int, len(data.IDToToken))
		for i, t := range data.IDToToken {
			data.TokenToID[t] = i
		}
	}
	return &Vocabulary{
		TokenToID: data.TokenToID,
		IDToToken: data.IDToToken,
		Size:      data.Size,
		Lowercase: data.Lowercase,
	}, nil
}
