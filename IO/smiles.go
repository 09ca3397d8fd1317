package IO

import (
	"bufio"
	"errors"
	"fmt"
	"os"
)

var ErrEmptyInput = errors.New("no SMILES strings in input")

// LoadSmiles reads one molecular string per line. Blank lines are kept as
// empty strings; they still become all-padding sequences downstream.
func LoadSmiles(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20) // 1MB max line
	var out []string
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyInput)
	}
	return out, nil
}

// SaveSmiles writes one string per line, truncating any existing file.
func SaveSmiles(path string, smiles []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, s := range smiles {
		if _, err := w.WriteString(s + "\n"); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
