package IO

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestBuildVocabRanksByFrequency(t *testing.T) {
	v, err := BuildVocab([]string{"CCO", "C=O", "OO"}, 50, false)
	if err != nil {
		t.Fatal(err)
	}
	// counts: C=3, O=4, '='=1 ; O first, then C, then '='
	want := []string{padToken, "O", "C", "="}
	if !reflect.DeepEqual(v.IDToToken, want) {
		t.Fatalf("IDToToken = %q, want %q", v.IDToToken, want)
	}
	if got := v.Encode("CO="); !reflect.DeepEqual(got, []int{2, 1, 3}) {
		t.Fatalf("Encode = %v", got)
	}
}

func TestBuildVocabTiesKeepFirstAppearance(t *testing.T) {
	v, err := BuildVocab([]string{"ba", "ab"}, 50, false)
	if err != nil {
		t.Fatal(err)
	}
	if v.IDToToken[1] != "b" || v.IDToToken[2] != "a" {
		t.Fatalf("tie order = %q", v.IDToToken)
	}
}

func TestVocabCapMapsToOOV(t *testing.T) {
	// size 3 emits ids 1 and 2 only
	v, err := BuildVocab([]string{"aaabbc"}, 3, false)
	if err != nil {
		t.Fatal(err)
	}
	got := v.Encode("abcz")
	want := []int{1, 2, 3, 3}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Encode = %v, want %v", got, want)
	}
	if v.OOV() != 3 || v.Classes() != 4 {
		t.Fatalf("OOV=%d Classes=%d", v.OOV(), v.Classes())
	}
	if s := v.Decode([]int{1, 3, 2, 0, 0}); s != "a"+Placeholder+"b" {
		t.Fatalf("Decode = %q", s)
	}
}

func TestPadTruncation(t *testing.T) {
	ids := []int{1, 2, 3, 4, 5}
	if got := Pad(ids, 3, "pre"); !reflect.DeepEqual(got, []int{3, 4, 5}) {
		t.Fatalf("pre = %v", got)
	}
	if got := Pad(ids, 3, "post"); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Fatalf("post = %v", got)
	}
	if got := Pad([]int{7}, 4, "pre"); !reflect.DeepEqual(got, []int{7, 0, 0, 0}) {
		t.Fatalf("padding = %v", got)
	}
	if got := Pad(nil, 2, "pre"); !reflect.DeepEqual(got, []int{0, 0}) {
		t.Fatalf("empty = %v", got)
	}
}

func TestLongInputIsTruncatedNotRejected(t *testing.T) {
	v, err := BuildVocab([]string{"CN"}, 50, false)
	if err != nil {
		t.Fatal(err)
	}
	seqs := v.TextsToSequences([]string{strings.Repeat("C", 200) + "N"}, 120, "post")
	if len(seqs[0]) != 120 {
		t.Fatalf("len = %d", len(seqs[0]))
	}
	for _, id := range seqs[0] {
		if id != v.Lookup("C") {
			t.Fatalf("post truncation kept %d", id)
		}
	}
}

func TestLowercaseOption(t *testing.T) {
	v, err := BuildVocab([]string{"Cl"}, 50, true)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := v.TokenToID["C"]; ok {
		t.Fatal("uppercase kept with lowercase on")
	}
	if got := v.Encode("CL"); got[0] != v.Lookup("c") || got[1] != v.Lookup("l") {
		t.Fatalf("Encode = %v", got)
	}
}

func TestBuildVocabErrors(t *testing.T) {
	if _, err := BuildVocab(nil, 50, false); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("nil lines: %v", err)
	}
}

func TestBuildVocabBlankLinesPadOnly(t *testing.T) {
	v, err := BuildVocab([]string{"", ""}, 50, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(v.IDToToken) != 1 || v.Classes() != 51 {
		t.Fatalf("IDToToken = %q, classes %d", v.IDToToken, v.Classes())
	}
	seqs := v.TextsToSequences([]string{"", ""}, 4, "pre")
	if !reflect.DeepEqual(seqs, [][]int{{0, 0, 0, 0}, {0, 0, 0, 0}}) {
		t.Fatalf("sequences = %v", seqs)
	}
	if got := v.Encode("C"); got[0] != v.OOV() {
		t.Fatalf("unseen char -> %v, want OOV", got)
	}
	if got := v.Decode([]int{0, 3, 50}); got != "??" {
		t.Fatalf("Decode = %q", got)
	}
}

func TestSmilesFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smiles.txt")
	if err := os.WriteFile(path, []byte("stale\ncontent\nhere\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	in := []string{"CCO", "", "c1ccccc1"}
	if err := SaveSmiles(path, in); err != nil {
		t.Fatal(err)
	}
	raw, _ := os.ReadFile(path)
	if string(raw) != "CCO\n\nc1ccccc1\n" {
		t.Fatalf("file not overwritten: %q", raw)
	}
	got, err := LoadSmiles(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Fatalf("LoadSmiles = %q", got)
	}
}

func TestLoadSmilesErrors(t *testing.T) {
	if _, err := LoadSmiles(filepath.Join(t.TempDir(), "missing.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file: %v", err)
	}
	empty := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSmiles(empty); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("empty file: %v", err)
	}
}

func TestVocabJSONRoundTrip(t *testing.T) {
	v, err := BuildVocab([]string{"CC(=O)O"}, 5, true)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "vocab.json")
	if err := ExportVocabJSON(path, v); err != nil {
		t.Fatal(err)
	}
	got, err := ImportVocabJSON(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, v) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, v)
	}
}
