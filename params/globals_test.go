package params

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigMatchesReference(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxLength != 120 || cfg.VocabSize != 50 || cfg.LatentDim != 50 {
		t.Fatalf("unexpected shape defaults: %+v", cfg)
	}
	if cfg.EmbedDim != 64 || cfg.HiddenSize != 64 {
		t.Fatalf("unexpected widths: embed=%d hidden=%d", cfg.EmbedDim, cfg.HiddenSize)
	}
	if cfg.LearningRate != 0.001 || cfg.Epochs != 1 || cfg.BatchSize != 32 {
		t.Fatalf("unexpected optimizer defaults: %+v", cfg)
	}
	if cfg.NumSamples != 10000 || cfg.Seed != 42 {
		t.Fatalf("unexpected generation defaults: samples=%d seed=%d", cfg.NumSamples, cfg.Seed)
	}
	if cfg.OutputClasses() != 51 {
		t.Fatalf("OutputClasses = %d, want 51", cfg.OutputClasses())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadConfigOverlaysYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vae.yaml")
	body := "max_length: 40\nlatent_dim: 8\nepochs: 3\ntruncating: post\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MaxLength != 40 || cfg.LatentDim != 8 || cfg.Epochs != 3 || cfg.Truncating != "post" {
		t.Fatalf("overlay not applied: %+v", cfg)
	}
	// untouched keys keep their defaults
	if cfg.VocabSize != 50 || cfg.BatchSize != 32 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := DefaultConfig()
	cfg.Epochs = 7
	cfg.MaskPadding = true
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Epochs != 7 || !got.MaskPadding {
		t.Fatalf("round trip lost values: %+v", got)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*TrainingConfig){
		"zero length":     func(c *TrainingConfig) { c.MaxLength = 0 },
		"negative epochs": func(c *TrainingConfig) { c.Epochs = -1 },
		"tiny vocab":      func(c *TrainingConfig) { c.VocabSize = 1 },
		"zero lr":         func(c *TrainingConfig) { c.LearningRate = 0 },
		"bad truncating":  func(c *TrainingConfig) { c.Truncating = "middle" },
		"negative sample": func(c *TrainingConfig) { c.NumSamples = -5 },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: Validate() = %v, want ErrInvalidConfig", name, err)
		}
	}
}
