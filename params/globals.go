package params

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

type TrainingConfig struct {
	// Core VAE shape parameters
	MaxLength  int `yaml:"max_length"`  // L, sequence length after padding/truncation
	VocabSize  int `yaml:"vocab_size"`  // V, characters kept; V itself is the OOV slot
	LatentDim  int `yaml:"latent_dim"`  // D
	EmbedDim   int `yaml:"embed_dim"`   // token embedding width
	HiddenSize int `yaml:"hidden_size"` // LSTM units per direction

	// Optimization parameters
	LearningRate float64 `yaml:"learning_rate"`
	AdamBeta1    float64 `yaml:"adam_beta1"` // default 0.9
	AdamBeta2    float64 `yaml:"adam_beta2"` // default 0.999
	AdamEps      float64 `yaml:"adam_eps"`   // default 1e-7
	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batch_size"`
	Shuffle      bool    `yaml:"shuffle"`

	// Stability parameters
	GradClip    float64 `yaml:"grad_clip"`     // <=0 disables
	LogVarClamp float64 `yaml:"log_var_clamp"` // |z_log_var| bound before exp, <=0 disables
	MaskPadding bool    `yaml:"mask_padding"`  // drop pad positions from the reconstruction term

	// Tokenization
	Lowercase  bool   `yaml:"lowercase"`
	Truncating string `yaml:"truncating"` // "pre" keeps the tail, "post" keeps the head

	// Generation and IO
	NumSamples int    `yaml:"num_samples"`
	Seed       uint64 `yaml:"seed"`
	InputPath  string `yaml:"input_path"`
	OutputPath string `yaml:"output_path"`

	Workers    int  `yaml:"workers"` // goroutines computing per-sample gradients
	Debug      bool `yaml:"debug"`
	DebugEvery int  `yaml:"debug_every"` // print every N optimizer steps
}

// DefaultConfig returns the reference hyperparameters.
func DefaultConfig() TrainingConfig {
	return TrainingConfig{
		MaxLength:  120,
		VocabSize:  50,
		LatentDim:  50,
		EmbedDim:   64,
		HiddenSize: 64,

		LearningRate: 0.001,
		AdamBeta1:    0.9,
		AdamBeta2:    0.999,
		AdamEps:      1e-7,
		Epochs:       1,
		BatchSize:    32,
		Shuffle:      true,

		GradClip:    0,
		LogVarClamp: 20,
		MaskPadding: false,

		Lowercase:  false,
		Truncating: "pre",

		NumSamples: 10000,
		Seed:       42,
		InputPath:  "smiles_train.txt",
		OutputPath: "generated_smiles_v1.txt",

		Workers:    runtime.GOMAXPROCS(0),
		Debug:      false,
		DebugEvery: 100,
	}
}

// LoadConfig overlays the YAML file at path onto the defaults.
func LoadConfig(path string) (TrainingConfig, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// SaveConfig writes cfg as YAML, overwriting path.
func SaveConfig(path string, cfg TrainingConfig) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// OutputClasses is the width of the decoder's per-position distribution (V+1).
func (c TrainingConfig) OutputClasses() int {
	return c.VocabSize + 1
}

func (c TrainingConfig) Validate() error {
	positive := []struct {
		name string
		v    int
	}{
		{"max_length", c.MaxLength},
		{"vocab_size", c.VocabSize},
		{"latent_dim", c.LatentDim},
		{"embed_dim", c.EmbedDim},
		{"hidden_size", c.HiddenSize},
		{"epochs", c.Epochs},
		{"batch_size", c.BatchSize},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("%w: %s must be > 0, got %d", ErrInvalidConfig, p.name, p.v)
		}
	}
	if c.VocabSize < 2 {
		return fmt.Errorf("%w: vocab_size must leave room for at least one character", ErrInvalidConfig)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("%w: learning_rate must be > 0, got %g", ErrInvalidConfig, c.LearningRate)
	}
	if c.NumSamples < 0 {
		return fmt.Errorf("%w: num_samples must be >= 0, got %d", ErrInvalidConfig, c.NumSamples)
	}
	if c.Debug && c.DebugEvery <= 0 {
		return fmt.Errorf("%w: debug_every must be > 0 when debug is on, got %d", ErrInvalidConfig, c.DebugEvery)
	}
	if c.Truncating != "pre" && c.Truncating != "post" {
		return fmt.Errorf("%w: truncating must be \"pre\" or \"post\", got %q", ErrInvalidConfig, c.Truncating)
	}
	return nil
}
