package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/QubitExplorer/AI-Models/IO"
	"github.com/QubitExplorer/AI-Models/history"
	"github.com/QubitExplorer/AI-Models/optimizations"
	"github.com/QubitExplorer/AI-Models/params"
	"github.com/QubitExplorer/AI-Models/vae"
)

var (
	configPath  string
	inputPath   string
	outputPath  string
	savePath    string
	loadPath    string
	vocabPath   string
	historyPath string

	epochsFlag  int
	batchFlag   int
	samplesFlag int
	workersFlag int
	seedFlag    uint64

	generateOnly bool
	debugFlag    bool
)

func init() {
	flag.StringVar(&configPath, "config", "", "YAML file overriding the default hyperparameters")
	flag.StringVar(&inputPath, "input", "", "training SMILES, one per line")
	flag.StringVar(&outputPath, "output", "", "where generated SMILES are written (overwritten)")
	flag.StringVar(&savePath, "save", "", "write a gob checkpoint here after training")
	flag.StringVar(&loadPath, "load", "", "start from (or generate with) this checkpoint")
	flag.StringVar(&vocabPath, "vocab", "", "vocabulary JSON (defaults to the checkpoint path with .vocab.json)")
	flag.StringVar(&historyPath, "history", "", "record the run in this SQLite database")

	flag.IntVar(&epochsFlag, "epochs", 0, "passes over the training data")
	flag.IntVar(&batchFlag, "batch", 0, "mini-batch size")
	flag.IntVar(&samplesFlag, "samples", 0, "strings to generate")
	flag.IntVar(&workersFlag, "workers", 0, "goroutines computing per-sample gradients")
	flag.Uint64Var(&seedFlag, "seed", 0, "random seed")

	flag.BoolVar(&generateOnly, "generate-only", false, "skip training; needs -load")
	flag.BoolVar(&debugFlag, "debug", false, "print step losses and clipping")
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig layers defaults, the optional YAML file and explicitly set flags.
func loadConfig() (params.TrainingConfig, error) {
	cfg := params.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = params.LoadConfig(configPath); err != nil {
			return cfg, err
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.InputPath = inputPath
		case "output":
			cfg.OutputPath = outputPath
		case "epochs":
			cfg.Epochs = epochsFlag
		case "batch":
			cfg.BatchSize = batchFlag
		case "samples":
			cfg.NumSamples = samplesFlag
		case "workers":
			cfg.Workers = workersFlag
		case "seed":
			cfg.Seed = seedFlag
		case "debug":
			cfg.Debug = debugFlag
		}
	})
	return cfg, cfg.Validate()
}

// vocabFileFor picks the vocabulary file that travels with a checkpoint.
func vocabFileFor(checkpoint string) string {
	if vocabPath != "" {
		return vocabPath
	}
	return strings.TrimSuffix(checkpoint, filepath.Ext(checkpoint)) + ".vocab.json"
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	src := rand.NewPCG(cfg.Seed, cfg.Seed)

	if generateOnly {
		return runGenerateOnly(cfg, src)
	}

	t1 := time.Now()
	lines, err := IO.LoadSmiles(cfg.InputPath)
	if err != nil {
		return err
	}
	var (
		model *vae.VAE
		opt   *optimizations.Adam
		vocab *IO.Vocabulary
	)
	if loadPath != "" {
		// the restored weights are only meaningful with the ids they were trained on
		if model, opt, vocab, err = restore(cfg); err != nil {
			return err
		}
		fmt.Printf("Resumed from %s (adam step %d).\n", loadPath, adamStep(opt))
	} else {
		if vocab, err = IO.BuildVocab(lines, cfg.VocabSize, cfg.Lowercase); err != nil {
			return err
		}
		if model, err = vae.New(cfg, src); err != nil {
			return err
		}
	}
	seqs := vocab.TextsToSequences(lines, cfg.MaxLength, cfg.Truncating)
	fmt.Printf("Loaded %d training sequences (%d distinct characters, %d classes).\n",
		len(seqs), len(vocab.IDToToken)-1, vocab.Classes())

	var ledger *history.Ledger
	var runID int64
	if historyPath != "" {
		if ledger, err = history.Open(historyPath); err != nil {
			return err
		}
		defer ledger.Close()
		if runID, err = ledger.StartRun(cfg, len(seqs)); err != nil {
			return err
		}
	}

	logPath := filepath.Join(filepath.Dir(cfg.OutputPath), "training_log.csv")
	tr, err := trainVAE(model, opt, seqs, src, ledger, runID, logPath)
	if err != nil {
		if ledger != nil {
			_ = ledger.FinishRun(runID, "failed")
		}
		return err
	}
	fmt.Printf("\nTime taken to train: %s\n", time.Since(t1))

	if savePath != "" {
		if err := vae.Save(savePath, model, tr.Opt); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}
		if err := IO.ExportVocabJSON(vocabFileFor(savePath), vocab); err != nil {
			return fmt.Errorf("save vocabulary: %w", err)
		}
		fmt.Printf("Saved model to %s\n", savePath)
	}

	samples, err := generateSmiles(model.Decoder, vocab, cfg, src)
	if err != nil {
		return err
	}
	if err := IO.SaveSmiles(cfg.OutputPath, samples); err != nil {
		return err
	}
	fmt.Println("File Saved")

	if ledger != nil {
		if err := ledger.RecordSamples(runID, samples); err != nil {
			return err
		}
		return ledger.FinishRun(runID, "done")
	}
	return nil
}

func adamStep(opt *optimizations.Adam) int {
	if opt == nil {
		return 0
	}
	return opt.T
}
