package main

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/QubitExplorer/AI-Models/IO"
	"github.com/QubitExplorer/AI-Models/optimizations"
	"github.com/QubitExplorer/AI-Models/params"
	"github.com/QubitExplorer/AI-Models/vae"
)

// generateSmiles samples cfg.NumSamples strings, decoding BatchSize latents at a time.
func generateSmiles(dec *vae.Decoder, vocab *IO.Vocabulary, cfg params.TrainingConfig, src rand.Source) ([]string, error) {
	if vocab.Classes() != dec.Out.Outputs {
		return nil, fmt.Errorf("%w: vocabulary has %d classes, decoder predicts %d",
			vae.ErrShape, vocab.Classes(), dec.Out.Outputs)
	}
	gen := vae.NewGenerator(dec, vocab, cfg.BatchSize, src)
	fmt.Printf("Generating %d samples...\n", cfg.NumSamples)
	return gen.Generate(cfg.NumSamples)
}

// restore loads the -load checkpoint together with the vocabulary saved next
// to it. cfg may change training settings (the optimizer picks up its new
// learning rate and betas) but not layer shapes.
func restore(cfg params.TrainingConfig) (*vae.VAE, *optimizations.Adam, *IO.Vocabulary, error) {
	model, opt, err := vae.Load(loadPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := model.Reconfigure(cfg); err != nil {
		return nil, nil, nil, err
	}
	if opt != nil {
		opt.SetHyper(cfg.LearningRate, cfg.AdamBeta1, cfg.AdamBeta2, cfg.AdamEps)
	}
	vocab, err := IO.ImportVocabJSON(vocabFileFor(loadPath))
	if err != nil {
		return nil, nil, nil, err
	}
	if vocab.Classes() != model.Decoder.Out.Outputs {
		return nil, nil, nil, fmt.Errorf("%w: vocabulary has %d classes, checkpoint predicts %d",
			vae.ErrShape, vocab.Classes(), model.Decoder.Out.Outputs)
	}
	return model, opt, vocab, nil
}

// runGenerateOnly restores a checkpoint and its vocabulary and writes samples
// without touching any training data.
func runGenerateOnly(cfg params.TrainingConfig, src rand.Source) error {
	if loadPath == "" {
		return errors.New("-generate-only needs -load")
	}
	model, _, vocab, err := restore(cfg)
	if err != nil {
		return err
	}

	samples, err := generateSmiles(model.Decoder, vocab, cfg, src)
	if err != nil {
		return err
	}
	if err := IO.SaveSmiles(cfg.OutputPath, samples); err != nil {
		return err
	}
	fmt.Println("File Saved")
	return nil
}
