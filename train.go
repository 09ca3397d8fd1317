package main

import (
	"encoding/csv"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"

	"github.com/QubitExplorer/AI-Models/history"
	"github.com/QubitExplorer/AI-Models/optimizations"
	"github.com/QubitExplorer/AI-Models/utils"
	"github.com/QubitExplorer/AI-Models/vae"
)

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

// trainVAE runs every epoch, printing a progress line and appending a row to
// the csv log (and the ledger when one is open) as each finishes.
func trainVAE(model *vae.VAE, opt *optimizations.Adam, seqs [][]int, src rand.Source,
	ledger *history.Ledger, runID int64, logPath string) (*vae.Trainer, error) {
	cfg := model.Config

	// Create or truncate the log file
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("create training log: %w", err)
	}
	defer logFile.Close()
	logWriter := csv.NewWriter(logFile)
	logWriter.Write([]string{"epoch", "loss", "reconstruction", "kl", "seconds"})
	defer logWriter.Flush()

	tr := vae.NewTrainer(model, opt, src)
	fmt.Printf("Train: sequences=%d batch=%d epochs=%d workers=%d\n",
		len(seqs), cfg.BatchSize, cfg.Epochs, cfg.Workers)

	hist, err := tr.Fit(seqs, func(st vae.EpochStats) error {
		fmt.Printf("Epoch %d - Loss: %.4f, Reconstruction: %.4f, KL: %.4f, Steps: %d, Time for epoch: %s\n",
			st.Epoch, st.Loss.Total, st.Loss.Reconstruction, st.Loss.KL, st.Steps, st.Duration)
		if cfg.Debug {
			fmt.Printf("After epoch %d: enc.mean norm=%.6g dec.out norm=%.6g\n",
				st.Epoch,
				utils.MatrixNorm(model.Encoder.Mean.Weights),
				utils.MatrixNorm(model.Decoder.Out.Weights),
			)
		}

		logWriter.Write([]string{
			strconv.Itoa(st.Epoch),
			formatFloat(st.Loss.Total),
			formatFloat(st.Loss.Reconstruction),
			formatFloat(st.Loss.KL),
			formatFloat(st.Duration.Seconds()),
		})
		logWriter.Flush()
		if err := logWriter.Error(); err != nil {
			return err
		}

		if ledger != nil {
			return ledger.RecordEpoch(runID, history.Epoch{
				Epoch:          st.Epoch,
				Loss:           st.Loss.Total,
				Reconstruction: st.Loss.Reconstruction,
				KL:             st.Loss.KL,
				Seconds:        st.Duration.Seconds(),
			})
		}
		return nil
	})
	if len(hist) > 1 {
		losses := make([]float64, len(hist))
		for i, st := range hist {
			losses[i] = st.Loss.Total
		}
		fmt.Println("\nLoss per epoch:")
		lossPlot(os.Stdout, losses)
	}
	return tr, err
}
