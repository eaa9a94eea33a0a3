// Package train submits images for a new training run. The ledger records
// each accepted run as a block.
package train

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/user/pixledger/internal/types"
	"github.com/user/pixledger/pkg/backend"
)

// Job describes one training submission. Images are file paths.
type Job struct {
	ModelName string
	Epochs    int
	Images    []string
}

func (j Job) validate() error {
	switch {
	case j.ModelName == "":
		return &backend.ValidationError{Field: "model name", Reason: "required"}
	case j.Epochs < 1:
		return &backend.ValidationError{Field: "epochs", Reason: "must be at least 1"}
	case len(j.Images) == 0:
		return &backend.ValidationError{Field: "images", Reason: "at least one image is required"}
	}
	return nil
}

type Submitter struct {
	miner types.Miner
}

func New(miner types.Miner) *Submitter {
	return &Submitter{miner: miner}
}

// Submit reads every image then posts the job in one request.
func (s *Submitter) Submit(ctx context.Context, job Job) (*types.MineReceipt, error) {
	if err := job.validate(); err != nil {
		return nil, err
	}

	images := make([]types.NamedImage, 0, len(job.Images))
	for _, path := range job.Images {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read training image: %w", err)
		}
		if len(data) == 0 {
			return nil, &backend.ValidationError{Field: "images", Reason: path + " is empty"}
		}
		images = append(images, types.NamedImage{Name: filepath.Base(path), Data: data})
	}

	slog.Info("submitting training job", "model", job.ModelName, "epochs", job.Epochs, "images", len(images))
	receipt, err := s.miner.Mine(ctx, job.ModelName, job.Epochs, images)
	if err != nil {
		return nil, fmt.Errorf("submit training job: %w", err)
	}
	slog.Info("training job recorded", "block", receipt.Index, "hash", receipt.Hash)
	return receipt, nil
}
