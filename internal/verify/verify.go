// Package verify asks the platform whether an image was used in training and
// which model produced it.
package verify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/user/pixledger/internal/types"
	"github.com/user/pixledger/pkg/backend"
)

const (
	TrainedMessage    = "Image is Trained"
	NotTrainedMessage = "Image is Not Trained"
	NoMatchMessage    = "No matches found for this image."
)

type Client struct {
	checker types.ImageChecker
}

func New(checker types.ImageChecker) *Client {
	return &Client{checker: checker}
}

// Check submits image. A result with Trained false and no matches is a
// normal outcome, not an error.
func (c *Client) Check(ctx context.Context, image []byte, filename string) (*types.CheckResult, error) {
	if len(image) == 0 {
		return nil, &backend.ValidationError{Field: "image", Reason: "file is empty"}
	}
	result, err := c.checker.CheckImage(ctx, image, filename)
	if err != nil {
		return nil, fmt.Errorf("check image: %w", err)
	}
	slog.Debug("image checked", "file", filename, "trained", result.Trained, "matches", len(result.Matches))
	return result, nil
}

// Extract resolves image to the model that generated it.
func (c *Client) Extract(ctx context.Context, image []byte, filename string) (types.ModelRef, error) {
	if len(image) == 0 {
		return types.ModelRef{}, &backend.ValidationError{Field: "image", Reason: "file is empty"}
	}
	path, err := c.checker.ExtractBlockHash(ctx, image, filename)
	if err != nil {
		return types.ModelRef{}, fmt.Errorf("extract model reference: %w", err)
	}
	return ParseBlockHash(path)
}

// ParseBlockHash splits a "/owner/name" path. Empty segments are dropped and
// exactly two must remain.
func ParseBlockHash(path string) (types.ModelRef, error) {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) != 2 {
		return types.ModelRef{}, &backend.ValidationError{
			Field:  "model reference",
			Reason: fmt.Sprintf("%q does not name an owner and a model", path),
		}
	}
	return types.ModelRef{Owner: segments[0], Name: segments[1]}, nil
}

// Describe writes the outcome of a check: the headline, then either the
// matching blocks or the no-match notice.
func Describe(w io.Writer, result *types.CheckResult) error {
	if !result.Trained {
		_, err := fmt.Fprintf(w, "%s\n%s\n", NotTrainedMessage, NoMatchMessage)
		return err
	}
	if _, err := fmt.Fprintln(w, TrainedMessage); err != nil {
		return err
	}
	if len(result.Matches) > 0 {
		fmt.Fprintln(w, "Matches found:")
	}
	for _, m := range result.Matches {
		if _, err := fmt.Fprintf(w, "  block %d  %s\n", m.BlockIndex, m.Timestamp.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return nil
}
