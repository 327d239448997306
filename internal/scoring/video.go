// Package scoring reduces classifier outputs to one fake probability per
// modality.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"deepscan/internal/inference"
	"deepscan/internal/logging"
	"deepscan/internal/media/frames"
	"deepscan/internal/services"
)

// ErrNoFrames is returned for an empty batch. It means "no video confidence
// available", never a probability.
var ErrNoFrames = errors.New("no frames to score")

// VideoScorer applies an ensemble of image classifiers to a frame batch.
type VideoScorer struct {
	models []inference.Classifier
	logger *slog.Logger
}

// NewVideoScorer constructs a scorer over the given ensemble.
func NewVideoScorer(models []inference.Classifier, logger *slog.Logger) *VideoScorer {
	return &VideoScorer{models: models, logger: logging.NewComponentLogger(logger, "video-scorer")}
}

// Score returns the mean per-frame fake probability in [0, 1].
func (s *VideoScorer) Score(ctx context.Context, batch frames.Batch) (float64, error) {
	if batch.Len() == 0 {
		return 0, ErrNoFrames
	}
	if len(s.models) == 0 {
		return 0, services.Errorf(services.KindModelInference, "video score", "no video classifiers configured")
	}
	input, err := frameTensor(batch)
	if err != nil {
		return 0, err
	}
	rescaled := NormalizePixels(input.Data)

	started := time.Now()
	outputs := make([]inference.Output, len(s.models))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, model := range s.models {
		group.Go(func() error {
			out, err := model.Predict(groupCtx, input)
			if err != nil {
				return services.Wrap(services.KindModelInference, "video classifier "+model.Name(), "", err)
			}
			if out.Rows != batch.Len() {
				return services.Wrap(services.KindModelInference, "video classifier "+model.Name(),
					fmt.Sprintf("returned %d rows for %d frames", out.Rows, batch.Len()), inference.ErrShapeMismatch)
			}
			outputs[i] = out
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return 0, err
	}

	merged, err := averageOutputs(outputs)
	if err != nil {
		return 0, services.Wrap(services.KindModelInference, "video ensemble", "", err)
	}
	score, err := reduceFrames(merged)
	if err != nil {
		return 0, services.Wrap(services.KindModelInference, "video ensemble", "", err)
	}

	logging.WithContext(ctx, s.logger).Debug("video scored",
		logging.Int("frames", batch.Len()),
		logging.Int("models", len(s.models)),
		logging.Bool("rescaled", rescaled),
		logging.Float64("confidence", score),
		logging.Duration("elapsed", time.Since(started)),
	)
	return score, nil
}

func frameTensor(batch frames.Batch) (inference.Tensor, error) {
	size := batch.FrameSize()
	input := inference.NewTensor(batch.Len(), batch.Height, batch.Width, 3)
	for i, frame := range batch.Frames {
		if len(frame) != size {
			return inference.Tensor{}, fmt.Errorf("frame %d: %w: %d bytes, want %d", i, inference.ErrShapeMismatch, len(frame), size)
		}
		dst := input.Data[i*size : (i+1)*size]
		for j, v := range frame {
			dst[j] = float32(v)
		}
	}
	return input, nil
}

// NormalizePixels divides every value by 255 when the observed maximum
// exceeds 1 and reports whether it did. The decision looks at the data, not
// the source type, so input already scaled to [0, 1] is left alone. A frame
// batch of 8-bit pixels that never exceeds 1 is also left alone.
func NormalizePixels(data []float32) bool {
	var peak float32
	for _, v := range data {
		if v > peak {
			peak = v
		}
	}
	if peak <= 1 {
		return false
	}
	for i := range data {
		data[i] /= 255
	}
	return true
}

func averageOutputs(outputs []inference.Output) (inference.Output, error) {
	first := outputs[0]
	if first.Cols <= 0 || len(first.Data) != first.Rows*first.Cols {
		return inference.Output{}, fmt.Errorf("%w: malformed output %dx%d with %d values", inference.ErrShapeMismatch, first.Rows, first.Cols, len(first.Data))
	}
	if len(outputs) == 1 {
		return first, nil
	}
	sum := make([]float64, len(first.Data))
	for i, out := range outputs {
		if out.Rows != first.Rows || out.Cols != first.Cols || len(out.Data) != len(first.Data) {
			return inference.Output{}, fmt.Errorf("%w: ensemble member %d returned %dx%d, member 0 returned %dx%d",
				inference.ErrShapeMismatch, i, out.Rows, out.Cols, first.Rows, first.Cols)
		}
		for j, v := range out.Data {
			sum[j] += v
		}
	}
	n := float64(len(outputs))
	for j := range sum {
		sum[j] /= n
	}
	return inference.Output{Rows: first.Rows, Cols: first.Cols, Data: sum}, nil
}

// reduceFrames takes the fake-class probability of each row and averages the
// rows. Two columns are a real/fake distribution and column 1 is used; one
// column is the probability itself; any other width is averaged.
func reduceFrames(out inference.Output) (float64, error) {
	if out.Rows <= 0 {
		return 0, ErrNoFrames
	}
	var total float64
	for r := range out.Rows {
		var p float64
		switch out.Cols {
		case 1:
			p = out.At(r, 0)
		case 2:
			p = out.At(r, 1)
		default:
			for c := range out.Cols {
				p += out.At(r, c)
			}
			p /= float64(out.Cols)
		}
		total += p
	}
	return probability(total / float64(out.Rows))
}

func probability(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("classifier produced non-finite value %v", v)
	}
	return math.Min(1, math.Max(0, v)), nil
}
