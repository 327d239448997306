package scoring

import (
	"context"
	"fmt"
	"log/slog"

	"deepscan/internal/features"
	"deepscan/internal/inference"
	"deepscan/internal/logging"
	"deepscan/internal/services"
)

// AudioScorer applies the audio classifier to one feature matrix.
type AudioScorer struct {
	model  inference.Classifier
	logger *slog.Logger
}

// NewAudioScorer constructs a scorer for model.
func NewAudioScorer(model inference.Classifier, logger *slog.Logger) *AudioScorer {
	return &AudioScorer{model: model, logger: logging.NewComponentLogger(logger, "audio-scorer")}
}

// Score adds batch and channel dimensions, giving a (1, steps, coeffs, 1)
// input, and returns the single probability the classifier emits.
func (s *AudioScorer) Score(ctx context.Context, m features.Matrix) (float64, error) {
	if s.model == nil {
		return 0, services.Errorf(services.KindModelInference, "audio score", "no audio classifier configured")
	}
	input := inference.Tensor{
		Shape: []int{1, m.Steps, m.Coeffs, 1},
		Data:  m.Data,
	}
	if err := input.Validate(); err != nil {
		return 0, services.Wrap(services.KindModelInference, "audio score", "", err)
	}
	op := "audio classifier " + s.model.Name()
	out, err := s.model.Predict(ctx, input)
	if err != nil {
		return 0, services.Wrap(services.KindModelInference, op, "", err)
	}
	if out.Rows != 1 || out.Cols != 1 || len(out.Data) != 1 {
		return 0, services.Wrap(services.KindModelInference, op,
			fmt.Sprintf("expected a single probability, got %dx%d", out.Rows, out.Cols), inference.ErrShapeMismatch)
	}
	score, err := probability(out.Data[0])
	if err != nil {
		return 0, services.Wrap(services.KindModelInference, op, "", err)
	}
	logging.WithContext(ctx, s.logger).Debug("audio scored", logging.Float64("confidence", score))
	return score, nil
}
