package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"deepscan/internal/config"
	"deepscan/internal/logging"
	"deepscan/internal/services/tfserving"
)

// ErrShapeMismatch reports a tensor or output whose dimensions do not agree.
var ErrShapeMismatch = errors.New("shape mismatch")

// Tensor is a dense float32 tensor stored row-major. Shape[0] is the batch size.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor allocates a zeroed tensor.
func NewTensor(shape ...int) Tensor {
	total := 1
	for _, dim := range shape {
		total *= dim
	}
	return Tensor{Shape: append([]int(nil), shape...), Data: make([]float32, total)}
}

// Batch returns the leading dimension.
func (t Tensor) Batch() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[0]
}

// Validate checks that Data holds exactly product(Shape) values.
func (t Tensor) Validate() error {
	if len(t.Shape) == 0 {
		return fmt.Errorf("%w: empty shape", ErrShapeMismatch)
	}
	total := 1
	for _, dim := range t.Shape {
		if dim <= 0 {
			return fmt.Errorf("%w: non-positive dimension in %v", ErrShapeMismatch, t.Shape)
		}
		total *= dim
	}
	if total != len(t.Data) {
		return fmt.Errorf("%w: shape %v needs %d values, have %d", ErrShapeMismatch, t.Shape, total, len(t.Data))
	}
	return nil
}

// Output is a Rows x Cols result matrix stored row-major.
type Output struct {
	Rows int
	Cols int
	Data []float64
}

// At returns the value at row r, column c.
func (o Output) At(r, c int) float64 {
	return o.Data[r*o.Cols+c]
}

// Classifier scores a batch. Implementations must be safe for concurrent use.
type Classifier interface {
	Name() string
	Predict(ctx context.Context, input Tensor) (Output, error)
}

// Models is the read-only set of classifiers shared by all requests.
type Models struct {
	Video []Classifier
	Audio Classifier
}

// Names lists the configured classifiers for status output.
func (m *Models) Names() (video []string, audio string) {
	for _, c := range m.Video {
		video = append(video, c.Name())
	}
	if m.Audio != nil {
		audio = m.Audio.Name()
	}
	return video, audio
}

// Load builds TensorFlow Serving backed classifiers from configuration.
func Load(cfg *config.Config, logger *slog.Logger, opts ...tfserving.Option) (*Models, error) {
	if cfg == nil {
		return nil, errors.New("inference load: config required")
	}
	logger = logging.NewComponentLogger(logger, "inference")
	models := &Models{}
	for _, model := range cfg.Models.Video {
		models.Video = append(models.Video, newServed(model, cfg.Models.TimeoutSeconds, opts))
	}
	if len(models.Video) == 0 {
		return nil, errors.New("inference load: no video classifiers configured")
	}
	if strings.TrimSpace(cfg.Models.Audio.Name) == "" {
		return nil, errors.New("inference load: no audio classifier configured")
	}
	models.Audio = newServed(cfg.Models.Audio, cfg.Models.TimeoutSeconds, opts)

	videoNames, audioName := models.Names()
	logger.Info("classifiers configured",
		logging.String("video", strings.Join(videoNames, ",")),
		logging.String("audio", audioName),
		logging.String(logging.FieldEventType, "models_configured"),
	)
	return models, nil
}

// served adapts a tfserving client to the Classifier interface.
type served struct {
	client *tfserving.Client
}

func newServed(model config.Model, timeoutSeconds int, opts []tfserving.Option) *served {
	return &served{client: tfserving.NewClient(tfserving.Config{
		BaseURL:        model.URL,
		Model:          model.Name,
		TimeoutSeconds: timeoutSeconds,
	}, opts...)}
}

func (s *served) Name() string { return s.client.Model() }

func (s *served) Predict(ctx context.Context, input Tensor) (Output, error) {
	if err := input.Validate(); err != nil {
		return Output{}, err
	}
	pred, err := s.client.Predict(ctx, input.Shape, input.Data)
	if err != nil {
		return Output{}, err
	}
	return Output{Rows: pred.Rows, Cols: pred.Cols, Data: pred.Values}, nil
}

// Status reports the serving state of a classifier when the backend exposes it.
func Status(ctx context.Context, c Classifier) (string, error) {
	s, ok := c.(*served)
	if !ok {
		return "in-process", nil
	}
	status, err := s.client.Status(ctx)
	if err != nil {
		return "", err
	}
	if !status.Available() {
		return "", fmt.Errorf("model %s version %s is %s", s.Name(), status.Version, strings.ToLower(status.State))
	}
	return "version " + status.Version, nil
}
