package detection

import "time"

// Modality is an independent evidence channel.
type Modality string

const (
	ModalityVideo Modality = "video"
	ModalityAudio Modality = "audio"
)

// Mode records which entry point produced a result.
type Mode string

const (
	ModeAuto  Mode = "auto"
	ModeVideo Mode = "video"
	ModeAudio Mode = "audio"
	ModeDual  Mode = "dual"
)

// Absence reasons for modalities that carry no confidence.
const (
	ReasonNotRequested = "not_requested"
	ReasonNoFrames     = "no_frames"
)

// Confidence is an optional fake probability.
type Confidence struct {
	Value   float64
	Present bool
}

// Some returns a present confidence.
func Some(value float64) Confidence { return Confidence{Value: value, Present: true} }

// Ptr returns nil for an absent confidence.
func (c Confidence) Ptr() *float64 {
	if !c.Present {
		return nil
	}
	v := c.Value
	return &v
}

// Exceeds reports whether the confidence is present and strictly above threshold.
func (c Confidence) Exceeds(threshold float64) bool {
	return c.Present && c.Value > threshold
}

// Outcome is what one modality worker produced: a confidence or the reason
// it has none.
type Outcome struct {
	Confidence Confidence
	Reason     string
}

func scored(value float64) Outcome { return Outcome{Confidence: Some(value)} }

func absent(reason string) Outcome { return Outcome{Reason: reason} }

// Thresholds holds the per-modality cutoffs fixed at startup.
type Thresholds struct {
	Video float64
	Audio float64
}

// Fuse derives the verdict. Each modality is judged on its own threshold;
// with neither present there is no evidence and the verdict is false.
func Fuse(video, audio Confidence, t Thresholds) bool {
	return video.Exceeds(t.Video) || audio.Exceeds(t.Audio)
}

// Result is the outcome of one detection request.
type Result struct {
	Video          Outcome
	Audio          Outcome
	IsFake         bool
	Mode           Mode
	MIME           string
	ProcessingTime time.Duration
}

// Degraded reports whether a pipeline that ran left its confidence absent.
func (r Result) Degraded() bool {
	return degraded(r.Video) || degraded(r.Audio)
}

func degraded(o Outcome) bool {
	return !o.Confidence.Present && o.Reason != "" && o.Reason != ReasonNotRequested
}
