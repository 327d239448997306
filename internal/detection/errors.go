package detection

import (
	"errors"
	"net/http"

	"deepscan/internal/media/audio"
	"deepscan/internal/scoring"
	"deepscan/internal/services"
)

// HTTPStatus maps a detection failure to a transport status code.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if services.IsKind(err, services.KindUnsupportedMedia) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// absenceReason reports whether a pipeline error may be turned into an
// absent confidence in dual mode. Only classified pipeline failures qualify;
// anything else, including cancellation, still fails the request.
func absenceReason(err error) (string, bool) {
	if errors.Is(err, scoring.ErrNoFrames) {
		return ReasonNoFrames, true
	}
	if errors.Is(err, ErrNoAudioStream) {
		return audio.ReasonNoAudioStream, true
	}
	kind, ok := services.KindOf(err)
	if !ok {
		return "", false
	}
	if kind == services.KindAudioExtraction {
		return audio.FailureReason(err), true
	}
	return string(kind), true
}
