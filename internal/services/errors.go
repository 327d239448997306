package services

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	KindUnsupportedMedia ErrorKind = "unsupported_media"
	KindAudioExtraction  ErrorKind = "audio_extraction"
	KindVideoDecode      ErrorKind = "video_decode"
	KindModelInference   ErrorKind = "model_inference"
)

// Error is a classified pipeline failure. Detail carries diagnostic text from
// the failing tool (ffmpeg stderr, serving error body) when available.
type Error struct {
	Kind      ErrorKind
	Operation string
	Detail    string
	Err       error
}

func (e *Error) Error() string {
	parts := make([]string, 0, 3)
	if op := strings.TrimSpace(e.Operation); op != "" {
		parts = append(parts, op)
	}
	if detail := strings.TrimSpace(e.Detail); detail != "" {
		parts = append(parts, detail)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if len(parts) == 0 {
		return string(e.Kind)
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind reports the classification string.
func (e *Error) ErrorKind() string { return string(e.Kind) }

// Wrap builds a classified error.
func Wrap(kind ErrorKind, operation, detail string, err error) error {
	return &Error{Kind: kind, Operation: operation, Detail: detail, Err: err}
}

// Errorf builds a classified error from a formatted detail message.
func Errorf(kind ErrorKind, operation, format string, args ...any) error {
	return &Error{Kind: kind, Operation: operation, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns the classification of the outermost classified error in
// err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind, true
	}
	return "", false
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind ErrorKind) bool {
	got, ok := KindOf(err)
	return ok && got == kind
}
