package api

import (
	"time"

	"deepscan/internal/detection"
	"deepscan/internal/history"
)

// Meta carries request context that is not part of detection.Result.
type Meta struct {
	ID        string
	RequestID string
	Filename  string
}

// FromResult converts a detection result to its response body.
func FromResult(result detection.Result, meta Meta) DetectionResult {
	return DetectionResult{
		VideoConfidence:   result.Video.Confidence.Ptr(),
		AudioConfidence:   result.Audio.Confidence.Ptr(),
		IsFake:            result.IsFake,
		ID:                meta.ID,
		RequestID:         meta.RequestID,
		Filename:          meta.Filename,
		MIMEType:          result.MIME,
		Mode:              string(result.Mode),
		VideoAbsentReason: result.Video.Reason,
		AudioAbsentReason: result.Audio.Reason,
		ProcessingTimeMS:  result.ProcessingTime.Milliseconds(),
	}
}

// RecordFromResult builds the history record persisted for a detection.
func RecordFromResult(result detection.Result, meta Meta, sha256, archiveLocation string) *history.Record {
	return &history.Record{
		ID:              meta.ID,
		RequestID:       meta.RequestID,
		Filename:        meta.Filename,
		MIME:            result.MIME,
		Mode:            string(result.Mode),
		VideoConfidence: result.Video.Confidence.Ptr(),
		AudioConfidence: result.Audio.Confidence.Ptr(),
		VideoReason:     result.Video.Reason,
		AudioReason:     result.Audio.Reason,
		IsFake:          result.IsFake,
		ProcessingMS:    result.ProcessingTime.Milliseconds(),
		SHA256:          sha256,
		ArchiveLocation: archiveLocation,
	}
}

// FromRecord converts a stored record to its API representation.
func FromRecord(rec history.Record) HistoryRecord {
	dto := HistoryRecord{
		ID:                rec.ID,
		RequestID:         rec.RequestID,
		Filename:          rec.Filename,
		MIMEType:          rec.MIME,
		Mode:              rec.Mode,
		VideoConfidence:   rec.VideoConfidence,
		AudioConfidence:   rec.AudioConfidence,
		VideoAbsentReason: rec.VideoReason,
		AudioAbsentReason: rec.AudioReason,
		IsFake:            rec.IsFake,
		ProcessingTimeMS:  rec.ProcessingMS,
		SHA256:            rec.SHA256,
		ArchiveLocation:   rec.ArchiveLocation,
	}
	if !rec.CreatedAt.IsZero() {
		dto.CreatedAt = rec.CreatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromRecords converts a slice of stored records.
func FromRecords(records []history.Record) []HistoryRecord {
	out := make([]HistoryRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, FromRecord(rec))
	}
	return out
}

// ParseTime parses a timestamp produced by this package.
func ParseTime(value string) (time.Time, error) {
	return time.Parse(dateTimeFormat, value)
}
