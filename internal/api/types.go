package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// DetectionResult is the response body of the detect endpoints.
type DetectionResult struct {
	VideoConfidence   *float64 `json:"video_confidence"`
	AudioConfidence   *float64 `json:"audio_confidence"`
	IsFake            bool     `json:"is_fake"`
	ID                string   `json:"id,omitempty"`
	RequestID         string   `json:"request_id,omitempty"`
	Filename          string   `json:"filename,omitempty"`
	MIMEType          string   `json:"mime_type,omitempty"`
	Mode              string   `json:"mode,omitempty"`
	VideoAbsentReason string   `json:"video_absent_reason,omitempty"`
	AudioAbsentReason string   `json:"audio_absent_reason,omitempty"`
	ProcessingTimeMS  int64    `json:"processing_time_ms"`
	Archived          bool     `json:"archived,omitempty"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status string `json:"status"`
}

// HistoryRecord describes one stored detection.
type HistoryRecord struct {
	ID                string   `json:"id"`
	RequestID         string   `json:"request_id,omitempty"`
	Filename          string   `json:"filename"`
	MIMEType          string   `json:"mime_type,omitempty"`
	Mode              string   `json:"mode"`
	VideoConfidence   *float64 `json:"video_confidence"`
	AudioConfidence   *float64 `json:"audio_confidence"`
	VideoAbsentReason string   `json:"video_absent_reason,omitempty"`
	AudioAbsentReason string   `json:"audio_absent_reason,omitempty"`
	IsFake            bool     `json:"is_fake"`
	ProcessingTimeMS  int64    `json:"processing_time_ms"`
	SHA256            string   `json:"sha256,omitempty"`
	ArchiveLocation   string   `json:"archive_location,omitempty"`
	CreatedAt         string   `json:"created_at,omitempty"`
}

// HistoryListResponse wraps a page of history records.
type HistoryListResponse struct {
	Items []HistoryRecord `json:"items"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// ModelStatus reports whether one classifier endpoint is serving.
type ModelStatus struct {
	Name     string `json:"name"`
	Modality string `json:"modality"`
	Ready    bool   `json:"ready"`
	Detail   string `json:"detail,omitempty"`
}

// CheckStatus is a generic named readiness check.
type CheckStatus struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Thresholds echoes the configured per-modality cutoffs.
type Thresholds struct {
	Video float64 `json:"video"`
	Audio float64 `json:"audio"`
}

// HistoryStatus summarizes the history store.
type HistoryStatus struct {
	Enabled  bool   `json:"enabled"`
	Driver   string `json:"driver,omitempty"`
	Location string `json:"location,omitempty"`
	Total    int    `json:"total"`
	Fake     int    `json:"fake"`
	Error    string `json:"error,omitempty"`
}

// WorkspaceStatus counts upload workspaces still on disk.
type WorkspaceStatus struct {
	Active int   `json:"active"`
	Bytes  int64 `json:"bytes"`
}

// StatusResponse aggregates runtime readiness for /api/status.
type StatusResponse struct {
	Ready         bool               `json:"ready"`
	PID           int                `json:"pid"`
	Thresholds    Thresholds         `json:"thresholds"`
	Dependencies  []DependencyStatus `json:"dependencies"`
	Models        []ModelStatus      `json:"models"`
	Checks        []CheckStatus      `json:"checks"`
	History       HistoryStatus      `json:"history"`
	Archive       string             `json:"archive"`
	Notifications bool               `json:"notifications"`
	Workspaces    WorkspaceStatus    `json:"workspaces"`
}
