package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// timeLayout is fixed width so created_at sorts lexically in both backends.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const recordColumns = "id, request_id, filename, mime, mode, video_confidence, audio_confidence, video_reason, audio_reason, is_fake, processing_ms, sha256, archive_location, created_at"

// DefaultListLimit bounds List when the caller passes no limit.
const DefaultListLimit = 50

// Record is one completed detection.
type Record struct {
	ID              string
	RequestID       string
	Filename        string
	MIME            string
	Mode            string
	VideoConfidence *float64
	AudioConfidence *float64
	VideoReason     string
	AudioReason     string
	IsFake          bool
	ProcessingMS    int64
	SHA256          string
	ArchiveLocation string
	CreatedAt       time.Time
}

// Add inserts rec. Missing ids and timestamps are filled in.
func (s *Store) Add(ctx context.Context, rec *Record) error {
	if rec == nil {
		return errors.New("record is nil")
	}
	if strings.TrimSpace(rec.ID) == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	err := s.exec(ctx,
		`INSERT INTO detections (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		nullableString(rec.RequestID),
		rec.Filename,
		nullableString(rec.MIME),
		rec.Mode,
		nullableFloat(rec.VideoConfidence),
		nullableFloat(rec.AudioConfidence),
		nullableString(rec.VideoReason),
		nullableString(rec.AudioReason),
		rec.IsFake,
		rec.ProcessingMS,
		nullableString(rec.SHA256),
		nullableString(rec.ArchiveLocation),
		rec.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert detection: %w", err)
	}
	return nil
}

// List returns the newest records first. limit <= 0 uses DefaultListLimit.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT `+recordColumns+` FROM detections ORDER BY created_at DESC, id DESC LIMIT ?`),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list detections: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Get fetches one record.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+recordColumns+` FROM detections WHERE id = ?`), id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get detection: %w", err)
	}
	return rec, nil
}

// Delete removes one record.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.execResult(ctx, `DELETE FROM detections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete detection: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Prune removes records created before cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execResult(ctx, `DELETE FROM detections WHERE created_at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune detections: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune detections: %w", err)
	}
	return n, nil
}

// Summary aggregates the stored records.
type Summary struct {
	Total int
	Fake  int
}

// Summarize counts stored records.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	var (
		summary Summary
		fake    sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), SUM(CASE WHEN is_fake THEN 1 ELSE 0 END) FROM detections`,
	).Scan(&summary.Total, &fake)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize detections: %w", err)
	}
	summary.Fake = int(fake.Int64)
	return summary, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (Record, error) {
	var (
		rec        Record
		requestID  sql.NullString
		mime       sql.NullString
		video      sql.NullFloat64
		audio      sql.NullFloat64
		videoWhy   sql.NullString
		audioWhy   sql.NullString
		digest     sql.NullString
		archive    sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(
		&rec.ID,
		&requestID,
		&rec.Filename,
		&mime,
		&rec.Mode,
		&video,
		&audio,
		&videoWhy,
		&audioWhy,
		&rec.IsFake,
		&rec.ProcessingMS,
		&digest,
		&archive,
		&createdRaw,
	); err != nil {
		return Record{}, err
	}
	rec.RequestID = requestID.String
	rec.MIME = mime.String
	rec.VideoReason = videoWhy.String
	rec.AudioReason = audioWhy.String
	rec.SHA256 = digest.String
	rec.ArchiveLocation = archive.String
	if video.Valid {
		v := video.Float64
		rec.VideoConfidence = &v
	}
	if audio.Valid {
		v := audio.Float64
		rec.AudioConfidence = &v
	}
	if created, err := time.Parse(timeLayout, createdRaw); err == nil {
		rec.CreatedAt = created
	} else if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		rec.CreatedAt = created
	}
	return rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}
