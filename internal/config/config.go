package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	TempDir string `toml:"temp_dir"`
	LogDir  string `toml:"log_dir"`
	DataDir string `toml:"data_dir"`
}

// Server contains HTTP transport settings.
type Server struct {
	Bind        string   `toml:"bind"`
	APIToken    string   `toml:"api_token"`
	JWTSecret   string   `toml:"jwt_secret"`
	MaxUploadMB int      `toml:"max_upload_mb"`
	CORSOrigins []string `toml:"cors_origins"`
}

// Detection contains the per-modality verdict thresholds.
type Detection struct {
	VideoThreshold float64 `toml:"video_threshold"`
	AudioThreshold float64 `toml:"audio_threshold"`
}

// Video contains frame sampling settings.
type Video struct {
	FrameInterval int    `toml:"frame_interval"`
	FrameWidth    int    `toml:"frame_width"`
	FrameHeight   int    `toml:"frame_height"`
	ChannelOrder  string `toml:"channel_order"`
}

// Audio contains waveform and cepstral feature settings.
type Audio struct {
	SampleRate int `toml:"sample_rate"`
	NMFCC      int `toml:"n_mfcc"`
	TimeSteps  int `toml:"time_steps"`
	NFFT       int `toml:"n_fft"`
	HopLength  int `toml:"hop_length"`
	NMels      int `toml:"n_mels"`
}

// Model identifies one served classifier.
type Model struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

// Models lists the classifiers loaded at startup. Video may hold several
// entries, in which case their outputs are ensembled.
type Models struct {
	Video          []Model `toml:"video"`
	Audio          Model   `toml:"audio"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// History contains detection history persistence settings.
type History struct {
	Enabled       bool   `toml:"enabled"`
	Driver        string `toml:"driver"`
	DSN           string `toml:"dsn"`
	RetentionDays int    `toml:"retention_days"`
	PruneSchedule string `toml:"prune_schedule"`
}

// Archive contains evidence retention settings for uploads judged fake.
type Archive struct {
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`
	Bucket  string `toml:"bucket"`
	Prefix  string `toml:"prefix"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications configures ntfy alerts for fake verdicts and failed detections.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	NotifyFailures bool   `toml:"notify_failures"`
}

// Tools names the external media binaries.
type Tools struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
}

// Config encapsulates all configuration values for deepscan.
//
// Configuration sections by subsystem:
//   - Paths: temp, log, and data directories
//   - Server: HTTP bind address, auth, upload limits, CORS
//   - Detection: per-modality verdict thresholds
//   - Video: frame sampling interval, resolution, channel order
//   - Audio: sample rate and MFCC shape
//   - Models: served classifier endpoints
//   - History: detection history store and retention
//   - Archive: evidence retention for fake verdicts
//   - Logging: log format, level and retention
//   - Notifications: ntfy alerts
//   - Tools: ffmpeg/ffprobe binaries
type Config struct {
	Paths         Paths         `toml:"paths"`
	Server        Server        `toml:"server"`
	Detection     Detection     `toml:"detection"`
	Video         Video         `toml:"video"`
	Audio         Audio         `toml:"audio"`
	Models        Models        `toml:"models"`
	History       History       `toml:"history"`
	Archive       Archive       `toml:"archive"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
	Tools         Tools         `toml:"tools"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/deepscan/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		// Array tables append to existing slices; start empty so a file
		// listing its own video models replaces the defaults.
		cfg.Models.Video = nil
		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("deepscan.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the service writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.TempDir, c.Paths.LogDir, c.Paths.DataDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Archive.Backend == ArchiveLocal && strings.TrimSpace(c.Archive.Dir) != "" {
		if err := os.MkdirAll(c.Archive.Dir, 0o755); err != nil {
			return fmt.Errorf("create archive directory %q: %w", c.Archive.Dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for decoding.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Tools.FFmpeg); bin != "" {
		return bin
	}
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable used for media inspection.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Tools.FFprobe); bin != "" {
		return bin
	}
	return "ffprobe"
}

// HistoryDSN returns the data source name for the history store. SQLite
// defaults to a database file inside the data directory.
func (c *Config) HistoryDSN() string {
	if dsn := strings.TrimSpace(c.History.DSN); dsn != "" {
		return dsn
	}
	if c.History.Driver == HistoryPostgres {
		return ""
	}
	return filepath.Join(c.Paths.DataDir, "history.db")
}

// LockPath returns the single-instance lock file for the server.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "deepscan.lock")
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
