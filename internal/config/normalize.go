package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeVideo()
	c.normalizeModels()
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	if err := c.normalizeArchive(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("TEMP_DIR"); ok && strings.TrimSpace(value) != "" && c.Paths.TempDir == defaultTempDir {
		c.Paths.TempDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		c.Paths.TempDir = defaultTempDir
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	var err error
	if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)
	if c.Server.APIToken == "" {
		if value, ok := os.LookupEnv("DEEPSCAN_API_TOKEN"); ok {
			c.Server.APIToken = strings.TrimSpace(value)
		}
	}
	c.Server.JWTSecret = strings.TrimSpace(c.Server.JWTSecret)
	if c.Server.JWTSecret == "" {
		if value, ok := os.LookupEnv("DEEPSCAN_JWT_SECRET"); ok {
			c.Server.JWTSecret = strings.TrimSpace(value)
		}
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = defaultMaxUploadMB
	}
	origins := make([]string, 0, len(c.Server.CORSOrigins))
	for _, origin := range c.Server.CORSOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.Server.CORSOrigins = origins
}

func (c *Config) normalizeVideo() {
	c.Video.ChannelOrder = strings.ToLower(strings.TrimSpace(c.Video.ChannelOrder))
	if c.Video.ChannelOrder == "" {
		c.Video.ChannelOrder = defaultChannelOrder
	}
}

func (c *Config) normalizeModels() {
	baseURL := defaultModelBaseURL
	if value, ok := os.LookupEnv("TF_SERVING_URL"); ok && strings.TrimSpace(value) != "" {
		baseURL = strings.TrimSpace(value)
	}

	video := make([]Model, 0, len(c.Models.Video))
	for _, model := range c.Models.Video {
		model.Name = strings.TrimSpace(model.Name)
		if model.Name == "" {
			continue
		}
		model.URL = strings.TrimRight(strings.TrimSpace(model.URL), "/")
		if model.URL == "" {
			model.URL = baseURL
		}
		video = append(video, model)
	}
	if len(video) == 0 {
		video = append(video,
			Model{Name: defaultVideoModelPrimary, URL: baseURL},
			Model{Name: defaultVideoModelCelebDF, URL: baseURL},
		)
	}
	c.Models.Video = video

	c.Models.Audio.Name = strings.TrimSpace(c.Models.Audio.Name)
	c.Models.Audio.URL = strings.TrimRight(strings.TrimSpace(c.Models.Audio.URL), "/")
	if c.Models.Audio.Name != "" && c.Models.Audio.URL == "" {
		c.Models.Audio.URL = baseURL
	}
	if c.Models.TimeoutSeconds < 0 {
		c.Models.TimeoutSeconds = 0
	}
}

func (c *Config) normalizeHistory() error {
	c.History.Driver = strings.ToLower(strings.TrimSpace(c.History.Driver))
	if c.History.Driver == "" {
		c.History.Driver = HistorySQLite
	}
	c.History.DSN = strings.TrimSpace(c.History.DSN)
	if c.History.DSN == "" {
		if value, ok := os.LookupEnv("DEEPSCAN_HISTORY_DSN"); ok {
			c.History.DSN = strings.TrimSpace(value)
		}
	}
	if c.History.Driver == HistorySQLite && c.History.DSN != "" {
		expanded, err := expandPath(c.History.DSN)
		if err != nil {
			return fmt.Errorf("history.dsn: %w", err)
		}
		c.History.DSN = expanded
	}
	c.History.PruneSchedule = strings.TrimSpace(c.History.PruneSchedule)
	if c.History.PruneSchedule == "" {
		c.History.PruneSchedule = defaultHistoryPruneCron
	}
	if c.History.RetentionDays < 0 {
		c.History.RetentionDays = 0
	}
	return nil
}

func (c *Config) normalizeArchive() error {
	c.Archive.Backend = strings.ToLower(strings.TrimSpace(c.Archive.Backend))
	if c.Archive.Backend == "" {
		c.Archive.Backend = ArchiveNone
	}
	c.Archive.Bucket = strings.TrimSpace(c.Archive.Bucket)
	c.Archive.Prefix = strings.TrimLeft(strings.TrimSpace(c.Archive.Prefix), "/")
	if strings.TrimSpace(c.Archive.Dir) != "" {
		expanded, err := expandPath(c.Archive.Dir)
		if err != nil {
			return fmt.Errorf("archive.dir: %w", err)
		}
		c.Archive.Dir = expanded
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("DEEPSCAN_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
}
