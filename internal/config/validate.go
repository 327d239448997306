package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateVideo(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateModels(); err != nil {
		return err
	}
	if err := c.validateHistory(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validateDetection() error {
	if c.Detection.VideoThreshold < 0 || c.Detection.VideoThreshold > 1 {
		return errors.New("detection.video_threshold must be between 0 and 1")
	}
	if c.Detection.AudioThreshold < 0 || c.Detection.AudioThreshold > 1 {
		return errors.New("detection.audio_threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateVideo() error {
	if err := ensurePositiveMap(map[string]int{
		"video.frame_interval": c.Video.FrameInterval,
		"video.frame_width":    c.Video.FrameWidth,
		"video.frame_height":   c.Video.FrameHeight,
	}); err != nil {
		return err
	}
	switch c.Video.ChannelOrder {
	case ChannelOrderRGB, ChannelOrderBGR:
	default:
		return fmt.Errorf("video.channel_order must be %q or %q, got %q", ChannelOrderRGB, ChannelOrderBGR, c.Video.ChannelOrder)
	}
	return nil
}

func (c *Config) validateAudio() error {
	if err := ensurePositiveMap(map[string]int{
		"audio.sample_rate": c.Audio.SampleRate,
		"audio.n_mfcc":      c.Audio.NMFCC,
		"audio.time_steps":  c.Audio.TimeSteps,
		"audio.n_fft":       c.Audio.NFFT,
		"audio.hop_length":  c.Audio.HopLength,
		"audio.n_mels":      c.Audio.NMels,
	}); err != nil {
		return err
	}
	if c.Audio.NMFCC > c.Audio.NMels {
		return errors.New("audio.n_mfcc must not exceed audio.n_mels")
	}
	return nil
}

func (c *Config) validateModels() error {
	if len(c.Models.Video) == 0 {
		return errors.New("models.video must list at least one classifier")
	}
	if strings.TrimSpace(c.Models.Audio.Name) == "" {
		return errors.New("models.audio.name must be set")
	}
	return nil
}

func (c *Config) validateHistory() error {
	if !c.History.Enabled {
		return nil
	}
	switch c.History.Driver {
	case HistorySQLite:
	case HistoryPostgres:
		if c.History.DSN == "" {
			return errors.New("history.dsn must be set when history.driver is postgres (or set DEEPSCAN_HISTORY_DSN)")
		}
	default:
		return fmt.Errorf("history.driver must be %q or %q, got %q", HistorySQLite, HistoryPostgres, c.History.Driver)
	}
	return nil
}

func (c *Config) validateArchive() error {
	switch c.Archive.Backend {
	case ArchiveNone:
	case ArchiveLocal:
		if strings.TrimSpace(c.Archive.Dir) == "" {
			return errors.New("archive.dir must be set when archive.backend is local")
		}
	case ArchiveGCS:
		if c.Archive.Bucket == "" {
			return errors.New("archive.bucket must be set when archive.backend is gcs")
		}
	default:
		return fmt.Errorf("archive.backend must be one of none, local, gcs; got %q", c.Archive.Backend)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL, got %q", topic)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
