package config

const (
	defaultTempDir            = "temp_uploads"
	defaultLogDir             = "~/.local/share/deepscan/logs"
	defaultDataDir            = "~/.local/share/deepscan"
	defaultServerBind         = "0.0.0.0:8000"
	defaultMaxUploadMB        = 512
	defaultVideoThreshold     = 0.4
	defaultAudioThreshold     = 0.4
	defaultFrameInterval      = 10
	defaultFrameSize          = 224
	defaultChannelOrder       = ChannelOrderBGR
	defaultSampleRate         = 16000
	defaultNMFCC              = 40
	defaultTimeSteps          = 100
	defaultNFFT               = 2048
	defaultHopLength          = 512
	defaultNMels              = 128
	defaultModelBaseURL       = "http://127.0.0.1:8501"
	defaultVideoModelPrimary  = "faceforensics_resnet50"
	defaultVideoModelCelebDF  = "celebdf_resnet50"
	defaultAudioModel         = "audio_cnn_lstm"
	defaultHistoryRetention   = 30
	defaultHistoryPruneCron   = "@daily"
	defaultArchivePrefix      = "deepscan/"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 14
	defaultModelTimeoutSecond = 0
	defaultNtfyTimeout        = 10
)

// Channel orders accepted by video.channel_order.
const (
	ChannelOrderRGB = "rgb"
	ChannelOrderBGR = "bgr"
)

// History drivers accepted by history.driver.
const (
	HistorySQLite   = "sqlite"
	HistoryPostgres = "postgres"
)

// Archive backends accepted by archive.backend.
const (
	ArchiveNone  = "none"
	ArchiveLocal = "local"
	ArchiveGCS   = "gcs"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			TempDir: defaultTempDir,
			LogDir:  defaultLogDir,
			DataDir: defaultDataDir,
		},
		Server: Server{
			Bind:        defaultServerBind,
			MaxUploadMB: defaultMaxUploadMB,
			CORSOrigins: []string{"*"},
		},
		Detection: Detection{
			VideoThreshold: defaultVideoThreshold,
			AudioThreshold: defaultAudioThreshold,
		},
		Video: Video{
			FrameInterval: defaultFrameInterval,
			FrameWidth:    defaultFrameSize,
			FrameHeight:   defaultFrameSize,
			ChannelOrder:  defaultChannelOrder,
		},
		Audio: Audio{
			SampleRate: defaultSampleRate,
			NMFCC:      defaultNMFCC,
			TimeSteps:  defaultTimeSteps,
			NFFT:       defaultNFFT,
			HopLength:  defaultHopLength,
			NMels:      defaultNMels,
		},
		Models: Models{
			Video: []Model{
				{Name: defaultVideoModelPrimary},
				{Name: defaultVideoModelCelebDF},
			},
			Audio:          Model{Name: defaultAudioModel},
			TimeoutSeconds: defaultModelTimeoutSecond,
		},
		History: History{
			Enabled:       true,
			Driver:        HistorySQLite,
			RetentionDays: defaultHistoryRetention,
			PruneSchedule: defaultHistoryPruneCron,
		},
		Archive: Archive{
			Backend: ArchiveNone,
			Prefix:  defaultArchivePrefix,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
	}
}
