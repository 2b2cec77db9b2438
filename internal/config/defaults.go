package config

const (
	defaultStateDir          = "~/.local/share/squash"
	defaultLogDir            = "~/.local/share/squash/logs"
	defaultHistoryFile       = "history.db"
	defaultTolerancePercent  = 2.0
	defaultMaxIterations     = 15
	defaultQuality           = 1
	defaultAudioBitrateKbps  = 128
	minAudioBitrateKbps      = 32
	maxTolerancePercent      = 50.0
	minQuality               = 1
	maxQuality               = 4
	defaultFFmpegBinary      = "ffmpeg"
	defaultFFprobeBinary     = "ffprobe"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultProgressIntervalS = 5
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Encoding: Encoding{
			TolerancePercent:        defaultTolerancePercent,
			MaxIterations:           defaultMaxIterations,
			Quality:                 defaultQuality,
			AudioBitrateKbps:        defaultAudioBitrateKbps,
			ProgressIntervalSeconds: defaultProgressIntervalS,
		},
		Tools: Tools{
			FFmpeg:  defaultFFmpegBinary,
			FFprobe: defaultFFprobeBinary,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
