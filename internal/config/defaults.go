package config

const (
	defaultDownloadDir    = "~/Downloads/reeler"
	defaultLogDir         = "~/.local/share/reeler/logs"
	defaultFetchBinary    = "yt-dlp"
	defaultFetchThreads   = 10
	defaultFetchTimeout   = 60
	defaultFFmpegBinary   = "ffmpeg"
	defaultFFprobeBinary  = "ffprobe"
	defaultTargetFormat   = "mp4"
	defaultQuality        = 20
	defaultSoftwareCRF    = 22
	defaultAudioBitrate   = "320k"
	defaultCookiesBrowser = "chrome"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			LogDir:      defaultLogDir,
		},
		Fetch: Fetch{
			Binary:            defaultFetchBinary,
			Threads:           defaultFetchThreads,
			TimeoutSeconds:    defaultFetchTimeout,
			DownloadThumbnail: true,
		},
		Cookies: Cookies{
			Enabled: false,
			Browser: defaultCookiesBrowser,
		},
		Transcode: Transcode{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			TargetFormat:  defaultTargetFormat,
			Quality:       defaultQuality,
			SoftwareCRF:   defaultSoftwareCRF,
			AudioBitrate:  defaultAudioBitrate,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
