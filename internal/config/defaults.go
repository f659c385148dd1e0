package config

const (
	defaultDataDir                  = "~/.local/share/snapdiff"
	defaultScreenshotsDir           = "~/.local/share/snapdiff/screenshots"
	defaultLogDir                   = "~/.local/share/snapdiff/logs"
	defaultAPIBind                  = "127.0.0.1:7490"
	defaultMaxConcurrency           = 4
	defaultRetryLimit               = 1
	defaultTaskTimeoutSeconds       = 500
	defaultNavigationTimeoutSeconds = 120
	defaultWebPQuality              = 50
	defaultFailingThreshold         = 5.0
	defaultPixelThreshold           = 0.1
	defaultBatchQueueSize           = 64
	defaultHubCapacity              = 256
	defaultAMQPExchange             = "snapdiff.updates"
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultLogRetentionDays         = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:        defaultDataDir,
			ScreenshotsDir: defaultScreenshotsDir,
			LogDir:         defaultLogDir,
			APIBind:        defaultAPIBind,
		},
		Capture: Capture{
			MaxConcurrency:           defaultMaxConcurrency,
			RetryLimit:               defaultRetryLimit,
			TaskTimeoutSeconds:       defaultTaskTimeoutSeconds,
			NavigationTimeoutSeconds: defaultNavigationTimeoutSeconds,
			WebPQuality:              defaultWebPQuality,
			Headless:                 true,
			NoSandbox:                true,
		},
		Comparison: Comparison{
			DefaultFailingThreshold: defaultFailingThreshold,
			PixelThreshold:          defaultPixelThreshold,
			BatchQueueSize:          defaultBatchQueueSize,
		},
		Notifications: Notifications{
			HubCapacity:  defaultHubCapacity,
			AMQPExchange: defaultAMQPExchange,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
