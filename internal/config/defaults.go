package config

const (
	defaultDataDir          = "~/.local/share/snapseal"
	defaultLogDir           = "~/.local/share/snapseal/logs"
	defaultInboxDir         = "~/.local/share/snapseal/inbox"
	defaultAPIBind          = "127.0.0.1:7512"
	defaultRegistryTimeout  = 60
	defaultSelectionTimeout = 60
	defaultLocationTimeout  = 5
	defaultMinRegionPx      = 10
	defaultProgressTickMs   = 500
	defaultWatcherSettleMs  = 750
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
			InboxDir: defaultInboxDir,
			APIBind:  defaultAPIBind,
		},
		Registry: Registry{
			RequestTimeout: defaultRegistryTimeout,
		},
		Capture: Capture{
			SelectionTimeout: defaultSelectionTimeout,
			LocationTimeout:  defaultLocationTimeout,
			MinRegionPx:      defaultMinRegionPx,
		},
		Queue: Queue{
			ProgressTickMillis: defaultProgressTickMs,
		},
		Watcher: Watcher{
			SettleMillis: defaultWatcherSettleMs,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
