package config

const (
	defaultServerPort          = 8080
	defaultServerBind          = "0.0.0.0"
	defaultLogDir              = "."
	defaultAccessLogDir        = "."
	defaultClientInterval      = 30
	defaultClientTimeout       = 5
	defaultClientLocalDir      = "."
	defaultLogFormat           = "auto"
	defaultLogLevel            = "info"
	defaultAccessRetentionDays = 0
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			Port:                   defaultServerPort,
			Bind:                   defaultServerBind,
			LogDir:                 defaultLogDir,
			AccessLogDir:           defaultAccessLogDir,
			AccessLogRetentionDays: defaultAccessRetentionDays,
		},
		Client: Client{
			Interval: defaultClientInterval,
			Timeout:  defaultClientTimeout,
			LocalDir: defaultClientLocalDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
