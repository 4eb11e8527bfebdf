package config

const (
	defaultProductName         = "whistle"
	defaultProductVersion      = "1.0.0"
	defaultDocsURL             = "https://github.com/avwo/whistle"
	defaultPort                = 8899
	defaultLocalUIHost         = "local.whistlejs.com"
	defaultSockets             = 60
	defaultTimeoutMS           = 36000
	defaultDNSCacheMS          = 30000
	defaultEngineCommand       = "whistle-engine"
	defaultEngineRuntime       = "node"
	defaultMinRuntimeMajor     = 6
	defaultStartTimeoutSeconds = 10
	defaultStopTimeoutSeconds  = 5
	defaultBaseDir             = "~/.WhistleAppData"
	defaultRunDir              = "~/.local/share/whistle/run"
	defaultLogFormat           = "console"
	defaultLogLevel            = "warn"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Product: Product{
			Name:    defaultProductName,
			Version: defaultProductVersion,
			DocsURL: defaultDocsURL,
		},
		Proxy: Proxy{
			Port:        defaultPort,
			LocalUIHost: defaultLocalUIHost,
			Sockets:     defaultSockets,
			TimeoutMS:   defaultTimeoutMS,
			DNSCacheMS:  defaultDNSCacheMS,
		},
		Engine: Engine{
			Command:             defaultEngineCommand,
			Runtime:             defaultEngineRuntime,
			MinRuntimeMajor:     defaultMinRuntimeMajor,
			StartTimeoutSeconds: defaultStartTimeoutSeconds,
			StopTimeoutSeconds:  defaultStopTimeoutSeconds,
		},
		Paths: Paths{
			BaseDir: defaultBaseDir,
			RunDir:  defaultRunDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
