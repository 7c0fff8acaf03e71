package config

const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultImportMode      = "incremental"
	defaultImportFrequency = "1d"
	defaultMaxConcurrency  = 8
	defaultRetryCount      = 3
	defaultRetryBackoffMS  = 500
	defaultGapThreshold    = 1
	defaultLookbackDays    = 365
	defaultFlushThreshold  = 2000
	defaultFetchTimeoutSec = 30
	defaultSmartFill       = "recent_window"
	defaultSmartFillDays   = 30
	defaultStoreRoot       = "data/candles"
	defaultNodeListenAddr  = ":9992"
	defaultRPCTimeoutSec   = 120
	defaultHeartbeatSec    = 15
)

func (c *Config) applyDefaults() {
	c.App.applyDefaults()
	c.Import.applyDefaults()
	c.Store.applyDefaults()
	c.Node.applyDefaults()
	c.Dispatch.applyDefaults()
}

func (a *AppConfig) applyDefaults() {
	if a.Env == "" {
		a.Env = defaultAppEnv
	}
	if a.LogLevel == "" {
		a.LogLevel = defaultAppLogLevel
	}
}

func (i *ImportConfig) applyDefaults() {
	if i.Mode == "" {
		i.Mode = defaultImportMode
	}
	if i.Frequency == "" {
		i.Frequency = defaultImportFrequency
	}
	if i.MaxConcurrency <= 0 {
		i.MaxConcurrency = defaultMaxConcurrency
	}
	if i.RetryCount <= 0 {
		i.RetryCount = defaultRetryCount
	}
	if i.RetryBackoffMS <= 0 {
		i.RetryBackoffMS = defaultRetryBackoffMS
	}
	if i.GapThresholdDays <= 0 {
		i.GapThresholdDays = defaultGapThreshold
	}
	if i.LookbackDays <= 0 {
		i.LookbackDays = defaultLookbackDays
	}
	if i.FlushThreshold <= 0 {
		i.FlushThreshold = defaultFlushThreshold
	}
	if i.FetchTimeoutSeconds <= 0 {
		i.FetchTimeoutSeconds = defaultFetchTimeoutSec
	}
	if i.SmartFillStrategy == "" {
		i.SmartFillStrategy = defaultSmartFill
	}
	if i.SmartFillDays <= 0 {
		i.SmartFillDays = defaultSmartFillDays
	}
}

func (s *StoreConfig) applyDefaults() {
	if s.Root == "" {
		s.Root = defaultStoreRoot
	}
}

func (n *NodeConfig) applyDefaults() {
	if n.ListenAddr == "" {
		n.ListenAddr = defaultNodeListenAddr
	}
}

func (d *DispatchConfig) applyDefaults() {
	if d.RPCTimeoutSeconds <= 0 {
		d.RPCTimeoutSeconds = defaultRPCTimeoutSec
	}
	if d.HeartbeatSeconds <= 0 {
		d.HeartbeatSeconds = defaultHeartbeatSec
	}
}
