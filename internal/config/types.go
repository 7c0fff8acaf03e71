package config

// Config is the top-level configuration for candleflow.
type Config struct {
	App       AppConfig        `yaml:"app"`
	Import    ImportConfig     `yaml:"import"`
	Store     StoreConfig      `yaml:"store"`
	Providers []ProviderConfig `yaml:"providers"`
	Node      NodeConfig       `yaml:"node"`
	Dispatch  DispatchConfig   `yaml:"dispatch"`
}

type AppConfig struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	LogPath  string `yaml:"log_path"`
}

// ImportConfig enumerates every recognized orchestration option.
type ImportConfig struct {
	Mode                string `yaml:"mode"`
	Frequency           string `yaml:"frequency"`
	MaxConcurrency      int    `yaml:"max_concurrency"`
	RetryCount          int    `yaml:"retry_count"`
	RetryBackoffMS      int    `yaml:"retry_backoff_ms"`
	GapThresholdDays    int    `yaml:"gap_threshold_days"`
	LookbackDays        int    `yaml:"lookback_days"`
	FlushThreshold      int    `yaml:"flush_threshold"`
	FetchTimeoutSeconds int    `yaml:"fetch_timeout_seconds"`
	SmartFillStrategy   string `yaml:"smart_fill_strategy"`
	SmartFillDays       int    `yaml:"smart_fill_days"`
}

type StoreConfig struct {
	Root string `yaml:"root"`
}

// ProviderConfig describes one upstream provider adapter.
type ProviderConfig struct {
	Name        string `yaml:"name"`
	Kind        string `yaml:"kind"`
	Priority    int    `yaml:"priority"`
	Enabled     bool   `yaml:"enabled"`
	RESTBaseURL string `yaml:"rest_base_url"`
	TimeoutSec  int    `yaml:"timeout_seconds"`
}

type NodeConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type DispatchConfig struct {
	Enabled           bool     `yaml:"enabled"`
	Nodes             []string `yaml:"nodes"`
	RPCTimeoutSeconds int      `yaml:"rpc_timeout_seconds"`
	HeartbeatSeconds  int      `yaml:"heartbeat_seconds"`
}
