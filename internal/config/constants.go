package config

const (
	// Config file discovery
	ConfigPathEnvVar      = "RATEKEEPER_CONFIG_PATH"
	MaxConfigFileSizeByte = 10 * 1024 * 1024

	// HTTP Client Defaults
	DefaultHTTPTimeoutSecs  = 30
	DefaultHTTPUserAgent    = "ratekeeper/1.0"
	DefaultHTTPMaxRedirects = 10

	// Retry Defaults
	DefaultRetryPreset = "balanced"

	// Metrics Defaults
	DefaultMetricsListenAddr = ":9090"
	DefaultMetricsPath       = "/metrics"
	DefaultMetricsNamespace  = "ratekeeper"

	// Storage Defaults
	DefaultResultsDBPath = "database/results.db"

	// Probe Defaults
	DefaultProbeMethod      = "GET"
	DefaultProbeConcurrency = 10

	// Batch Defaults
	DefaultBatchSize          = 200
	DefaultMaxConcurrentBatch = 1
	DefaultBatchTimeoutMins   = 45
	DefaultBatchThresholdSize = 1000
)
