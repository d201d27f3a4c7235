package config

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled    bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty" validate:"omitempty,hostname_port"`
	Path       string `json:"path,omitempty" yaml:"path,omitempty" validate:"omitempty,startswith=/"`
	Namespace  string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// NewDefaultMetricsConfig creates default metrics configuration
func NewDefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		ListenAddr: DefaultMetricsListenAddr,
		Path:       DefaultMetricsPath,
		Namespace:  DefaultMetricsNamespace,
	}
}
