package config

// ProbeConfig defines how targets are requested
type ProbeConfig struct {
	Method      string            `json:"method,omitempty" yaml:"method,omitempty" validate:"omitempty,oneof=GET HEAD POST PUT PATCH DELETE OPTIONS"`
	Concurrency int               `json:"concurrency,omitempty" yaml:"concurrency,omitempty" validate:"omitempty,min=1,max=1000"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// NewDefaultProbeConfig creates default probe configuration
func NewDefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		Method:      DefaultProbeMethod,
		Concurrency: DefaultProbeConcurrency,
	}
}
