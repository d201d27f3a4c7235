package config

// StorageConfig defines where finished operation results are recorded
type StorageConfig struct {
	ResultsDBPath string `json:"results_db_path,omitempty" yaml:"results_db_path,omitempty"`
}

// NewDefaultStorageConfig creates default storage configuration.
// An empty ResultsDBPath disables the store.
func NewDefaultStorageConfig() StorageConfig {
	return StorageConfig{ResultsDBPath: DefaultResultsDBPath}
}
