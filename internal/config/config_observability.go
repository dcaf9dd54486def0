package config

// LoggingConfig controls the structured logger shared across components.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}
