package config

import "time"

// ServerConfig configures the HTTP API surface (POST /sessions, POST /chat,
// GET /sessions/{id}, GET /health).
type ServerConfig struct {
	Host            string        `yaml:"host"`
	HTTPPort        int           `yaml:"http_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}
