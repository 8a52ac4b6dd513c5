package config

import "time"

type Servers struct {
	HTTPListenAddress    string        `env:"HTTP_LISTEN_ADDRESS" envDefault:":8080"`
	MetricsListenAddress string        `env:"METRICS_LISTEN_ADDRESS" envDefault:":9090"`
	ProbeListenAddress   string        `env:"PROBE_LISTEN_ADDRESS" envDefault:":8081"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Период постановки задачи распродажи в очередь.
	RunInterval time.Duration `env:"RUN_INTERVAL" envDefault:"6h"`
}
