package config

import "time"

type Converter struct {
	PrimaryURL  string        `env:"RATES_PRIMARY_URL" envDefault:"https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api@latest/v1/currencies" validate:"url"`
	FallbackURL string        `env:"RATES_FALLBACK_URL" envDefault:"https://open.er-api.com/v6/latest" validate:"url"`
	RateTTL     time.Duration `env:"RATES_TTL" envDefault:"1h"`
}
