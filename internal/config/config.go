package config

import (
	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"items_seller/internal/domain"
	"items_seller/pkg/errcodes"
)

type Config struct {
	App       App
	Postgres  Postgres
	Redis     Redis
	Steam     Steam
	Selling   Selling
	Converter Converter
	Bot       Bot
	Servers   Servers
}

type App struct {
	Name     string `env:"APP_NAME" envDefault:"items-seller"`
	Version  string `env:"APP_VERSION" envDefault:"dev"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

type Bot struct {
	Enabled bool   `env:"BOT_ENABLED" envDefault:"false"`
	Token   string `env:"BOT_TOKEN"`
	ChatID  int64  `env:"BOT_CHAT_ID"`
}

// Load читает .env, разбирает окружение и валидирует значения.
// Некорректная конфигурация останавливает запуск.
func Load() (Config, error) {
	_ = godotenv.Load()

	var config Config

	if err := env.Parse(&config); err != nil {
		return Config{}, domain.WrapError(err, errcodes.ConfigurationError, "env parse failed")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(config); err != nil {
		return Config{}, domain.WrapError(err, errcodes.ConfigurationError, "config validation failed")
	}

	return config, nil
}
