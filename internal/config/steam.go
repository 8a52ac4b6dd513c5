package config

type Steam struct {
	BaseURL    string `env:"STEAM_BASE_URL" envDefault:"https://steamcommunity.com" validate:"url"`
	SessionDir string `env:"STEAM_SESSION_DIR" envDefault:"sessions"`
	AppID      int    `env:"STEAM_APP_ID" envDefault:"730" validate:"gt=0"`
	ContextID  int    `env:"STEAM_CONTEXT_ID" envDefault:"2" validate:"gt=0"`
}
