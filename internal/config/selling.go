package config

import "time"

// Selling — параметры цикла распродажи. Множители безразмерные, цены
// и пороги в минорных единицах.
type Selling struct {
	// Запас к расчётной цене при выставлении лота. Строго меньше
	// единицы, иначе продажа уходит в минус после комиссии.
	SalePriceMultiplier float64 `env:"SALE_PRICE_MULTIPLIER" envDefault:"0.97" validate:"gt=0,lt=1"`

	// Доля от нижнего sell-ордера при расчёте котировки.
	QuoteThresholdFraction float64 `env:"QUOTE_THRESHOLD_FRACTION" envDefault:"0.9" validate:"gt=0,le=1"`

	// Нижняя граница цены предмета в минорных единицах.
	PriceFloor int64 `env:"PRICE_FLOOR" envDefault:"3" validate:"gt=0"`

	MaxCleanupAttempts       int     `env:"MAX_CLEANUP_ATTEMPTS" envDefault:"3" validate:"gte=1"`
	InitialCleanupMultiplier float64 `env:"INITIAL_CLEANUP_MULTIPLIER" envDefault:"0.97" validate:"gt=0,le=1"`
	CleanupPriceDecrement    float64 `env:"CLEANUP_PRICE_DECREMENT" envDefault:"0.02" validate:"gte=0"`

	MinWait time.Duration `env:"MIN_WAIT" envDefault:"10m"`
	MaxWait time.Duration `env:"MAX_WAIT" envDefault:"30m"`

	InventoryConcurrency int `env:"INVENTORY_CONCURRENCY" envDefault:"4" validate:"gte=1"`
	MaxItemsPerRun       int `env:"MAX_ITEMS_PER_RUN" envDefault:"100" validate:"gte=1"`

	// Основные предметы опрашиваются чаще остального каталога.
	MainItems        []string      `env:"MAIN_ITEMS" envSeparator:","`
	MainStaleness    time.Duration `env:"MAIN_PRICE_STALENESS" envDefault:"1h"`
	CatalogStaleness time.Duration `env:"CATALOG_PRICE_STALENESS" envDefault:"24h"`

	// Налог площадки: требуемая выручка умножается на буфер.
	TaxBuffer float64 `env:"TAX_BUFFER" envDefault:"1.15" validate:"gte=1"`

	SolverBudget time.Duration `env:"SOLVER_BUDGET" envDefault:"2s"`
}
