package persistence

import (
	"time"

	"items_seller/internal/domain/entity"
)

// accountSchema — строка таблицы accounts.
type accountSchema struct {
	Username        string    `db:"username"`
	SteamID         string    `db:"steam_id"`
	Currency        string    `db:"currency"`
	Region          string    `db:"region"`
	WalletBalance   int64     `db:"wallet_balance"`
	Passes          int       `db:"passes"`
	PassValue       int64     `db:"pass_value"`
	PrimeCost       int64     `db:"prime_cost"`
	TradeURL        string    `db:"trade_url"`
	IsArmoury       bool      `db:"is_armoury"`
	BalanceSyncedAt time.Time `db:"balance_synced_at"`
}

func (s *accountSchema) toDomain() entity.Account {
	return entity.Account{
		Username:        s.Username,
		SteamID:         s.SteamID,
		Currency:        s.Currency,
		Region:          s.Region,
		WalletBalance:   s.WalletBalance,
		Passes:          s.Passes,
		PassValue:       s.PassValue,
		PrimeCost:       s.PrimeCost,
		TradeURL:        s.TradeURL,
		IsArmoury:       s.IsArmoury,
		BalanceSyncedAt: s.BalanceSyncedAt,
	}
}

// secretsSchema — секреты аккаунта; наружу отдаются отдельным методом,
// чтобы не таскать их вместе с основной сущностью.
type secretsSchema struct {
	Password       string `db:"password"`
	SharedSecret   string `db:"shared_secret"`
	IdentitySecret string `db:"identity_secret"`
}

func (s *secretsSchema) toDomain() entity.AccountSecrets {
	return entity.AccountSecrets{
		Password:       s.Password,
		SharedSecret:   s.SharedSecret,
		IdentitySecret: s.IdentitySecret,
	}
}

// priceSchema — строка таблицы prices для одной валютной колонки.
type priceSchema struct {
	MarketHashName string    `db:"market_hash_name"`
	Value          int64     `db:"value"`
	UpdatedAt      time.Time `db:"updated_at"`
}
