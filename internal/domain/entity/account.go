package entity

import "time"

// Account — учётная запись из директории аккаунтов.
// Баланс кошелька хранится в минорных единицах валюты аккаунта.
type Account struct {
	Username        string
	SteamID         string
	Currency        string
	Region          string
	WalletBalance   int64
	Passes          int
	PassValue       int64
	PrimeCost       int64
	TradeURL        string
	IsArmoury       bool
	BalanceSyncedAt time.Time
}

// Threshold возвращает целевой баланс аккаунта: стоимость полного
// комплекта пропусков.
func (a Account) Threshold() int64 {
	return int64(a.Passes) * a.PassValue
}
