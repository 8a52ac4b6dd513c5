package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAccountSchemaToDomain(t *testing.T) {
	rq := require.New(t)

	synced := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	schema := accountSchema{
		Username:        "armoury-1",
		SteamID:         "7656119",
		Currency:        "USD",
		Region:          "1",
		WalletBalance:   1500,
		Passes:          5,
		PassValue:       300,
		PrimeCost:       2000,
		TradeURL:        "https://example.org/tradeoffer",
		IsArmoury:       true,
		BalanceSyncedAt: synced,
	}

	account := schema.toDomain()

	rq.Equal("armoury-1", account.Username)
	rq.Equal("7656119", account.SteamID)
	rq.Equal("USD", account.Currency)
	rq.Equal("1", account.Region)
	rq.Equal(int64(1500), account.WalletBalance)
	rq.Equal(5, account.Passes)
	rq.Equal(int64(300), account.PassValue)
	rq.Equal(int64(2000), account.PrimeCost)
	rq.Equal("https://example.org/tradeoffer", account.TradeURL)
	rq.True(account.IsArmoury)
	rq.Equal(synced, account.BalanceSyncedAt)
	rq.Equal(int64(1500), account.Threshold())
}
