package steam

import (
	"context"

	"items_seller/internal/domain/entity"
)

// TradeClient — операции торговой площадки от имени одного аккаунта.
// Все цены в минорных единицах валюты аккаунта.
type TradeClient interface {
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Close(ctx context.Context) error

	WalletBalance(ctx context.Context) (int64, string, error)
	Inventory(ctx context.Context) ([]entity.Item, error)
	ActiveListings(ctx context.Context) ([]entity.Listing, error)
	CreateListing(ctx context.Context, assetID string, price int64) (entity.Listing, error)
	CancelListing(ctx context.Context, listingID string) error
	ConfirmListing(ctx context.Context, listingID string) error
	OrderBook(ctx context.Context, marketHashName string) (entity.OrderBook, error)
	SendTrade(ctx context.Context, tradeURL string, assetIDs []string) (string, error)

	SaveSession() error
}

// Credentials — неизменяемый набор учётных данных аккаунта. Клиент
// строится только из него, никогда из живого клиента.
type Credentials struct {
	Username       string
	Password       string
	SharedSecret   string
	IdentitySecret string
	SteamID        string
	Currency       string
	Region         string
}

// ClientFactory пересобирает клиент из учётных данных. Используется
// при восстановлении сессии.
type ClientFactory interface {
	New(ctx context.Context) (TradeClient, error)
}
