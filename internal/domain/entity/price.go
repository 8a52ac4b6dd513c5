package entity

import "time"

// StoredPrice — цена buy-ордера из хранилища цен.
type StoredPrice struct {
	MarketHashName string
	Currency       string
	Value          int64
	UpdatedAt      time.Time
}

// IsStale проверяет устаревание цены относительно окна свежести.
func (p StoredPrice) IsStale(now time.Time, window time.Duration) bool {
	return now.Sub(p.UpdatedAt) > window
}

// AccountSecrets — секреты аккаунта для построения клиента.
type AccountSecrets struct {
	Password       string
	SharedSecret   string
	IdentitySecret string
}
