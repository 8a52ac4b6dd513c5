package pricing

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"items_seller/internal/domain"
	"items_seller/internal/domain/entity"
	"items_seller/pkg/errcodes"
	"items_seller/pkg/logx"
)

// PriceStore — персистентный ярус кэша цен.
type PriceStore interface {
	Get(ctx context.Context, marketHashName, currency string) (entity.StoredPrice, error)
	Upsert(ctx context.Context, marketHashName, currency string, value int64) error
}

// BookFetch поднимает срез стакана с площадки. Передаётся вызовом,
// потому что стакан читается клиентом конкретного аккаунта.
type BookFetch func(ctx context.Context, marketHashName string) (entity.OrderBook, error)

// Cache — многоярусный кэш цен: процессный кэш, хранилище, площадка.
// Основные предметы устаревают быстрее остального каталога.
type Cache struct {
	local *gocache.Cache
	store PriceStore
	quote *QuoteFetcher
	group singleflight.Group

	mainItems        map[string]struct{}
	mainStaleness    time.Duration
	catalogStaleness time.Duration

	now func() time.Time
}

func NewCache(
	store PriceStore,
	quote *QuoteFetcher,
	mainItems []string,
	mainStaleness, catalogStaleness time.Duration,
) *Cache {
	main := make(map[string]struct{}, len(mainItems))
	for _, name := range mainItems {
		main[name] = struct{}{}
	}

	return &Cache{
		local:            gocache.New(mainStaleness, 2*mainStaleness),
		store:            store,
		quote:            quote,
		mainItems:        main,
		mainStaleness:    mainStaleness,
		catalogStaleness: catalogStaleness,
		now:              time.Now,
	}
}

// WithClock переопределяет источник времени в тестах.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

func (c *Cache) staleness(marketHashName string) time.Duration {
	if _, ok := c.mainItems[marketHashName]; ok {
		return c.mainStaleness
	}
	return c.catalogStaleness
}

// Price возвращает цену предмета в валюте, освежая ярусы по мере
// необходимости. Одновременные промахи по одному ключу сворачиваются
// в один поход на площадку.
func (c *Cache) Price(ctx context.Context, marketHashName, currency string, fetch BookFetch) (int64, error) {
	key := marketHashName + "|" + currency
	window := c.staleness(marketHashName)

	if cached, ok := c.local.Get(key); ok {
		stored := cached.(entity.StoredPrice)
		if !stored.IsStale(c.now(), window) {
			return stored.Value, nil
		}
	}

	stored, storeErr := c.store.Get(ctx, marketHashName, currency)
	if storeErr == nil && !stored.IsStale(c.now(), window) {
		c.local.Set(key, stored, window)
		return stored.Value, nil
	}
	if storeErr != nil && !domain.HasCode(storeErr, errcodes.NotFound) {
		return 0, storeErr
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		book, err := fetch(ctx, marketHashName)
		if err != nil {
			return nil, err
		}

		price := c.quote.Quote(book)

		if err := c.store.Upsert(ctx, marketHashName, currency, price); err != nil {
			return nil, err
		}

		fresh := entity.StoredPrice{
			MarketHashName: marketHashName,
			Currency:       currency,
			Value:          price,
			UpdatedAt:      c.now(),
		}
		c.local.Set(key, fresh, window)

		return price, nil
	})
	if err != nil {
		// Протухшая цена лучше, чем отказ всего цикла.
		if storeErr == nil {
			logger(ctx).Warn(
				"quote refresh failed, using stale price",
				logx.FieldItem, marketHashName,
				logx.FieldCurrency, currency,
				logx.FieldError, err.Error(),
			)
			return stored.Value, nil
		}
		return 0, fmt.Errorf("refresh quote: %w", err)
	}

	return value.(int64), nil
}
