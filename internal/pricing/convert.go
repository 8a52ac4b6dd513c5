package pricing

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"items_seller/internal/domain"
	"items_seller/pkg/errcodes"
	"items_seller/pkg/logx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

// Converter переводит суммы между валютами. Курсы берутся из
// процессного кэша, затем из общей таблицы в redis, затем с первичного
// источника с резервным на случай его отказа.
type Converter struct {
	local       *gocache.Cache
	redis       *redis.Client
	http        *http.Client
	primaryURL  string
	fallbackURL string
	ttl         time.Duration
}

func NewConverter(redisClient *redis.Client, primaryURL, fallbackURL string, ttl time.Duration) *Converter {
	return &Converter{
		local:       gocache.New(ttl, 2*ttl),
		redis:       redisClient,
		http:        &http.Client{Timeout: 15 * time.Second},
		primaryURL:  strings.TrimRight(primaryURL, "/"),
		fallbackURL: strings.TrimRight(fallbackURL, "/"),
		ttl:         ttl,
	}
}

// Convert переводит сумму в минорных единицах с округлением до
// ближайшей единицы.
func (c *Converter) Convert(ctx context.Context, amount int64, from, to string) (int64, error) {
	if strings.EqualFold(from, to) {
		return amount, nil
	}

	rate, err := c.rate(ctx, strings.ToLower(from), strings.ToLower(to))
	if err != nil {
		return 0, err
	}

	return int64(math.Round(float64(amount) * rate)), nil
}

func (c *Converter) rate(ctx context.Context, from, to string) (float64, error) {
	key := from + "/" + to

	if cached, ok := c.local.Get(key); ok {
		return cached.(float64), nil
	}

	if c.redis != nil {
		if value, err := c.redis.HGet(ctx, "rates:"+from, to).Float64(); err == nil {
			c.local.Set(key, value, c.ttl)
			return value, nil
		}
	}

	rates, err := c.fetchRates(ctx, from)
	if err != nil {
		return 0, err
	}

	rate, ok := rates[to]
	if !ok {
		return 0, domain.NewError(errcodes.NotFound, fmt.Sprintf("no rate %s -> %s", from, to))
	}

	c.local.Set(key, rate, c.ttl)

	if c.redis != nil {
		fields := make(map[string]any, len(rates))
		for code, value := range rates {
			fields[code] = value
		}
		if err := c.redis.HSet(ctx, "rates:"+from, fields).Err(); err == nil {
			c.redis.Expire(ctx, "rates:"+from, c.ttl)
		} else {
			logger(ctx).Warn("rates write-through failed", logx.FieldError, err.Error())
		}
	}

	return rate, nil
}

// fetchRates ходит на первичный источник, при любом сбое — на
// резервный.
func (c *Converter) fetchRates(ctx context.Context, from string) (map[string]float64, error) {
	rates, primaryErr := c.fetchPrimary(ctx, from)
	if primaryErr == nil {
		return rates, nil
	}

	logger(ctx).Warn(
		"primary rates source failed, trying fallback",
		logx.FieldCurrency, from,
		logx.FieldError, primaryErr.Error(),
	)

	rates, fallbackErr := c.fetchFallback(ctx, from)
	if fallbackErr != nil {
		return nil, domain.WrapError(
			fmt.Errorf("primary: %v; fallback: %w", primaryErr, fallbackErr),
			errcodes.TransientRemoteError,
			"all rate sources failed",
		)
	}

	return rates, nil
}

func (c *Converter) fetchPrimary(ctx context.Context, from string) (map[string]float64, error) {
	body, err := c.getJSON(ctx, fmt.Sprintf("%s/%s.json", c.primaryURL, from))
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode primary payload: %w", err)
	}

	table, ok := payload[from].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("primary payload has no %q table", from)
	}

	rates := make(map[string]float64, len(table))
	for code, value := range table {
		if rate, ok := value.(float64); ok {
			rates[strings.ToLower(code)] = rate
		}
	}

	return rates, nil
}

func (c *Converter) fetchFallback(ctx context.Context, from string) (map[string]float64, error) {
	body, err := c.getJSON(ctx, fmt.Sprintf("%s/%s", c.fallbackURL, strings.ToUpper(from)))
	if err != nil {
		return nil, err
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode fallback payload: %w", err)
	}

	rates := make(map[string]float64, len(payload.Rates))
	for code, rate := range payload.Rates {
		rates[strings.ToLower(code)] = rate
	}

	return rates, nil
}

func (c *Converter) getJSON(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("http.NewRequest: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}
