package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"items_seller/internal/domain"
	"items_seller/internal/domain/entity"
	"items_seller/pkg/errcodes"
)

// currencyPattern ограничивает имена валют до ISO-кода: имя валюты
// попадает в имя колонки, произвольная строка недопустима.
var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// PriceRepository — хранилище цен buy-ордеров. Валюты добавляются на
// лету отдельными колонками buy_order_price_<код>.
type PriceRepository struct {
	db *sqlx.DB

	mu      sync.Mutex
	columns map[string]struct{}
}

func NewPriceRepository(db *sqlx.DB) *PriceRepository {
	return &PriceRepository{
		db:      db,
		columns: make(map[string]struct{}),
	}
}

// withTx выполняет функцию в транзакции.
func (r *PriceRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return domain.WrapError(
				fmt.Errorf("%w; rollback: %v", err, rbErr),
				errcodes.InternalServerError,
				"transaction failed",
			)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to commit")
	}

	return nil
}

// columnFor валидирует валюту и возвращает имя колонки.
func columnFor(currency string) (string, error) {
	if !currencyPattern.MatchString(currency) {
		return "", domain.NewError(errcodes.ValidationError, fmt.Sprintf("invalid currency code %q", currency))
	}
	return "buy_order_price_" + strings.ToLower(currency), nil
}

// ensureColumn добавляет валютную колонку, если её ещё нет.
func (r *PriceRepository) ensureColumn(ctx context.Context, currency string) (string, error) {
	column, err := columnFor(currency)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.columns[column]; ok {
		return column, nil
	}

	query := fmt.Sprintf(`ALTER TABLE prices ADD COLUMN IF NOT EXISTS %s BIGINT`, column)
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return "", domain.WrapError(err, errcodes.InternalServerError, "failed to add currency column")
	}

	r.columns[column] = struct{}{}

	return column, nil
}

// Get возвращает цену предмета в указанной валюте.
func (r *PriceRepository) Get(ctx context.Context, marketHashName, currency string) (entity.StoredPrice, error) {
	column, err := r.ensureColumn(ctx, currency)
	if err != nil {
		return entity.StoredPrice{}, err
	}

	query := fmt.Sprintf(`
		SELECT market_hash_name, COALESCE(%s, 0) AS value, updated_at
		FROM prices
		WHERE market_hash_name = $1 AND %s IS NOT NULL`, column, column)

	var schema priceSchema
	if err := r.db.GetContext(ctx, &schema, query, marketHashName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.StoredPrice{}, domain.NewError(errcodes.NotFound, "price not found")
		}
		return entity.StoredPrice{}, domain.WrapError(err, errcodes.InternalServerError, "failed to get price")
	}

	return entity.StoredPrice{
		MarketHashName: schema.MarketHashName,
		Currency:       currency,
		Value:          schema.Value,
		UpdatedAt:      schema.UpdatedAt,
	}, nil
}

// Upsert записывает цену и отметку времени одной строкой на предмет.
func (r *PriceRepository) Upsert(ctx context.Context, marketHashName, currency string, value int64) error {
	column, err := r.ensureColumn(ctx, currency)
	if err != nil {
		return err
	}

	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		query := fmt.Sprintf(`
			INSERT INTO prices (market_hash_name, %s, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (market_hash_name)
			DO UPDATE SET %s = EXCLUDED.%s, updated_at = EXCLUDED.updated_at`,
			column, column, column)

		if _, err := tx.ExecContext(ctx, query, marketHashName, value, time.Now()); err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to upsert price")
		}

		return nil
	})
}
