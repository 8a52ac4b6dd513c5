package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"items_seller/internal/domain"
	"items_seller/internal/domain/entity"
	"items_seller/pkg/errcodes"
)

const accountColumns = `username, steam_id, currency, region, wallet_balance, passes,
	pass_value, prime_cost, trade_url, is_armoury, balance_synced_at`

// AccountRepository — директория аккаунтов.
type AccountRepository struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// withTx выполняет функцию в транзакции.
func (r *AccountRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
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

// ListArmoury возвращает аккаунты, участвующие в распродаже, в
// стабильном порядке.
func (r *AccountRepository) ListArmoury(ctx context.Context) ([]entity.Account, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM accounts
		WHERE is_armoury
		ORDER BY username`, accountColumns)

	return r.list(ctx, query)
}

// ListReceivers возвращает аккаунты-получатели для передач.
func (r *AccountRepository) ListReceivers(ctx context.Context) ([]entity.Account, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM accounts
		WHERE NOT is_armoury
		ORDER BY username`, accountColumns)

	return r.list(ctx, query)
}

func (r *AccountRepository) list(ctx context.Context, query string) ([]entity.Account, error) {
	var schemas []accountSchema
	if err := r.db.SelectContext(ctx, &schemas, query); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to list accounts")
	}

	accounts := make([]entity.Account, 0, len(schemas))
	for _, s := range schemas {
		accounts = append(accounts, s.toDomain())
	}

	return accounts, nil
}

// GetByUsername возвращает аккаунт по имени.
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (entity.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE username = $1`, accountColumns)

	var schema accountSchema
	if err := r.db.GetContext(ctx, &schema, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Account{}, domain.NewError(errcodes.NotFound, "account not found")
		}
		return entity.Account{}, domain.WrapError(err, errcodes.InternalServerError, "failed to get account")
	}

	return schema.toDomain(), nil
}

// GetSecrets возвращает секреты аккаунта для построения клиента.
func (r *AccountRepository) GetSecrets(ctx context.Context, username string) (entity.AccountSecrets, error) {
	query := `SELECT password, shared_secret, identity_secret FROM accounts WHERE username = $1`

	var schema secretsSchema
	if err := r.db.GetContext(ctx, &schema, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.AccountSecrets{}, domain.NewError(errcodes.NotFound, "account not found")
		}
		return entity.AccountSecrets{}, domain.WrapError(err, errcodes.InternalServerError, "failed to get secrets")
	}

	return schema.toDomain(), nil
}

// UpdateWalletBalance записывает актуальный баланс кошелька.
func (r *AccountRepository) UpdateWalletBalance(ctx context.Context, username string, balance int64) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE accounts
			SET wallet_balance = $1, balance_synced_at = $2
			WHERE username = $3`

		res, err := tx.ExecContext(ctx, query, balance, time.Now(), username)
		if err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to update balance")
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to check affected rows")
		}

		if rows == 0 {
			return domain.NewError(errcodes.NotFound, "account not found")
		}

		return nil
	})
}
