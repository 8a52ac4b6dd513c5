package worker

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"
	"golang.org/x/sync/semaphore"

	"items_seller/internal/domain/entity"
	"items_seller/internal/domain/service/allocator"
	"items_seller/internal/domain/service/selector"
	"items_seller/internal/infrastructure/steam"
	"items_seller/internal/lifecycle"
	"items_seller/internal/pricing"
	"items_seller/internal/telemetry"
	"items_seller/pkg/contextx"
	"items_seller/pkg/logx"
)

// Trader — устойчивая обёртка клиента площадки для одного аккаунта.
type Trader interface {
	Call(ctx context.Context, op string, fn func(ctx context.Context, client steam.TradeClient) error) error
}

// TraderFactory строит обёртку по аккаунту и его секретам.
type TraderFactory func(ctx context.Context, account entity.Account, secrets entity.AccountSecrets) (Trader, error)

// AccountDirectory — директория аккаунтов.
type AccountDirectory interface {
	ListArmoury(ctx context.Context) ([]entity.Account, error)
	ListReceivers(ctx context.Context) ([]entity.Account, error)
	GetSecrets(ctx context.Context, username string) (entity.AccountSecrets, error)
	UpdateWalletBalance(ctx context.Context, username string, balance int64) error
}

// Options — параметры одного запуска.
type Options struct {
	// Пустой список — все armoury-аккаунты директории.
	Accounts []string
	// Продавать весь инвентарь, не останавливаясь на пороге.
	SellAll bool
	// После распродажи раздать остатки аккаунтам-получателям.
	Distribute bool
}

// Params — настройки оркестратора.
type Params struct {
	Lifecycle      lifecycle.Params
	Concurrency    int64
	MaxItemsPerRun int
	TaxBuffer      float64
}

// Orchestrator прогоняет цикл распродажи по всем аккаунтам: баланс,
// инвентарь, отбор, жизненный цикл лотов — с ограниченным параллелизмом.
type Orchestrator struct {
	directory AccountDirectory
	cache     *pricing.Cache
	selector  *selector.Selector
	traders   TraderFactory
	params    Params
	registry  *Registry

	transfers *TransferPlanner
	summaries chan<- entity.RunSummary
}

type Option func(*Orchestrator)

// WithSummaries направляет сводки запусков в канал уведомлений.
func WithSummaries(summaries chan<- entity.RunSummary) Option {
	return func(o *Orchestrator) {
		o.summaries = summaries
	}
}

// WithTransfers включает стадию раздачи остатков получателям.
func WithTransfers(transfers *TransferPlanner) Option {
	return func(o *Orchestrator) {
		o.transfers = transfers
	}
}

func NewOrchestrator(
	directory AccountDirectory,
	cache *pricing.Cache,
	sel *selector.Selector,
	traders TraderFactory,
	params Params,
	registry *Registry,
	opts ...Option,
) *Orchestrator {
	if params.Concurrency <= 0 {
		params.Concurrency = 1
	}

	o := &Orchestrator{
		directory: directory,
		cache:     cache,
		selector:  sel,
		traders:   traders,
		params:    params,
		registry:  registry,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Run выполняет один запуск распродажи. Сигнал остановки проверяется
// на границах итераций: начатый аккаунт дорабатывает до конца.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (entity.RunSummary, error) {
	summary := entity.RunSummary{
		ID:        xid.New().String(),
		StartedAt: time.Now(),
	}

	logger(ctx).Info("liquidation run started", logx.FieldRunID, summary.ID)

	accounts, err := o.directory.ListArmoury(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, err.Error())
		o.finish(ctx, &summary)
		return summary, err
	}

	accounts = filterAccounts(accounts, opts.Accounts)

	sem := semaphore.NewWeighted(o.params.Concurrency)

	var (
		mu      sync.Mutex
		results []entity.AccountResult
		wg      sync.WaitGroup
	)

	for _, account := range accounts {
		if ctx.Err() != nil {
			summary.Errors = append(summary.Errors, ctx.Err().Error())
			break
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			summary.Errors = append(summary.Errors, err.Error())
			break
		}

		wg.Add(1)
		go func(account entity.Account) {
			defer wg.Done()
			defer sem.Release(1)

			result := o.runAccount(ctx, account, opts.SellAll)

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}(account)
	}

	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Account < results[j].Account
	})
	summary.Accounts = results

	if opts.Distribute && o.transfers != nil && ctx.Err() == nil {
		o.distribute(ctx, accounts, &summary)
	}

	o.finish(ctx, &summary)

	return summary, nil
}

func (o *Orchestrator) finish(ctx context.Context, summary *entity.RunSummary) {
	summary.FinishedAt = time.Now()
	summary.Outcome = entity.SummarizeOutcome(summary.Accounts, summary.Errors)

	telemetry.Runs.WithLabelValues(string(summary.Outcome)).Inc()
	o.registry.Store(*summary)

	logger(ctx).Info(
		"liquidation run finished",
		logx.FieldRunID, summary.ID,
		"outcome", string(summary.Outcome),
		"accounts", len(summary.Accounts),
	)

	if o.summaries == nil {
		return
	}

	select {
	case o.summaries <- *summary:
	default:
		// Уведомления не должны задерживать запуск.
		logger(ctx).Warn("summary channel is full, notification dropped", logx.FieldRunID, summary.ID)
	}
}

func filterAccounts(accounts []entity.Account, usernames []string) []entity.Account {
	if len(usernames) == 0 {
		return accounts
	}

	wanted := make(map[string]struct{}, len(usernames))
	for _, name := range usernames {
		wanted[name] = struct{}{}
	}

	filtered := make([]entity.Account, 0, len(usernames))
	for _, account := range accounts {
		if _, ok := wanted[account.Username]; ok {
			filtered = append(filtered, account)
		}
	}

	return filtered
}

// runAccount прогоняет цикл распродажи одного аккаунта. Все ошибки
// оседают в результате, наружу ничего не паникует.
func (o *Orchestrator) runAccount(ctx context.Context, account entity.Account, sellAll bool) entity.AccountResult {
	ctx = contextx.WithAccountName(ctx, contextx.AccountName(account.Username))
	ctx = contextx.WithLogger(ctx, logger(ctx).With(logx.FieldAccount, account.Username))

	result := entity.AccountResult{
		Account:    account.Username,
		FinalState: entity.StateIdle,
	}

	trader, err := o.trader(ctx, account)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	balance, err := o.walletBalance(ctx, trader)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	result.WalletBefore = balance
	result.WalletAfter = balance

	threshold := account.Threshold()

	if balance >= threshold && !sellAll {
		logger(ctx).Info(
			"balance above threshold, account skipped",
			"balance", balance,
			"threshold", threshold,
		)
		o.persistBalance(ctx, account.Username, balance, &result)
		return result
	}

	// Запас на комиссию площадки: выручка приходит за вычетом налога.
	required := int64(math.Ceil(float64(threshold-balance) * o.params.TaxBuffer))
	if required < 0 {
		required = 0
	}

	items, err := o.inventory(ctx, trader)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	priced := o.priceItems(ctx, trader, account.Currency, items)
	if len(priced) == 0 {
		logger(ctx).Info("no sellable items in inventory")
		o.persistBalance(ctx, account.Username, balance, &result)
		return result
	}

	plan := o.buildPlan(ctx, account.Username, priced, required, sellAll)

	runResult, err := lifecycle.NewManager(trader, o.params.Lifecycle).Run(ctx, plan)
	runResult.WalletBefore = result.WalletBefore
	runResult.Errors = append(result.Errors, runResult.Errors...)
	result = runResult

	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	}

	if after, err := o.walletBalance(ctx, trader); err != nil {
		result.WalletAfter = result.WalletBefore
		result.Errors = append(result.Errors, err.Error())
	} else {
		result.WalletAfter = after
		o.persistBalance(ctx, account.Username, after, &result)
	}

	return result
}

func (o *Orchestrator) trader(ctx context.Context, account entity.Account) (Trader, error) {
	secrets, err := o.directory.GetSecrets(ctx, account.Username)
	if err != nil {
		return nil, fmt.Errorf("get secrets: %w", err)
	}

	trader, err := o.traders(ctx, account, secrets)
	if err != nil {
		return nil, fmt.Errorf("build trader: %w", err)
	}

	return trader, nil
}

func (o *Orchestrator) walletBalance(ctx context.Context, trader Trader) (int64, error) {
	var balance int64

	err := trader.Call(ctx, "wallet_balance", func(ctx context.Context, client steam.TradeClient) error {
		var err error
		balance, _, err = client.WalletBalance(ctx)
		return err
	})

	return balance, err
}

func (o *Orchestrator) inventory(ctx context.Context, trader Trader) ([]entity.Item, error) {
	var items []entity.Item

	err := trader.Call(ctx, "inventory", func(ctx context.Context, client steam.TradeClient) error {
		var err error
		items, err = client.Inventory(ctx)
		return err
	})

	return items, err
}

// priceItems оценивает продаваемые предметы через кэш цен. Предметы без
// цены выбывают из кандидатов, но не валят аккаунт.
func (o *Orchestrator) priceItems(
	ctx context.Context,
	trader Trader,
	currency string,
	items []entity.Item,
) []entity.PricedItem {
	fetch := func(ctx context.Context, marketHashName string) (entity.OrderBook, error) {
		var book entity.OrderBook
		err := trader.Call(ctx, "order_book", func(ctx context.Context, client steam.TradeClient) error {
			var err error
			book, err = client.OrderBook(ctx, marketHashName)
			return err
		})
		return book, err
	}

	priced := make([]entity.PricedItem, 0, len(items))

	for _, item := range items {
		if !item.Tradable || !item.Marketable {
			continue
		}

		price, err := o.cache.Price(ctx, item.MarketHashName, currency, fetch)
		if err != nil {
			logger(ctx).Warn(
				"item left unpriced",
				logx.FieldItem, item.MarketHashName,
				logx.FieldError, err.Error(),
			)
			continue
		}

		priced = append(priced, entity.PricedItem{Item: item, Price: price})
	}

	return priced
}

// buildPlan отбирает предметы под требуемую выручку. Режим sell-all
// забирает весь инвентарь без решателя.
func (o *Orchestrator) buildPlan(
	ctx context.Context,
	account string,
	priced []entity.PricedItem,
	required int64,
	sellAll bool,
) entity.SellingPlan {
	plan := entity.SellingPlan{Account: account, Target: required}

	if sellAll {
		selected := priced
		if o.params.MaxItemsPerRun > 0 && len(selected) > o.params.MaxItemsPerRun {
			selected = selected[:o.params.MaxItemsPerRun]
		}
		plan.Selected = selected
		for _, item := range selected {
			plan.TotalValue += item.Price
		}
		return plan
	}

	groups := entity.GroupItems(priced)

	sel, status := o.selector.Select(groups, required, o.params.MaxItemsPerRun)
	if status != selector.StatusOptimal {
		telemetry.SolverFallbacks.WithLabelValues(string(status)).Inc()
		logger(ctx).Warn(
			"selection served without optimality",
			"status", string(status),
			"target", required,
		)
	}

	plan.Selected = pickItems(groups, sel.Counts)
	plan.TotalValue = sel.TotalValue
	plan.UnderTarget = sel.UnderTarget

	return plan
}

// pickItems выбирает конкретные предметы под назначенные количества.
func pickItems(groups []entity.ItemGroup, counts map[string]int) []entity.PricedItem {
	items := make([]entity.PricedItem, 0)

	for _, g := range groups {
		taken := counts[g.MarketHashName]
		if taken > len(g.AssetIDs) {
			taken = len(g.AssetIDs)
		}

		for _, assetID := range g.AssetIDs[:taken] {
			items = append(items, entity.PricedItem{
				Item: entity.Item{
					AssetID:        assetID,
					MarketHashName: g.MarketHashName,
					Tradable:       true,
					Marketable:     true,
				},
				Price: g.Price,
			})
		}
	}

	return items
}

func (o *Orchestrator) persistBalance(ctx context.Context, username string, balance int64, result *entity.AccountResult) {
	if err := o.directory.UpdateWalletBalance(ctx, username, balance); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("persist balance: %v", err))
	}
}

// distribute раздаёт остатки инвентаря доноров аккаунтам-получателям.
// Доноры обходятся последовательно: передачи не параллелятся.
func (o *Orchestrator) distribute(ctx context.Context, donors []entity.Account, summary *entity.RunSummary) {
	receivers, err := o.directory.ListReceivers(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("list receivers: %v", err))
		return
	}
	if len(receivers) == 0 {
		return
	}

	for _, donor := range donors {
		if ctx.Err() != nil {
			summary.Errors = append(summary.Errors, ctx.Err().Error())
			return
		}

		if err := o.transferFrom(ctx, donor, receivers); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("transfer from %s: %v", donor.Username, err))
		}
	}
}

func (o *Orchestrator) transferFrom(ctx context.Context, donor entity.Account, receivers []entity.Account) error {
	ctx = contextx.WithAccountName(ctx, contextx.AccountName(donor.Username))
	ctx = contextx.WithLogger(ctx, logger(ctx).With(logx.FieldAccount, donor.Username))

	trader, err := o.trader(ctx, donor)
	if err != nil {
		return err
	}

	items, err := o.inventory(ctx, trader)
	if err != nil {
		return err
	}

	pool := entity.GroupItems(o.priceItems(ctx, trader, donor.Currency, items))
	if len(pool) == 0 {
		return nil
	}

	plans, err := o.transfers.Plan(ctx, donor, pool, receivers, allocator.Policy{OnUnfillable: allocator.SkipBin})
	if err != nil {
		return err
	}

	return o.transfers.Execute(ctx, trader, donor.Username, receivers, plans)
}
