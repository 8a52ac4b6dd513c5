package lifecycle

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"items_seller/internal/domain"
	"items_seller/internal/domain/entity"
	"items_seller/internal/infrastructure/steam"
	"items_seller/internal/telemetry"
	"items_seller/pkg/errcodes"
	"items_seller/pkg/logx"
)

// trader — ровно то, что циклу нужно от устойчивой обёртки клиента.
type trader interface {
	Call(ctx context.Context, op string, fn func(ctx context.Context, client steam.TradeClient) error) error
}

// Params — параметры цикла продажи одного аккаунта.
type Params struct {
	SaleMultiplier    float64
	MaxAttempts       int
	InitialMultiplier float64
	Decrement         float64
	MinWait           time.Duration
	MaxWait           time.Duration
}

const (
	verifyWaitMin = 5 * time.Second
	verifyWaitMax = 10 * time.Second

	// Предмет выбывает из запуска после четвёртого промаха по
	// инвентарю.
	maxInventoryMisses = 4
)

// Manager гоняет конечный автомат продажи: первичное выставление,
// ожидание, сверка, раунды переоценки.
type Manager struct {
	caller trader
	params Params
	sleep  steam.Sleeper
	rnd    *rand.Rand
}

type Option func(*Manager)

func WithSleeper(sleep steam.Sleeper) Option {
	return func(m *Manager) {
		m.sleep = sleep
	}
}

func WithRand(rnd *rand.Rand) Option {
	return func(m *Manager) {
		m.rnd = rnd
	}
}

func NewManager(caller trader, params Params, opts ...Option) *Manager {
	m := &Manager{
		caller: caller,
		params: params,
		sleep:  defaultSleep,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // джиттер пауз
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WaitFor возвращает паузу перед сверкой номер attempt (с единицы):
// линейная интерполяция от MinWait к MaxWait по числу попыток.
func (m *Manager) WaitFor(attempt int) time.Duration {
	if attempt <= 1 || m.params.MaxAttempts <= 1 {
		return m.params.MinWait
	}
	if attempt >= m.params.MaxAttempts {
		return m.params.MaxWait
	}

	step := float64(m.params.MaxWait-m.params.MinWait) / float64(m.params.MaxAttempts-1)
	return m.params.MinWait + time.Duration(float64(attempt-1)*step)
}

// CleanupPrice возвращает цену переоценки: базовая цена, множитель
// раунда и запас продажи, округление вверх до минорной единицы.
func (m *Manager) CleanupPrice(base int64, round int) int64 {
	multiplier := m.params.InitialMultiplier - float64(round-1)*m.params.Decrement
	if multiplier <= 0 {
		multiplier = m.params.Decrement
	}

	price := int64(math.Ceil(float64(base) * multiplier * m.params.SaleMultiplier))
	if price < 1 {
		price = 1
	}
	return price
}

// listingPrice — цена первичного выставления.
func (m *Manager) listingPrice(base int64) int64 {
	price := int64(math.Ceil(float64(base) * m.params.SaleMultiplier))
	if price < 1 {
		price = 1
	}
	return price
}

type trackedItem struct {
	item      entity.PricedItem
	listingID string
}

// Run прогоняет план продажи до терминального состояния. Сигнал
// остановки проверяется только на границах фаз: начатая фаза
// дорабатывает до конца.
func (m *Manager) Run(ctx context.Context, plan entity.SellingPlan) (entity.AccountResult, error) {
	result := entity.AccountResult{
		Account:     plan.Account,
		Attempted:   len(plan.Selected),
		UnderTarget: plan.UnderTarget,
	}

	state := entity.StateIdle

	state, err := entity.Transition(state, entity.StateInitialSweep)
	if err != nil {
		return result, err
	}

	logger(ctx).Info(
		"initial sweep started",
		logx.FieldAccount, plan.Account,
		"items", len(plan.Selected),
	)

	// Хвосты прошлых запусков снимаются до выставления: их стоимость
	// уходит в непроданный остаток.
	m.cancelStale(ctx, &result)

	active := m.sweep(ctx, plan.Selected, &result)

	if len(active) == 0 {
		state, _ = entity.Transition(state, entity.StateDone)
		result.FinalState = state
		return result, nil
	}

	state, err = entity.Transition(state, entity.StateWaiting)
	if err != nil {
		return result, err
	}

	for attempt := 1; ; attempt++ {
		if err := m.sleep(ctx, m.WaitFor(attempt)); err != nil {
			result.FinalState = state
			return result, err
		}

		state, err = entity.Transition(state, entity.StateAudit)
		if err != nil {
			return result, err
		}

		unsold, auditErr := m.audit(ctx, active, &result)
		if auditErr != nil {
			result.Errors = append(result.Errors, auditErr.Error())
			result.FinalState = state
			return result, auditErr
		}

		active = unsold

		if len(active) == 0 {
			state, _ = entity.Transition(state, entity.StateDone)
			result.FinalState = state
			return result, nil
		}

		if attempt >= m.params.MaxAttempts {
			// Лоты уже сняты сверкой: остаток — стоимость предметов,
			// вернувшихся в инвентарь непроданными.
			state, _ = entity.Transition(state, entity.StateMaxAttemptsExceeded)
			result.FinalState = state
			for _, t := range active {
				result.ResidualValue += t.item.Price
			}
			return result, nil
		}

		if err := ctx.Err(); err != nil {
			result.FinalState = state
			return result, err
		}

		state, err = entity.Transition(state, entity.StateCleanupRound)
		if err != nil {
			return result, err
		}

		active = m.cleanup(ctx, active, attempt, &result)

		if len(active) == 0 {
			// Переоценка ничего не переразместила: завершаем через
			// пустую сверку.
			state, _ = entity.Transition(state, entity.StateWaiting)
			continue
		}

		state, err = entity.Transition(state, entity.StateWaiting)
		if err != nil {
			return result, err
		}
	}
}

// sweep выставляет предметы плана. Возвращает размещённые лоты.
func (m *Manager) sweep(ctx context.Context, selected []entity.PricedItem, result *entity.AccountResult) []trackedItem {
	queue := make([]entity.PricedItem, len(selected))
	copy(queue, selected)

	misses := make(map[string]int)
	active := make([]trackedItem, 0, len(queue))

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		listing, err := m.place(ctx, item, m.listingPrice(item.Price))
		if err == nil {
			active = append(active, trackedItem{item: item, listingID: listing.ID})
			telemetry.ListingsPlaced.Inc()
			continue
		}

		switch {
		case domain.HasCode(err, errcodes.ItemNotInInventory):
			if m.handleMissing(ctx, item, misses) {
				queue = append(queue, item)
			} else {
				result.Dropped++
				telemetry.ItemsDropped.Inc()
			}
		case domain.HasCode(err, errcodes.ListingPendingConfirmation):
			if confirmed := m.confirmPending(ctx, item, result); confirmed != nil {
				active = append(active, *confirmed)
			}
		default:
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", item.MarketHashName, err))
		}
	}

	return active
}

func (m *Manager) place(ctx context.Context, item entity.PricedItem, price int64) (entity.Listing, error) {
	var listing entity.Listing

	err := m.caller.Call(ctx, "create_listing", func(ctx context.Context, client steam.TradeClient) error {
		var err error
		listing, err = client.CreateListing(ctx, item.AssetID, price)
		return err
	})

	return listing, err
}

// handleMissing разбирает промах по инвентарю. Первый промах — предмет
// возвращается в очередь; дальше пауза и сверка со свежим инвентарём;
// после четвёртого предмет выбывает.
func (m *Manager) handleMissing(ctx context.Context, item entity.PricedItem, misses map[string]int) bool {
	misses[item.AssetID]++
	n := misses[item.AssetID]

	logger(ctx).Warn(
		"item missing from inventory",
		logx.FieldItem, item.MarketHashName,
		logx.FieldAttempt, n,
	)

	if n >= maxInventoryMisses {
		return false
	}

	if n == 1 {
		return true
	}

	wait := verifyWaitMin + time.Duration(m.rnd.Int63n(int64(verifyWaitMax-verifyWaitMin)))
	if err := m.sleep(ctx, wait); err != nil {
		return false
	}

	// Сверка со свежим инвентарём: иногда площадка просто ещё не
	// видит предмет. Результат сверки лишь попадает в лог, предмет
	// остаётся в очереди до четвёртого промаха.
	var present bool
	err := m.caller.Call(ctx, "inventory", func(ctx context.Context, client steam.TradeClient) error {
		items, err := client.Inventory(ctx)
		if err != nil {
			return err
		}
		for _, candidate := range items {
			if candidate.AssetID == item.AssetID {
				present = true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		logger(ctx).Warn("inventory verification failed", logx.FieldError, err.Error())
		return true
	}

	if !present {
		logger(ctx).Warn(
			"item still missing after verification",
			logx.FieldItem, item.MarketHashName,
			logx.FieldAttempt, n,
		)
	}

	return true
}

func (m *Manager) confirmPending(ctx context.Context, item entity.PricedItem, result *entity.AccountResult) *trackedItem {
	var confirmedID string

	err := m.caller.Call(ctx, "confirm_listing", func(ctx context.Context, client steam.TradeClient) error {
		// Лот создан, но ждёт подтверждения: ищем его среди активных
		// и подтверждаем.
		listings, err := client.ActiveListings(ctx)
		if err != nil {
			return err
		}
		for _, l := range listings {
			if l.AssetID == item.AssetID {
				confirmedID = l.ID
				return client.ConfirmListing(ctx, l.ID)
			}
		}
		return nil
	})
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", item.MarketHashName, err))
		return nil
	}

	if confirmedID == "" {
		return nil
	}

	telemetry.ListingsPlaced.Inc()
	telemetry.ListingsConfirmed.Inc()

	return &trackedItem{item: item, listingID: confirmedID}
}

// cancelStale снимает активные лоты, оставшиеся от прошлых запусков.
// Их стоимость идёт в непроданный остаток.
func (m *Manager) cancelStale(ctx context.Context, result *entity.AccountResult) {
	var listings []entity.Listing

	err := m.caller.Call(ctx, "active_listings", func(ctx context.Context, client steam.TradeClient) error {
		var err error
		listings, err = client.ActiveListings(ctx)
		return err
	})
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("stale listings: %v", err))
		return
	}

	for _, l := range listings {
		result.ResidualValue += l.Price

		err := m.caller.Call(ctx, "cancel_listing", func(ctx context.Context, client steam.TradeClient) error {
			return client.CancelListing(ctx, l.ID)
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("cancel stale %s: %v", l.ID, err))
			continue
		}
		telemetry.ListingsCancelled.Inc()
	}

	if len(listings) > 0 {
		logger(ctx).Warn("cancelled stale listings", "count", len(listings))
	}
}

// audit сверяет размещённые лоты с активными на площадке. Всё ещё
// активное не продано: лот снимается, предмет уходит в очередь
// переоценки. Неснятый лот учитывается в остатке сразу.
func (m *Manager) audit(ctx context.Context, placed []trackedItem, result *entity.AccountResult) ([]trackedItem, error) {
	var listings []entity.Listing

	err := m.caller.Call(ctx, "active_listings", func(ctx context.Context, client steam.TradeClient) error {
		var err error
		listings, err = client.ActiveListings(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	activeIDs := make(map[string]struct{}, len(listings))
	for _, l := range listings {
		activeIDs[l.ID] = struct{}{}
	}

	unsold := make([]trackedItem, 0, len(placed))
	for _, t := range placed {
		if _, ok := activeIDs[t.listingID]; !ok {
			result.Sold++
			continue
		}

		err := m.caller.Call(ctx, "cancel_listing", func(ctx context.Context, client steam.TradeClient) error {
			return client.CancelListing(ctx, t.listingID)
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("cancel %s: %v", t.item.MarketHashName, err))
			result.ResidualValue += t.item.Price
			continue
		}
		telemetry.ListingsCancelled.Inc()

		unsold = append(unsold, t)
	}

	return unsold, nil
}

// cleanup переразмещает непроданное дешевле. Инвентарь перечитывается:
// после снятия лота asset id предмета мог смениться.
func (m *Manager) cleanup(ctx context.Context, unsold []trackedItem, round int, result *entity.AccountResult) []trackedItem {
	byAsset, byName := m.refreshInventory(ctx)

	next := make([]trackedItem, 0, len(unsold))

	for _, t := range unsold {
		item := t.item
		if _, ok := byAsset[item.AssetID]; ok {
			claimAsset(byName, item.MarketHashName, item.AssetID)
		} else if ids := byName[item.MarketHashName]; len(ids) > 0 {
			item.AssetID = ids[0]
			byName[item.MarketHashName] = ids[1:]
		}

		listing, err := m.place(ctx, item, m.CleanupPrice(item.Price, round))
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("relist %s: %v", item.MarketHashName, err))
			result.ResidualValue += item.Price
			continue
		}
		telemetry.ListingsPlaced.Inc()

		next = append(next, trackedItem{item: item, listingID: listing.ID})
	}

	return next
}

// claimAsset убирает asset id из именного индекса, чтобы его не занял
// другой предмет с тем же именем.
func claimAsset(byName map[string][]string, name, assetID string) {
	ids := byName[name]
	for i, id := range ids {
		if id == assetID {
			byName[name] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

// refreshInventory возвращает свежий инвентарь как индекс по asset id и
// по имени. Ошибка чтения не фатальна: переразмещение идёт по старым id.
func (m *Manager) refreshInventory(ctx context.Context) (map[string]struct{}, map[string][]string) {
	var items []entity.Item

	err := m.caller.Call(ctx, "inventory", func(ctx context.Context, client steam.TradeClient) error {
		var err error
		items, err = client.Inventory(ctx)
		return err
	})
	if err != nil {
		logger(ctx).Warn("inventory refresh failed", logx.FieldError, err.Error())
		return map[string]struct{}{}, map[string][]string{}
	}

	byAsset := make(map[string]struct{}, len(items))
	byName := make(map[string][]string)
	for _, item := range items {
		byAsset[item.AssetID] = struct{}{}
		byName[item.MarketHashName] = append(byName[item.MarketHashName], item.AssetID)
	}

	return byAsset, byName
}
