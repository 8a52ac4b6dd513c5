package worker_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"items_seller/internal/domain"
	"items_seller/internal/domain/entity"
	"items_seller/internal/domain/service/selector"
	"items_seller/internal/infrastructure/steam"
	"items_seller/internal/lifecycle"
	"items_seller/internal/pricing"
	"items_seller/internal/worker"
	"items_seller/pkg/errcodes"
)

type fakeDirectory struct {
	mu        sync.Mutex
	armoury   []entity.Account
	receivers []entity.Account
	updated   map[string]int64
}

func newFakeDirectory(armoury ...entity.Account) *fakeDirectory {
	return &fakeDirectory{armoury: armoury, updated: make(map[string]int64)}
}

func (d *fakeDirectory) ListArmoury(context.Context) ([]entity.Account, error) {
	return d.armoury, nil
}

func (d *fakeDirectory) ListReceivers(context.Context) ([]entity.Account, error) {
	return d.receivers, nil
}

func (d *fakeDirectory) GetSecrets(context.Context, string) (entity.AccountSecrets, error) {
	return entity.AccountSecrets{}, nil
}

func (d *fakeDirectory) UpdateWalletBalance(_ context.Context, username string, balance int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.updated[username] = balance
	return nil
}

func (d *fakeDirectory) balanceOf(username string) (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	balance, ok := d.updated[username]
	return balance, ok
}

// fakeMarket — клиент площадки, на которой всё продаётся мгновенно:
// активных лотов после выставления не остаётся.
type fakeMarket struct {
	mu sync.Mutex

	balance   int64
	inventory []entity.Item
	books     map[string]entity.OrderBook

	nextID        int
	createdPrices []int64
	createdAssets []string
	trades        []string
}

func (c *fakeMarket) Login(context.Context) error  { return nil }
func (c *fakeMarket) Logout(context.Context) error { return nil }
func (c *fakeMarket) Close(context.Context) error  { return nil }
func (c *fakeMarket) SaveSession() error           { return nil }

func (c *fakeMarket) WalletBalance(context.Context) (int64, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance, "USD", nil
}

func (c *fakeMarket) Inventory(context.Context) ([]entity.Item, error) {
	return c.inventory, nil
}

func (c *fakeMarket) ActiveListings(context.Context) ([]entity.Listing, error) {
	return nil, nil
}

func (c *fakeMarket) CreateListing(_ context.Context, assetID string, price int64) (entity.Listing, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	c.createdPrices = append(c.createdPrices, price)
	c.createdAssets = append(c.createdAssets, assetID)

	return entity.Listing{ID: fmt.Sprintf("listing-%d", c.nextID), AssetID: assetID, Price: price}, nil
}

func (c *fakeMarket) CancelListing(context.Context, string) error  { return nil }
func (c *fakeMarket) ConfirmListing(context.Context, string) error { return nil }

func (c *fakeMarket) OrderBook(_ context.Context, marketHashName string) (entity.OrderBook, error) {
	book, ok := c.books[marketHashName]
	if !ok {
		return entity.OrderBook{}, domain.NewError(errcodes.NotFound, "no order book")
	}
	return book, nil
}

func (c *fakeMarket) SendTrade(_ context.Context, tradeURL string, assetIDs []string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.trades = append(c.trades, fmt.Sprintf("%s:%d", tradeURL, len(assetIDs)))
	return "offer-1", nil
}

type fakeTrader struct {
	client *fakeMarket
}

func (t *fakeTrader) Call(ctx context.Context, _ string, fn func(ctx context.Context, client steam.TradeClient) error) error {
	return fn(ctx, t.client)
}

type memoryStore struct {
	mu   sync.Mutex
	rows map[string]entity.StoredPrice
}

func (s *memoryStore) Get(_ context.Context, name, currency string) (entity.StoredPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[name+"|"+currency]
	if !ok {
		return entity.StoredPrice{}, domain.NewError(errcodes.NotFound, "price not found")
	}
	return row, nil
}

func (s *memoryStore) Upsert(_ context.Context, name, currency string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows[name+"|"+currency] = entity.StoredPrice{
		MarketHashName: name,
		Currency:       currency,
		Value:          value,
		UpdatedAt:      time.Now(),
	}
	return nil
}

func testParams() worker.Params {
	return worker.Params{
		Lifecycle: lifecycle.Params{
			SaleMultiplier:    1,
			MaxAttempts:       2,
			InitialMultiplier: 0.97,
			Decrement:         0.02,
			MinWait:           time.Millisecond,
			MaxWait:           2 * time.Millisecond,
		},
		Concurrency:    2,
		MaxItemsPerRun: 100,
		TaxBuffer:      1.15,
	}
}

func newTestOrchestrator(
	directory *fakeDirectory,
	client *fakeMarket,
	registry *worker.Registry,
	opts ...worker.Option,
) *worker.Orchestrator {
	cache := pricing.NewCache(
		&memoryStore{rows: make(map[string]entity.StoredPrice)},
		pricing.NewQuoteFetcher(0.9, 3),
		nil,
		time.Hour,
		time.Hour,
	)

	traders := func(context.Context, entity.Account, entity.AccountSecrets) (worker.Trader, error) {
		return &fakeTrader{client: client}, nil
	}

	return worker.NewOrchestrator(directory, cache, selector.New(), traders, testParams(), registry, opts...)
}

func armouryAccount(balance int64) entity.Account {
	return entity.Account{
		Username:      "armoury-1",
		Currency:      "USD",
		WalletBalance: balance,
		Passes:        5,
		PassValue:     100,
		IsArmoury:     true,
	}
}

func caseInventory(count int) ([]entity.Item, map[string]entity.OrderBook) {
	items := make([]entity.Item, 0, count)
	for i := 0; i < count; i++ {
		items = append(items, entity.Item{
			AssetID:        fmt.Sprintf("asset-%d", i+1),
			MarketHashName: "case-alpha",
			Tradable:       true,
			Marketable:     true,
		})
	}

	books := map[string]entity.OrderBook{
		"case-alpha": {HighestBuyOrder: 120},
	}

	return items, books
}

func TestRunSellsEverythingWhenPoolUnderTarget(t *testing.T) {
	rq := require.New(t)

	// Порог 500, баланс 50, требуется ceil(450 * 1.15) = 518.
	// Четыре предмета по 120 дают только 480: продаётся всё.
	client := &fakeMarket{balance: 50}
	client.inventory, client.books = caseInventory(4)

	directory := newFakeDirectory(armouryAccount(50))
	registry := worker.NewRegistry()

	summaries := make(chan entity.RunSummary, 1)
	o := newTestOrchestrator(directory, client, registry, worker.WithSummaries(summaries))

	summary, err := o.Run(context.Background(), worker.Options{})
	rq.NoError(err)
	rq.Len(summary.Accounts, 1)

	result := summary.Accounts[0]
	rq.Equal("armoury-1", result.Account)
	rq.True(result.UnderTarget)
	rq.Equal(4, result.Attempted)
	rq.Equal(4, result.Sold)
	rq.Equal(entity.StateDone, result.FinalState)
	rq.Len(client.createdPrices, 4)

	// Баланс после цикла записан в директорию.
	balance, ok := directory.balanceOf("armoury-1")
	rq.True(ok)
	rq.Equal(int64(50), balance)

	rq.Equal(entity.RunOutcomeSuccess, summary.Outcome)

	// Сводка ушла в канал уведомлений и в реестр.
	rq.Len(summaries, 1)
	stored, ok := registry.Get(summary.ID)
	rq.True(ok)
	rq.Equal(summary.ID, stored.ID)
	latest, ok := registry.Latest()
	rq.True(ok)
	rq.Equal(summary.ID, latest.ID)
}

func TestRunSkipsCoveredAccount(t *testing.T) {
	rq := require.New(t)

	client := &fakeMarket{balance: 600}
	client.inventory, client.books = caseInventory(4)

	directory := newFakeDirectory(armouryAccount(600))
	o := newTestOrchestrator(directory, client, worker.NewRegistry())

	summary, err := o.Run(context.Background(), worker.Options{})
	rq.NoError(err)
	rq.Len(summary.Accounts, 1)

	result := summary.Accounts[0]
	rq.Equal(entity.StateIdle, result.FinalState)
	rq.Zero(result.Attempted)
	rq.Empty(client.createdPrices)

	balance, ok := directory.balanceOf("armoury-1")
	rq.True(ok)
	rq.Equal(int64(600), balance)
}

func TestRunSellAllIgnoresThreshold(t *testing.T) {
	rq := require.New(t)

	client := &fakeMarket{balance: 600}
	client.inventory, client.books = caseInventory(3)

	directory := newFakeDirectory(armouryAccount(600))
	o := newTestOrchestrator(directory, client, worker.NewRegistry())

	summary, err := o.Run(context.Background(), worker.Options{SellAll: true})
	rq.NoError(err)
	rq.Len(summary.Accounts, 1)

	result := summary.Accounts[0]
	rq.Equal(3, result.Attempted)
	rq.Equal(3, result.Sold)
	rq.Len(client.createdPrices, 3)
}

func TestRunFiltersAccounts(t *testing.T) {
	rq := require.New(t)

	other := armouryAccount(50)
	other.Username = "armoury-2"

	client := &fakeMarket{balance: 600}
	directory := newFakeDirectory(armouryAccount(600), other)
	o := newTestOrchestrator(directory, client, worker.NewRegistry())

	summary, err := o.Run(context.Background(), worker.Options{Accounts: []string{"armoury-1"}})
	rq.NoError(err)
	rq.Len(summary.Accounts, 1)
	rq.Equal("armoury-1", summary.Accounts[0].Account)
}
