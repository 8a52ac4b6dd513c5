package worker_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"items_seller/internal/domain/entity"
	"items_seller/internal/domain/service/allocator"
	"items_seller/internal/domain/service/selector"
	"items_seller/internal/worker"
)

// fakeRates умножает сумму на фиксированный курс между любыми парами.
type fakeRates struct {
	rate float64
}

func (r *fakeRates) Convert(_ context.Context, amount int64, from, to string) (int64, error) {
	if strings.EqualFold(from, to) {
		return amount, nil
	}
	return int64(float64(amount) * r.rate), nil
}

func donorAccount() entity.Account {
	return entity.Account{Username: "donor-1", Currency: "EUR"}
}

func TestTransferPlanConvertsReceiverRequirement(t *testing.T) {
	rq := require.New(t)

	planner := worker.NewTransferPlanner(
		allocator.New(selector.New()),
		&fakeRates{rate: 2},
		1,
	)

	// Получателю нужно 2*100 + 50 = 250 USD, в валюте донора 500 EUR.
	receiver := entity.Account{
		Username:  "receiver-1",
		Currency:  "USD",
		Passes:    2,
		PassValue: 100,
		PrimeCost: 50,
		TradeURL:  "https://trade.example/receiver-1",
	}

	pool := []entity.ItemGroup{
		{MarketHashName: "case-alpha", Price: 200, AssetIDs: []string{"a1", "a2", "a3"}},
	}

	plans, err := planner.Plan(
		context.Background(),
		donorAccount(),
		pool,
		[]entity.Account{receiver},
		allocator.Policy{OnUnfillable: allocator.SkipBin},
	)
	rq.NoError(err)
	rq.Len(plans, 1)

	rq.Equal("donor-1", plans[0].Donor)
	rq.Equal("receiver-1", plans[0].Receiver)
	// 500 EUR покрывается тремя предметами по 200.
	rq.Equal(int64(600), plans[0].TotalValue)
	rq.Len(plans[0].AssetIDs, 3)
}

func TestTransferPlanSkipsCoveredReceiver(t *testing.T) {
	rq := require.New(t)

	planner := worker.NewTransferPlanner(
		allocator.New(selector.New()),
		&fakeRates{rate: 1},
		1,
	)

	covered := entity.Account{
		Username:      "receiver-1",
		Currency:      "EUR",
		Passes:        1,
		PassValue:     100,
		WalletBalance: 500,
	}

	pool := []entity.ItemGroup{
		{MarketHashName: "case-alpha", Price: 100, AssetIDs: []string{"a1"}},
	}

	plans, err := planner.Plan(
		context.Background(),
		donorAccount(),
		pool,
		[]entity.Account{covered},
		allocator.Policy{OnUnfillable: allocator.SkipBin},
	)
	rq.NoError(err)
	rq.Empty(plans)
}

func TestTransferExecuteSendsPerReceiver(t *testing.T) {
	rq := require.New(t)

	planner := worker.NewTransferPlanner(
		allocator.New(selector.New()),
		&fakeRates{rate: 1},
		1,
	)

	client := &fakeMarket{}
	receivers := []entity.Account{
		{Username: "receiver-1", TradeURL: "https://trade.example/r1"},
		{Username: "receiver-2", TradeURL: "https://trade.example/r2"},
	}
	plans := []entity.TransferPlan{
		{Donor: "donor-1", Receiver: "receiver-1", AssetIDs: []string{"a1", "a2"}},
		{Donor: "donor-1", Receiver: "receiver-2", AssetIDs: []string{"a3"}},
	}

	err := planner.Execute(context.Background(), &fakeTrader{client: client}, "donor-1", receivers, plans)
	rq.NoError(err)
	rq.Equal([]string{
		"https://trade.example/r1:2",
		"https://trade.example/r2:1",
	}, client.trades)
}

func TestTransferExecuteFailsWithoutTradeURL(t *testing.T) {
	rq := require.New(t)

	planner := worker.NewTransferPlanner(
		allocator.New(selector.New()),
		&fakeRates{rate: 1},
		1,
	)

	client := &fakeMarket{}
	plans := []entity.TransferPlan{
		{Donor: "donor-1", Receiver: "receiver-1", AssetIDs: []string{"a1"}},
	}

	err := planner.Execute(
		context.Background(),
		&fakeTrader{client: client},
		"donor-1",
		[]entity.Account{{Username: "receiver-1"}},
		plans,
	)
	rq.Error(err)
	rq.Empty(client.trades)
}
