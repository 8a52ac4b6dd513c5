package allocator_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"items_seller/internal/domain"
	"items_seller/internal/domain/entity"
	"items_seller/internal/domain/service/allocator"
	"items_seller/internal/domain/service/selector"
	"items_seller/pkg/errcodes"
)

func group(name string, price int64, count int) entity.ItemGroup {
	assets := make([]string, count)
	for i := range assets {
		assets[i] = name
	}
	return entity.ItemGroup{MarketHashName: name, Price: price, AssetIDs: assets}
}

func newAllocator() *allocator.Allocator {
	return allocator.New(selector.New())
}

func TestAllocateCoversEveryBin(t *testing.T) {
	rq := require.New(t)

	pool := []entity.ItemGroup{
		group("case", 100, 20),
		group("capsule", 250, 4),
	}
	bins := []allocator.Bin{
		{Name: "acc-1", Required: 500},
		{Name: "acc-2", Required: 700},
	}

	plans, err := newAllocator().Allocate(pool, bins, allocator.Policy{OnUnfillable: allocator.FailFast})
	rq.NoError(err)
	rq.Len(plans, 2)

	// Корзины обходятся от большей потребности к меньшей.
	rq.Equal("acc-2", plans[0].Bin)
	rq.Equal("acc-1", plans[1].Bin)

	required := map[string]int64{"acc-1": 500, "acc-2": 700}
	for _, plan := range plans {
		rq.GreaterOrEqual(plan.TotalValue, required[plan.Bin])
		rq.Len(plan.AssetIDs, sumCounts(plan.Counts))
	}
}

func TestAllocateSharedPoolNotOversubscribed(t *testing.T) {
	rq := require.New(t)

	pool := []entity.ItemGroup{
		group("capsule", 500, 2),
	}
	bins := []allocator.Bin{
		{Name: "acc-1", Required: 500},
		{Name: "acc-2", Required: 500},
		{Name: "acc-3", Required: 500},
	}

	_, err := newAllocator().Allocate(pool, bins, allocator.Policy{OnUnfillable: allocator.FailFast})
	rq.Error(err)
	rq.True(domain.HasCode(err, errcodes.SolverInfeasible))

	plans, err := newAllocator().Allocate(pool, bins, allocator.Policy{OnUnfillable: allocator.SkipBin})
	rq.NoError(err)
	rq.Len(plans, 2)

	total := 0
	for _, plan := range plans {
		total += sumCounts(plan.Counts)
	}
	rq.Equal(2, total)
}

func TestAllocateBaselineCoveredAlwaysFails(t *testing.T) {
	rq := require.New(t)

	pool := []entity.ItemGroup{
		group("case", 100, 3),
	}
	bins := []allocator.Bin{
		{Name: "acc-base", Required: 1000, BaselineCovered: true},
	}

	// Политика пропуска не распространяется на корзины из базового
	// покрытия.
	_, err := newAllocator().Allocate(pool, bins, allocator.Policy{OnUnfillable: allocator.SkipBin})
	rq.Error(err)
	rq.True(domain.HasCode(err, errcodes.SolverInfeasible))
}

func TestAllocateGreedyFillWhenBudgetExhausted(t *testing.T) {
	rq := require.New(t)

	pool := []entity.ItemGroup{
		group("sticker", 40, 5),
		group("capsule", 60, 5),
	}
	bins := []allocator.Bin{
		{Name: "acc-1", Required: 100},
	}

	// Бюджет в наносекунду: точный отбор не успевает, корзина
	// наполняется жадно — дорогой предмет плюс добивка дешёвым.
	a := allocator.New(selector.New().WithBudget(time.Nanosecond))

	plans, err := a.Allocate(pool, bins, allocator.Policy{OnUnfillable: allocator.FailFast})
	rq.NoError(err)
	rq.Len(plans, 1)
	rq.Equal(int64(100), plans[0].TotalValue)
	rq.Equal(map[string]int{"capsule": 1, "sticker": 1}, plans[0].Counts)
}

func TestAllocateZeroRequiredSkipped(t *testing.T) {
	rq := require.New(t)

	pool := []entity.ItemGroup{
		group("case", 100, 3),
	}
	bins := []allocator.Bin{
		{Name: "acc-full", Required: 0, BaselineCovered: true},
		{Name: "acc-need", Required: 200},
	}

	plans, err := newAllocator().Allocate(pool, bins, allocator.Policy{OnUnfillable: allocator.FailFast})
	rq.NoError(err)
	rq.Len(plans, 1)
	rq.Equal("acc-need", plans[0].Bin)
	rq.Equal(int64(200), plans[0].TotalValue)
}

func sumCounts(counts map[string]int) int {
	total := 0
	for _, c := range counts {
		total += c
	}
	return total
}
