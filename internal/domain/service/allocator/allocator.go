package allocator

import (
	"fmt"
	"sort"

	"items_seller/internal/domain"
	"items_seller/internal/domain/entity"
	"items_seller/internal/domain/service/selector"
	"items_seller/pkg/errcodes"
)

// Bin — получатель с порогом покрытия в минорных единицах.
// BaselineCovered помечает корзины, уже покрытые до распределения:
// такие корзины обязаны остаться покрытыми.
type Bin struct {
	Name            string
	Required        int64
	BaselineCovered bool
}

// Unfillable — поведение при корзине, которую нечем покрыть.
type Unfillable string

const (
	FailFast Unfillable = "fail_fast"
	SkipBin  Unfillable = "skip_bin"
)

type Policy struct {
	OnUnfillable Unfillable
}

// Plan — назначение предметов одной корзине.
type Plan struct {
	Bin        string
	Counts     map[string]int
	AssetIDs   []string
	TotalValue int64
}

// Allocator распределяет общий пул предметов по корзинам так, чтобы
// каждая корзина была покрыта с минимальным перелётом.
type Allocator struct {
	selector *selector.Selector
}

func New(sel *selector.Selector) *Allocator {
	return &Allocator{selector: sel}
}

// Allocate обходит корзины в детерминированном порядке и жадно по
// корзинам применяет точный отбор. Пул уменьшается после каждой
// корзины. Корзины с нулевой потребностью пропускаются.
func (a *Allocator) Allocate(groups []entity.ItemGroup, bins []Bin, policy Policy) ([]Plan, error) {
	pool := make([]entity.ItemGroup, len(groups))
	for i, g := range groups {
		assets := make([]string, len(g.AssetIDs))
		copy(assets, g.AssetIDs)
		pool[i] = entity.ItemGroup{
			MarketHashName: g.MarketHashName,
			Price:          g.Price,
			AssetIDs:       assets,
		}
	}

	sorted := make([]Bin, len(bins))
	copy(sorted, bins)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Required != sorted[j].Required {
			return sorted[i].Required > sorted[j].Required
		}
		return sorted[i].Name < sorted[j].Name
	})

	plans := make([]Plan, 0, len(sorted))

	for _, bin := range sorted {
		if bin.Required <= 0 {
			continue
		}

		sel, status := a.selector.Select(pool, bin.Required, 0)
		if status == selector.StatusUnknown {
			// Точный отбор не уложился в бюджет: корзина наполняется
			// жадно, дорогие без перелёта плюс добивка дешёвыми.
			sel = greedyFill(pool, bin.Required)
		}
		if status == selector.StatusInfeasible || sel.UnderTarget {
			if bin.BaselineCovered || policy.OnUnfillable == FailFast {
				return nil, domain.NewError(
					errcodes.SolverInfeasible,
					fmt.Sprintf("bin %s requires %d, pool is short", bin.Name, bin.Required),
				)
			}
			continue
		}

		plans = append(plans, Plan{
			Bin:        bin.Name,
			Counts:     sel.Counts,
			AssetIDs:   pickAssets(pool, sel.Counts),
			TotalValue: sel.TotalValue,
		})

		pool = subtract(pool, sel.Counts)
	}

	return plans, nil
}

// greedyFill наполняет корзину без точного перебора: дорогие предметы
// укладываются, пока не превышают порог, затем самые дешёвые добивают
// сумму до покрытия.
func greedyFill(pool []entity.ItemGroup, required int64) selector.Selection {
	sorted := make([]entity.ItemGroup, len(pool))
	copy(sorted, pool)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Price != sorted[j].Price {
			return sorted[i].Price > sorted[j].Price
		}
		return sorted[i].MarketHashName < sorted[j].MarketHashName
	})

	sel := selector.Selection{Counts: map[string]int{}}
	taken := make([]int, len(sorted))

	for i, g := range sorted {
		for taken[i] < g.Count() && sel.TotalValue+g.Price <= required {
			taken[i]++
			sel.Counts[g.MarketHashName]++
			sel.TotalValue += g.Price
			sel.TotalItems++
		}
	}

	for i := len(sorted) - 1; i >= 0 && sel.TotalValue < required; i-- {
		for taken[i] < sorted[i].Count() && sel.TotalValue < required {
			taken[i]++
			sel.Counts[sorted[i].MarketHashName]++
			sel.TotalValue += sorted[i].Price
			sel.TotalItems++
		}
	}

	sel.UnderTarget = sel.TotalValue < required

	return sel
}

// pickAssets выбирает конкретные asset id под назначенные количества.
func pickAssets(pool []entity.ItemGroup, counts map[string]int) []string {
	assets := make([]string, 0)

	for _, g := range pool {
		taken := counts[g.MarketHashName]
		if taken > len(g.AssetIDs) {
			taken = len(g.AssetIDs)
		}
		assets = append(assets, g.AssetIDs[:taken]...)
	}

	return assets
}

// subtract убирает назначенные предметы из пула.
func subtract(pool []entity.ItemGroup, counts map[string]int) []entity.ItemGroup {
	next := pool[:0]

	for _, g := range pool {
		taken := counts[g.MarketHashName]
		if taken >= len(g.AssetIDs) {
			continue
		}
		g.AssetIDs = g.AssetIDs[taken:]
		next = append(next, g)
	}

	return next
}
