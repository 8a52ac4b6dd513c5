package selector

import (
	"math"
	"sort"
	"time"

	"items_seller/internal/domain/entity"
)

// Status — итог работы решателя.
type Status string

const (
	// StatusOptimal — найден минимальный по перебору перелёт.
	StatusOptimal Status = "optimal"
	// StatusFeasible — найдено допустимое решение без гарантии минимальности.
	StatusFeasible Status = "feasible"
	// StatusInfeasible — суммарной стоимости не хватает до цели.
	StatusInfeasible Status = "infeasible"
	// StatusUnknown — решатель не уложился в бюджет, отдан жадный результат.
	StatusUnknown Status = "unknown"
)

// Selection — отобранное множество: количество предметов по группам.
type Selection struct {
	Counts      map[string]int
	TotalValue  int64
	TotalItems  int
	UnderTarget bool
}

const (
	defaultBudget = 2 * time.Second

	// Верхняя граница таблицы сумм. Выше неё точный перебор не
	// запускается, работает жадный отбор.
	dpSumLimit = 1 << 20
)

// Selector отбирает предметы с суммарной стоимостью не ниже цели и
// минимальным перелётом. Цены и цель в минорных единицах.
type Selector struct {
	budget time.Duration
}

func New() *Selector {
	return &Selector{budget: defaultBudget}
}

func (s *Selector) WithBudget(budget time.Duration) *Selector {
	if budget > 0 {
		s.budget = budget
	}
	return s
}

// Select возвращает отбор и статус. maxItems <= 0 снимает ограничение
// на количество. При нехватке стоимости возвращается отбор всего
// доступного с флагом UnderTarget.
func (s *Selector) Select(groups []entity.ItemGroup, target int64, maxItems int) (Selection, Status) {
	if target <= 0 {
		return Selection{Counts: map[string]int{}}, StatusOptimal
	}

	sorted := sortGroups(groups)

	totalCount := 0
	for _, g := range sorted {
		totalCount += g.Count()
	}
	if maxItems <= 0 || maxItems > totalCount {
		maxItems = totalCount
	}

	if best := maxAchievable(sorted, maxItems); best < target {
		sel := takeMostExpensive(sorted, maxItems)
		sel.UnderTarget = true
		return sel, StatusInfeasible
	}

	maxPrice := int64(0)
	for _, g := range sorted {
		if g.Price > maxPrice {
			maxPrice = g.Price
		}
	}

	if target+maxPrice > dpSumLimit {
		return greedy(sorted, target, maxItems), StatusFeasible
	}

	sel, ok := s.exact(sorted, target, maxItems, maxPrice)
	if !ok {
		return greedy(sorted, target, maxItems), StatusUnknown
	}

	return sel, StatusOptimal
}

// sortGroups возвращает отсортированную копию: дорогие первыми, при
// равной цене по имени. Порядок фиксирует детерминизм отбора.
func sortGroups(groups []entity.ItemGroup) []entity.ItemGroup {
	sorted := make([]entity.ItemGroup, len(groups))
	copy(sorted, groups)

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Price != sorted[j].Price {
			return sorted[i].Price > sorted[j].Price
		}
		return sorted[i].MarketHashName < sorted[j].MarketHashName
	})

	return sorted
}

// maxAchievable — максимум стоимости при ограничении на количество:
// сумма maxItems самых дорогих предметов.
func maxAchievable(sorted []entity.ItemGroup, maxItems int) int64 {
	var sum int64
	left := maxItems

	for _, g := range sorted {
		take := g.Count()
		if take > left {
			take = left
		}
		sum += g.Price * int64(take)
		left -= take
		if left == 0 {
			break
		}
	}

	return sum
}

func takeMostExpensive(sorted []entity.ItemGroup, maxItems int) Selection {
	sel := Selection{Counts: map[string]int{}}
	left := maxItems

	for _, g := range sorted {
		take := g.Count()
		if take > left {
			take = left
		}
		if take == 0 {
			continue
		}
		sel.Counts[g.MarketHashName] = take
		sel.TotalValue += g.Price * int64(take)
		sel.TotalItems += take
		left -= take
	}

	return sel
}

// binaryPart — кусок группы для сведения ограниченного рюкзака к 0/1.
type binaryPart struct {
	group int
	count int
	value int64
}

func splitGroups(sorted []entity.ItemGroup) []binaryPart {
	parts := make([]binaryPart, 0, len(sorted)*2)

	for i, g := range sorted {
		rest := g.Count()
		chunk := 1
		for rest > 0 {
			if chunk > rest {
				chunk = rest
			}
			parts = append(parts, binaryPart{
				group: i,
				count: chunk,
				value: g.Price * int64(chunk),
			})
			rest -= chunk
			chunk *= 2
		}
	}

	return parts
}

// exact — точный перебор сумм. dp[s] хранит минимальное количество
// предметов, дающих ровно сумму s; биты taken восстанавливают состав.
func (s *Selector) exact(sorted []entity.ItemGroup, target int64, maxItems int, maxPrice int64) (Selection, bool) {
	deadline := time.Now().Add(s.budget)

	width := int(target + maxPrice)
	parts := splitGroups(sorted)

	const inf = math.MaxInt32

	dp := make([]int32, width)
	for i := range dp {
		dp[i] = inf
	}
	dp[0] = 0

	words := (width + 63) / 64
	taken := make([][]uint64, len(parts))

	for i, part := range parts {
		if time.Now().After(deadline) {
			return Selection{}, false
		}

		taken[i] = make([]uint64, words)
		v := int(part.value)
		k := int32(part.count)

		for sum := width - 1; sum >= v; sum-- {
			if dp[sum-v] == inf {
				continue
			}
			if dp[sum-v]+k < dp[sum] {
				dp[sum] = dp[sum-v] + k
				taken[i][sum/64] |= 1 << uint(sum%64)
			}
		}
	}

	best := -1
	for sum := int(target); sum < width; sum++ {
		if dp[sum] != inf && dp[sum] <= int32(maxItems) {
			best = sum
			break
		}
	}
	if best == -1 {
		return Selection{}, false
	}

	sel := Selection{Counts: map[string]int{}}
	sum := best

	for i := len(parts) - 1; i >= 0 && sum > 0; i-- {
		if taken[i][sum/64]&(1<<uint(sum%64)) == 0 {
			continue
		}
		part := parts[i]
		name := sorted[part.group].MarketHashName
		sel.Counts[name] += part.count
		sel.TotalItems += part.count
		sel.TotalValue += part.value
		sum -= int(part.value)
	}

	return sel, true
}

// greedy — резервный отбор: набор с дешёвого конца до пересечения
// цели. Дешёвые предметы первыми держат перелёт в пределах одной цены.
func greedy(sorted []entity.ItemGroup, target int64, maxItems int) Selection {
	sel := Selection{Counts: map[string]int{}}

	taken := make([]int, len(sorted))
	remaining := make([]int, len(sorted))
	for i, g := range sorted {
		remaining[i] = g.Count()
	}

	// sorted упорядочен дорогими вперёд, идём с хвоста.
	for i := len(sorted) - 1; i >= 0 && sel.TotalValue < target; i-- {
		for remaining[i] > 0 && sel.TotalItems < maxItems && sel.TotalValue < target {
			taken[i]++
			remaining[i]--
			sel.Counts[sorted[i].MarketHashName]++
			sel.TotalValue += sorted[i].Price
			sel.TotalItems++
		}
	}

	// Лимит по количеству упёрся раньше цели: дешёвые взятые меняются
	// на дорогие оставшиеся, пока сумма не дотянет.
	cheap := len(sorted) - 1
	expensive := 0
	for sel.TotalValue < target {
		for cheap >= 0 && taken[cheap] == 0 {
			cheap--
		}
		for expensive < len(sorted) && remaining[expensive] == 0 {
			expensive++
		}
		if cheap < 0 || expensive >= len(sorted) || sorted[expensive].Price <= sorted[cheap].Price {
			break
		}

		taken[cheap]--
		remaining[cheap]++
		sel.Counts[sorted[cheap].MarketHashName]--
		if sel.Counts[sorted[cheap].MarketHashName] == 0 {
			delete(sel.Counts, sorted[cheap].MarketHashName)
		}

		taken[expensive]++
		remaining[expensive]--
		sel.Counts[sorted[expensive].MarketHashName]++
		sel.TotalValue += sorted[expensive].Price - sorted[cheap].Price
	}

	sel.UnderTarget = sel.TotalValue < target

	return sel
}
