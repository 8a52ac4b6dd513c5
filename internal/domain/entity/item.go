package entity

// Item — предмет инвентаря.
type Item struct {
	AssetID        string
	ClassID        string
	MarketHashName string
	Tradable       bool
	Marketable     bool
}

// PricedItem — предмет с рассчитанной ценой продажи в минорных единицах.
type PricedItem struct {
	Item
	Price int64
}

// ItemGroup — группа одинаковых предметов с общей ценой.
// Внутри группы предметы взаимозаменяемы, различаются только asset id.
type ItemGroup struct {
	MarketHashName string
	Price          int64
	AssetIDs       []string
}

// Count возвращает количество предметов в группе.
func (g ItemGroup) Count() int {
	return len(g.AssetIDs)
}

// TotalValue возвращает суммарную стоимость группы.
func (g ItemGroup) TotalValue() int64 {
	return g.Price * int64(len(g.AssetIDs))
}

// GroupItems собирает предметы в группы по market hash name.
// Предметы без цены (price <= 0) отбрасываются.
func GroupItems(items []PricedItem) []ItemGroup {
	index := make(map[string]*ItemGroup)
	order := make([]string, 0)

	for _, item := range items {
		if item.Price <= 0 {
			continue
		}

		group, ok := index[item.MarketHashName]
		if !ok {
			index[item.MarketHashName] = &ItemGroup{
				MarketHashName: item.MarketHashName,
				Price:          item.Price,
			}
			group = index[item.MarketHashName]
			order = append(order, item.MarketHashName)
		}

		group.AssetIDs = append(group.AssetIDs, item.AssetID)
	}

	groups := make([]ItemGroup, 0, len(index))
	for _, name := range order {
		groups = append(groups, *index[name])
	}

	return groups
}
