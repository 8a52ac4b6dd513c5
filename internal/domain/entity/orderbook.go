package entity

// OrderBook — срез стакана по предмету. Цены в минорных единицах.
// Нулевое значение стороны означает пустой стакан.
type OrderBook struct {
	MarketHashName  string
	HighestBuyOrder int64
	LowestSellOrder int64
	Currency        string
}
