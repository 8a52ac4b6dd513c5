package pricing

import (
	"math"

	"items_seller/internal/domain/entity"
)

// QuoteFetcher считает цену продажи по срезу стакана: максимум из
// верхнего buy-ордера (не ниже пола) и доли от нижнего sell-ордера.
type QuoteFetcher struct {
	thresholdFraction float64
	priceFloor        int64
}

func NewQuoteFetcher(thresholdFraction float64, priceFloor int64) *QuoteFetcher {
	return &QuoteFetcher{
		thresholdFraction: thresholdFraction,
		priceFloor:        priceFloor,
	}
}

// Quote возвращает цену в минорных единицах. Пустой стакан даёт пол.
func (f *QuoteFetcher) Quote(book entity.OrderBook) int64 {
	price := book.HighestBuyOrder
	if price < f.priceFloor {
		price = f.priceFloor
	}

	if book.LowestSellOrder > 0 {
		fromSell := int64(math.Ceil(f.thresholdFraction * float64(book.LowestSellOrder)))
		if fromSell > price {
			price = fromSell
		}
	}

	return price
}
