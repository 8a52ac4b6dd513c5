package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"items_seller/internal/domain/entity"
	"items_seller/internal/pricing"
)

func TestQuote(t *testing.T) {
	rq := require.New(t)

	fetcher := pricing.NewQuoteFetcher(0.9, 3)

	testCases := []struct {
		name string
		book entity.OrderBook
		want int64
	}{
		{
			name: "Sell side dominates",
			book: entity.OrderBook{HighestBuyOrder: 100, LowestSellOrder: 200},
			want: 180,
		},
		{
			name: "Buy side dominates",
			book: entity.OrderBook{HighestBuyOrder: 500, LowestSellOrder: 520},
			want: 500,
		},
		{
			name: "Empty book falls to floor",
			book: entity.OrderBook{},
			want: 3,
		},
		{
			name: "Missing buy side uses sell fraction",
			book: entity.OrderBook{LowestSellOrder: 50},
			want: 45,
		},
		{
			name: "Fraction rounds up",
			book: entity.OrderBook{LowestSellOrder: 15},
			want: 14,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(*testing.T) {
			rq.Equal(tc.want, fetcher.Quote(tc.book))
		})
	}
}
