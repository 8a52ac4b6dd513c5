package steam_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"items_seller/internal/infrastructure/steam"
)

func TestClientOrderBookSendsRegionAsCurrency(t *testing.T) {
	rq := require.New(t)

	var query url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		_, _ = w.Write([]byte(`{"highest_buy_order":"120","lowest_sell_order":"150"}`))
	}))
	defer srv.Close()

	client, err := steam.NewClient(
		steam.Credentials{Username: "armoury-1", Currency: "USD", Region: "1"},
		steam.NewFileSessionStore(t.TempDir()),
		steam.WithBaseURL(srv.URL),
	)
	rq.NoError(err)

	book, err := client.OrderBook(context.Background(), "case-alpha")
	rq.NoError(err)

	// Стакан запрашивается в валюте региона аккаунта.
	rq.Equal("1", query.Get("currency"))
	rq.Equal("case-alpha", query.Get("market_hash_name"))

	rq.Equal(int64(120), book.HighestBuyOrder)
	rq.Equal(int64(150), book.LowestSellOrder)
	rq.Equal("USD", book.Currency)
}
