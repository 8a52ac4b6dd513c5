package pricing_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"items_seller/internal/pricing"
)

func TestConvertSameCurrencyIdentity(t *testing.T) {
	rq := require.New(t)

	converter := pricing.NewConverter(nil, "http://primary.invalid", "http://fallback.invalid", time.Hour)

	amount, err := converter.Convert(context.Background(), 12345, "USD", "usd")
	rq.NoError(err)
	rq.Equal(int64(12345), amount)
}

func TestConvertUsesPrimarySource(t *testing.T) {
	rq := require.New(t)

	primaryCalls := 0
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryCalls++
		rq.Equal("/usd.json", r.URL.Path)
		w.Write([]byte(`{"date":"2026-08-29","usd":{"eur":0.5,"kzt":450.0}}`))
	}))
	defer primary.Close()

	converter := pricing.NewConverter(nil, primary.URL, "http://fallback.invalid", time.Hour)

	amount, err := converter.Convert(context.Background(), 1000, "USD", "EUR")
	rq.NoError(err)
	rq.Equal(int64(500), amount)
	rq.Equal(1, primaryCalls)

	// Повторная конвертация идёт из процессного кэша.
	amount, err = converter.Convert(context.Background(), 200, "USD", "EUR")
	rq.NoError(err)
	rq.Equal(int64(100), amount)
	rq.Equal(1, primaryCalls)
}

func TestConvertFallsBackOnPrimaryFailure(t *testing.T) {
	rq := require.New(t)

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer primary.Close()

	fallbackCalls := 0
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallbackCalls++
		rq.Equal("/USD", r.URL.Path)
		w.Write([]byte(`{"result":"success","rates":{"EUR":0.5}}`))
	}))
	defer fallback.Close()

	converter := pricing.NewConverter(nil, primary.URL, fallback.URL, time.Hour)

	amount, err := converter.Convert(context.Background(), 301, "usd", "eur")
	rq.NoError(err)
	rq.Equal(int64(151), amount)
	rq.Equal(1, fallbackCalls)
}

func TestConvertErrorWhenAllSourcesFail(t *testing.T) {
	rq := require.New(t)

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer down.Close()

	converter := pricing.NewConverter(nil, down.URL, down.URL, time.Hour)

	_, err := converter.Convert(context.Background(), 100, "usd", "eur")
	rq.Error(err)
}
