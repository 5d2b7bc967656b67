package tools

import (
	"context"
	"math"
	"math/rand/v2"
)

type StockQuote struct {
	Ticker   string  `json:"ticker"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

// PriceSource quotes a ticker symbol in USD.
type PriceSource interface {
	Price(ctx context.Context, ticker string) (float64, error)
}

// SimulatedPrices returns a uniformly random price between 100 and 500,
// rounded to cents. No market data provider is wired in.
type SimulatedPrices struct{}

func (SimulatedPrices) Price(context.Context, string) (float64, error) {
	return math.Round((100+rand.Float64()*400)*100) / 100, nil
}
