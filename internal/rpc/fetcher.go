package rpc

import (
	"context"

	"github.com/xchpool-tools/xchpool-stats/internal/config"
	"github.com/xchpool-tools/xchpool-stats/internal/types"
)

// Fetcher retrieves the four datasets a report is built from
type Fetcher struct {
	client    *Client
	endpoints config.EndpointsConfig
	price     *PriceFetcher
}

// NewFetcher creates a fetcher for the configured endpoints
func NewFetcher(cfg *config.Config) *Fetcher {
	client := NewClient(cfg.HTTP.Timeout)

	sources := []PriceSource{
		NewMarketSource("chiaprofitability", cfg.Endpoints.PricePrimary, client),
	}
	if cfg.Endpoints.PriceSecondary != "" {
		sources = append(sources, NewSimplePriceSource("coingecko", cfg.Endpoints.PriceSecondary, client))
	}

	return &Fetcher{
		client:    client,
		endpoints: cfg.Endpoints,
		price:     NewPriceFetcher(sources...),
	}
}

// Client returns the underlying JSON client
func (f *Fetcher) Client() *Client {
	return f.client
}

// FetchPrice returns the spot price with primary to secondary fallback
func (f *Fetcher) FetchPrice(ctx context.Context) (*types.MarketPrice, error) {
	return f.price.FetchPrice(ctx)
}
