package rpc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/xchpool-tools/xchpool-stats/internal/types"
	"github.com/xchpool-tools/xchpool-stats/internal/util"
)

// PriceSource is one spot price provider
type PriceSource interface {
	Name() string
	Price(ctx context.Context) (float64, error)
}

// marketSource reads {"price": n} style endpoints
type marketSource struct {
	name   string
	url    string
	client *Client
}

// NewMarketSource creates a provider for endpoints answering {"price": n}
func NewMarketSource(name, url string, client *Client) PriceSource {
	return &marketSource{name: name, url: url, client: client}
}

func (s *marketSource) Name() string { return s.name }

func (s *marketSource) Price(ctx context.Context) (float64, error) {
	var resp struct {
		Price *json.Number `json:"price"`
	}
	source := SourcePrice + ":" + s.name
	if err := s.client.GetJSON(ctx, source, s.url, &resp); err != nil {
		return 0, err
	}
	return requireFloat(source, "price", resp.Price)
}

// simplePriceSource reads CoinGecko style {"chia": {"usd": n}} endpoints
type simplePriceSource struct {
	name   string
	url    string
	client *Client
}

// NewSimplePriceSource creates a provider for CoinGecko style simple price endpoints
func NewSimplePriceSource(name, url string, client *Client) PriceSource {
	return &simplePriceSource{name: name, url: url, client: client}
}

func (s *simplePriceSource) Name() string { return s.name }

func (s *simplePriceSource) Price(ctx context.Context) (float64, error) {
	var resp map[string]map[string]*json.Number
	source := SourcePrice + ":" + s.name
	if err := s.client.GetJSON(ctx, source, s.url, &resp); err != nil {
		return 0, err
	}
	return requireFloat(source, "chia.usd", resp["chia"]["usd"])
}

// PriceFetcher asks each source in order and returns the first answer
type PriceFetcher struct {
	sources []PriceSource
}

// NewPriceFetcher creates a fetcher trying sources in the given order
func NewPriceFetcher(sources ...PriceSource) *PriceFetcher {
	return &PriceFetcher{sources: sources}
}

// FetchPrice returns the spot price from the first source that answers.
// When every source fails the returned FetchError joins all causes; there is
// no default or cached price.
func (p *PriceFetcher) FetchPrice(ctx context.Context) (*types.MarketPrice, error) {
	if len(p.sources) == 0 {
		return nil, &FetchError{Source: SourcePrice, Err: errors.New("no price sources configured")}
	}

	var errs []error
	for i, src := range p.sources {
		price, err := src.Price(ctx)
		if err == nil {
			if i > 0 {
				util.Infof("price taken from fallback source %s", src.Name())
			}
			return &types.MarketPrice{Price: price, Source: src.Name()}, nil
		}

		errs = append(errs, err)
		if i < len(p.sources)-1 {
			util.Warnw("price source failed, trying next", "source", src.Name(), "err", err)
		}
	}

	return nil, &FetchError{Source: SourcePrice, Err: errors.Join(errs...)}
}
