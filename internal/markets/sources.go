package markets

import (
	"context"
	"fmt"
	"time"

	"github.com/tummybutters/marketmirror/internal/domain"
	"github.com/tummybutters/marketmirror/internal/platform/kalshi"
	"github.com/tummybutters/marketmirror/internal/platform/polymarket"
)

// PolymarketSource resolves CLOB token ids via the Gamma markets endpoint.
type PolymarketSource struct {
	gamma *polymarket.GammaClient
}

// NewPolymarketSource wraps a Gamma client as a resolver Source.
func NewPolymarketSource(gamma *polymarket.GammaClient) *PolymarketSource {
	return &PolymarketSource{gamma: gamma}
}

// MarketsByIDs returns metadata keyed by token id. Both tokens of a binary
// market map to the same MarketInfo; callers pick their outcome by the
// token's index in MarketInfo.TokenIDs.
func (s *PolymarketSource) MarketsByIDs(ctx context.Context, ids []string) (map[string]*domain.MarketInfo, error) {
	apiMarkets, err := s.gamma.GetMarketsByTokenIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*domain.MarketInfo, len(ids))
	for i := range apiMarkets {
		info := apiMarkets[i].ToMarketInfo()
		for _, tokenID := range info.TokenIDs {
			out[tokenID] = info
		}
	}
	return out, nil
}

// KalshiSource resolves market tickers via the Kalshi markets endpoint.
type KalshiSource struct {
	client *kalshi.Client
}

// NewKalshiSource wraps a Kalshi client as a resolver Source.
func NewKalshiSource(client *kalshi.Client) *KalshiSource {
	return &KalshiSource{client: client}
}

// MarketsByIDs returns metadata keyed by market ticker.
func (s *KalshiSource) MarketsByIDs(ctx context.Context, ids []string) (map[string]*domain.MarketInfo, error) {
	apiMarkets, err := s.client.GetMarketsByTickers(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*domain.MarketInfo, len(apiMarkets))
	for i := range apiMarkets {
		out[apiMarkets[i].Ticker] = apiMarkets[i].ToMarketInfo()
	}
	return out, nil
}

// HistorySource serves historical price series for valuation from both
// providers' public history endpoints.
type HistorySource struct {
	clob   *polymarket.ClobClient
	kalshi *kalshi.Client
}

// NewHistorySource creates a HistorySource over the given clients.
func NewHistorySource(clob *polymarket.ClobClient, kalshiClient *kalshi.Client) *HistorySource {
	return &HistorySource{clob: clob, kalshi: kalshiClient}
}

// PriceHistory returns ascending price samples for one instrument over
// [from, to] at the given resolution.
func (h *HistorySource) PriceHistory(ctx context.Context, provider domain.Provider, instrumentID string, from, to time.Time, resolutionMinutes int) ([]domain.PricePoint, error) {
	switch provider {
	case domain.ProviderPolymarket:
		raw, err := h.clob.GetPriceHistory(ctx, instrumentID, from, to, resolutionMinutes)
		if err != nil {
			return nil, fmt.Errorf("markets: polymarket history: %w", err)
		}
		points := make([]domain.PricePoint, 0, len(raw))
		for _, p := range raw {
			points = append(points, domain.PricePoint{
				Time:  time.Unix(p.T, 0).UTC(),
				Price: p.P,
			})
		}
		return points, nil

	case domain.ProviderKalshi:
		candles, err := h.kalshi.GetMarketCandles(ctx, instrumentID, from, to, resolutionMinutes)
		if err != nil {
			return nil, fmt.Errorf("markets: kalshi history: %w", err)
		}
		points := make([]domain.PricePoint, 0, len(candles))
		for _, c := range candles {
			points = append(points, domain.PricePoint{
				Time:  time.Unix(c.EndPeriodTS, 0).UTC(),
				Price: float64(c.Price.Close) / 100,
			})
		}
		return points, nil

	default:
		return nil, fmt.Errorf("markets: unknown provider %q", provider)
	}
}
