package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"pricebot/internal/domain"
)

// MarketClient Binance 现货行情 REST 客户端
type MarketClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewMarketClient(baseURL string, timeout time.Duration) *MarketClient {
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MarketClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// LatestPrices 一次请求获取全部最新价, 只返回 pairs 中存在的交易对.
// The batch variant with a symbols filter rejects the whole request when
// one pair is unknown, so the full list is filtered locally.
func (c *MarketClient) LatestPrices(ctx context.Context, pairs []string) (map[string]decimal.Decimal, error) {
	body, err := c.publicGet(ctx, "/api/v3/ticker/price", nil)
	if err != nil {
		return nil, err
	}

	var rows []tickerPrice
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: decode ticker prices: %v", domain.ErrBatchFetch, err)
	}

	want := make(map[string]struct{}, len(pairs))
	for _, p := range pairs {
		want[domain.NormalizeSymbol(p)] = struct{}{}
	}

	out := make(map[string]decimal.Decimal, len(pairs))
	for _, r := range rows {
		if _, ok := want[r.Symbol]; !ok {
			continue
		}
		px, err := decimal.NewFromString(r.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: price of %s: %v", domain.ErrBatchFetch, r.Symbol, err)
		}
		out[r.Symbol] = px
	}
	return out, nil
}

// Klines 获取K线, 只取开盘时间(index 0)与收盘价(index 4)
func (c *MarketClient) Klines(ctx context.Context, pair, interval string, limit int) ([]domain.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	params := url.Values{}
	params.Set("symbol", domain.NormalizeSymbol(pair))
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.publicGet(ctx, "/api/v3/klines", params)
	if err != nil {
		return nil, err
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: decode klines: %v", domain.ErrBatchFetch, err)
	}

	out := make([]domain.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 5 {
			return nil, fmt.Errorf("%w: short kline row", domain.ErrBatchFetch)
		}
		var openMs int64
		var closeStr string
		if err := json.Unmarshal(row[0], &openMs); err != nil {
			return nil, fmt.Errorf("%w: kline open time: %v", domain.ErrBatchFetch, err)
		}
		if err := json.Unmarshal(row[4], &closeStr); err != nil {
			return nil, fmt.Errorf("%w: kline close: %v", domain.ErrBatchFetch, err)
		}
		px, err := decimal.NewFromString(closeStr)
		if err != nil {
			return nil, fmt.Errorf("%w: kline close: %v", domain.ErrBatchFetch, err)
		}
		out = append(out, domain.Candle{OpenTime: time.UnixMilli(openMs), Close: px})
	}
	return out, nil
}
