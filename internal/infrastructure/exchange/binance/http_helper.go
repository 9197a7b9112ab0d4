package binance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"pricebot/internal/domain"
	"pricebot/internal/infrastructure/exchange"
)

// publicGet is the shared helper for unsigned market data calls.
// Transport failures wrap domain.ErrTransientNetwork, any other
// status wraps domain.ErrBatchFetch.
func (c *MarketClient) publicGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint, err := exchange.BuildQueryURL(c.baseURL, path, params)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrTransientNetwork, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: binance api error: %d %s", domain.ErrBatchFetch, resp.StatusCode, string(body))
	}
	return body, nil
}
