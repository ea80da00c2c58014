package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/lockbox/custodian/internal/chains"
)

const callTimeout = 10 * time.Second

// Client talks to the external balance/portfolio indexer. It is a fast but
// potentially stale cache over chain state and is never the sole source of
// truth for a spend decision.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: callTimeout},
	}
}

type balanceResponse struct {
	Balance string `json:"balance"`
	AsOf    int64  `json:"asOf"`
}

type tokenResponse struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals *int   `json:"decimals"`
}

// GetBalance returns the indexed balance in base units for an address on a
// chain. An empty token means the native asset.
func (c *Client) GetBalance(ctx context.Context, chain chains.Chain, address, token string) (*big.Int, error) {
	endpoint := fmt.Sprintf("%s/v1/%s/address/%s/balance", c.baseURL, chain, url.PathEscape(address))
	if token != "" {
		endpoint += "?token=" + url.QueryEscape(token)
	}

	var res balanceResponse
	if err := c.call(ctx, endpoint, &res); err != nil {
		return nil, fmt.Errorf("failed to fetch indexer balance: %w", err)
	}

	balance, ok := new(big.Int).SetString(res.Balance, 10)
	if !ok {
		return nil, fmt.Errorf("indexer returned malformed balance: %q", res.Balance)
	}
	return balance, nil
}

// GetTokenDecimals returns the indexed decimal precision for a token.
func (c *Client) GetTokenDecimals(ctx context.Context, chain chains.Chain, token string) (int, error) {
	endpoint := fmt.Sprintf("%s/v1/%s/token/%s", c.baseURL, chain, url.PathEscape(token))

	var res tokenResponse
	if err := c.call(ctx, endpoint, &res); err != nil {
		return 0, fmt.Errorf("failed to fetch token metadata: %w", err)
	}
	if res.Decimals == nil {
		return 0, fmt.Errorf("indexer has no decimals for token %s on %s", token, chain)
	}
	return *res.Decimals, nil
}

func (c *Client) call(ctx context.Context, endpoint string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("indexer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("indexer returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode indexer response: %w", err)
	}
	return nil
}
