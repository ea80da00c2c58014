package substrate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/lockbox/custodian/internal/chains"
)

const callTimeout = 15 * time.Second

// Gateway implements Client against the internal Substrate gateway service,
// which owns SCALE encoding and extrinsic signing for custodial accounts.
type Gateway struct {
	baseURL string
	http    *http.Client
}

func NewGateway(baseURL string) *Gateway {
	return &Gateway{
		baseURL: baseURL,
		http:    &http.Client{Timeout: callTimeout},
	}
}

type accountResponse struct {
	Free string `json:"free"`
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type transferResponse struct {
	Hash string `json:"hash"`
}

func (g *Gateway) FreeBalance(ctx context.Context, chain chains.Chain, address string) (*big.Int, error) {
	endpoint := fmt.Sprintf("%s/v1/%s/account/%s", g.baseURL, chain, url.PathEscape(address))

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	var res accountResponse
	if err := g.do(req, &res); err != nil {
		return nil, fmt.Errorf("failed to fetch account balance: %w", err)
	}

	free, ok := new(big.Int).SetString(res.Free, 10)
	if !ok {
		return nil, fmt.Errorf("gateway returned malformed balance: %q", res.Free)
	}
	return free, nil
}

func (g *Gateway) SubmitTransfer(ctx context.Context, chain chains.Chain, from, to string, amount *big.Int) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/%s/transfer", g.baseURL, chain)

	body, err := json.Marshal(transferRequest{From: from, To: to, Amount: amount.String()})
	if err != nil {
		return "", fmt.Errorf("failed to encode transfer: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var res transferResponse
	if err := g.do(req, &res); err != nil {
		return "", err
	}
	if res.Hash == "" {
		return "", fmt.Errorf("gateway returned no extrinsic hash")
	}
	return res.Hash, nil
}

func (g *Gateway) do(req *http.Request, out any) error {
	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}
