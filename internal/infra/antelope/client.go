// Package antelope queries the chain REST API for the producer directory and
// the chain state the p2p probe needs.
package antelope

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vietddude/guildwatch/internal/core/domain"
)

// ErrMalformedResponse is returned when a response lacks expected fields.
var ErrMalformedResponse = errors.New("malformed response")

// Info is the subset of get_info the prober uses.
type Info struct {
	ServerVersion            string `json:"server_version"`
	ServerVersionString      string `json:"server_version_string"`
	ChainID                  string `json:"chain_id"`
	HeadBlockNum             uint32 `json:"head_block_num"`
	HeadBlockID              string `json:"head_block_id"`
	HeadBlockTime            string `json:"head_block_time"`
	LastIrreversibleBlockNum uint32 `json:"last_irreversible_block_num"`
	LastIrreversibleBlockID  string `json:"last_irreversible_block_id"`
}

// Client talks to one chain API endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new chain API client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// GetInfo returns the chain head and LIB.
func (c *Client) GetInfo(ctx context.Context) (*Info, error) {
	var info Info
	if err := c.post(ctx, "/v1/chain/get_info", nil, &info); err != nil {
		return nil, err
	}
	if info.ChainID == "" || info.HeadBlockNum == 0 {
		return nil, fmt.Errorf("get_info: %w", ErrMalformedResponse)
	}
	return &info, nil
}

// GetBlockID returns the id of block num.
func (c *Client) GetBlockID(ctx context.Context, num uint32) (string, error) {
	var block struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/v1/chain/get_block", map[string]any{"block_num_or_id": num}, &block); err != nil {
		return "", err
	}
	if len(block.ID) != 64 {
		return "", fmt.Errorf("get_block %d: %w", num, ErrMalformedResponse)
	}
	return block.ID, nil
}

type producerRow struct {
	Owner    string   `json:"owner"`
	URL      string   `json:"url"`
	IsActive flexBool `json:"is_active"`
	Location int      `json:"location"`
}

// GetProducers returns the active producers among the top limit rows that
// declare both an owner and a URL.
func (c *Client) GetProducers(ctx context.Context, limit int) ([]domain.Producer, error) {
	var resp struct {
		Rows []producerRow `json:"rows"`
	}
	req := map[string]any{"json": true, "limit": limit}
	if err := c.post(ctx, "/v1/chain/get_producers", req, &resp); err != nil {
		return nil, err
	}
	if resp.Rows == nil {
		return nil, fmt.Errorf("get_producers: %w", ErrMalformedResponse)
	}

	producers := make([]domain.Producer, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		if !bool(row.IsActive) || row.Owner == "" || strings.TrimSpace(row.URL) == "" {
			continue
		}
		producers = append(producers, domain.Producer{
			Owner:    row.Owner,
			URL:      strings.TrimSpace(row.URL),
			Location: row.Location,
			IsActive: true,
		})
	}
	return producers, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: http %d: %s", path, resp.StatusCode, truncate(data, 200))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %w: %v", path, ErrMalformedResponse, err)
	}
	return nil
}

// flexBool accepts true/false and 0/1.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "true", "1":
		*b = true
	case "false", "0", "null":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
