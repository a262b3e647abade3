// Package chain is a GraphQL client for the on-chain replica of the
// prediction market application. The replica is authoritative but only
// eventually available; callers on the ledger hot path must never block
// on it.
package chain

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
)

// Config holds everything needed to reach the application's GraphQL
// endpoint on a chain node. There is no process-wide client; construct one
// per configuration so tests can point at doubles.
type Config struct {
	// NodeURL is the chain node service base URL, e.g. "http://localhost:8080".
	NodeURL string

	// ChainID is the hex chain identifier hosting the application.
	ChainID string

	// ApplicationID is the hex application identifier.
	ApplicationID string

	// APIKey is an optional bearer token for hosted nodes.
	APIKey string

	// Timeout bounds each HTTP request. Defaults to 30s when zero.
	Timeout time.Duration
}

// Endpoint returns the full GraphQL URL for the configured application.
func (c Config) Endpoint() string {
	return fmt.Sprintf("%s/chains/%s/applications/%s",
		strings.TrimRight(c.NodeURL, "/"), c.ChainID, c.ApplicationID)
}

// RemoteError reports a non-success transport status from the node.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("chain: HTTP %d: %s", e.StatusCode, e.Body)
}

// ProtocolError reports an error payload inside a transport-successful
// GraphQL response.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return "chain: graphql error: " + e.Message
}

// ErrEmptyResponse indicates a GraphQL response that carried neither data
// nor errors.
var ErrEmptyResponse = errors.New("chain: no data in response")

// Retryable reports whether err is a transport or protocol failure worth
// retrying. Valid empty results (a nil market record) are not errors and
// never reach this predicate, so everything the client surfaces is
// retryable except caller cancellation.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Client executes the fixed query set against the replica.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Client from the given configuration.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint(),
		apiKey:   strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// graphqlRequest is the standard GraphQL request envelope.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the standard GraphQL response envelope.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// marketFields is the selection set shared by the markets and market queries.
const marketFields = `
	id
	question
	category
	endTime
	yesPool
	noPool
	totalYesShares
	totalNoShares
	status
	winningOutcome
	creator
	createdAt
`

// MarketCount returns the number of markets recorded on-chain.
func (c *Client) MarketCount(ctx context.Context) (int, error) {
	respData, err := c.doQuery(ctx, `query { marketCount }`, nil)
	if err != nil {
		return 0, fmt.Errorf("chain: fetch market count: %w", err)
	}

	var result struct {
		MarketCount int `json:"marketCount"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return 0, fmt.Errorf("chain: decode market count: %w", err)
	}
	return result.MarketCount, nil
}

// Markets returns every market recorded on-chain.
func (c *Client) Markets(ctx context.Context) ([]Market, error) {
	query := `query { markets {` + marketFields + `} }`

	respData, err := c.doQuery(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: fetch markets: %w", err)
	}

	var result struct {
		Markets []Market `json:"markets"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return nil, fmt.Errorf("chain: decode markets: %w", err)
	}
	return result.Markets, nil
}

// Market returns the on-chain record for a single market, or nil when the
// chain has no record for the ID yet. The nil result is a valid empty
// answer, not an error.
func (c *Client) Market(ctx context.Context, id int64) (*Market, error) {
	query := `query Market($id: Int!) { market(id: $id) {` + marketFields + `} }`

	respData, err := c.doQuery(ctx, query, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("chain: fetch market %d: %w", id, err)
	}

	var result struct {
		Market *Market `json:"market"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return nil, fmt.Errorf("chain: decode market %d: %w", id, err)
	}
	return result.Market, nil
}

// AllPositions returns every position recorded on-chain, keyed by
// (marketId, user).
func (c *Client) AllPositions(ctx context.Context) ([]Position, error) {
	query := `query {
		allPositions {
			marketId
			user
			yesShares
			noShares
			yesAmount
			noAmount
			claimed
		}
	}`

	respData, err := c.doQuery(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: fetch positions: %w", err)
	}

	var result struct {
		AllPositions []Position `json:"allPositions"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return nil, fmt.Errorf("chain: decode positions: %w", err)
	}
	return result.AllPositions, nil
}

// HealthCheck reports whether a lightweight query currently succeeds. It is
// a liveness signal only and never gates correctness of the local ledger.
func (c *Client) HealthCheck(ctx context.Context) bool {
	_, err := c.MarketCount(ctx)
	return err == nil
}

// doQuery executes a GraphQL query against the replica endpoint and returns
// the raw "data" field from the response.
func (c *Client) doQuery(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	reqBody := graphqlRequest{
		Query:     query,
		Variables: variables,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return nil, fmt.Errorf("decode graphql response: %w", err)
	}

	if len(gqlResp.Errors) > 0 {
		return nil, &ProtocolError{Message: gqlResp.Errors[0].Message}
	}
	if len(gqlResp.Data) == 0 || string(gqlResp.Data) == "null" {
		return nil, ErrEmptyResponse
	}

	return gqlResp.Data, nil
}
