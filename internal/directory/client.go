// Package directory talks to the external chat-support agent directory.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dennisdiepolder/monti/wfm/internal/metrics"
	"github.com/dennisdiepolder/monti/wfm/internal/types"
	"github.com/rs/zerolog"
)

var (
	// ErrMissingToken is returned before any request when no bearer token is configured
	ErrMissingToken = errors.New("agent directory token not configured")

	// ErrAgentNotFound is returned when the directory has no agent with the requested id
	ErrAgentNotFound = errors.New("agent not found in directory")

	// ErrResponseTooLarge is returned when a directory body exceeds Options.MaxBodyBytes
	ErrResponseTooLarge = errors.New("agent directory response too large")
)

const defaultMaxBodyBytes = 16 << 20

// UpstreamError is a non-2xx answer from the directory
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("agent directory returned status %d", e.StatusCode)
}

// Options configures a Client
type Options struct {
	BaseURL      string
	Token        string
	PageSize     int
	Timeout      time.Duration
	MaxBodyBytes int64
}

// Client fetches agents from the directory REST API
type Client struct {
	baseURL    string
	token      string
	pageSize   int
	maxBody    int64
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new directory client
func NewClient(opts Options, logger zerolog.Logger) *Client {
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Client{
		baseURL:    opts.BaseURL,
		token:      opts.Token,
		pageSize:   opts.PageSize,
		maxBody:    opts.MaxBodyBytes,
		httpClient: &http.Client{Timeout: opts.Timeout},
		logger:     logger.With().Str("component", "directory").Logger(),
	}
}

// FetchAgentsRaw returns the directory agent list body verbatim
func (c *Client) FetchAgentsRaw(ctx context.Context) ([]byte, error) {
	q := url.Values{}
	q.Set("items_per_page", strconv.Itoa(c.pageSize))
	return c.get(ctx, "/agents?"+q.Encode(), "list")
}

// ListAgents fetches and decodes the directory agent list
func (c *Client) ListAgents(ctx context.Context) ([]types.Agent, error) {
	body, err := c.FetchAgentsRaw(ctx)
	if err != nil {
		return nil, err
	}

	var list types.AgentList
	if err := json.Unmarshal(body, &list); err != nil {
		metrics.DirectoryRequests.WithLabelValues("list", "decode_error").Inc()
		return nil, fmt.Errorf("failed to decode agent list: %w", err)
	}
	return list.Agents, nil
}

// GetAgent fetches a single agent by directory id
func (c *Client) GetAgent(ctx context.Context, id string) (*types.Agent, error) {
	body, err := c.get(ctx, "/agents/"+url.PathEscape(id), "get")
	if err != nil {
		var upstream *UpstreamError
		if errors.As(err, &upstream) && upstream.StatusCode == http.StatusNotFound {
			return nil, ErrAgentNotFound
		}
		return nil, err
	}

	var agent types.Agent
	if err := json.Unmarshal(body, &agent); err != nil {
		metrics.DirectoryRequests.WithLabelValues("get", "decode_error").Inc()
		return nil, fmt.Errorf("failed to decode agent: %w", err)
	}
	return &agent, nil
}

func (c *Client) get(ctx context.Context, path, op string) ([]byte, error) {
	if c.token == "" {
		metrics.DirectoryRequests.WithLabelValues(op, "missing_token").Inc()
		return nil, ErrMissingToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.DirectoryRequests.WithLabelValues(op, "network_error").Inc()
		c.logger.Error().Err(err).Str("path", path).Msg("failed to reach agent directory")
		return nil, fmt.Errorf("failed to reach agent directory: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		metrics.DirectoryRequests.WithLabelValues(op, "network_error").Inc()
		return nil, fmt.Errorf("failed to read directory response: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		metrics.DirectoryRequests.WithLabelValues(op, "too_large").Inc()
		c.logger.Error().Int64("limit", c.maxBody).Str("path", path).Msg("agent directory response too large")
		return nil, ErrResponseTooLarge
	}
	metrics.DirectoryLatency.Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.DirectoryRequests.WithLabelValues(op, "upstream_error").Inc()
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("path", path).
			Msg("agent directory returned an error")
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	metrics.DirectoryRequests.WithLabelValues(op, "ok").Inc()
	return body, nil
}
