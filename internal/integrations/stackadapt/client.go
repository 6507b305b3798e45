// Client for the StackAdapt GraphQL API.

package stackadapt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/admetric/stacksync/internal/logging"
	"github.com/admetric/stacksync/pkg/model"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const DefaultEndpoint = "https://api.stackadapt.com/graphql"

type Client struct {
	Endpoint string

	apiKey       string
	hc           *http.Client
	maxRetries   uint64
	requestDelay time.Duration
	logger       *zerolog.Logger
}

func NewClient(cfg *model.StackAdaptConfig, logger *zerolog.Logger) (*Client, error) {
	apiKey := cfg.ApiKey
	if apiKey == "" {
		apiKey = os.Getenv("STACKADAPT_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("STACKADAPT_API_KEY not found, provide it in config or environment")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		timeout = 30 * time.Second
	}
	requestDelay, err := time.ParseDuration(cfg.RequestDelay)
	if err != nil {
		requestDelay = time.Second
	}
	if logger == nil {
		logger = logging.NewLogger("info", "component", "StackAdaptClient")
	}

	return &Client{
		Endpoint:     endpoint,
		apiKey:       apiKey,
		hc:           &http.Client{Timeout: timeout},
		maxRetries:   uint64(cfg.MaxRetries),
		requestDelay: requestDelay,
		logger:       logger,
	}, nil
}

func (c *Client) ServiceName() string {
	return "stackadapt"
}

// Connect verifies the API is reachable with the configured credentials.
func (c *Client) Connect(ctx context.Context) error {
	var out struct {
		Errors []GraphQLError `json:"errors,omitempty"`
	}
	if err := c.Execute(ctx, queryTestConnection, nil, &out); err != nil {
		return fmt.Errorf("stackadapt connect: %w", err)
	}
	return nil
}

// Execute posts one GraphQL query and decodes the response into out.
// Transient failures (network errors, 429, 5xx) are retried with
// exponential backoff; other HTTP errors fail immediately.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any, out any) error {
	payload, err := json.Marshal(graphQLRequest{
		Query:     query,
		Variables: variables,
	})
	if err != nil {
		return err
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.hc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("stackadapt request failed: status %d: %s", resp.StatusCode, body)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("stackadapt request failed: status %d: %s", resp.StatusCode, body))
		}
		if err := json.Unmarshal(body, out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode graphql response: %w", err))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		c.logger.Error().Err(err).Msg("GraphQL request failed")
		return err
	}
	return firstGraphQLError(out)
}

// GraphQL transport errors arrive with status 200; surface them as errors.
func firstGraphQLError(out any) error {
	data, err := json.Marshal(out)
	if err != nil {
		return nil
	}
	var probe struct {
		Errors []GraphQLError `json:"errors"`
	}
	if err := json.Unmarshal(data, &probe); err == nil && len(probe.Errors) > 0 {
		return probe.Errors[0]
	}
	return nil
}

// AdvertiserIDs fetches all advertiser IDs visible to the API key.
func (c *Client) AdvertiserIDs(ctx context.Context) ([]string, error) {
	var envelope AdvertisersEnvelope
	if err := c.Execute(ctx, queryAllAdvertiserIds, nil, &envelope); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(envelope.Data.Advertisers.Edges))
	for _, edge := range envelope.Data.Advertisers.Edges {
		ids = append(ids, edge.Node.ID)
	}
	c.logger.Info().Any("count", len(ids)).Msg("Fetched advertiser IDs")
	return ids, nil
}

// AdInsightsByDay fetches daily ad insights for the given advertisers over
// the inclusive dateFrom..dateTo range (YYYY-MM-DD).
func (c *Client) AdInsightsByDay(ctx context.Context, advertiserIds []string, dateFrom string, dateTo string) (*InsightsEnvelope, error) {
	variables := map[string]any{
		"ids":      advertiserIds,
		"dateFrom": dateFrom,
		"dateTo":   dateTo,
	}
	var envelope InsightsEnvelope
	if err := c.Execute(ctx, queryAdInsightsByDay, variables, &envelope); err != nil {
		return nil, err
	}
	return &envelope, nil
}

// FetchAllInsights fetches insights for all given advertisers, either with
// one bulk query or one query per advertiser with a delay between requests
// to stay under the API rate limit. Empty result sets are dropped.
func (c *Client) FetchAllInsights(ctx context.Context, advertiserIds []string, useBulk bool, dateFrom string, dateTo string) ([]*InsightsEnvelope, error) {
	if len(advertiserIds) == 0 {
		return nil, nil
	}

	if useBulk {
		c.logger.Info().Any("advertisers", len(advertiserIds)).Msg("Fetching ad insights in bulk")
		envelope, err := c.AdInsightsByDay(ctx, advertiserIds, dateFrom, dateTo)
		if err != nil {
			return nil, err
		}
		if len(envelope.Records()) == 0 {
			c.logger.Warn().Msg("No data found in bulk query (empty result set)")
			return nil, nil
		}
		return []*InsightsEnvelope{envelope}, nil
	}

	results := []*InsightsEnvelope{}
	for k, id := range advertiserIds {
		logger := c.logger.With().Str("advertiser", id).Logger()
		logger.Info().Any("n", k+1).Any("total", len(advertiserIds)).Msg("Fetching ad insights")

		envelope, err := c.AdInsightsByDay(ctx, []string{id}, dateFrom, dateTo)
		if err != nil {
			return nil, fmt.Errorf("advertiser %s: %w", id, err)
		}
		if count := len(envelope.Records()); count > 0 {
			logger.Info().Any("records", count).Msg("Fetched ad insights")
			results = append(results, envelope)
		} else {
			logger.Warn().Msg("No records found (empty result set)")
		}

		// rate limit courtesy between requests, skipped after the last one
		if k < len(advertiserIds)-1 && c.requestDelay > 0 {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(c.requestDelay):
			}
		}
	}
	return results, nil
}
