// BigQuery client with credential handling: the GOOGLE_CREDENTIALS
// environment variable (service account JSON, production) wins over a local
// credentials file (development). The project defaults to the one named in
// the credentials.

package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"cloud.google.com/go/bigquery"
	"github.com/admetric/stacksync/internal/logging"
	"github.com/admetric/stacksync/pkg/model"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

type Client struct {
	ProjectID string
	Dataset   string

	bq     *bigquery.Client
	logger *zerolog.Logger
}

type serviceAccountInfo struct {
	ProjectID string `json:"project_id"`
}

func NewClient(ctx context.Context, cfg *model.BigQueryConfig, logger *zerolog.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.NewLogger("info", "component", "WarehouseClient")
	}

	var opts []option.ClientOption
	var credsProject string

	if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		logger.Info().Msg("Using credentials from environment variable")
		var info serviceAccountInfo
		if err := json.Unmarshal([]byte(credsJSON), &info); err != nil {
			return nil, fmt.Errorf("parse GOOGLE_CREDENTIALS: %w", err)
		}
		credsProject = info.ProjectID
		opts = append(opts, option.WithCredentialsJSON([]byte(credsJSON)))
	} else if cfg.CredentialsFile != "" {
		logger.Info().Str("file", cfg.CredentialsFile).Msg("Using credentials from file")
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		var info serviceAccountInfo
		if err := json.Unmarshal(data, &info); err != nil {
			return nil, fmt.Errorf("parse credentials file: %w", err)
		}
		credsProject = info.ProjectID
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = credsProject
	}
	if projectID == "" {
		return nil, fmt.Errorf("project ID must be configured or available in credentials")
	}

	bq, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}
	logger.Info().Str("project", projectID).Msg("BigQuery client initialized")

	return &Client{
		ProjectID: projectID,
		Dataset:   cfg.Dataset,
		bq:        bq,
		logger:    logger,
	}, nil
}

func (c *Client) ServiceName() string {
	return "bigquery"
}

// Connect checks the target dataset is reachable.
func (c *Client) Connect(ctx context.Context) error {
	if _, err := c.bq.Dataset(c.Dataset).Metadata(ctx); err != nil {
		return fmt.Errorf("bigquery connect (dataset %s): %w", c.Dataset, err)
	}
	return nil
}

func (c *Client) Close() error {
	if c.bq != nil {
		return c.bq.Close()
	}
	return nil
}

// Table returns a handle on a table in the configured dataset.
func (c *Client) Table(table string) *bigquery.Table {
	return c.bq.Dataset(c.Dataset).Table(table)
}

// Query prepares a query job.
func (c *Client) Query(sql string) *bigquery.Query {
	return c.bq.Query(sql)
}
