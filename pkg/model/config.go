package model

import (
	"fmt"
	"strings"

	"github.com/kos-v/dsnparser"
)

// Config holds the application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Redis      Redis            `mapstructure:"redis"`
	Database   Database         `mapstructure:"database"`
	StackAdapt StackAdaptConfig `mapstructure:"stackadapt"`
	BigQuery   BigQueryConfig   `mapstructure:"bigquery"`
	Publisher  PublisherConfig  `mapstructure:"publisher"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
}

// ServerConfig holds HTTP API server configuration.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"logLevel"`
}

// StackAdaptConfig holds the StackAdapt GraphQL API configuration.
type StackAdaptConfig struct {
	Endpoint              string `mapstructure:"endpoint"`              // GraphQL endpoint, defaults to the production API
	ApiKey                string `mapstructure:"apiKey"`                // bearer token, defaults to STACKADAPT_API_KEY
	Timeout               string `mapstructure:"timeout"`               // per-request timeout
	RequestDelay          string `mapstructure:"requestDelay"`          // delay between per-advertiser requests
	MaxRetries            int    `mapstructure:"maxRetries"`            // retries per request on transient failures
	AdvertiserCacheExpiry string `mapstructure:"advertiserCacheExpiry"` // TTL of the cached advertiser ID list
}

// BigQueryConfig holds the warehouse destination configuration.
type BigQueryConfig struct {
	ProjectID       string `mapstructure:"projectId"`       // GCP project, defaults to the credentials project
	Dataset         string `mapstructure:"dataset"`         // target dataset, e.g. "raw_ads"
	CredentialsFile string `mapstructure:"credentialsFile"` // used when GOOGLE_CREDENTIALS is not set
	TempTable       string `mapstructure:"tempTable"`
	MainTable       string `mapstructure:"mainTable"`
}

// PublisherConfig holds the sync job queue configuration.
type PublisherConfig struct {
	RequestQueue  string `mapstructure:"requestQueue"`
	ResponseQueue string `mapstructure:"responseQueue"`
	Timeout       string `mapstructure:"timeout"`
	MaxPending    int64  `mapstructure:"maxPending"` // scheduler stops enqueueing above this backlog
}

// WorkerConfig holds the sync worker configuration.
type WorkerConfig struct {
	GroupName    string `mapstructure:"groupName"`
	ConsumerName string `mapstructure:"consumerName"`
	BatchSize    int    `mapstructure:"batchSize"` // warehouse insert batch size
}

// SchedulerConfig holds the periodic sync configuration.
type SchedulerConfig struct {
	Interval string `mapstructure:"interval"`
	DaysBack int    `mapstructure:"daysBack"`
	UseBulk  bool   `mapstructure:"useBulk"`
}

// Redis holds Redis-specific configuration.
type Redis struct {
	DSN string `mapstructure:"dsn"`
}

type DatabaseDriver string

const (
	DatabaseDriverPostgres DatabaseDriver = "postgres"
	DatabaseDriverSqlite   DatabaseDriver = "sqlite"
)

type Database struct {
	Driver DatabaseDriver `mapstructure:"driver"` // "postgres" or "sqlite"
	Dsn    string         `mapstructure:"dsn"`
}

// MaskedDsn returns the database DSN with credentials stripped, for startup logs.
func (d Database) MaskedDsn() string {
	// bare sqlite paths carry no credentials and confuse the parser
	if !strings.Contains(d.Dsn, "://") {
		return d.Dsn
	}
	dsn := dsnparser.Parse(d.Dsn)
	if dsn == nil || dsn.GetHost() == "" {
		return d.Dsn
	}
	authority := dsn.GetHost()
	if dsn.GetPort() != "" {
		authority = dsn.GetHost() + ":" + dsn.GetPort()
	}
	return fmt.Sprintf("%s://%s/%s", d.Driver, authority, dsn.GetPath())
}
