package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/admetric/stacksync/pkg/model"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string
var config *model.Config = &model.Config{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stacksync",
	Short: "StackAdapt to BigQuery sync",
	Long:  `Syncs daily ad performance from the StackAdapt GraphQL API into BigQuery.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ctx := context.WithValue(cmd.Context(), "config", config)
		cmd.SetContext(ctx)
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("This is the root command that does nothing.\n  Run stacksync server, worker, scheduler or sync")
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func initConfig() {
	// local development secrets, no error when absent
	_ = godotenv.Load()

	viper.AutomaticEnv() // read in environment variables that match
	setDefaults()

	cfgFilePath := cfgFile
	if cfgFilePath == "" {
		cfgFilePath = "./stacksync.yaml"
	}
	viper.SetConfigType("yaml")

	// Open config file for ENV variables substitution
	file, err := os.Open(cfgFilePath)
	if err != nil {
		if cfgFile != "" {
			log.Fatal("No config file found ", err)
		}
		// default config file is optional, defaults and env apply
	} else {
		defer file.Close()
		content, err := io.ReadAll(file)
		if err != nil {
			log.Fatal("Error reading config file ", err)
		}
		expandedContent := os.ExpandEnv(string(content))
		if err := viper.ReadConfig(strings.NewReader(expandedContent)); err == nil {
			fmt.Println("Using config file:", cfgFilePath)
		} else {
			fmt.Println("Error loading config", err)
		}
	}

	if err := viper.Unmarshal(&config); err != nil {
		log.Fatal("Unable to decode config into struct ", err)
	}
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.logLevel", "info")

	viper.SetDefault("redis.dsn", "redis://localhost:6379/0")
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "stacksync.db")

	viper.SetDefault("stackadapt.timeout", "30s")
	viper.SetDefault("stackadapt.requestDelay", "1s")
	viper.SetDefault("stackadapt.maxRetries", 5)
	viper.SetDefault("stackadapt.advertiserCacheExpiry", "1h")

	viper.SetDefault("bigquery.dataset", "raw_ads")

	viper.SetDefault("publisher.requestQueue", "stacksync:requests")
	viper.SetDefault("publisher.responseQueue", "stacksync:responses")
	viper.SetDefault("publisher.timeout", "10m")
	viper.SetDefault("publisher.maxPending", 10)

	viper.SetDefault("worker.groupName", "stacksync")
	viper.SetDefault("worker.consumerName", "worker-1")
	viper.SetDefault("worker.batchSize", 500)

	viper.SetDefault("scheduler.interval", "24h")
	viper.SetDefault("scheduler.daysBack", 30)
	viper.SetDefault("scheduler.useBulk", true)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./stacksync.yaml)")
}
