package cmd

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/admetric/stacksync/internal/controllers"
	"github.com/admetric/stacksync/internal/logging"
	"github.com/admetric/stacksync/internal/routing"
	"github.com/admetric/stacksync/pkg/model"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
)

var httpPort int

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the HTTP API server.",
	Long: `Starts an HTTP server that accepts sync requests and serves the run history.
Sync jobs are published to a Redis stream and processed by the worker.`,
	Run: func(cmd *cobra.Command, args []string) {
		currentConfig, _ := cmd.Context().Value("config").(*model.Config)
		if currentConfig == nil {
			log.Fatal("Configuration not found in context. Ensure rootCmd PersistentPreRun is setting it.")
		}
		logger := logging.NewLogger(currentConfig.Server.LogLevel, "component", "server")
		databaseContext, err := model.NewDatabaseContext(&currentConfig.Database, logger)
		if err != nil {
			logger.Fatal().Err(err).Str("dsn", currentConfig.Database.MaskedDsn()).Msg("Failed to open database")
		}
		if err := databaseContext.Migrate(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to migrate database")
		}

		publisher, err := routing.NewPublisher(cmd.Context(), currentConfig)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create publisher")
		}

		// Base Router
		baseRouter := chi.NewRouter()

		// Define the v1 api
		v1ApiRouter := chi.NewMux()
		v1ApiConfig := huma.DefaultConfig("StackSync API", "1.0.0")
		v1ApiConfig.Servers = []*huma.Server{
			{URL: "/api/v1", Description: "StackSync API server"},
		}
		v1ApiConfig.OpenAPIPath = "/openapi"
		v1Api := humachi.New(v1ApiRouter, v1ApiConfig)

		metricsController := controllers.NewMetricsController(&v1Api, currentConfig).WithPublisher(publisher)
		v1Api.UseMiddleware(metricsController.MetricsMiddleware())
		v1Api.UseMiddleware(databaseContext.DatabaseMiddleware())

		controllers.NewSyncController(&v1Api, currentConfig).WithPublisher(publisher).AddRoutes()
		controllers.NewRunController(&v1Api, currentConfig).AddRoutes()
		metricsController.AddRoutes()

		baseRouter.Mount("/api/v1", v1ApiRouter)

		// I love swagger
		baseRouter.Get("/api/swagger", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <meta name="description" content="SwaggerUI" />
  <title>SwaggerUI</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
  window.onload = () => {
    window.ui = SwaggerUIBundle({
      url: '/api/v1/openapi.json',
      dom_id: '#swagger-ui',
    });
  };
</script>
</body>
</html>`))
		})

		baseRouter.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"service":"stacksync","status":"running"}`))
		})
		baseRouter.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("ok\n"))
		})

		serverAddr := fmt.Sprintf(":%d", resolvePort(currentConfig))
		logger.Info().Str("address", serverAddr).Str("database", currentConfig.Database.MaskedDsn()).Msg("Starting HTTP server")
		if err := http.ListenAndServe(serverAddr, baseRouter); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	},
}

// resolvePort prefers the flag, then the PORT environment variable used by
// container platforms, then the config file.
func resolvePort(cfg *model.Config) int {
	if httpPort > 0 {
		return httpPort
	}
	if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil && port > 0 {
		return port
	}
	if cfg.Server.Port > 0 {
		return cfg.Server.Port
	}
	return 8080
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&httpPort, "port", "p", 0, "Port for the HTTP server")
}
