// Package config provides configuration management for reward-settler.
//
// It utilizes Viper for loading configuration from environment variables and
// a .env file (via godotenv).
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings,
// divided into subsections:
//   - Server: operator HTTP server settings (port, API key)
//   - Database: reward record store connection details
//   - Ledger: ledger gateway endpoint, credentials and reward asset
//   - Storage: S3/MinIO credentials and the audit archive bucket
//   - Settle: settlement worker batch size, concurrency and backoff
//   - Reconcile: reconciliation batch size, grace period and lookback window
//   - Log: logging level and format
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Port)
package config
