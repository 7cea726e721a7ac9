// Package database handles database connections and schema inspection.
//
// It provides a wrapper around GORM to properly configure the connection to
// the reward record store. MySQL is the production driver; sqlite is supported
// for local runs and tests and selected via Config.Driver.
//
// # Schema Inspection
//
// The package includes tools to inspect the live schema, used by the
// integrity command to verify that the reward_records table still carries
// every column the settlement pipeline writes.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	missing, err := database.VerifyColumns(db, "reward_records", expected)
package database
