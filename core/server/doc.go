// Package server holds configuration for the operator HTTP server.
//
// The server itself is assembled in cmd/start.go; this package only defines
// the configuration section so that core/config can compose it.
package server
