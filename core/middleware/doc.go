// Package middleware groups the Fiber middlewares used by the operator API:
// API key authentication (auth) and request correlation IDs (rayid).
package middleware
