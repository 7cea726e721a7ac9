// Package storage provides an abstraction layer for the audit archive.
//
// It wraps the MinIO Go client to provide a simplified interface for the
// operations the audit exporter needs: checking bucket existence, uploading
// report objects, and listing past exports. This abstraction supports both
// AWS S3 and self-hosted MinIO instances.
//
// The Client interface makes storage interactions easy to mock for unit
// testing (see core/storage/mocks).
package storage
