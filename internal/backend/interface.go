package backend

import (
	"context"

	"bilancio/internal/ledger"
	"bilancio/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store and optional cleanup function
type BackendResult struct {
	Store   ledger.Store
	Cleanup CleanupFunc
}

// Factory creates the ledger store and the spreadsheet mirror from
// configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// CreateMirror returns nil when no spreadsheet is configured for a SQL
	// backend.
	CreateMirror(ctx context.Context, config Config) (sheets.TransactionMirror, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// DSN is the sqlite file path or the postgres/mysql connection string.
	DSN string

	// Memory backend seed directory
	DataDirectory string

	Options ledger.Options

	// Google Sheets mirror
	GoogleSpreadsheetID string
	GoogleSheetName     string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MySQLBackend    BackendType = "mysql"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend, MySQLBackend:
		return true
	default:
		return false
	}
}

// IsSQL reports whether the backend is served by storage.Repository.
func (bt BackendType) IsSQL() bool {
	return bt.IsValid() && bt != MemoryBackend
}
