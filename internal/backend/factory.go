package backend

import (
	"context"
	"fmt"

	applog "bilancio/internal/log"
	"bilancio/internal/ledger/memory"
	"bilancio/internal/sheets"
	gsheet "bilancio/internal/sheets/google"
	sheetsmem "bilancio/internal/sheets/memory"
	"bilancio/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(applog.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case MemoryBackend:
		return f.createMemoryBackend(ctx, config)
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(ctx, config.DSN, config.Options)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.DSN)
		return &BackendResult{Store: repo, Cleanup: repo.Close}, nil
	default:
		dialect, err := storage.ParseDialect(string(config.Type))
		if err != nil {
			return nil, err
		}
		repo, err := storage.Open(ctx, dialect, config.DSN, config.Options)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize %s repository: %w", config.Type, err)
		}
		f.logger.InfoContext(ctx, "Initialized SQL backend", "dialect", dialect)
		return &BackendResult{Store: repo, Cleanup: repo.Close}, nil
	}
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	store, err := memory.NewFromFiles(dataDir, config.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to seed memory backend: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized memory backend", "data_directory", dataDir)
	return &BackendResult{Store: store, Cleanup: store.Close}, nil
}

// CreateMirror implements Factory.CreateMirror. Without a spreadsheet the
// memory backend gets an in-process mirror and SQL backends get none.
func (f *DefaultFactory) CreateMirror(ctx context.Context, config Config) (sheets.TransactionMirror, error) {
	if config.GoogleSpreadsheetID == "" {
		if config.Type == MemoryBackend {
			f.logger.InfoContext(ctx, "No spreadsheet configured, mirroring in memory")
			return sheetsmem.New(), nil
		}
		f.logger.InfoContext(ctx, "No spreadsheet configured, transaction mirroring disabled")
		return nil, nil
	}
	cli, err := gsheet.NewWithServiceAccount(ctx, config.GoogleSpreadsheetID, config.GoogleSheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	if err := cli.EnsureHeader(ctx); err != nil {
		return nil, fmt.Errorf("prepare sheet %s: %w", config.GoogleSheetName, err)
	}
	f.logger.InfoContext(ctx, "Initialized Google Sheets mirror", "sheet", config.GoogleSheetName)
	return cli, nil
}
