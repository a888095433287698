// Package repository persists scored batches. Every backend writes a batch
// all-or-nothing: either every record is durable or none is.
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/gradecast/internal/domain/model"
)

// Supported backend drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// Store provides durable storage for prediction records.
type Store interface {
	// SaveBatch writes all records in one unit. On error nothing is stored.
	SaveBatch(ctx context.Context, records []model.PredictionRecord) error

	// Batch returns the records of one batch ordered by Seq.
	// Returns ErrNotFound if the batch is unknown.
	Batch(ctx context.Context, batchID string) ([]model.PredictionRecord, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close releases the backend.
	Close() error
}

// Config selects and addresses a backend.
type Config struct {
	Driver   string
	DSN      string
	Database string
	Timeout  time.Duration
}

// Drivers lists the accepted driver names.
func Drivers() []string {
	return []string{DriverSQLite, DriverMySQL, DriverMongo, DriverMemory}
}

// KnownDriver reports whether name selects a backend.
func KnownDriver(name string) bool {
	for _, d := range Drivers() {
		if strings.EqualFold(name, d) {
			return true
		}
	}
	return false
}

// Open connects to the backend named by cfg.Driver and prepares its schema.
func Open(ctx context.Context, cfg Config, opts ...Option) (Store, error) {
	s := newSettings(opts...)
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	switch strings.ToLower(cfg.Driver) {
	case DriverSQLite, "":
		return openSQL(ctx, sqliteDialect, cfg, s)
	case DriverMySQL:
		return openSQL(ctx, mysqlDialect, cfg, s)
	case DriverMongo:
		return openMongo(ctx, cfg, s)
	case DriverMemory:
		return NewMemoryStore(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// checkBatch rejects records that cannot be stored.
func checkBatch(records []model.PredictionRecord) error {
	for i, r := range records {
		if r.BatchID == "" {
			return fmt.Errorf("%w: record %d has no batch id", ErrWriteFailed, i)
		}
	}
	return nil
}
