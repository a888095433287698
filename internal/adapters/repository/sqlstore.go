package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/okian/gradecast/internal/domain/model"
	"github.com/okian/gradecast/pkg/logger"
	"github.com/okian/gradecast/pkg/metrics"
)

type dialect struct {
	name   string
	driver string
	schema []string
	dsn    func(string) (string, error)
	single bool
}

var sqliteDialect = dialect{
	name:   DriverSQLite,
	driver: "sqlite3",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS predictions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			batch_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			student_id TEXT NOT NULL,
			attendance REAL NOT NULL,
			study_hours REAL NOT NULL,
			internal_marks REAL NOT NULL,
			assignments INTEGER NOT NULL,
			activities INTEGER NOT NULL,
			prediction TEXT NOT NULL,
			confidence REAL NOT NULL,
			created_at DATETIME NOT NULL,
			UNIQUE (batch_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_student ON predictions(student_id)`,
	},
	dsn:    sqliteDSN,
	single: true,
}

var mysqlDialect = dialect{
	name:   DriverMySQL,
	driver: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS predictions (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			batch_id VARCHAR(64) NOT NULL,
			seq INT NOT NULL,
			student_id VARCHAR(255) NOT NULL,
			attendance DOUBLE NOT NULL,
			study_hours DOUBLE NOT NULL,
			internal_marks DOUBLE NOT NULL,
			assignments INT NOT NULL,
			activities INT NOT NULL,
			prediction VARCHAR(8) NOT NULL,
			confidence DOUBLE NOT NULL,
			created_at DATETIME(6) NOT NULL,
			UNIQUE KEY uq_predictions_batch_seq (batch_id, seq),
			KEY idx_predictions_student (student_id)
		) ENGINE=InnoDB`,
	},
	dsn: mysqlDSN,
}

const (
	insertPrediction = `INSERT INTO predictions
		(batch_id, seq, student_id, attendance, study_hours, internal_marks, assignments, activities, prediction, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	selectBatch = `SELECT batch_id, seq, student_id, attendance, study_hours, internal_marks, assignments, activities, prediction, confidence, created_at
		FROM predictions WHERE batch_id = ? ORDER BY seq`
	countPredictions = `SELECT COUNT(*) FROM predictions`
)

// sqliteDSN adds WAL and busy timeout pragmas to file databases.
func sqliteDSN(dsn string) (string, error) {
	if dsn == "" {
		dsn = "gradecast.db"
	}
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") || strings.Contains(dsn, "?") {
		return dsn, nil
	}
	return "file:" + dsn + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", nil
}

// mysqlDSN forces time parsing so created_at scans into time.Time.
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// SQLStore is a Store backed by database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	timeout time.Duration
	logger  logger.Logger
}

var _ Store = (*SQLStore)(nil)

func openSQL(ctx context.Context, d dialect, cfg Config, s settings) (*SQLStore, error) {
	dsn, err := d.dsn(cfg.DSN)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.name, err)
	}
	if d.single {
		// SQLite allows one writer; in-memory databases also vanish per connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	store := &SQLStore{db: db, dialect: d, timeout: cfg.Timeout, logger: s.logger.Named("store")}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.name, err)
	}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	store.logger.Info(ctx, "store ready", logger.String("driver", d.name))
	return store, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, q := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate %s: %w", s.dialect.name, err)
		}
	}
	return nil
}

// SaveBatch inserts every record in one transaction with a prepared insert.
func (s *SQLStore) SaveBatch(ctx context.Context, records []model.PredictionRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	if err := checkBatch(records); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrWriteFailed, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Error(ctx, "rollback failed", logger.Error(rbErr))
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertPrediction)
	if err != nil {
		return fmt.Errorf("%w: prepare: %w", ErrWriteFailed, err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		if _, err = stmt.ExecContext(ctx,
			r.BatchID, r.Seq, r.StudentID,
			r.Attendance, r.StudyHours, r.InternalMarks,
			r.Assignments, r.Activities,
			string(r.Prediction), r.Confidence, r.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("%w: insert %s/%d: %w", ErrWriteFailed, r.BatchID, r.Seq, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrWriteFailed, err)
	}
	metrics.RecordRecordsSaved(len(records))
	return nil
}

// Batch loads one batch ordered by seq.
func (s *SQLStore) Batch(ctx context.Context, batchID string) ([]model.PredictionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, selectBatch, batchID)
	if err != nil {
		return nil, fmt.Errorf("query batch: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.PredictionRecord
	for rows.Next() {
		var (
			r    model.PredictionRecord
			pred string
		)
		if err := rows.Scan(&r.BatchID, &r.Seq, &r.StudentID,
			&r.Attendance, &r.StudyHours, &r.InternalMarks,
			&r.Assignments, &r.Activities,
			&pred, &r.Confidence, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		r.Prediction = model.Prediction(pred)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, batchID)
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, countPredictions).Scan(&n); err != nil {
		return 0, fmt.Errorf("count predictions: %w", err)
	}
	return n, nil
}

// Close closes the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
