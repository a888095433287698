package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/gradecast/internal/domain/model"
	"github.com/okian/gradecast/pkg/logger"
	"github.com/okian/gradecast/pkg/metrics"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultMongoDatabase = "gradecast"
	predictionsColl      = "predictions"
)

// MongoStore is a Store backed by a MongoDB collection. Batch writes run in a
// multi-document transaction, which needs a replica set or sharded cluster.
type MongoStore struct {
	client  *mongo.Client
	coll    *mongo.Collection
	timeout time.Duration
	logger  logger.Logger
}

var _ Store = (*MongoStore)(nil)

func openMongo(ctx context.Context, cfg Config, s settings) (*MongoStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: mongo requires a connection uri", ErrUnknownDriver)
	}
	dbName := cfg.Database
	if dbName == "" {
		dbName = defaultMongoDatabase
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(cfg.DSN).
		SetServerSelectionTimeout(cfg.Timeout).
		SetConnectTimeout(cfg.Timeout)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	coll := client.Database(dbName).Collection(predictionsColl)
	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "batch_id", Value: 1}, {Key: "seq", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "student_id", Value: 1}}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create mongo indexes: %w", err)
	}

	store := &MongoStore{client: client, coll: coll, timeout: cfg.Timeout, logger: s.logger.Named("store")}
	store.logger.Info(ctx, "store ready", logger.String("driver", DriverMongo), logger.String("database", dbName))
	return store, nil
}

// SaveBatch inserts every record inside one transaction.
func (m *MongoStore) SaveBatch(ctx context.Context, records []model.PredictionRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := checkBatch(records); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	docs := make([]any, len(records))
	for i, r := range records {
		r.CreatedAt = r.CreatedAt.UTC()
		docs[i] = r
	}

	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("%w: start session: %w", ErrWriteFailed, err)
	}
	defer session.EndSession(context.Background())

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return m.coll.InsertMany(sessCtx, docs, options.InsertMany().SetOrdered(true))
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	metrics.RecordRecordsSaved(len(records))
	return nil
}

// Batch loads one batch ordered by seq.
func (m *MongoStore) Batch(ctx context.Context, batchID string) ([]model.PredictionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	cur, err := m.coll.Find(ctx, bson.M{"batch_id": batchID}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find batch: %w", err)
	}
	var out []model.PredictionRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, batchID)
	}
	return out, nil
}

// Count returns the number of stored records.
func (m *MongoStore) Count(ctx context.Context) (int, error) {
	n, err := m.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count predictions: %w", err)
	}
	return int(n), nil
}

// Close disconnects the client.
func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if err := m.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}
