// Package mongo provides the MongoDB implementation of the saga archive:
// immutable snapshots of terminal saga instances for history queries.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/paymentops/transaction-saga/internal/domain/saga"
)

const (
	// ArchiveCollectionName is the name of the saga archive collection
	ArchiveCollectionName = "saga_archive"
)

// ArchiveRepository implements saga.ArchiveRepository for MongoDB
type ArchiveRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewArchiveRepository creates a new MongoDB saga archive repository
func NewArchiveRepository(logger *slog.Logger, db *mongo.Database) saga.ArchiveRepository {
	return &ArchiveRepository{
		db:     db,
		logger: logger,
	}
}

// Save stores a terminal saga snapshot. A re-archive of the same saga id
// (allow-duplicate reuse policies restart ids) replaces the prior record.
func (r *ArchiveRepository) Save(ctx context.Context, record *saga.ArchiveRecord) error {
	collection := r.db.Collection(ArchiveCollectionName)

	filter := bson.M{"saga_id": record.SagaID}
	update := bson.M{"$set": record}
	opts := options.Update().SetUpsert(true)

	if _, err := collection.UpdateOne(ctx, filter, update, opts); err != nil {
		r.logger.Error("Failed to archive saga",
			"saga_id", record.SagaID,
			"error", err)
		return fmt.Errorf("failed to archive saga: %w", err)
	}

	return nil
}

// GetBySagaID retrieves an archived saga snapshot.
// Returns saga.ErrInstanceNotFound if the saga was never archived.
func (r *ArchiveRepository) GetBySagaID(ctx context.Context, sagaID string) (*saga.ArchiveRecord, error) {
	collection := r.db.Collection(ArchiveCollectionName)

	filter := bson.M{"saga_id": sagaID}
	var record saga.ArchiveRecord
	err := collection.FindOne(ctx, filter).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, saga.ErrInstanceNotFound
		}
		r.logger.Error("Failed to get archived saga",
			"saga_id", sagaID,
			"error", err)
		return nil, fmt.Errorf("failed to get archived saga: %w", err)
	}

	return &record, nil
}
