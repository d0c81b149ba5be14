package repository

import (
	"context"
	"errors"

	"github.com/syncstream/syncstream/internal/domain"
	"github.com/syncstream/syncstream/internal/persistence/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Snapshots expire after a day; recovery hints older than that are useless
// because the room itself is long gone.
const snapshotTTLSeconds = 86400

type roomSnapshotRepository struct {
	db *mongo.Database
}

func NewRoomSnapshotRepository(db *mongo.Database) domain.RoomSnapshotRepository {
	return &roomSnapshotRepository{
		db: db,
	}
}

// Save upserts the room's snapshot. One document per room: only the latest
// state matters, history belongs to the audit stream.
func (r *roomSnapshotRepository) Save(ctx context.Context, snapshot *domain.RoomSnapshot) error {
	collection := r.db.Collection(db.RoomSnapshotsCollection)

	filter := bson.M{"room_id": snapshot.RoomID}
	update := bson.M{"$set": snapshot}
	opts := options.Update().SetUpsert(true)

	_, err := collection.UpdateOne(ctx, filter, update, opts)
	return err
}

func (r *roomSnapshotRepository) GetLatest(ctx context.Context, roomID string) (*domain.RoomSnapshot, error) {
	collection := r.db.Collection(db.RoomSnapshotsCollection)

	filter := bson.M{"room_id": roomID}
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})

	var snapshot domain.RoomSnapshot
	err := collection.FindOne(ctx, filter, opts).Decode(&snapshot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}

	return &snapshot, nil
}

func (r *roomSnapshotRepository) Delete(ctx context.Context, roomID string) error {
	collection := r.db.Collection(db.RoomSnapshotsCollection)

	_, err := collection.DeleteOne(ctx, bson.M{"room_id": roomID})
	return err
}

func (r *roomSnapshotRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(db.RoomSnapshotsCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "room_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(snapshotTTLSeconds),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
