// Package audit mirrors committed actions into Mongo as a best-effort side
// channel, never a source of truth for the lifecycle coordinator. Records
// are keyed by target ID.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hiveregistry/registry/internal/domain"
)

const collectionName = "schema_change_events"

// Event is the denormalized record written for every committed action,
// independent of whether it produced a new version.
type Event struct {
	ActionID     uuid.UUID       `bson:"actionId"`
	TargetID     uuid.UUID       `bson:"targetId"`
	VersionID    *uuid.UUID      `bson:"versionId,omitempty"`
	ActionType   domain.ActionType `bson:"actionType"`
	Author       string          `bson:"author"`
	IsComposable bool            `bson:"isComposable"`
	Changes      []domain.Change `bson:"changes,omitempty"`
	RecordedAt   time.Time       `bson:"recordedAt"`
}

// Mirror writes Events best-effort; callers log and discard its errors
// rather than failing a publish/delete over an audit sink outage.
type Mirror struct {
	collection *mongo.Collection
}

func NewMirror(database *mongo.Database) *Mirror {
	return &Mirror{collection: database.Collection(collectionName)}
}

func (m *Mirror) Record(ctx context.Context, event Event) error {
	if event.RecordedAt.IsZero() {
		event.RecordedAt = time.Now()
	}
	_, err := m.collection.InsertOne(ctx, event)
	return err
}

// ListByTarget returns recent mirrored events for a target, newest first,
// used only by diagnostic/read paths that tolerate the mirror's eventual
// consistency with the version store.
func (m *Mirror) ListByTarget(ctx context.Context, targetID uuid.UUID, limit int64) ([]Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "recordedAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := m.collection.Find(ctx, bson.M{"targetId": targetID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}
