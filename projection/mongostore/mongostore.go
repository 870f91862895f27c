// Package mongostore persists projections as documents of a MongoDB collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/datazip-inc/streamcatchup/constants"
	"github.com/datazip-inc/streamcatchup/projection"
	"github.com/datazip-inc/streamcatchup/utils/logger"
)

// ErrConcurrentUpdate is returned when another writer replaced the document
// between load and save.
var ErrConcurrentUpdate = errors.New("projection modified concurrently")

type document[P any] struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	ProjectionID string    `bson:"projection_id"`
	Version      int64     `bson:"version"`
	Body         P         `bson:"body"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

// Store keeps projections of one kind (name) in a collection. Writes are
// guarded by a version field so a concurrent writer fails instead of being
// silently overwritten.
type Store[P any] struct {
	collection *mongo.Collection
	name       string
}

var _ projection.Store[any] = (*Store[any])(nil)

// Connect opens a client and verifies the deployment is reachable
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	opts := options.Client()
	opts.ApplyURI(uri)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %s", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, opts.ReadPreference); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %s", err)
	}
	return client, nil
}

func New[P any](collection *mongo.Collection, name string) *Store[P] {
	return &Store[P]{collection: collection, name: name}
}

func (s *Store[P]) key(id string) string {
	return fmt.Sprintf("%s/%s", s.name, id)
}

func (s *Store[P]) FetchAndSave(ctx context.Context, id string, update projection.UpdateFunc[P]) error {
	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	next, err := update(ctx, current.Body)
	if err != nil {
		return err
	}

	replacement := document[P]{
		ID:           current.ID,
		Name:         s.name,
		ProjectionID: id,
		Version:      current.Version + 1,
		Body:         next,
		UpdatedAt:    time.Now().UTC(),
	}
	filter := bson.D{{Key: constants.MongoPrimaryID, Value: current.ID}, {Key: "version", Value: current.Version}}
	_, err = s.collection.ReplaceOne(ctx, filter, replacement, options.Replace().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to save projection[%s]: %w", replacement.ID, ErrConcurrentUpdate)
	}
	if err != nil {
		return fmt.Errorf("failed to save projection[%s]: %s", replacement.ID, err)
	}

	logger.Debugf("saved projection[%s] version %d", replacement.ID, replacement.Version)
	return nil
}

// Get reads a projection outside of any update
func (s *Store[P]) Get(ctx context.Context, id string) (P, bool, error) {
	current, err := s.load(ctx, id)
	return current.Body, current.Version > 0, err
}

// IDs lists the ids stored under this store's name
func (s *Store[P]) IDs(ctx context.Context) ([]string, error) {
	cursor, err := s.collection.Find(ctx, bson.D{{Key: "name", Value: s.name}},
		options.Find().SetProjection(bson.D{{Key: "projection_id", Value: 1}}).SetSort(bson.D{{Key: "projection_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list projections of %s: %s", s.name, err)
	}
	defer cursor.Close(ctx)

	ids := []string{}
	for cursor.Next(ctx) {
		var doc struct {
			ProjectionID string `bson:"projection_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.ProjectionID)
	}
	return ids, cursor.Err()
}

func (s *Store[P]) load(ctx context.Context, id string) (document[P], error) {
	current := document[P]{ID: s.key(id)}
	err := s.collection.FindOne(ctx, bson.D{{Key: constants.MongoPrimaryID, Value: current.ID}}).Decode(&current)
	if err == mongo.ErrNoDocuments {
		return document[P]{ID: s.key(id)}, nil
	}
	if err != nil {
		return document[P]{ID: s.key(id)}, fmt.Errorf("failed to load projection[%s]: %s", current.ID, err)
	}
	return current, nil
}
