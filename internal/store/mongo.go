// internal/store/mongo.go - MongoDB-backed document store
package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/utils"
)

var mongoLogger = utils.NewComponentLogger("mongo-store")

// MongoOptions defines MongoDB-specific configuration options
type MongoOptions struct {
	ConnectionString string        `yaml:"connection_string" json:"connection_string"`
	Database         string        `yaml:"database" json:"database"`
	Timeout          time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	MaxPoolSize      int           `yaml:"max_pool_size,omitempty" json:"max_pool_size,omitempty"`
	MinPoolSize      int           `yaml:"min_pool_size,omitempty" json:"min_pool_size,omitempty"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time,omitempty" json:"max_conn_idle_time,omitempty"`
	RetryWrites      bool          `yaml:"retry_writes,omitempty" json:"retry_writes,omitempty"`
}

// MongoStore implements DocumentStore on top of a MongoDB database, with one
// Mongo collection per logical collection and `_id` as the document key.
type MongoStore struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, opts MongoOptions) (*MongoStore, error) {
	if opts.ConnectionString == "" {
		return nil, fmt.Errorf("MongoDB connection string is required")
	}
	if opts.Database == "" {
		return nil, fmt.Errorf("MongoDB database name is required")
	}

	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxPoolSize == 0 {
		opts.MaxPoolSize = 100
	}
	if opts.MinPoolSize == 0 {
		opts.MinPoolSize = 5
	}
	if opts.MaxConnIdleTime == 0 {
		opts.MaxConnIdleTime = 10 * time.Minute
	}

	clientOptions := options.Client()
	clientOptions.ApplyURI(opts.ConnectionString)
	clientOptions.SetMaxPoolSize(uint64(opts.MaxPoolSize))
	clientOptions.SetMinPoolSize(uint64(opts.MinPoolSize))
	clientOptions.SetMaxConnIdleTime(opts.MaxConnIdleTime)
	clientOptions.SetRetryWrites(opts.RetryWrites)

	connectCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	mongoLogger.Infof("Connected to MongoDB database %s", opts.Database)

	return &MongoStore{
		client:  client,
		db:      client.Database(opts.Database),
		timeout: opts.Timeout,
	}, nil
}

func (ms *MongoStore) Get(ctx context.Context, collection, key string) (Fields, error) {
	ctx, cancel := context.WithTimeout(ctx, ms.timeout)
	defer cancel()

	var doc bson.M
	err := ms.db.Collection(collection).FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo get %s/%s: %w", collection, key, err)
	}

	delete(doc, "_id")
	return Fields(doc), nil
}

func (ms *MongoStore) Set(ctx context.Context, collection, key string, fields Fields) error {
	ctx, cancel := context.WithTimeout(ctx, ms.timeout)
	defer cancel()

	doc := bson.M{"_id": key}
	for k, v := range fields {
		doc[k] = v
	}

	opts := options.Replace().SetUpsert(true)
	_, err := ms.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": key}, doc, opts)
	if err != nil {
		return fmt.Errorf("mongo set %s/%s: %w", collection, key, err)
	}
	return nil
}

func (ms *MongoStore) Update(ctx context.Context, collection, key string, ops map[string]FieldOp) error {
	ctx, cancel := context.WithTimeout(ctx, ms.timeout)
	defer cancel()

	sets := bson.M{}
	incs := bson.M{}
	unions := bson.M{}

	for field, op := range ops {
		switch op.Kind {
		case OpSet:
			sets[field] = op.Value
		case OpIncrement:
			incs[field] = op.Value
		case OpArrayUnion:
			values, _ := op.Value.([]string)
			unions[field] = bson.M{"$each": values}
		}
	}

	update := bson.M{}
	if len(sets) > 0 {
		update["$set"] = sets
	}
	if len(incs) > 0 {
		update["$inc"] = incs
	}
	if len(unions) > 0 {
		update["$addToSet"] = unions
	}
	if len(update) == 0 {
		return nil
	}

	opts := options.Update().SetUpsert(true)
	_, err := ms.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": key}, update, opts)
	if err != nil {
		return fmt.Errorf("mongo update %s/%s: %w", collection, key, err)
	}
	return nil
}

func (ms *MongoStore) Delete(ctx context.Context, collection, key string) error {
	ctx, cancel := context.WithTimeout(ctx, ms.timeout)
	defer cancel()

	_, err := ms.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": key})
	if err != nil {
		return fmt.Errorf("mongo delete %s/%s: %w", collection, key, err)
	}
	return nil
}

func (ms *MongoStore) Query(ctx context.Context, collection string, filter Filter) ([]Fields, error) {
	ctx, cancel := context.WithTimeout(ctx, ms.timeout)
	defer cancel()

	mongoFilter := bson.M{}
	for k, v := range filter {
		mongoFilter[k] = v
	}

	cursor, err := ms.db.Collection(collection).Find(ctx, mongoFilter)
	if err != nil {
		return nil, fmt.Errorf("mongo query %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var results []Fields
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo decode: %w", err)
		}
		delete(doc, "_id")
		results = append(results, Fields(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongo cursor: %w", err)
	}

	return results, nil
}

func (ms *MongoStore) Close(ctx context.Context) error {
	return ms.client.Disconnect(ctx)
}
