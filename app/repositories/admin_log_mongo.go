package repositories

import (
	"context"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shashiranjanraj/phonedeals/app/models"
)

// MongoAdminLog stores audit entries in a MongoDB collection.
type MongoAdminLog struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// DialMongoAdminLog connects to uri and ensures the timestamp index.
func DialMongoAdminLog(ctx context.Context, uri, database string) (*MongoAdminLog, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("audit: mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("audit: mongo ping: %w", err)
	}

	coll := client.Database(database).Collection("admin_logs")
	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "action", Value: 1}}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("audit: mongo index: %w", err)
	}
	return &MongoAdminLog{client: client, coll: coll}, nil
}

func (m *MongoAdminLog) Append(ctx context.Context, entry *models.AdminLog) error {
	_, err := m.coll.InsertOne(ctx, entry)
	return err
}

// List returns entries newest first.
func (m *MongoAdminLog) List(ctx context.Context, f LogFilter) ([]models.AdminLog, error) {
	filter := bson.M{}
	if f.Action != "" {
		filter["action"] = f.Action
	}
	if f.Target != "" {
		filter["target"] = bson.M{"$regex": regexp.QuoteMeta(f.Target), "$options": "i"}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(f.limit()))
	cur, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	out := []models.AdminLog{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoAdminLog) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
