package logger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	sinkQueueSize = 2048
	sinkBatchSize = 50
	sinkFlushTick = 2 * time.Second
)

// Entry is one log line as stored in the app_logs collection.
type Entry struct {
	Time      time.Time `bson:"time"`
	Level     string    `bson:"level"`
	Msg       string    `bson:"msg"`
	RequestID string    `bson:"request_id,omitempty"`
	Attrs     bson.M    `bson:"attrs,omitempty"`
}

// MongoSink is an slog.Handler that batches records into MongoDB off the
// request path. Records are dropped when the queue is full.
type MongoSink struct {
	col    *mongo.Collection
	client *mongo.Client
	level  slog.Level
	queue  chan Entry
	done   chan struct{}
	closed chan struct{}
	attrs  []slog.Attr
}

// DialMongoSink connects to uri and starts the background writer.
func DialMongoSink(ctx context.Context, uri, db, collection string, level slog.Level) (*MongoSink, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).
		SetServerSelectionTimeout(5*time.Second).
		SetMaxPoolSize(5))
	if err != nil {
		return nil, fmt.Errorf("logger: mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("logger: mongo ping: %w", err)
	}

	col := client.Database(db).Collection(collection)
	_, _ = col.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "time", Value: -1}}})

	s := &MongoSink{
		col:    col,
		client: client,
		level:  level,
		queue:  make(chan Entry, sinkQueueSize),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go s.run()
	return s, nil
}

func (s *MongoSink) Enabled(_ context.Context, l slog.Level) bool { return l >= s.level }

func (s *MongoSink) Handle(_ context.Context, r slog.Record) error {
	e := Entry{Time: r.Time, Level: r.Level.String(), Msg: r.Message, Attrs: bson.M{}}
	add := func(a slog.Attr) bool {
		if a.Key == "request_id" {
			e.RequestID = a.Value.String()
		} else {
			e.Attrs[a.Key] = a.Value.Resolve().Any()
		}
		return true
	}
	for _, a := range s.attrs {
		add(a)
	}
	r.Attrs(add)

	select {
	case s.queue <- e:
	default:
	}
	return nil
}

func (s *MongoSink) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *s
	cp.attrs = append(append([]slog.Attr{}, s.attrs...), attrs...)
	return &cp
}

// WithGroup flattens groups; stored attrs are already namespaced by key.
func (s *MongoSink) WithGroup(string) slog.Handler { return s }

func (s *MongoSink) run() {
	defer close(s.closed)
	ticker := time.NewTicker(sinkFlushTick)
	defer ticker.Stop()

	batch := make([]any, 0, sinkBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = s.col.InsertMany(ctx, batch)
		batch = batch[:0]
	}

	for {
		select {
		case e := <-s.queue:
			batch = append(batch, e)
			if len(batch) >= sinkBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.done:
			for len(s.queue) > 0 {
				batch = append(batch, <-s.queue)
			}
			flush()
			return
		}
	}
}

// Close flushes queued entries and disconnects.
func (s *MongoSink) Close(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}
	<-s.closed
	return s.client.Disconnect(ctx)
}
