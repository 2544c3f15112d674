package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mopts "go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
)

// Collection names.
const (
	StudentsCollection   = "students"
	AttendanceCollection = "attendance"
)

type mongoIdentity struct {
	Roll         string        `bson:"roll"`
	Name         string        `bson:"name"`
	Encodings    bson.RawValue `bson:"encodings"`
	RegisteredAt bson.RawValue `bson:"registered_at"`
}

type mongoEvent struct {
	ID        bson.RawValue `bson:"_id"`
	Roll      string        `bson:"roll"`
	Name      string        `bson:"name"`
	Timestamp bson.RawValue `bson:"timestamp"`
	Status    string        `bson:"status"`
}

// MongoStore keeps identities in the students collection and events in the
// attendance collection. Roll uniqueness is enforced by a unique index.
type MongoStore struct {
	client   *mongo.Client
	students *mongo.Collection
	events   *mongo.Collection
	log      logger.Logger
}

// NewMongoStore connects, pings and ensures indexes. Failures wrap
// ErrUnavailable.
func NewMongoStore(ctx context.Context, uri, database string, timeout time.Duration, opts ...Option) (*MongoStore, error) {
	o := buildOptions(opts)

	clientOpts := mopts.Client().ApplyURI(uri)
	if timeout > 0 {
		clientOpts.SetServerSelectionTimeout(timeout).SetConnectTimeout(timeout)
	}
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %w", ErrUnavailable, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: ping: %w", ErrUnavailable, err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		students: db.Collection(StudentsCollection),
		events:   db.Collection(AttendanceCollection),
		log:      o.log,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.students.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "roll", Value: 1}},
		Options: mopts.Index().SetUnique(true).SetName("roll_unique"),
	})
	if err != nil {
		return fmt.Errorf("%w: students index: %w", ErrUnavailable, err)
	}
	_, err = s.events.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "timestamp", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("%w: attendance index: %w", ErrUnavailable, err)
	}
	return nil
}

func (s *MongoStore) Backend() string { return BackendMongo }

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) ListIdentities(ctx context.Context) (model.Gallery, error) {
	cur, err := s.students.Find(ctx, bson.D{}, mopts.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("%w: list identities: %w", ErrUnavailable, err)
	}
	defer cur.Close(ctx)

	var out model.Gallery
	for cur.Next(ctx) {
		var doc mongoIdentity
		if err := cur.Decode(&doc); err != nil {
			s.log.Warn(ctx, "skipping undecodable student document", logger.Error(err))
			continue
		}
		out = append(out, s.toIdentity(ctx, doc))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%w: list identities: %w", ErrUnavailable, err)
	}
	return out, nil
}

func (s *MongoStore) FindByRoll(ctx context.Context, roll string) (model.Identity, error) {
	var doc mongoIdentity
	err := s.students.FindOne(ctx, bson.M{"roll": roll}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Identity{}, ErrNotFound
	}
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: find %s: %w", ErrUnavailable, roll, err)
	}
	return s.toIdentity(ctx, doc), nil
}

func (s *MongoStore) InsertIdentity(ctx context.Context, id model.Identity) error {
	enc := make([][]float64, len(id.Encodings))
	for i, d := range id.Encodings {
		enc[i] = d
	}
	_, err := s.students.InsertOne(ctx, bson.M{
		"roll":          id.Roll,
		"name":          id.Name,
		"encodings":     enc,
		"registered_at": id.RegisteredAt.UTC(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateRoll
	}
	if err != nil {
		return fmt.Errorf("%w: insert %s: %w", ErrUnavailable, id.Roll, err)
	}
	return nil
}

func (s *MongoStore) AppendEvent(ctx context.Context, ev model.AttendanceEvent) error {
	doc := bson.M{
		"roll":      ev.Roll,
		"name":      ev.Name,
		"timestamp": ev.Timestamp.UTC(),
		"status":    ev.Status,
	}
	if ev.ID != "" {
		doc["_id"] = ev.ID
	}
	if _, err := s.events.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("%w: append event: %w", ErrUnavailable, err)
	}
	return nil
}

// ListEvents also reads events whose timestamp was stored as an ISO string
// and filters those in process.
func (s *MongoStore) ListEvents(ctx context.Context, from, to time.Time) ([]model.AttendanceEvent, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"timestamp": bson.M{"$gte": from.UTC(), "$lt": to.UTC()}},
		bson.M{"timestamp": bson.M{"$type": "string"}},
	}}
	cur, err := s.events.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: list events: %w", ErrUnavailable, err)
	}
	defer cur.Close(ctx)

	var all []model.AttendanceEvent
	for cur.Next(ctx) {
		var doc mongoEvent
		if err := cur.Decode(&doc); err != nil {
			s.log.Warn(ctx, "skipping undecodable attendance document", logger.Error(err))
			continue
		}
		ts, ok := rawTime(doc.Timestamp)
		if !ok {
			s.log.Warn(ctx, "skipping attendance record", logger.String("roll", doc.Roll))
			continue
		}
		all = append(all, model.AttendanceEvent{
			ID:        rawID(doc.ID),
			Roll:      doc.Roll,
			Name:      doc.Name,
			Timestamp: ts,
			Status:    doc.Status,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%w: list events: %w", ErrUnavailable, err)
	}
	return filterEvents(all, from, to), nil
}

func (s *MongoStore) toIdentity(ctx context.Context, doc mongoIdentity) model.Identity {
	id := model.Identity{Roll: doc.Roll, Name: doc.Name}
	if doc.Encodings.Type != 0 {
		var enc [][]float64
		if err := doc.Encodings.Unmarshal(&enc); err != nil {
			s.log.Warn(ctx, "unreadable encodings", logger.String("roll", doc.Roll), logger.Error(err))
		} else {
			id.Encodings = make([]model.Descriptor, len(enc))
			for i, d := range enc {
				id.Encodings[i] = d
			}
		}
	}
	if ts, ok := rawTime(doc.RegisteredAt); ok {
		id.RegisteredAt = ts
	}
	return id
}

// rawTime reads a BSON date or an ISO-8601 string.
func rawTime(v bson.RawValue) (time.Time, bool) {
	switch v.Type {
	case bson.TypeDateTime:
		return v.Time().UTC(), true
	case bson.TypeString:
		ts, err := parseTimestamp(v.StringValue())
		return ts, err == nil
	default:
		return time.Time{}, false
	}
}

func rawID(v bson.RawValue) string {
	switch v.Type {
	case bson.TypeString:
		return v.StringValue()
	case bson.TypeObjectID:
		return v.ObjectID().Hex()
	}
	return ""
}
