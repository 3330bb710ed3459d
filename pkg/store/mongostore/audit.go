package mongostore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/entitlekit/pkg/audit"
)

// DefaultCollection is the collection used when WithCollection is not given.
const DefaultCollection = "audit_records"

// AuditStorage is an audit.BatchStorage on a MongoDB collection.
// Snapshots are normalised through JSON, so they read back with the same
// field names and number types as the PostgreSQL storage.
type AuditStorage struct {
	col *mongo.Collection
}

var _ audit.BatchStorage = (*AuditStorage)(nil)

// Option configures an AuditStorage.
type Option func(*settings)

type settings struct {
	collection string
}

// WithCollection overrides DefaultCollection.
func WithCollection(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.collection = name
		}
	}
}

// NewAuditStorage ensures the query indexes exist and returns the storage.
// Panics if db is nil.
func NewAuditStorage(ctx context.Context, db *mongo.Database, opts ...Option) (*AuditStorage, error) {
	if db == nil {
		panic("mongostore: database is required")
	}
	s := settings{collection: DefaultCollection}
	for _, opt := range opts {
		opt(&s)
	}

	col := db.Collection(s.collection)
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "action", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("mongostore: create audit indexes: %w", err)
	}
	return &AuditStorage{col: col}, nil
}

func (s *AuditStorage) Store(ctx context.Context, r audit.Record) error {
	doc, err := toDocument(r)
	if err != nil {
		return err
	}
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongostore: store audit record: %w", err)
	}
	return nil
}

// StoreBatch inserts records with an ordered InsertMany; a failure stops at
// the first rejected record.
func (s *AuditStorage) StoreBatch(ctx context.Context, records []audit.Record) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]any, 0, len(records))
	for _, r := range records {
		doc, err := toDocument(r)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	if _, err := s.col.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("mongostore: store audit batch: %w", err)
	}
	return nil
}

// Query returns matching records oldest first.
func (s *AuditStorage) Query(ctx context.Context, c audit.Criteria) ([]audit.Record, error) {
	find := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if c.Limit > 0 {
		find.SetLimit(int64(c.Limit))
	}
	if c.Offset > 0 {
		find.SetSkip(int64(c.Offset))
	}

	cur, err := s.col.Find(ctx, filter(c), find)
	if err != nil {
		return nil, fmt.Errorf("mongostore: query audit records: %w", err)
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongostore: decode audit records: %w", err)
	}

	out := make([]audit.Record, 0, len(docs))
	for _, d := range docs {
		r, err := d.record()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func filter(c audit.Criteria) bson.D {
	f := bson.D{}
	if c.TenantID != uuid.Nil {
		f = append(f, bson.E{Key: "tenant_id", Value: c.TenantID.String()})
	}
	if c.Action != "" {
		f = append(f, bson.E{Key: "action", Value: c.Action})
	}
	created := bson.D{}
	if !c.Since.IsZero() {
		created = append(created, bson.E{Key: "$gte", Value: c.Since})
	}
	if !c.Until.IsZero() {
		created = append(created, bson.E{Key: "$lt", Value: c.Until})
	}
	if len(created) > 0 {
		f = append(f, bson.E{Key: "created_at", Value: created})
	}
	return f
}

// document is the stored shape of an audit.Record. IDs are strings so the
// collection stays readable from the mongo shell.
type document struct {
	ID           string    `bson:"_id"`
	TenantID     string    `bson:"tenant_id"`
	Action       string    `bson:"action"`
	Actor        string    `bson:"actor,omitempty"`
	Result       string    `bson:"result"`
	Error        string    `bson:"error,omitempty"`
	Before       bson.M    `bson:"before,omitempty"`
	After        bson.M    `bson:"after,omitempty"`
	StateVersion int64     `bson:"state_version"`
	Metadata     bson.M    `bson:"metadata,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
}

func toDocument(r audit.Record) (document, error) {
	if err := r.Validate(); err != nil {
		return document{}, err
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	before, err := toM(r.Before)
	if err != nil {
		return document{}, fmt.Errorf("mongostore: encode before snapshot: %w", err)
	}
	after, err := toM(r.After)
	if err != nil {
		return document{}, fmt.Errorf("mongostore: encode after snapshot: %w", err)
	}
	var metadata bson.M
	if len(r.Metadata) > 0 {
		if metadata, err = toM(r.Metadata); err != nil {
			return document{}, fmt.Errorf("mongostore: encode metadata: %w", err)
		}
	}
	return document{
		ID:           r.ID.String(),
		TenantID:     r.TenantID.String(),
		Action:       r.Action,
		Actor:        r.Actor,
		Result:       string(r.Result),
		Error:        r.Error,
		Before:       before,
		After:        after,
		StateVersion: r.StateVersion,
		Metadata:     metadata,
		CreatedAt:    r.CreatedAt,
	}, nil
}

func (d document) record() (audit.Record, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return audit.Record{}, fmt.Errorf("mongostore: audit id %q: %w", d.ID, err)
	}
	tenantID, err := uuid.Parse(d.TenantID)
	if err != nil {
		return audit.Record{}, fmt.Errorf("mongostore: tenant id %q: %w", d.TenantID, err)
	}
	before, err := fromM(d.Before)
	if err != nil {
		return audit.Record{}, fmt.Errorf("mongostore: decode before snapshot: %w", err)
	}
	after, err := fromM(d.After)
	if err != nil {
		return audit.Record{}, fmt.Errorf("mongostore: decode after snapshot: %w", err)
	}
	r := audit.Record{
		ID:           id,
		TenantID:     tenantID,
		Action:       d.Action,
		Actor:        d.Actor,
		Result:       audit.Result(d.Result),
		Error:        d.Error,
		Before:       before,
		After:        after,
		StateVersion: d.StateVersion,
		CreatedAt:    d.CreatedAt.UTC(),
	}
	if len(d.Metadata) > 0 {
		m, err := fromM(d.Metadata)
		if err != nil {
			return audit.Record{}, fmt.Errorf("mongostore: decode metadata: %w", err)
		}
		r.Metadata, _ = m.(map[string]any)
	}
	return r, nil
}

// toM stores v as a document. Values that are not JSON objects are kept
// under the "value" key.
func toM(v any) (bson.M, error) {
	n, err := normalize(v)
	if err != nil || n == nil {
		return nil, err
	}
	if m, ok := n.(map[string]any); ok {
		return bson.M(m), nil
	}
	return bson.M{"value": n}, nil
}

func fromM(m bson.M) (any, error) {
	if m == nil {
		return nil, nil
	}
	return normalize(m)
}

// normalize round-trips v through JSON: structs become maps keyed by their
// json tags and BSON containers become plain maps and slices.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
