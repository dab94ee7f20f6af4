package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/mfactory-lab/ic-solana/rpc"
)

const mongoDatabase = "ic_solana"

// Mongo persists gateway state in the providers, grants, and counters
// collections of the ic_solana database.
type Mongo struct {
	client    *mongo.Client
	providers *mongo.Collection
	grants    *mongo.Collection
	counters  *mongo.Collection
}

var _ Store = &Mongo{}

// OpenMongo connects to the mongo deployment named by uri.
func OpenMongo(ctx context.Context, uri string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	db := client.Database(mongoDatabase)
	return &Mongo{
		client:    client,
		providers: db.Collection("providers"),
		grants:    db.Collection("grants"),
		counters:  db.Collection("counters"),
	}, nil
}

type mongoProvider struct {
	ID     string       `bson:"_id"`
	Record rpc.Provider `bson:"record"`
}

func (s *Mongo) LoadProviders(ctx context.Context) ([]rpc.Provider, error) {
	cursor, err := s.providers.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("query providers: %w", err)
	}
	defer cursor.Close(ctx)

	var out []rpc.Provider
	for cursor.Next(ctx) {
		var doc mongoProvider
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode provider record: %w", err)
		}
		out = append(out, doc.Record)
	}
	return out, cursor.Err()
}

func (s *Mongo) SaveProvider(ctx context.Context, p rpc.Provider) error {
	_, err := s.providers.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: p.ID}},
		mongoProvider{ID: p.ID, Record: p},
		options.Replace().SetUpsert(true))
	return err
}

func (s *Mongo) DeleteProvider(ctx context.Context, id string) error {
	_, err := s.providers.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	return err
}

type mongoGrant struct {
	Principal    string   `bson:"_id"`
	Capabilities []string `bson:"capabilities"`
}

func (s *Mongo) LoadGrants(ctx context.Context) (map[string][]string, error) {
	cursor, err := s.grants.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}
	defer cursor.Close(ctx)

	out := make(map[string][]string)
	for cursor.Next(ctx) {
		var doc mongoGrant
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode grant record: %w", err)
		}
		out[doc.Principal] = doc.Capabilities
	}
	return out, cursor.Err()
}

func (s *Mongo) SaveGrants(ctx context.Context, principal string, capabilities []string) error {
	if len(capabilities) == 0 {
		_, err := s.grants.DeleteOne(ctx, bson.D{{Key: "_id", Value: principal}})
		return err
	}
	_, err := s.grants.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: principal}},
		mongoGrant{Principal: principal, Capabilities: capabilities},
		options.Replace().SetUpsert(true))
	return err
}

func (s *Mongo) LoadCounters(ctx context.Context) (map[string]uint64, error) {
	cursor, err := s.counters.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("query counters: %w", err)
	}
	defer cursor.Close(ctx)

	out := make(map[string]uint64)
	for cursor.Next(ctx) {
		var doc struct {
			Name  string `bson:"_id"`
			Value int64  `bson:"value"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode counter record: %w", err)
		}
		out[doc.Name] = uint64(doc.Value)
	}
	return out, cursor.Err()
}

func (s *Mongo) AddCounter(ctx context.Context, name string, delta uint64) error {
	_, err := s.counters.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: name}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "value", Value: int64(delta)}}}},
		options.Update().SetUpsert(true))
	return err
}

func (s *Mongo) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Mongo) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
