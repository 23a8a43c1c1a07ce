package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	sharedMongo "github.com/davicafu/lendinglab/internal/shared/infra/platform/db/mongodb"
)

// --- Structs de BSON para el mapeo ---
// El estado se guarda como JSON para compartir formato con los repos SQL.

type mongoAggregate struct {
	ID      string `bson:"_id"`
	State   string `bson:"state"`
	Version int    `bson:"version"`
}

// aggregateCollection escribe agregados y outbox en la misma transacción de sesión.
type aggregateCollection struct {
	client     *mongo.Client
	coll       *mongo.Collection
	outboxColl *mongo.Collection
}

func newAggregateCollection(ctx context.Context, client *mongo.Client, dbName, name string) (aggregateCollection, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return aggregateCollection{}, fmt.Errorf("could not ping mongoDB: %w", err)
	}
	db := client.Database(dbName)
	return aggregateCollection{
		client:     client,
		coll:       db.Collection(name),
		outboxColl: db.Collection("outbox"),
	}, nil
}

func (c aggregateCollection) withTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	session, err := c.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}

// insert devuelve false si el _id ya existía.
func (c aggregateCollection) insert(ctx context.Context, id string, state []byte, events []sharedDomain.OutboxEvent) (bool, error) {
	duplicated := false
	err := c.withTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := c.coll.InsertOne(sessCtx, mongoAggregate{ID: id, State: string(state)}); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				duplicated = true
			}
			return err
		}
		return sharedMongo.InsertOutbox(sessCtx, c.outboxColl, events...)
	})
	if duplicated {
		return false, nil
	}
	return err == nil, err
}

func (c aggregateCollection) load(ctx context.Context, id string) ([]byte, sharedDomain.Version, error) {
	var doc mongoAggregate
	if err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, 0, err
	}
	return []byte(doc.State), sharedDomain.Version(doc.Version), nil
}

// update solo casa si la versión guardada coincide; si no, conflicto.
func (c aggregateCollection) update(ctx context.Context, id string, state []byte, expected sharedDomain.Version, events []sharedDomain.OutboxEvent) error {
	return c.withTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		res, err := c.coll.UpdateOne(sessCtx,
			bson.M{"_id": id, "version": int(expected)},
			bson.M{"$set": bson.M{"state": string(state)}, "$inc": bson.M{"version": 1}},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return sharedDomain.ErrConcurrencyConflict
		}
		return sharedMongo.InsertOutbox(sessCtx, c.outboxColl, events...)
	})
}

func isNoDocuments(err error) bool { return errors.Is(err, mongo.ErrNoDocuments) }
