package mongodb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	"github.com/davicafu/lendinglab/internal/shared/infra/utils"
)

// OutboxRepoMongoDB implementa sharedDomain.OutboxRepository.
// Mongo no tiene secuencias: el orden lo da (stagedAt, position).
type OutboxRepoMongoDB struct {
	client     *mongo.Client
	outboxColl *mongo.Collection
}

func NewOutboxRepoMongoDB(client *mongo.Client, dbName string) *OutboxRepoMongoDB {
	return &OutboxRepoMongoDB{client: client, outboxColl: client.Database(dbName).Collection("outbox")}
}

// mongoOutboxEvent mapea los documentos de la colección outbox.
type mongoOutboxEvent struct {
	ID            string    `bson:"_id"`
	AggregateType string    `bson:"aggregateType"`
	AggregateID   string    `bson:"aggregateId"`
	EventType     string    `bson:"eventType"`
	Payload       string    `bson:"payload"`
	CreatedAt     time.Time `bson:"createdAt"`
	StagedAt      time.Time `bson:"stagedAt"`
	Position      int       `bson:"position"`
	Published     bool      `bson:"published"`
}

// EnsureIndexes crea el índice que sirve la consulta de pendientes.
func (r *OutboxRepoMongoDB) EnsureIndexes(ctx context.Context) error {
	_, err := r.outboxColl.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "published", Value: 1}, {Key: "stagedAt", Value: 1}, {Key: "position", Value: 1}},
	})
	return err
}

// InsertOutbox añade eventos usando el contexto de sesión del llamante, en orden.
func InsertOutbox(ctx context.Context, coll *mongo.Collection, events ...sharedDomain.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}
	stagedAt := time.Now().UTC()
	docs := make([]interface{}, 0, len(events))
	for i, evt := range events {
		payloadBytes, err := utils.JSON.Marshal(evt.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal outbox payload: %w", err)
		}
		docs = append(docs, mongoOutboxEvent{
			ID:            evt.ID.String(),
			AggregateType: evt.AggregateType,
			AggregateID:   evt.AggregateID,
			EventType:     evt.EventType,
			Payload:       string(payloadBytes),
			CreatedAt:     evt.CreatedAt.UTC(),
			StagedAt:      stagedAt,
			Position:      i,
		})
	}
	if _, err := coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return fmt.Errorf("failed to insert outbox events: %w", err)
	}
	return nil
}

// Collection expone la colección para que los repositorios de agregados escriban en su transacción.
func (r *OutboxRepoMongoDB) Collection() *mongo.Collection { return r.outboxColl }

func (r *OutboxRepoMongoDB) Stage(ctx context.Context, events ...sharedDomain.OutboxEvent) error {
	return InsertOutbox(ctx, r.outboxColl, events...)
}

// FetchPendingOutbox obtiene los eventos no publicados en orden de inserción.
func (r *OutboxRepoMongoDB) FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "stagedAt", Value: 1}, {Key: "position", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.outboxColl.Find(ctx, bson.M{"published": false}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []sharedDomain.OutboxEvent
	for cursor.Next(ctx) {
		var mo mongoOutboxEvent
		if err := cursor.Decode(&mo); err != nil {
			return nil, err
		}
		evt, err := fromMongoOutboxEvent(mo)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	return events, cursor.Err()
}

// MarkOutboxPublished marca el lote completo con un único UpdateMany.
func (r *OutboxRepoMongoDB) MarkOutboxPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	_, err := r.outboxColl.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": strIDs}},
		bson.M{"$set": bson.M{"published": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark outbox batch as published: %w", err)
	}
	return nil
}

func fromMongoOutboxEvent(mo mongoOutboxEvent) (sharedDomain.OutboxEvent, error) {
	id, err := uuid.Parse(mo.ID)
	if err != nil {
		return sharedDomain.OutboxEvent{}, fmt.Errorf("invalid UUID in outbox document: %w", err)
	}
	return sharedDomain.OutboxEvent{
		ID:            id,
		AggregateType: mo.AggregateType,
		AggregateID:   mo.AggregateID,
		EventType:     mo.EventType,
		Payload:       json.RawMessage(mo.Payload),
		CreatedAt:     mo.CreatedAt,
		Published:     mo.Published,
	}, nil
}

// Verificación en tiempo de compilación.
var _ sharedDomain.OutboxRepository = (*OutboxRepoMongoDB)(nil)
