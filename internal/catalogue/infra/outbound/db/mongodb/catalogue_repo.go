package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/davicafu/lendinglab/internal/catalogue/domain"
	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	sharedMongo "github.com/davicafu/lendinglab/internal/shared/infra/platform/db/mongodb"
)

type mongoBook struct {
	ISBN   string `bson:"_id"`
	Title  string `bson:"title"`
	Author string `bson:"author"`
}

type mongoBookInstance struct {
	BookID   string `bson:"_id"`
	ISBN     string `bson:"isbn"`
	BookType string `bson:"bookType"`
	Position int64  `bson:"position"`
}

// CatalogueRepoMongoDB implementa domain.CatalogueRepository para MongoDB.
type CatalogueRepoMongoDB struct {
	client        *mongo.Client
	booksColl     *mongo.Collection
	instancesColl *mongo.Collection
	outboxColl    *mongo.Collection
}

func NewCatalogueRepoMongoDB(client *mongo.Client, dbName string) *CatalogueRepoMongoDB {
	db := client.Database(dbName)
	return &CatalogueRepoMongoDB{
		client:        client,
		booksColl:     db.Collection("catalogue_books"),
		instancesColl: db.Collection("catalogue_book_instances"),
		outboxColl:    db.Collection("outbox"),
	}
}

func (r *CatalogueRepoMongoDB) AddBook(ctx context.Context, book domain.Book) error {
	_, err := r.booksColl.InsertOne(ctx, mongoBook{ISBN: book.ISBN.String(), Title: book.Title, Author: book.Author})
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrBookAlreadyExists
	}
	return err
}

func (r *CatalogueRepoMongoDB) FindBook(ctx context.Context, isbn domain.ISBN) (domain.Book, error) {
	var mb mongoBook
	err := r.booksColl.FindOne(ctx, bson.M{"_id": isbn.String()}).Decode(&mb)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Book{}, domain.ErrBookNotFound
	}
	if err != nil {
		return domain.Book{}, err
	}
	return domain.Book{ISBN: domain.ISBN(mb.ISBN), Title: mb.Title, Author: mb.Author}, nil
}

// AddInstance inserta ejemplar y outbox en la misma transacción de sesión.
func (r *CatalogueRepoMongoDB) AddInstance(ctx context.Context, instance domain.BookInstance, events ...sharedDomain.OutboxEvent) error {
	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		position, err := r.instancesColl.CountDocuments(sessCtx, bson.M{"isbn": instance.ISBN.String()})
		if err != nil {
			return nil, err
		}
		if _, err := r.instancesColl.InsertOne(sessCtx, mongoBookInstance{
			BookID:   instance.BookID.String(),
			ISBN:     instance.ISBN.String(),
			BookType: string(instance.BookType),
			Position: position,
		}); err != nil {
			return nil, fmt.Errorf("insert book instance: %w", err)
		}
		return nil, sharedMongo.InsertOutbox(sessCtx, r.outboxColl, events...)
	})
	return err
}

func (r *CatalogueRepoMongoDB) Instances(ctx context.Context, isbn domain.ISBN) ([]domain.BookInstance, error) {
	cursor, err := r.instancesColl.Find(ctx,
		bson.M{"isbn": isbn.String()},
		options.Find().SetSort(bson.D{{Key: "position", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var instances []domain.BookInstance
	for cursor.Next(ctx) {
		var mi mongoBookInstance
		if err := cursor.Decode(&mi); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(mi.BookID)
		if err != nil {
			return nil, fmt.Errorf("invalid UUID in document: %w", err)
		}
		instances = append(instances, domain.BookInstance{ISBN: domain.ISBN(mi.ISBN), BookID: id, BookType: domain.BookType(mi.BookType)})
	}
	return instances, cursor.Err()
}

var _ domain.CatalogueRepository = (*CatalogueRepoMongoDB)(nil)
