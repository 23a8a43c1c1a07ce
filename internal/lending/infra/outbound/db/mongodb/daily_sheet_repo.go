package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/davicafu/lendinglab/internal/lending/domain"
)

// mongoSheetEntry es una fila de la hoja diaria; _id es "lector:libro".
type mongoSheetEntry struct {
	ID       string    `bson:"_id"`
	PatronID string    `bson:"patronId"`
	BookID   string    `bson:"bookId"`
	BranchID string    `bson:"branchId"`
	Till     time.Time `bson:"till"`
}

// DailySheetRepoMongoDB guarda la hoja diaria en sheet_holds y sheet_checkouts.
type DailySheetRepoMongoDB struct {
	holds     *mongo.Collection
	checkouts *mongo.Collection
}

var _ domain.DailySheetRepository = (*DailySheetRepoMongoDB)(nil)

func NewDailySheetRepoMongoDB(client *mongo.Client, dbName string) *DailySheetRepoMongoDB {
	db := client.Database(dbName)
	return &DailySheetRepoMongoDB{
		holds:     db.Collection("sheet_holds"),
		checkouts: db.Collection("sheet_checkouts"),
	}
}

// EnsureIndexes crea el índice por plazo que sirve las consultas diarias.
func (r *DailySheetRepoMongoDB) EnsureIndexes(ctx context.Context) error {
	for _, coll := range []*mongo.Collection{r.holds, r.checkouts} {
		if _, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "till", Value: 1}}}); err != nil {
			return err
		}
	}
	return nil
}

func sheetEntryID(patronID domain.PatronID, bookID domain.BookID) string {
	return patronID.String() + ":" + bookID.String()
}

func upsertEntry(ctx context.Context, coll *mongo.Collection, entry mongoSheetEntry) error {
	_, err := coll.ReplaceOne(ctx, bson.M{"_id": entry.ID}, entry, options.Replace().SetUpsert(true))
	return err
}

func (r *DailySheetRepoMongoDB) UpsertHold(ctx context.Context, hold domain.ExpiredHold) error {
	return upsertEntry(ctx, r.holds, mongoSheetEntry{
		ID:       sheetEntryID(hold.PatronID, hold.BookID),
		PatronID: hold.PatronID.String(),
		BookID:   hold.BookID.String(),
		BranchID: hold.LibraryBranchID.String(),
		Till:     hold.HoldTill.UTC(),
	})
}

func (r *DailySheetRepoMongoDB) RemoveHold(ctx context.Context, patronID domain.PatronID, bookID domain.BookID) error {
	_, err := r.holds.DeleteOne(ctx, bson.M{"_id": sheetEntryID(patronID, bookID)})
	return err
}

func (r *DailySheetRepoMongoDB) UpsertCheckout(ctx context.Context, checkout domain.OverdueCheckout) error {
	return upsertEntry(ctx, r.checkouts, mongoSheetEntry{
		ID:       sheetEntryID(checkout.PatronID, checkout.BookID),
		PatronID: checkout.PatronID.String(),
		BookID:   checkout.BookID.String(),
		BranchID: checkout.LibraryBranchID.String(),
		Till:     checkout.Till.UTC(),
	})
}

func (r *DailySheetRepoMongoDB) RemoveCheckout(ctx context.Context, patronID domain.PatronID, bookID domain.BookID) error {
	_, err := r.checkouts.DeleteOne(ctx, bson.M{"_id": sheetEntryID(patronID, bookID)})
	return err
}

func (r *DailySheetRepoMongoDB) HoldsToExpire(ctx context.Context, now time.Time) ([]domain.ExpiredHold, error) {
	entries, err := findBefore(ctx, r.holds, now)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ExpiredHold, 0, len(entries))
	for _, e := range entries {
		patronID, bookID, branchID, err := e.ids()
		if err != nil {
			return nil, err
		}
		out = append(out, domain.ExpiredHold{PatronID: patronID, BookID: bookID, LibraryBranchID: branchID, HoldTill: e.Till.UTC()})
	}
	return out, nil
}

func (r *DailySheetRepoMongoDB) CheckoutsToOverdue(ctx context.Context, now time.Time) ([]domain.OverdueCheckout, error) {
	entries, err := findBefore(ctx, r.checkouts, now)
	if err != nil {
		return nil, err
	}
	out := make([]domain.OverdueCheckout, 0, len(entries))
	for _, e := range entries {
		patronID, bookID, branchID, err := e.ids()
		if err != nil {
			return nil, err
		}
		out = append(out, domain.OverdueCheckout{PatronID: patronID, BookID: bookID, LibraryBranchID: branchID, Till: e.Till.UTC()})
	}
	return out, nil
}

func findBefore(ctx context.Context, coll *mongo.Collection, now time.Time) ([]mongoSheetEntry, error) {
	cursor, err := coll.Find(ctx,
		bson.M{"till": bson.M{"$lt": now.UTC()}},
		options.Find().SetSort(bson.D{{Key: "till", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	defer cursor.Close(ctx)

	var entries []mongoSheetEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (e mongoSheetEntry) ids() (domain.PatronID, domain.BookID, domain.LibraryBranchID, error) {
	patronID, err := domain.ParsePatronID(e.PatronID)
	if err != nil {
		return domain.PatronID{}, domain.BookID{}, domain.LibraryBranchID{}, fmt.Errorf("invalid patronId in %s: %w", e.ID, err)
	}
	bookID, err := domain.ParseBookID(e.BookID)
	if err != nil {
		return domain.PatronID{}, domain.BookID{}, domain.LibraryBranchID{}, fmt.Errorf("invalid bookId in %s: %w", e.ID, err)
	}
	branchID, err := domain.ParseLibraryBranchID(e.BranchID)
	if err != nil {
		return domain.PatronID{}, domain.BookID{}, domain.LibraryBranchID{}, fmt.Errorf("invalid branchId in %s: %w", e.ID, err)
	}
	return patronID, bookID, branchID, nil
}
