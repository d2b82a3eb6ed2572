package repository

import (
	"context"
	"errors"
	"time"

	"github.com/docsync/docsync/internal/document"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo stores records in a collection keyed by the external
// "documentId" field. Mongo's own _id is left to the driver.
type MongoRepo struct {
	col *mongo.Collection
	now func() time.Time
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	return &MongoRepo{col: col, now: time.Now}
}

// EnsureIndexes creates the unique index on documentId that Insert relies on
// to reject a second creation of the same id.
func (m *MongoRepo) EnsureIndexes(ctx context.Context) error {
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "documentId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("documentId_unique"),
	}
	if _, err := m.col.Indexes().CreateOne(ctx, idx); err != nil {
		return err
	}
	listIdx := mongo.IndexModel{Keys: bson.D{{Key: "updatedAt", Value: -1}}}
	_, err := m.col.Indexes().CreateOne(ctx, listIdx)
	return err
}

func (m *MongoRepo) Insert(ctx context.Context, doc *document.Document) error {
	if _, err := m.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (m *MongoRepo) Get(ctx context.Context, id string) (*document.Document, error) {
	var d document.Document
	err := m.col.FindOne(ctx, bson.M{"documentId": id}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (m *MongoRepo) List(ctx context.Context) ([]*document.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}, {Key: "documentId", Value: 1}})
	cur, err := m.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*document.Document{}
	for cur.Next(ctx) {
		var d document.Document
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, cur.Err()
}

func (m *MongoRepo) Upsert(ctx context.Context, id, content, title string) error {
	now := m.now()
	update := bson.M{
		"$set":         bson.M{"content": content, "title": title, "updatedAt": now},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.Update().SetUpsert(true)
	_, err := m.col.UpdateOne(ctx, bson.M{"documentId": id}, update, opts)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		// two upserts raced to insert; the loser retries as a plain update
		_, err = m.col.UpdateOne(ctx, bson.M{"documentId": id}, update, opts)
	}
	return err
}

func (m *MongoRepo) Delete(ctx context.Context, id string) error {
	res, err := m.col.DeleteOne(ctx, bson.M{"documentId": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
