package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CorpusRepo loads word and sentence banks from MongoDB so operators can
// swap the race-text material without a rebuild. Collections: "words" and
// "sentences", one {text: "..."} document per entry.
type CorpusRepo interface {
	Words(ctx context.Context) ([]string, error)
	Sentences(ctx context.Context) ([]string, error)
}

type corpusRepo struct {
	words     *mongo.Collection
	sentences *mongo.Collection
}

func NewCorpusRepo(db *mongo.Database) CorpusRepo {
	return &corpusRepo{
		words:     db.Collection("words"),
		sentences: db.Collection("sentences"),
	}
}

type corpusEntry struct {
	Text string `bson:"text"`
}

func (r *corpusRepo) Words(ctx context.Context) ([]string, error) {
	return loadAll(ctx, r.words)
}

func (r *corpusRepo) Sentences(ctx context.Context) ([]string, error) {
	return loadAll(ctx, r.sentences)
}

func loadAll(ctx context.Context, coll *mongo.Collection) ([]string, error) {
	cursor, err := coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []corpusEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Text != "" {
			out = append(out, e.Text)
		}
	}
	return out, nil
}
