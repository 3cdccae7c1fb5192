package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"foodieqa/internal/model"
)

// RunRepo handles MongoDB operations for evaluation runs
type RunRepo interface {
	SaveSummary(ctx context.Context, summary *model.RunSummary) error
	GetSummary(ctx context.Context, runID string) (*model.RunSummary, error)
	ListSummaries(ctx context.Context, limit int64) ([]*model.RunSummary, error)
	SaveAnswers(ctx context.Context, runID string, answers []model.ModelAnswer) error
	GetAnswers(ctx context.Context, runID string) ([]model.ModelAnswer, error)
	EnsureIndexes(ctx context.Context) error
}

type runRepo struct {
	summaries *mongo.Collection
	answers   *mongo.Collection
}

// NewRunRepo creates a new run repository
func NewRunRepo(db *mongo.Database) RunRepo {
	return &runRepo{
		summaries: db.Collection("run_summaries"),
		answers:   db.Collection("run_answers"),
	}
}

func (r *runRepo) SaveSummary(ctx context.Context, summary *model.RunSummary) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.summaries.ReplaceOne(ctx, bson.M{"runId": summary.RunID}, summary, opts)
	return err
}

func (r *runRepo) GetSummary(ctx context.Context, runID string) (*model.RunSummary, error) {
	var summary model.RunSummary
	err := r.summaries.FindOne(ctx, bson.M{"runId": runID}).Decode(&summary)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (r *runRepo) ListSummaries(ctx context.Context, limit int64) ([]*model.RunSummary, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startedAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := r.summaries.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var summaries []*model.RunSummary
	if err = cursor.All(ctx, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

// SaveAnswers replaces every stored answer of the run
func (r *runRepo) SaveAnswers(ctx context.Context, runID string, answers []model.ModelAnswer) error {
	if _, err := r.answers.DeleteMany(ctx, bson.M{"runId": runID}); err != nil {
		return err
	}
	if len(answers) == 0 {
		return nil
	}
	docs := answerDocuments(runID, answers)
	_, err := r.answers.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	return err
}

func (r *runRepo) GetAnswers(ctx context.Context, runID string) ([]model.ModelAnswer, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cursor, err := r.answers.Find(ctx, bson.M{"runId": runID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []answerDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	answers := make([]model.ModelAnswer, len(docs))
	for i, d := range docs {
		answers[i] = d.ModelAnswer
	}
	return answers, nil
}

func (r *runRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.summaries.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "runId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "startedAt", Value: -1}}},
	})
	if err != nil {
		return err
	}
	_, err = r.answers.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "runId", Value: 1}, {Key: "seq", Value: 1}},
	})
	return err
}

// answerDocument keeps the input position so answers come back in order
type answerDocument struct {
	Seq               int `bson:"seq"`
	model.ModelAnswer `bson:",inline"`
}

func answerDocuments(runID string, answers []model.ModelAnswer) []interface{} {
	docs := make([]interface{}, len(answers))
	for i, a := range answers {
		a.RunID = runID
		docs[i] = answerDocument{Seq: i, ModelAnswer: a}
	}
	return docs
}
