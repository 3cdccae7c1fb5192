package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"foodieqa/internal/cache"
	"foodieqa/internal/dataset"
	"foodieqa/internal/model"
	"foodieqa/internal/prompt"
	"foodieqa/internal/repository"
	"foodieqa/internal/resolver"
	"foodieqa/internal/resultlog"
)

type fakeImages struct {
	missing map[string]bool
}

func (f fakeImages) Load(q *model.Question, _ bool) (*dataset.Image, error) {
	if f.missing[q.ID] {
		return nil, errors.New("no such file")
	}
	return &dataset.Image{Path: q.Image.File, MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8}}, nil
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	types  []string
	closed []string
}

func (b *fakeBroadcaster) BroadcastToRun(_ string, msgType string, _ interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.types = append(b.types, msgType)
}

func (b *fakeBroadcaster) CloseRun(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = append(b.closed, runID)
}

type fakeProgress struct {
	mu      sync.Mutex
	records map[string]int
}

func (p *fakeProgress) Record(_ context.Context, runID string, cat model.Category, _ model.ModelAnswer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.records == nil {
		p.records = make(map[string]int)
	}
	p.records[runID+"/"+string(cat)]++
	return nil
}

func (p *fakeProgress) Progress(context.Context, string) (*cache.Progress, error) { return nil, nil }
func (p *fakeProgress) Clear(context.Context, string) error                       { return nil }

func testQuestion(id string, cat model.Category, answer int) model.Question {
	return model.Question{
		ID:          id,
		Text:        "问题-" + id + " 图片中的食物是什么？",
		Choices:     []string{"甲", "乙", "丙", "丁"},
		AnswerIndex: answer,
		Category:    cat,
		DishName:    "麻婆豆腐",
		Image:       model.ImageRef{File: id + ".jpg"},
	}
}

// scripted answers by question id; a missing id is a model failure
func byQuestion(letters map[string]string) Responder {
	return func(p prompt.Prompt) (string, error) {
		for id, l := range letters {
			if strings.Contains(p.User, "问题-"+id+" ") {
				return l, nil
			}
		}
		return "", errors.New("quota exceeded")
	}
}

func newEvaluator(m ModelService, images ImageSource, opts ...EvaluatorOption) *EvaluatorService {
	return NewEvaluatorService(m, prompt.Default(), resolver.New(zap.NewNop()), images, zap.NewNop(), opts...)
}

func TestRun_ScoresPerCategory(t *testing.T) {
	questions := []model.Question{
		testQuestion("q1", model.CategoryFlavor, 0),
		testQuestion("q2", model.CategoryFlavor, 1),
		testQuestion("q3", model.CategoryPresent, 2),
	}
	m := NewScriptedService(byQuestion(map[string]string{"q1": "A", "q2": "C", "q3": "C"}))
	e := newEvaluator(m, fakeImages{})

	summary, answers, err := e.Run(context.Background(), questions, RunOptions{RunID: "run-1"})
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusFinished, summary.Status)
	assert.Equal(t, "plain", summary.VariantName)
	assert.Equal(t, "none", summary.AugmentationMode)
	assert.Equal(t, 3, summary.TotalQuestions)
	assert.Equal(t, 2, summary.TotalCorrect)
	assert.Equal(t, 66.67, summary.Accuracy)
	assert.Equal(t, model.CategoryStats{Correct: 1, Total: 2, Accuracy: 50}, summary.Report["flavor"])
	assert.Equal(t, model.CategoryStats{Correct: 1, Total: 1, Accuracy: 100}, summary.Report["present"])
	assert.NotNil(t, summary.FinishedAt)

	require.Len(t, answers, 3)
	for i, a := range answers {
		assert.Equal(t, questions[i].ID, a.QuestionID)
		assert.Equal(t, "run-1", a.RunID)
	}
	assert.Equal(t, model.LetterC, answers[1].ExtractedLetter)
	assert.Equal(t, model.LetterB, answers[1].GroundTruth)
	assert.False(t, answers[1].IsCorrect)
}

func TestRun_PerQuestionFailures(t *testing.T) {
	malformed := testQuestion("q3", model.CategoryPresent, 0)
	malformed.Choices = malformed.Choices[:3]
	questions := []model.Question{
		testQuestion("q1", model.CategoryFlavor, 0),
		testQuestion("q2", model.CategoryFlavor, 1),
		malformed,
		testQuestion("q4", model.CategoryPresent, 2),
	}
	m := NewScriptedService(byQuestion(map[string]string{"q1": "A", "q2": "B"}))
	e := newEvaluator(m, fakeImages{missing: map[string]bool{"q2": true}})

	logPath := filepath.Join(t.TempDir(), resultlog.LogName(0, false))
	w, err := resultlog.Create(logPath)
	require.NoError(t, err)

	summary, answers, err := e.Run(context.Background(), questions, RunOptions{Log: w})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.Len(t, answers, 4)
	assert.Equal(t, model.LetterNone, answers[1].ExtractedLetter)
	assert.Contains(t, answers[1].Error, "no such file")
	assert.True(t, answers[2].Skipped)
	assert.Contains(t, answers[3].Error, "quota exceeded")
	assert.Equal(t, model.LetterNone, answers[3].ExtractedLetter)

	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, model.CategoryStats{Correct: 1, Total: 2, Accuracy: 50}, summary.Report["flavor"])
	assert.Equal(t, model.CategoryStats{Correct: 0, Total: 1, Accuracy: 0}, summary.Report["present"])
	assert.Equal(t, model.CategoryStats{Correct: 1, Total: 3, Accuracy: 33.33}, summary.Report.Overall())

	logged, err := resultlog.ReadAll(logPath)
	require.NoError(t, err)
	if diff := cmp.Diff(answers, logged); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_ParallelMatchesSequential(t *testing.T) {
	var questions []model.Question
	for i := 0; i < 24; i++ {
		cat := model.Categories[i%len(model.Categories)]
		questions = append(questions, testQuestion("p"+string(rune('a'+i)), cat, i%4))
	}
	e := newEvaluator(NewMockService(), fakeImages{})

	seqSummary, seq, err := e.Run(context.Background(), questions, RunOptions{RunID: "r", Variant: prompt.VariantChefCoT})
	require.NoError(t, err)

	logPath := filepath.Join(t.TempDir(), "parallel.jsonl")
	w, err := resultlog.Create(logPath)
	require.NoError(t, err)
	parSummary, par, err := e.Run(context.Background(), questions, RunOptions{RunID: "r", Variant: prompt.VariantChefCoT, Workers: 6, Log: w})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	if diff := cmp.Diff(seq, par); diff != "" {
		t.Errorf("answers differ (-seq +par):\n%s", diff)
	}
	assert.Equal(t, seqSummary.Report, parSummary.Report)

	logged, err := resultlog.ReadAll(logPath)
	require.NoError(t, err)
	require.Len(t, logged, len(questions))
	for i := range questions {
		assert.Equal(t, questions[i].ID, logged[i].QuestionID)
	}
}

func TestRun_AdaptiveRoutesByCategory(t *testing.T) {
	questions := []model.Question{
		testQuestion("a1", model.CategoryCuisineType, 0),
		testQuestion("a2", model.CategoryFlavor, 1),
	}
	e := newEvaluator(NewMockService(), fakeImages{})

	summary, answers, err := e.Run(context.Background(), questions, RunOptions{Adaptive: true})
	require.NoError(t, err)
	assert.Equal(t, "adaptive", summary.VariantName)
	assert.Equal(t, int(prompt.VariantDishIdentification), answers[0].Variant)
	assert.Equal(t, int(prompt.VariantVisualCoT), answers[1].Variant)
	for _, a := range answers {
		assert.NotEqual(t, model.LetterNone, a.ExtractedLetter, a.RawResponse)
	}
}

func TestRun_AugmentationOverride(t *testing.T) {
	var mu sync.Mutex
	var seen []prompt.Prompt
	m := NewScriptedService(func(p prompt.Prompt) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, p)
		return "B", nil
	})
	dishes := repository.NewMapDishStore(map[string]model.DishRecord{
		"麻婆豆腐": {CuisineType: "川菜"},
	})
	res := resolver.New(zap.NewNop(), resolver.WithDishStore(dishes))
	e := NewEvaluatorService(m, prompt.Default(), res, fakeImages{}, zap.NewNop())

	summary, _, err := e.Run(context.Background(), []model.Question{testQuestion("s1", model.CategoryFlavor, 1)},
		RunOptions{AugmentationMode: model.AugmentStructured})
	require.NoError(t, err)
	assert.Equal(t, "structured", summary.AugmentationMode)
	require.Len(t, seen, 1)
	assert.True(t, strings.HasPrefix(seen[0].User, "根据以下内容：\n"), seen[0].User)
	assert.Contains(t, seen[0].User, "菜系: 川菜")
}

func TestRun_Sinks(t *testing.T) {
	questions := []model.Question{
		testQuestion("k1", model.CategoryFlavor, 0),
		testQuestion("k2", "", 0),
	}
	runs := repository.NewMemoryRunRepo()
	progress := &fakeProgress{}
	bc := &fakeBroadcaster{}
	e := newEvaluator(NewScriptedService(byQuestion(map[string]string{"k1": "A", "k2": "A"})), fakeImages{},
		WithRunRepo(runs), WithProgressCache(progress), WithBroadcaster(bc))

	summary, _, err := e.Run(context.Background(), questions, RunOptions{RunID: "sink"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Unmapped)
	assert.Equal(t, 1, summary.Report.Overall().Total)

	stored, err := runs.GetSummary(context.Background(), "sink")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, model.RunStatusFinished, stored.Status)

	storedAnswers, err := runs.GetAnswers(context.Background(), "sink")
	require.NoError(t, err)
	assert.Len(t, storedAnswers, 2)

	assert.Equal(t, map[string]int{"sink/flavor": 1, "sink/": 1}, progress.records)
	assert.Equal(t, []string{MsgAnswerRecorded, MsgAnswerRecorded, MsgRunFinished}, bc.types)
	assert.Equal(t, []string{"sink"}, bc.closed)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runs := repository.NewMemoryRunRepo()
	e := newEvaluator(NewMockService(), fakeImages{}, WithRunRepo(runs))

	summary, answers, err := e.Run(ctx, []model.Question{testQuestion("c1", model.CategoryFlavor, 0)}, RunOptions{RunID: "cancelled"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.RunStatusFailed, summary.Status)
	assert.Empty(t, answers)

	stored, err := runs.GetSummary(context.Background(), "cancelled")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, stored.Status)
}

func TestRun_InvalidOptions(t *testing.T) {
	e := newEvaluator(NewMockService(), fakeImages{})
	_, _, err := e.Run(context.Background(), nil, RunOptions{Variant: 99})
	assert.ErrorIs(t, err, prompt.ErrUnknownVariant)

	_, _, err = e.Run(context.Background(), nil, RunOptions{Language: "fr"})
	assert.Error(t, err)

	_, _, err = e.Run(context.Background(), nil, RunOptions{AugmentationMode: "web"})
	assert.Error(t, err)
}
