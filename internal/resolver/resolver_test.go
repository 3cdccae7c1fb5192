package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"foodieqa/internal/extract"
	"foodieqa/internal/knowledge"
	"foodieqa/internal/model"
	"foodieqa/internal/prompt"
	"foodieqa/internal/repository"
)

type fakeStore struct {
	hits    map[string][]knowledge.SearchResult
	err     error
	queries []string
}

func (s *fakeStore) Add(context.Context, string, map[string]string) (string, error) {
	return "", nil
}

func (s *fakeStore) Search(_ context.Context, query string, _ int) ([]knowledge.SearchResult, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.hits[query], nil
}

type failingDishes struct{}

func (failingDishes) Get(context.Context, string) (*model.DishRecord, error) {
	return nil, errors.New("connection refused")
}

func question(dish string) *model.Question {
	return &model.Question{ID: "q1", DishName: dish}
}

func TestResolve_NoneIgnoresStores(t *testing.T) {
	store := &fakeStore{}
	r := New(zap.NewNop(), WithKnowledgeStore(store))
	got := r.Resolve(context.Background(), question("麻婆豆腐"), model.AugmentNone, model.LanguageZH)
	assert.Equal(t, model.NoContext{}, got)
	assert.Empty(t, store.queries)

	got = r.Resolve(context.Background(), question("麻婆豆腐"), "", model.LanguageZH)
	assert.Equal(t, model.NoContext{}, got)
}

func TestResolve_Snippet(t *testing.T) {
	store := &fakeStore{hits: map[string][]knowledge.SearchResult{
		"麻婆豆腐": {{Text: "first"}, {Text: "second"}},
	}}
	r := New(nil, WithKnowledgeStore(store))

	got := r.Resolve(context.Background(), question("麻婆豆腐"), model.AugmentSnippet, model.LanguageZH)
	assert.Equal(t, model.SnippetContext{Text: "first"}, got)

	got = r.Resolve(context.Background(), question("红烧肉"), model.AugmentSnippet, model.LanguageZH)
	assert.Equal(t, model.SnippetContext{Text: ""}, got)
}

func TestResolve_SnippetErrorDegrades(t *testing.T) {
	r := New(zap.NewNop(), WithKnowledgeStore(&fakeStore{err: errors.New("db locked")}))
	got := r.Resolve(context.Background(), question("麻婆豆腐"), model.AugmentSnippet, model.LanguageZH)
	assert.Equal(t, model.SnippetContext{}, got)
}

func TestResolve_Structured(t *testing.T) {
	dishes := repository.NewMapDishStore(map[string]model.DishRecord{
		"麻婆豆腐": {DishName: "麻婆豆腐", CuisineType: "川菜", Ingredients: []string{"豆腐", "牛肉末"}},
	})
	r := New(zap.NewNop(), WithDishStore(dishes))

	got := r.Resolve(context.Background(), question("麻婆豆腐"), model.AugmentStructured, model.LanguageZH)
	sc, ok := got.(model.StructuredContext)
	require.True(t, ok)
	assert.True(t, sc.Found)
	assert.Contains(t, sc.Render(model.LanguageZH), "配料: 豆腐, 牛肉末")

	got = r.Resolve(context.Background(), question("不存在的菜"), model.AugmentStructured, model.LanguageZH)
	sc = got.(model.StructuredContext)
	assert.False(t, sc.Found)
	assert.Equal(t, model.NotFoundPlaceholder(model.LanguageZH), sc.Render(model.LanguageZH))
	assert.Equal(t, model.NotFoundPlaceholder(model.LanguageEN), sc.Render(model.LanguageEN))
}

func TestResolve_StructuredErrorDegrades(t *testing.T) {
	r := New(zap.NewNop(), WithDishStore(failingDishes{}))
	got := r.Resolve(context.Background(), question("麻婆豆腐"), model.AugmentStructured, model.LanguageZH)
	assert.False(t, got.(model.StructuredContext).Found)
}

func TestResolve_PredictedDish(t *testing.T) {
	store := &fakeStore{hits: map[string][]knowledge.SearchResult{
		"宫保鸡丁": {{Text: "宫保鸡丁 wiki"}},
	}}
	dishes := repository.NewMapDishStore(map[string]model.DishRecord{
		"麻婆豆腐": {DishName: "麻婆豆腐", CuisineType: "川菜"},
	})
	r := New(zap.NewNop(),
		WithKnowledgeStore(store),
		WithDishStore(dishes),
		WithPredictions([]model.DishPrediction{{
			QuestionID:      "q1",
			PredictedDishes: []string{"麻婆豆腐", " ", "宫保鸡丁", "回锅肉", "第四个"},
			FullResponse:    "Looks spicy.",
		}}),
	)

	got := r.Resolve(context.Background(), question("麻婆豆腐"), model.AugmentPredictedDish, model.LanguageZH)
	pc, ok := got.(model.PredictedDishContext)
	require.True(t, ok)
	assert.Equal(t, []string{"麻婆豆腐", "宫保鸡丁", "回锅肉"}, pc.PredictedNames)
	assert.Equal(t, []string{"麻婆豆腐", "宫保鸡丁", "回锅肉"}, store.queries)

	text := pc.Render(model.LanguageZH)
	assert.True(t, strings.HasPrefix(text, "Looks spicy."))
	assert.Contains(t, text, "菜系: 川菜")
	assert.Contains(t, text, "宫保鸡丁 wiki")
	assert.Equal(t, 2, strings.Count(text, model.NotFoundPlaceholder(model.LanguageZH)))
	assert.Less(t, strings.Index(text, "菜系: 川菜"), strings.Index(text, "宫保鸡丁 wiki"))
}

func TestResolve_PredictedDishSkipsFallbackMarkers(t *testing.T) {
	store := &fakeStore{hits: map[string][]knowledge.SearchResult{}}
	dishes := repository.NewMapDishStore(map[string]model.DishRecord{})
	r := New(zap.NewNop(),
		WithKnowledgeStore(store),
		WithDishStore(dishes),
		WithPredictions([]model.DishPrediction{
			{QuestionID: "q1", PredictedDishes: []string{extract.UnidentifiedDish, extract.UnidentifiedDish, extract.UnidentifiedDish}},
			{QuestionID: "q2", PredictedDishes: []string{extract.ErrorDish, extract.ErrorDish, extract.ErrorDish}},
		}),
	)

	for _, id := range []string{"q1", "q2"} {
		q := question("麻婆豆腐")
		q.ID = id
		got := r.Resolve(context.Background(), q, model.AugmentPredictedDish, model.LanguageZH)
		pc, ok := got.(model.PredictedDishContext)
		require.True(t, ok, id)
		assert.Empty(t, pc.PredictedNames, id)
		assert.Empty(t, pc.Retrieved, id)
		assert.NotContains(t, pc.Render(model.LanguageZH), model.NotFoundPlaceholder(model.LanguageZH), id)
	}
	assert.Empty(t, store.queries)
}

func TestResolve_PredictedDishMissing(t *testing.T) {
	r := New(zap.NewNop())
	got := r.Resolve(context.Background(), question("麻婆豆腐"), model.AugmentPredictedDish, model.LanguageZH)
	assert.Equal(t, "", got.Render(model.LanguageZH))
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	tests := map[model.Category]prompt.Variant{
		model.CategoryCuisineType:    prompt.VariantDishIdentification,
		model.CategoryCookingSkills:  prompt.VariantDishIdentification,
		model.CategoryRegion:         prompt.VariantDishIdentification,
		model.CategoryFlavor:         prompt.VariantVisualCoT,
		model.CategoryMainIngredient: prompt.VariantVisualCoT,
		model.CategoryPresent:        prompt.VariantVisualCoT,
		"":                           prompt.VariantVisualCoT,
	}
	for cat, want := range tests {
		assert.Equal(t, want, p.Variant(cat), string(cat))
	}

	custom := NewPolicy(map[model.Category]prompt.Variant{model.CategoryFlavor: prompt.VariantChefCoT}, prompt.VariantPlain)
	assert.Equal(t, prompt.VariantChefCoT, custom.Variant(model.CategoryFlavor))
	assert.Equal(t, prompt.VariantPlain, custom.Variant(model.CategoryRegion))
}
