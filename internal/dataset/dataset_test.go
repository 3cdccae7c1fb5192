package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodieqa/internal/model"
)

const sampleQuestions = `[
  {
    "question_id": "sivqa-1",
    "question": "图片中的食物是哪个菜系？",
    "question_en": "Which cuisine is the food in the picture from?",
    "choices": ["川菜", "粤菜", "鲁菜", "苏菜"],
    "choices_en": ["Sichuan", "Cantonese", "Shandong", "Jiangsu"],
    "answer": "1",
    "question_type": "cuisine_type",
    "food_name": "白切鸡",
    "food_meta": {"food_file": "images/1.jpg", "web_file": "web/1.jpg"}
  },
  {
    "question_id": "sivqa-2",
    "question": "这道菜的口味是？",
    "choices": ["甜", "酸", "辣", "咸"],
    "answer": 2,
    "question_type": "flavor",
    "food_name": "麻婆豆腐",
    "food_meta": {"food_file": "images/2.png"}
  },
  {
    "question_id": "sivqa-3",
    "question": "bad answer",
    "choices": ["a", "b", "c", "d"],
    "answer": "two",
    "food_meta": {"food_file": "images/3.jpg"}
  },
  {
    "question_id": "sivqa-4",
    "choices": "not a list",
    "answer": 0
  }
]`

func TestParseQuestions(t *testing.T) {
	qs, err := ParseQuestions([]byte(sampleQuestions))
	require.NoError(t, err)
	require.Len(t, qs, 4)

	want := model.Question{
		ID:          "sivqa-1",
		Text:        "图片中的食物是哪个菜系？",
		TextEN:      "Which cuisine is the food in the picture from?",
		Choices:     []string{"川菜", "粤菜", "鲁菜", "苏菜"},
		ChoicesEN:   []string{"Sichuan", "Cantonese", "Shandong", "Jiangsu"},
		AnswerIndex: 1,
		Category:    model.CategoryCuisineType,
		DishName:    "白切鸡",
		Image:       model.ImageRef{File: "images/1.jpg", WebFile: "web/1.jpg"},
	}
	if diff := cmp.Diff(want, qs[0]); diff != "" {
		t.Errorf("question mismatch (-want +got):\n%s", diff)
	}
	require.NoError(t, qs[0].Validate(model.LanguageEN))

	assert.Equal(t, 2, qs[1].AnswerIndex)
	assert.NoError(t, qs[1].Validate(model.LanguageZH))
	assert.ErrorIs(t, qs[1].Validate(model.LanguageEN), model.ErrMalformedQuestion)

	assert.NotEmpty(t, qs[2].LoadError)
	assert.Equal(t, "sivqa-3", qs[2].ID)
	assert.ErrorIs(t, qs[2].Validate(model.LanguageZH), model.ErrMalformedQuestion)

	assert.Equal(t, "sivqa-4", qs[3].ID)
	assert.NotEmpty(t, qs[3].LoadError)
}

func TestParseQuestions_NotAnArray(t *testing.T) {
	_, err := ParseQuestions([]byte(`{"question_id": "x"}`))
	assert.Error(t, err)
}

func TestCategoryMaps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "question_type_analysis.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"question_id_mappings": {"sivqa-1": "region-2", "sivqa-9": "present"}}`), 0o644))

	fromFile, err := LoadCategoryMap(path)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryRegion, fromFile["sivqa-1"])

	qs, err := ParseQuestions([]byte(sampleQuestions))
	require.NoError(t, err)
	derived := CategoryMapFromQuestions(qs)
	assert.Equal(t, model.CategoryCuisineType, derived["sivqa-1"])
	_, ok := derived["sivqa-3"]
	assert.False(t, ok)

	merged := MergeCategoryMaps(derived, fromFile)
	assert.Equal(t, model.CategoryRegion, merged["sivqa-1"])
	assert.Equal(t, model.CategoryFlavor, merged["sivqa-2"])
	assert.Equal(t, model.CategoryPresent, merged["sivqa-9"])
}

func TestPredictions_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "dish_identification_results.jsonl")
	preds := []model.DishPrediction{
		{QuestionID: "sivqa-1", ActualDish: "白切鸡", PredictedDishes: []string{"白切鸡", "盐焗鸡", "口水鸡"}, FullResponse: "Selected dishes: [白切鸡, 盐焗鸡, 口水鸡]"},
		{QuestionID: "sivqa-2", ActualDish: "麻婆豆腐", PredictedDishes: []string{"无法识别", "无法识别", "无法识别"}},
	}
	require.NoError(t, WritePredictions(path, preds))

	got, err := LoadPredictions(path)
	require.NoError(t, err)
	if diff := cmp.Diff(preds, got); diff != "" {
		t.Errorf("predictions mismatch (-want +got):\n%s", diff)
	}
}

func TestReadPredictions_BadLine(t *testing.T) {
	_, err := ReadPredictions(strings.NewReader("{\"question_id\": \"a\"}\n\nnot json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestLoadRecipesAndCatalog(t *testing.T) {
	dir := t.TempDir()
	recipes := filepath.Join(dir, "all_recipes.json")
	require.NoError(t, os.WriteFile(recipes, []byte(`{
		"麻婆豆腐": {"dish_name": "麻婆豆腐", "cuisine_type": "川菜", "ingredients": ["豆腐"], "steps": ["切块"]},
		"白切鸡": {"cuisine_type": "粤菜"}
	}`), 0o644))
	recs, err := LoadRecipes(recipes)
	require.NoError(t, err)
	assert.Equal(t, "白切鸡", recs["白切鸡"].DishName)
	assert.Equal(t, []string{"切块"}, recs["麻婆豆腐"].Steps)

	catalog := filepath.Join(dir, "dishes_data.json")
	require.NoError(t, os.WriteFile(catalog, []byte(`{"dishes_by_cuisine": {"川菜": ["麻婆豆腐", "回锅肉"]}}`), 0o644))
	c, err := LoadDishCatalog(catalog)
	require.NoError(t, err)
	assert.Len(t, c.DishesByCuisine["川菜"], 2)

	require.NoError(t, os.WriteFile(catalog, []byte(`{"dishes_by_cuisine": {}}`), 0o644))
	_, err = LoadDishCatalog(catalog)
	assert.Error(t, err)
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "images"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "web"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "images", "1.jpg"), []byte("local"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "web", "1.png"), []byte("web"), 0o644))

	q := &model.Question{ID: "q", Image: model.ImageRef{File: "images/1.jpg", WebFile: "web/1.png"}}

	img, err := LoadImage(dir, q, false)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MIMEType)
	assert.Equal(t, []byte("local"), img.Data)

	img, err = LoadImage(dir, q, true)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)

	_, err = LoadImage(dir, &model.Question{ID: "none"}, false)
	assert.Error(t, err)

	_, err = LoadImage(dir, &model.Question{ID: "missing", Image: model.ImageRef{File: "nope.jpg"}}, false)
	assert.Error(t, err)
}
