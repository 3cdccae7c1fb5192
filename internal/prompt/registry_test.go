package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodieqa/internal/extract"
	"foodieqa/internal/model"
)

func sampleQuestion() *model.Question {
	return &model.Question{
		ID:          "q-1",
		Text:        "图片中的食物是哪个地区的特色菜？",
		TextEN:      "The food in the picture is a specialty of which region?",
		Choices:     []string{"四川", " 广东 ", "山东", "江苏"},
		ChoicesEN:   []string{"Sichuan", "Guangdong", "Shandong", "Jiangsu"},
		AnswerIndex: 0,
		Category:    model.CategoryRegion,
		DishName:    "麻婆豆腐",
	}
}

func TestCatalog_BuildsAndPairsStrategies(t *testing.T) {
	r, err := NewRegistry(Catalog())
	require.NoError(t, err)

	specs := r.Specs()
	require.Len(t, specs, 8)
	for i := 1; i < len(specs); i++ {
		assert.Less(t, specs[i-1].Variant, specs[i].Variant)
	}

	byKind := map[Kind]extract.Strategy{
		KindChainOfThought:     extract.Sentinel,
		KindDishIdentification: extract.Sentinel,
		KindPlain:              extract.StrictLetter,
		KindInstructive:        extract.StrictLetter,
		KindContextAugmented:   extract.StrictLetter,
	}
	for _, s := range specs {
		assert.Equal(t, byKind[s.Kind], s.Extraction, s.Name)
	}
}

func TestNewRegistry_RejectsIncompleteSpecs(t *testing.T) {
	good := Pair{System: "sys", User: "{{.Question}} {{.Format}}"}
	tests := []struct {
		name string
		spec Spec
	}{
		{"missing language", Spec{
			Variant: 1, Name: "a", Augmentation: model.AugmentNone, Extraction: extract.StrictLetter,
			Templates: map[model.Language]Pair{model.LanguageZH: good},
		}},
		{"missing strategy", Spec{
			Variant: 1, Name: "a", Augmentation: model.AugmentNone,
			Templates: map[model.Language]Pair{model.LanguageZH: good, model.LanguageEN: good},
		}},
		{"missing format", Spec{
			Variant: 1, Name: "a", Augmentation: model.AugmentNone, Extraction: extract.StrictLetter,
			Templates: map[model.Language]Pair{model.LanguageZH: good, model.LanguageEN: {User: "{{.Question}}"}},
		}},
		{"strict asks for sentinel", Spec{
			Variant: 1, Name: "a", Augmentation: model.AugmentNone, Extraction: extract.StrictLetter,
			Templates: map[model.Language]Pair{
				model.LanguageZH: good,
				model.LanguageEN: {User: "{{.Question}} {{.Format}} end with final answer: X"},
			},
		}},
		{"unknown field", Spec{
			Variant: 1, Name: "a", Augmentation: model.AugmentNone, Extraction: extract.StrictLetter,
			Templates: map[model.Language]Pair{model.LanguageZH: good, model.LanguageEN: {User: "{{.Dish}} {{.Format}}"}},
		}},
		{"bad augmentation", Spec{
			Variant: 1, Name: "a", Augmentation: "web", Extraction: extract.StrictLetter,
			Templates: map[model.Language]Pair{model.LanguageZH: good, model.LanguageEN: good},
		}},
		{"no name", Spec{
			Variant: 1, Augmentation: model.AugmentNone, Extraction: extract.StrictLetter,
			Templates: map[model.Language]Pair{model.LanguageZH: good, model.LanguageEN: good},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry([]Spec{tt.spec})
			assert.ErrorIs(t, err, ErrInvalidSpec)
		})
	}
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	specs := Catalog()
	specs = append(specs, specs[0])
	_, err := NewRegistry(specs)
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestRegistry_LookupAndParse(t *testing.T) {
	r := Default()

	s, err := r.Lookup(VariantChefCoT)
	require.NoError(t, err)
	assert.Equal(t, "chef-cot", s.Name)

	_, err = r.Lookup(Variant(42))
	assert.ErrorIs(t, err, ErrUnknownVariant)

	v, err := r.Parse("14")
	require.NoError(t, err)
	assert.Equal(t, VariantChefCoT, v)

	v, err = r.Parse("Rag-Structured")
	require.NoError(t, err)
	assert.Equal(t, VariantRAGStructured, v)

	_, err = r.Parse("7")
	assert.ErrorIs(t, err, ErrUnknownVariant)
	_, err = r.Parse("fancy")
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestCompose_Deterministic(t *testing.T) {
	r := Default()
	q := sampleQuestion()
	ctx := model.SnippetContext{Text: "麻婆豆腐是川菜。"}
	for _, s := range r.Specs() {
		for _, lang := range []model.Language{model.LanguageZH, model.LanguageEN} {
			opts := Options{Language: lang}
			a, err := r.Compose(q, ctx, s.Variant, opts)
			require.NoError(t, err)
			b, err := r.Compose(q, ctx, s.Variant, opts)
			require.NoError(t, err)
			assert.Equal(t, a, b, "%s/%s", s.Name, lang)
		}
	}
}

func TestCompose_ChoiceOrderPreserved(t *testing.T) {
	q := sampleQuestion()
	p, err := Default().Compose(q, model.NoContext{}, VariantPlain, Options{Language: model.LanguageZH})
	require.NoError(t, err)

	want := "（A) 四川\n（B) 广东\n（C) 山东\n（D) 江苏\n"
	assert.Contains(t, p.User, want)

	p, err = Default().Compose(q, nil, VariantPlain, Options{Language: model.LanguageEN})
	require.NoError(t, err)
	assert.Contains(t, p.User, "(A) Sichuan\n(B) Guangdong\n(C) Shandong\n(D) Jiangsu\n")
}

func TestCompose_FormatInstructionMatchesStrategy(t *testing.T) {
	r := Default()
	q := sampleQuestion()
	for _, s := range r.Specs() {
		p, err := r.Compose(q, model.NoContext{}, s.Variant, Options{Language: model.LanguageEN})
		require.NoError(t, err)
		full := p.System + p.User
		if s.Extraction == extract.Sentinel {
			assert.Contains(t, full, extract.SentinelPhrase, s.Name)
		} else {
			assert.Contains(t, full, "single letter", s.Name)
			assert.NotContains(t, full, extract.SentinelPhrase, s.Name)
		}
	}
}

func TestCompose_ShowDishName(t *testing.T) {
	q := sampleQuestion()
	r := Default()

	p, err := r.Compose(q, nil, VariantPlain, Options{Language: model.LanguageZH, ShowDishName: true})
	require.NoError(t, err)
	assert.Contains(t, p.User, "麻婆豆腐是哪个地区的特色菜？")
	assert.NotContains(t, p.User, "图片中的食物")

	p, err = r.Compose(q, nil, VariantPlain, Options{Language: model.LanguageEN, ShowDishName: true})
	require.NoError(t, err)
	assert.Contains(t, p.User, "麻婆豆腐 is a specialty of which region?")

	p, err = r.Compose(q, nil, VariantPlain, Options{Language: model.LanguageZH})
	require.NoError(t, err)
	assert.Contains(t, p.User, "图片中的食物")
}

func TestCompose_ContextSlotAndPreamble(t *testing.T) {
	r := Default()
	q := sampleQuestion()
	ctx := model.SnippetContext{Text: "川菜代表"}

	p, err := r.Compose(q, ctx, VariantRAGSnippet, Options{Language: model.LanguageZH})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.User, "根据以下内容：\n川菜代表\n问题："), p.User)
	assert.Equal(t, 1, strings.Count(p.User, "川菜代表"))

	p, err = r.Compose(q, ctx, VariantChefCoT, Options{Language: model.LanguageEN})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.User, "Based on the following content:\n川菜代表\n\n"), p.User)

	p, err = r.Compose(q, model.NoContext{}, VariantChefCoT, Options{Language: model.LanguageEN})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.User, "You are a helpful chef"), p.User)
}

func TestCompose_UnknownVariant(t *testing.T) {
	_, err := Default().Compose(sampleQuestion(), nil, Variant(2), Options{})
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestCompose_StructuredNotFound(t *testing.T) {
	p, err := Default().Compose(sampleQuestion(), model.NewStructuredContext("无名菜", nil), VariantRAGStructured,
		Options{Language: model.LanguageZH})
	require.NoError(t, err)
	assert.Contains(t, p.User, model.NotFoundPlaceholder(model.LanguageZH))
}
