package model

import "strings"

// ContextKind tags the variants of ContextRecord
type ContextKind string

const (
	ContextNone          ContextKind = "none"
	ContextSnippet       ContextKind = "snippet"
	ContextStructured    ContextKind = "structured"
	ContextPredictedDish ContextKind = "predicted-dish"
)

// ContextRecord is the auxiliary text spliced into one prompt.
// Produced per question, consumed once, never persisted.
type ContextRecord interface {
	Kind() ContextKind
	// Render formats the record as a single context string
	Render(lang Language) string
	isContext()
}

// NoContext means the prompt carries no augmentation
type NoContext struct{}

func (NoContext) Kind() ContextKind      { return ContextNone }
func (NoContext) Render(Language) string { return "" }
func (NoContext) isContext()             {}

// SnippetContext is the top knowledge-store hit, verbatim
type SnippetContext struct {
	Text string
}

func (SnippetContext) Kind() ContextKind        { return ContextSnippet }
func (c SnippetContext) Render(Language) string { return c.Text }
func (SnippetContext) isContext()               {}

// StructuredContext is a dish record looked up by name
type StructuredContext struct {
	DishName    string
	CuisineType string
	Description string
	Ingredients []string
	Steps       []string
	URL         string
	Found       bool
}

// NewStructuredContext wraps a record; a nil record yields the not-found form
func NewStructuredContext(name string, rec *DishRecord) StructuredContext {
	if rec == nil {
		return StructuredContext{DishName: name}
	}
	c := StructuredContext{
		DishName:    rec.DishName,
		CuisineType: rec.CuisineType,
		Description: rec.Description,
		Ingredients: rec.Ingredients,
		Steps:       rec.Steps,
		URL:         rec.URL,
		Found:       true,
	}
	if c.DishName == "" {
		c.DishName = name
	}
	return c
}

func (StructuredContext) Kind() ContextKind { return ContextStructured }
func (StructuredContext) isContext()        {}

type structuredLabels struct {
	notFound, dish, cuisine, unknownCuisine, description, noDescription string
	ingredients, noIngredients, steps, noSteps, url, noURL              string
}

var labelsByLanguage = map[Language]structuredLabels{
	LanguageZH: {
		notFound:       "未找到与该食品名称相关的内容。",
		dish:           "菜名",
		cuisine:        "菜系",
		unknownCuisine: "未知菜系",
		description:    "描述",
		noDescription:  "暂无描述。",
		ingredients:    "配料",
		noIngredients:  "暂无配料",
		steps:          "步骤",
		noSteps:        "暂无步骤",
		url:            "参考链接",
		noURL:          "无可用链接。",
	},
	LanguageEN: {
		notFound:       "No content was found for this dish name.",
		dish:           "Dish",
		cuisine:        "Cuisine",
		unknownCuisine: "Unknown cuisine",
		description:    "Description",
		noDescription:  "No description.",
		ingredients:    "Ingredients",
		noIngredients:  "No ingredients",
		steps:          "Steps",
		noSteps:        "No steps",
		url:            "Reference",
		noURL:          "No link available.",
	},
}

// NotFoundPlaceholder is the fixed text used when a dish record is absent
func NotFoundPlaceholder(lang Language) string {
	return labels(lang).notFound
}

func labels(lang Language) structuredLabels {
	if l, ok := labelsByLanguage[lang]; ok {
		return l
	}
	return labelsByLanguage[LanguageZH]
}

func (c StructuredContext) Render(lang Language) string {
	l := labels(lang)
	if !c.Found {
		return l.notFound
	}

	cuisine := orDefault(c.CuisineType, l.unknownCuisine)
	description := orDefault(c.Description, l.noDescription)
	ingredients := l.noIngredients
	if len(c.Ingredients) > 0 {
		ingredients = strings.Join(c.Ingredients, ", ")
	}
	steps := l.noSteps
	if len(c.Steps) > 0 {
		steps = strings.Join(c.Steps, "\n")
	}

	return strings.Join([]string{
		l.dish + ": " + c.DishName,
		l.cuisine + ": " + cuisine,
		l.description + ": " + description,
		l.ingredients + ": " + ingredients,
		l.steps + ":",
		steps,
		l.url + ": " + orDefault(c.URL, l.noURL),
	}, "\n")
}

// PredictedDishContext carries the upstream dish guesses and everything
// retrieved for them
type PredictedDishContext struct {
	PredictedNames []string
	Rationale      string
	Retrieved      []string
}

func (PredictedDishContext) Kind() ContextKind { return ContextPredictedDish }
func (PredictedDishContext) isContext()        {}

func (c PredictedDishContext) Render(Language) string {
	parts := make([]string, 0, len(c.Retrieved)+1)
	if r := strings.TrimSpace(c.Rationale); r != "" {
		parts = append(parts, r)
	}
	for _, text := range c.Retrieved {
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// AugmentationMode selects which external source the resolver consults
type AugmentationMode string

const (
	AugmentNone          AugmentationMode = "none"
	AugmentSnippet       AugmentationMode = "snippet"
	AugmentStructured    AugmentationMode = "structured"
	AugmentPredictedDish AugmentationMode = "predicted-dish"
)

// Valid reports whether m is a known mode
func (m AugmentationMode) Valid() bool {
	switch m {
	case AugmentNone, AugmentSnippet, AugmentStructured, AugmentPredictedDish:
		return true
	}
	return false
}
