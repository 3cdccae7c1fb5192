package prompt

import (
	"fmt"
	"strings"

	"foodieqa/internal/model"
)

// Prompt is the rendered input for one model call
type Prompt struct {
	System string `json:"system"`
	User   string `json:"user"`
}

// Options are the per-run rendering switches
type Options struct {
	Language     model.Language
	ShowDishName bool
}

// Picture reference phrases replaced by the dish name when ShowDishName is set
const (
	pictureRefZH = "图片中的食物"
	pictureRefEN = "The food in the picture"
)

// Compose renders q for variant v. It is deterministic and has no side
// effects. A nil ctx is treated as NoContext.
func (r *Registry) Compose(q *model.Question, ctx model.ContextRecord, v Variant, opts Options) (Prompt, error) {
	e, ok := r.entries[v]
	if !ok {
		return Prompt{}, fmt.Errorf("%w: %d", ErrUnknownVariant, v)
	}
	lang := opts.Language
	if lang == "" {
		lang = model.LanguageZH
	}
	cp, ok := e.pairs[lang]
	if !ok {
		return Prompt{}, fmt.Errorf("unsupported language %q", lang)
	}

	var contextText string
	if ctx != nil {
		contextText = ctx.Render(lang)
	}

	data := templateData{
		Question: QuestionText(q, lang, opts.ShowDishName),
		Choices:  FormatChoices(q.ChoicesFor(lang), lang),
		Context:  contextText,
		Format:   formatInstructions[e.spec.Extraction][lang],
	}
	sys, user, err := cp.render(data)
	if err != nil {
		return Prompt{}, fmt.Errorf("render %s: %w", e.spec.Name, err)
	}
	if !cp.hasContext && strings.TrimSpace(contextText) != "" {
		user = contextPreamble(lang) + contextText + "\n\n" + user
	}
	return Prompt{System: sys, User: user}, nil
}

// QuestionText returns the question in lang, with the picture reference
// replaced by the dish name when showDishName is set
func QuestionText(q *model.Question, lang model.Language, showDishName bool) string {
	text := q.TextFor(lang)
	if !showDishName || q.DishName == "" {
		return text
	}
	if lang == model.LanguageEN {
		return strings.ReplaceAll(text, pictureRefEN, q.DishName)
	}
	return strings.ReplaceAll(text, pictureRefZH, q.DishName)
}

// FormatChoices renders options one per line with their letter, in order
func FormatChoices(choices []string, lang model.Language) string {
	open := "（"
	if lang == model.LanguageEN {
		open = "("
	}
	var b strings.Builder
	for i, c := range choices {
		b.WriteString(open)
		b.WriteString(string(model.LetterFromIndex(i)))
		b.WriteString(") ")
		b.WriteString(strings.TrimSpace(c))
		b.WriteString("\n")
	}
	return b.String()
}

func contextPreamble(lang model.Language) string {
	if lang == model.LanguageEN {
		return contextPreambleEN
	}
	return contextPreambleZH
}
