// Package prompt renders benchmark questions into model prompts through a
// fixed catalog of template variants.
package prompt

import (
	"foodieqa/internal/extract"
	"foodieqa/internal/model"
)

// Variant identifies a prompt template. Ids match the historical template
// numbers so result files stay comparable across runs.
type Variant int

const (
	VariantPlain              Variant = 0
	VariantInstructive        Variant = 1
	VariantDialogue           Variant = 3
	VariantRAGSnippet         Variant = 5
	VariantRAGStructured      Variant = 6
	VariantVisualCoT          Variant = 11
	VariantChefCoT            Variant = 14
	VariantDishIdentification Variant = 100
)

// Kind groups variants by prompting style
type Kind string

const (
	KindPlain              Kind = "plain"
	KindInstructive        Kind = "instructive"
	KindContextAugmented   Kind = "context-augmented"
	KindChainOfThought     Kind = "chain-of-thought"
	KindDishIdentification Kind = "dish-identification"
)

// Pair holds the two halves of a prompt as text/template sources.
// Both are executed with templateData.
type Pair struct {
	System string
	User   string
}

// Spec describes one catalog entry
type Spec struct {
	Variant      Variant
	Name         string
	Kind         Kind
	Augmentation model.AugmentationMode
	Extraction   extract.Strategy
	Templates    map[model.Language]Pair
}

// templateData is what every template sees
type templateData struct {
	Question string
	Choices  string
	Context  string
	Format   string
}

// formatInstructions is the output-format line substituted for {{.Format}}
var formatInstructions = map[extract.Strategy]map[model.Language]string{
	extract.StrictLetter: {
		model.LanguageZH: "请只提供字母选项作为答案。",
		model.LanguageEN: "Please answer with a single letter (A, B, C, or D) only.",
	},
	extract.Sentinel: {
		model.LanguageZH: "请在回答的最后以 'Final Answer: [X]' 的格式给出答案，其中 X 是你选择的选项（A、B、C 或 D）。",
		model.LanguageEN: "End your response with 'Final Answer: [X]' where X is your chosen option (A, B, C, or D).",
	},
}

const (
	contextPreambleZH = "根据以下内容：\n"
	contextPreambleEN = "Based on the following content:\n"
)

const (
	systemStrictZH = "你是一个回答食物图片相关问题的智能助手。"
	systemStrictEN = "You are a helpful assistant that answers questions about food images."

	systemCoT = `You are a helpful assistant that answers questions about food images.
When answering, please:
1. Describe what you see in the image
2. Analyze the possible options
3. Explain your reasoning
4. {{.Format}}`
)

const visualAnalysisUser = `You are an AI assistant examining this dish visually. Question: {{.Question}}
Options: {{.Choices}}
Let me examine the image carefully for visual clues:

1. Surface & Texture:
- What's the outer appearance? (shiny/dry/crispy/soft)
- Can I see any distinct textures? (rough/smooth/flaky)
- Are there any visible layers or cross-sections?

2. Colors & Ingredients:
- What are the dominant colors?
- Can I spot specific ingredients? (peppers/herbs/sauces)
- Are there any characteristic garnishes?

3. Presentation & State:
- How is the dish arranged? (whole/pieces/mixed)
- What cooking effects are visible? (charring/browning/steaming)
- Are there any signature presentation elements?

Looking at these visual elements and comparing to the options...
{{.Format}}`

const chefUser = `You are a helpful chef AI assistant. Please analyze the following question about the food image:
Question: {{.Question}}
Options: {{.Choices}}
Please follow these steps:
1. List all visible ingredients and components in the dish
2. Think carefully about each option step-by-step
3. Explain your reasoning
4. {{.Format}}
Let me analyze the image and provide my answer...`

const (
	ragUserZH = "根据以下内容：\n{{.Context}}\n问题：{{.Question}}\n选项：{{.Choices}}{{.Format}}\n根据上下文和图片，我选择（"
	ragUserEN = "Based on the following content:\n{{.Context}}\nQuestion: {{.Question}}\nOptions: {{.Choices}}{{.Format}}\nBased on the context and the image, I select ("
)

// Catalog returns the built-in variants
func Catalog() []Spec {
	return []Spec{
		{
			Variant:      VariantPlain,
			Name:         "plain",
			Kind:         KindPlain,
			Augmentation: model.AugmentNone,
			Extraction:   extract.StrictLetter,
			Templates: map[model.Language]Pair{
				model.LanguageZH: {
					System: systemStrictZH,
					User:   "{{.Question}} 选项有: {{.Choices}}{{.Format}}\n请根据上图从所提供的选项中选择一个正确答案，为（",
				},
				model.LanguageEN: {
					System: systemStrictEN,
					User:   "{{.Question}} Here are the options: {{.Choices}}{{.Format}}\nIf had to select one of the options, my answer would be (",
				},
			},
		},
		{
			Variant:      VariantInstructive,
			Name:         "instructive",
			Kind:         KindInstructive,
			Augmentation: model.AugmentNone,
			Extraction:   extract.StrictLetter,
			Templates: map[model.Language]Pair{
				model.LanguageZH: {
					System: systemStrictZH,
					User:   "你是一个人工智能助手，请你看图 回答以下选择题：{{.Question}} 选项有: {{.Choices}}{{.Format}}\n请从中选择一个正确答案，为（",
				},
				model.LanguageEN: {
					System: systemStrictEN,
					User:   "You are an AI assistant. Please answer the following multiple choice question based on the image: {{.Question}} Here are the options: {{.Choices}}{{.Format}}\nPlease select one of the options as your answer (",
				},
			},
		},
		{
			Variant:      VariantDialogue,
			Name:         "dialogue",
			Kind:         KindPlain,
			Augmentation: model.AugmentNone,
			Extraction:   extract.StrictLetter,
			Templates: map[model.Language]Pair{
				model.LanguageZH: {
					System: systemStrictZH,
					User:   "用户：{{.Question}} 这是选项: {{.Choices}} 请根据上图从所提供的选项中选择一个正确答案。{{.Format}}\n智能助手：我选择（",
				},
				model.LanguageEN: {
					System: systemStrictEN,
					User:   "Human: {{.Question}} These are the options: {{.Choices}} Please select one of the options as your answer. {{.Format}}\nAssistant: I would select (",
				},
			},
		},
		{
			Variant:      VariantRAGSnippet,
			Name:         "rag-snippet",
			Kind:         KindContextAugmented,
			Augmentation: model.AugmentSnippet,
			Extraction:   extract.StrictLetter,
			Templates: map[model.Language]Pair{
				model.LanguageZH: {System: systemStrictZH, User: ragUserZH},
				model.LanguageEN: {System: systemStrictEN, User: ragUserEN},
			},
		},
		{
			Variant:      VariantRAGStructured,
			Name:         "rag-structured",
			Kind:         KindContextAugmented,
			Augmentation: model.AugmentStructured,
			Extraction:   extract.StrictLetter,
			Templates: map[model.Language]Pair{
				model.LanguageZH: {System: systemStrictZH, User: ragUserZH},
				model.LanguageEN: {System: systemStrictEN, User: ragUserEN},
			},
		},
		{
			Variant:      VariantVisualCoT,
			Name:         "visual-cot",
			Kind:         KindChainOfThought,
			Augmentation: model.AugmentNone,
			Extraction:   extract.Sentinel,
			Templates: map[model.Language]Pair{
				model.LanguageZH: {System: systemCoT, User: visualAnalysisUser},
				model.LanguageEN: {System: systemCoT, User: visualAnalysisUser},
			},
		},
		{
			Variant:      VariantChefCoT,
			Name:         "chef-cot",
			Kind:         KindChainOfThought,
			Augmentation: model.AugmentNone,
			Extraction:   extract.Sentinel,
			Templates: map[model.Language]Pair{
				model.LanguageZH: {System: systemCoT, User: chefUser},
				model.LanguageEN: {System: systemCoT, User: chefUser},
			},
		},
		{
			Variant:      VariantDishIdentification,
			Name:         "dish-identification",
			Kind:         KindDishIdentification,
			Augmentation: model.AugmentPredictedDish,
			Extraction:   extract.Sentinel,
			Templates: map[model.Language]Pair{
				model.LanguageZH: {
					System: systemCoT,
					User:   "根据以下内容：\n{{.Context}}\n问题：{{.Question}}\n选项：{{.Choices}}\n{{.Format}}",
				},
				model.LanguageEN: {
					System: systemCoT,
					User:   "Based on the following content:\n{{.Context}}\nQuestion: {{.Question}}\nOptions: {{.Choices}}\n{{.Format}}",
				},
			},
		},
	}
}
