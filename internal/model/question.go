package model

import (
	"errors"
	"fmt"
	"strings"
)

// Language selects which side of the bilingual dataset is used
type Language string

const (
	LanguageZH Language = "zh"
	LanguageEN Language = "en"
)

// Valid reports whether the language is supported
func (l Language) Valid() bool {
	return l == LanguageZH || l == LanguageEN
}

// Category is the question type tag from the dataset
type Category string

const (
	CategoryCookingSkills  Category = "cooking-skills"  // Cooking method
	CategoryCuisineType    Category = "cuisine_type"    // Cuisine origin
	CategoryFlavor         Category = "flavor"          // Flavor profile
	CategoryMainIngredient Category = "main-ingredient" // Main ingredient
	CategoryPresent        Category = "present"         // Presentation
	CategoryRegion         Category = "region-2"        // Region
)

// Categories lists every known category in report order
var Categories = []Category{
	CategoryCookingSkills,
	CategoryCuisineType,
	CategoryFlavor,
	CategoryMainIngredient,
	CategoryPresent,
	CategoryRegion,
}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ChoiceCount is the fixed number of options per question
const ChoiceCount = 4

// ErrMalformedQuestion is returned by Validate for records that cannot be evaluated
var ErrMalformedQuestion = errors.New("malformed question")

// ImageRef points at the question image inside the data directory
type ImageRef struct {
	File    string `json:"foodFile"`
	WebFile string `json:"webFile,omitempty"`
}

// Question is one multiple-choice item. Immutable once loaded.
type Question struct {
	ID          string   `json:"questionId"`
	Text        string   `json:"question"`
	TextEN      string   `json:"questionEn,omitempty"`
	Choices     []string `json:"choices"`
	ChoicesEN   []string `json:"choicesEn,omitempty"`
	AnswerIndex int      `json:"answerIndex"`
	Category    Category `json:"category,omitempty"`
	DishName    string   `json:"dishName"`
	Image       ImageRef `json:"image"`

	// LoadError is set by the loader when the raw record could not be decoded
	LoadError string `json:"-"`
}

// TextFor returns the question text in the given language
func (q *Question) TextFor(lang Language) string {
	if lang == LanguageEN {
		return strings.TrimSpace(q.TextEN)
	}
	return strings.TrimSpace(q.Text)
}

// ChoicesFor returns the answer options in the given language
func (q *Question) ChoicesFor(lang Language) []string {
	if lang == LanguageEN {
		return q.ChoicesEN
	}
	return q.Choices
}

// AnswerLetter maps the positional answer index to its letter
func (q *Question) AnswerLetter() Letter {
	return LetterFromIndex(q.AnswerIndex)
}

// Validate checks that the question carries every field needed for lang
func (q *Question) Validate(lang Language) error {
	if q.LoadError != "" {
		return fmt.Errorf("%w: %s", ErrMalformedQuestion, q.LoadError)
	}
	if q.ID == "" {
		return fmt.Errorf("%w: missing question id", ErrMalformedQuestion)
	}
	if q.TextFor(lang) == "" {
		return fmt.Errorf("%w: %s has no %s text", ErrMalformedQuestion, q.ID, lang)
	}
	if n := len(q.ChoicesFor(lang)); n != ChoiceCount {
		return fmt.Errorf("%w: %s has %d %s choices", ErrMalformedQuestion, q.ID, n, lang)
	}
	if q.AnswerIndex < 0 || q.AnswerIndex >= ChoiceCount {
		return fmt.Errorf("%w: %s answer index %d out of range", ErrMalformedQuestion, q.ID, q.AnswerIndex)
	}
	return nil
}
