package model

// Letter is an extracted choice label
type Letter string

const (
	LetterA    Letter = "A"
	LetterB    Letter = "B"
	LetterC    Letter = "C"
	LetterD    Letter = "D"
	LetterNone Letter = "X" // Extraction failure, never correct
)

// LetterFromIndex converts a 0-based choice index to its label.
// Out-of-range indexes map to LetterNone.
func LetterFromIndex(i int) Letter {
	if i < 0 || i >= ChoiceCount {
		return LetterNone
	}
	return Letter(rune('A' + i))
}

// Valid reports whether l is one of A, B, C, D or X
func (l Letter) Valid() bool {
	switch l {
	case LetterA, LetterB, LetterC, LetterD, LetterNone:
		return true
	}
	return false
}

// ModelAnswer is one line of the result log
type ModelAnswer struct {
	QuestionID      string `json:"question_id" bson:"questionId"`
	Variant         int    `json:"template" bson:"template"`
	RawResponse     string `json:"full_response" bson:"fullResponse"`
	ExtractedLetter Letter `json:"response" bson:"response"`
	GroundTruth     Letter `json:"ground_truth" bson:"groundTruth"`
	IsCorrect       bool   `json:"correct" bson:"correct"`
	Error           string `json:"error,omitempty" bson:"error,omitempty"`     // Service or input failure
	Skipped         bool   `json:"skipped,omitempty" bson:"skipped,omitempty"` // Malformed input, not scored
	RunID           string `json:"run_id,omitempty" bson:"runId,omitempty"`
}

// FailureAnswer builds the sentinel answer recorded when a question cannot be answered
func FailureAnswer(q *Question, variant int, err error) ModelAnswer {
	a := ModelAnswer{
		QuestionID:      q.ID,
		Variant:         variant,
		ExtractedLetter: LetterNone,
		GroundTruth:     q.AnswerLetter(),
	}
	if err != nil {
		a.Error = err.Error()
	}
	return a
}
