// Package extract maps free-form model output to a choice letter.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"foodieqa/internal/model"
)

// Strategy selects how a response is parsed. It is fixed per prompt variant.
type Strategy string

const (
	// StrictLetter takes the first A, B, C or D anywhere in the response
	StrictLetter Strategy = "strict-letter"
	// Sentinel takes the first letter after SentinelPhrase
	Sentinel Strategy = "sentinel"
)

// SentinelPhrase is the marker chain-of-thought prompts ask the model to emit
// right before its final choice
const SentinelPhrase = "Final Answer:"

// Valid reports whether s is a known strategy
func (s Strategy) Valid() bool {
	return s == StrictLetter || s == Sentinel
}

func (s Strategy) String() string { return string(s) }

// ParseStrategy converts a name to a Strategy
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(strings.ToLower(strings.TrimSpace(name)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown extraction strategy %q", name)
	}
	return s, nil
}

// Extract applies the strategy. It never fails; unmatched input yields X.
func Extract(s Strategy, response string) model.Letter {
	switch s {
	case Sentinel:
		return SentinelLetter(response)
	case StrictLetter:
		return FirstLetter(response)
	}
	return model.LetterNone
}

// FirstLetter scans the response in order and returns the first A, B, C or D.
// First match wins: models often restate the options before answering.
func FirstLetter(response string) model.Letter {
	for _, r := range response {
		switch r {
		case 'A', 'B', 'C', 'D':
			return model.Letter(string(r))
		}
	}
	return model.LetterNone
}

var (
	sentinelPattern = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(SentinelPhrase))
	upperLetter     = regexp.MustCompile(`\b([ABCD])\b`)
	anyLetter       = regexp.MustCompile(`(?i)\b([abcd])\b`)
)

// SentinelLetter returns the standalone A-D that follows the last sentinel
// phrase carrying one. Capitals win over lowercase so an article like "a"
// does not count as a choice. Letters before the sentinel are ignored.
func SentinelLetter(response string) model.Letter {
	locs := sentinelPattern.FindAllStringIndex(response, -1)
	for i := len(locs) - 1; i >= 0; i-- {
		if l := letterAfter(response[locs[i][1]:]); l != model.LetterNone {
			return l
		}
	}
	return model.LetterNone
}

func letterAfter(tail string) model.Letter {
	m := upperLetter.FindStringSubmatch(tail)
	if m == nil {
		m = anyLetter.FindStringSubmatch(tail)
	}
	if m == nil {
		return model.LetterNone
	}
	return model.Letter(strings.ToUpper(m[1]))
}
