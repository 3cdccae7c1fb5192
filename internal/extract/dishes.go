package extract

import (
	"regexp"
	"strings"
)

// UnidentifiedDish is recorded for each slot when no dish list can be parsed
const UnidentifiedDish = "无法识别"

// ErrorDish is recorded for each slot when the identification call failed
const ErrorDish = "错误"

// IsPlaceholderDish reports whether name is one of the fallback markers
// rather than a real dish name
func IsPlaceholderDish(name string) bool {
	return name == UnidentifiedDish || name == ErrorDish
}

// PredictedDishCount is the number of candidates the identification prompt asks for
const PredictedDishCount = 3

// Tried in order; the first one yielding exactly three names wins.
var dishListPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)most likely dishes are:\s*\[(.*?)\]`),
	regexp.MustCompile(`(?im)most likely dishes are:\s*(.*?)(?:\n|$)`),
	regexp.MustCompile(`(?im)Selected dishes:\s*(.*?)(?:\n|$)`),
	regexp.MustCompile(`(?im)Top 3 dishes:\s*(.*?)(?:\n|$)`),
}

var dishSeparator = regexp.MustCompile(`[,、，]`)

// Dishes parses a dish-identification response into exactly three names.
// Unparseable responses yield three UnidentifiedDish entries.
func Dishes(response string) []string {
	for _, p := range dishListPatterns {
		m := p.FindStringSubmatch(response)
		if m == nil {
			continue
		}
		var dishes []string
		for _, raw := range dishSeparator.Split(m[1], -1) {
			d := strings.Trim(raw, "[] \"',")
			if d != "" {
				dishes = append(dishes, d)
			}
			if len(dishes) == PredictedDishCount {
				break
			}
		}
		if len(dishes) == PredictedDishCount {
			return dishes
		}
	}
	return unidentified()
}

func unidentified() []string {
	out := make([]string, PredictedDishCount)
	for i := range out {
		out[i] = UnidentifiedDish
	}
	return out
}
