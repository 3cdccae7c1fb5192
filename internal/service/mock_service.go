package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"foodieqa/internal/dataset"
	"foodieqa/internal/extract"
	"foodieqa/internal/prompt"
)

// Responder produces a canned response for a prompt
type Responder func(p prompt.Prompt) (string, error)

// MockService answers without a network. The default responder picks a
// letter from a hash of the prompt, so reruns give identical logs.
type MockService struct {
	respond Responder
}

// NewMockService creates a mock with the deterministic default responder
func NewMockService() *MockService {
	return &MockService{respond: mockRespond}
}

// NewScriptedService creates a mock driven by fn
func NewScriptedService(fn Responder) *MockService {
	return &MockService{respond: fn}
}

func (m *MockService) Name() string { return "mock" }

func (m *MockService) Complete(ctx context.Context, p prompt.Prompt, _ *dataset.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ServiceError{Op: "generate", Model: "mock", Err: err}
	}
	text, err := m.respond(p)
	if err != nil {
		return "", &ServiceError{Op: "generate", Model: "mock", Err: err}
	}
	return text, nil
}

func mockRespond(p prompt.Prompt) (string, error) {
	full := p.System + "\n" + p.User
	if p.User == identifyUser {
		return "Mock identification.\n" + identifySentinel + " [" + strings.Join(mockDishes(full), ", ") + "]", nil
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(full))
	letter := string(rune('A' + h.Sum32()%4))
	if strings.Contains(strings.ToLower(full), strings.ToLower(extract.SentinelPhrase)) {
		return fmt.Sprintf("Mock analysis of the dish.\n%s %s", extract.SentinelPhrase, letter), nil
	}
	return letter, nil
}

// mockDishes returns the first three "- name" lines of a catalog prompt
func mockDishes(text string) []string {
	var names []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		names = append(names, strings.TrimSpace(strings.TrimPrefix(line, "- ")))
		if len(names) == extract.PredictedDishCount {
			return names
		}
	}
	for len(names) < extract.PredictedDishCount {
		names = append(names, extract.UnidentifiedDish)
	}
	return names
}
