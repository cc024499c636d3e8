package llm

import (
	"context"
	"strings"
	"sync"
)

// MockGenerator provides canned responses for testing. Responses are matched
// by substring against the prompt, in registration order.
type MockGenerator struct {
	mu        sync.Mutex
	rules     []mockRule
	fallback  string
	err       error
	CallCount int
	Requests  []GenerateRequest
}

type mockRule struct {
	match    string
	response string
}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{fallback: "mock response"}
}

// Respond registers a canned response for prompts containing match.
func (m *MockGenerator) Respond(match, response string) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{match: match, response: response})
	return m
}

// Fallback sets the response returned when no rule matches.
func (m *MockGenerator) Fallback(response string) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = response
	return m
}

// Fail makes every subsequent call return err.
func (m *MockGenerator) Fail(err error) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

func (m *MockGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	m.Requests = append(m.Requests, req)

	if m.err != nil {
		return "", m.err
	}
	for _, rule := range m.rules {
		if strings.Contains(req.Prompt, rule.match) {
			return rule.response, nil
		}
	}
	return m.fallback, nil
}

func (m *MockGenerator) GenerateJSON(ctx context.Context, prompt, system, schema string) (string, error) {
	return m.Generate(ctx, GenerateRequest{Prompt: prompt, System: system, Temperature: 0.3})
}
