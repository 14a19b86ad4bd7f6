package classify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mkoessler/eldersift/internal/llm"
)

// mockClient implements ChatClient for testing.
type mockClient struct {
	response   string
	err        error
	calls      int
	lastPrompt string
}

func (m *mockClient) ChatJSON(_ context.Context, messages []llm.Message) (string, error) {
	m.calls++
	if len(messages) > 0 {
		m.lastPrompt = messages[len(messages)-1].Content
	}
	return m.response, m.err
}

func jsonReply(t *testing.T, m map[string]any) string {
	t.Helper()
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshaling reply: %v", err)
	}
	return string(data)
}

func TestClassifyParsesVerdict(t *testing.T) {
	mock := &mockClient{response: jsonReply(t, map[string]any{
		"label":      "elderly",
		"confidence": 0.92,
		"reason":     "self-disclosed age 82 and caregiving context",
	})}

	result, err := New(mock).Classify(context.Background(), "My grandmother, 82...")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Label != LabelElderly {
		t.Errorf("expected elderly, got %q", result.Label)
	}
	if result.Confidence != 0.92 {
		t.Errorf("expected 0.92, got %v", result.Confidence)
	}
	if result.Reason == "" {
		t.Error("expected non-empty reason")
	}
}

func TestClassifyDefaultsMissingFields(t *testing.T) {
	mock := &mockClient{response: jsonReply(t, map[string]any{"label": "not_elderly"})}

	result, err := New(mock).Classify(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Confidence != 0 {
		t.Errorf("expected default confidence 0, got %v", result.Confidence)
	}
	if result.Reason != "" {
		t.Errorf("expected default empty reason, got %q", result.Reason)
	}
}

func TestClassifyCoercesUnknownLabel(t *testing.T) {
	mock := &mockClient{response: jsonReply(t, map[string]any{
		"label":      "senior_citizen",
		"confidence": 0.8,
	})}

	result, err := New(mock).Classify(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Label != LabelUncertain {
		t.Errorf("expected unknown label coerced to uncertain, got %q", result.Label)
	}
}

func TestClassifyClampsConfidence(t *testing.T) {
	mock := &mockClient{response: jsonReply(t, map[string]any{
		"label":      "elderly",
		"confidence": 1.7,
	})}
	result, err := New(mock).Classify(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Confidence != 1 {
		t.Errorf("expected confidence clamped to 1, got %v", result.Confidence)
	}
}

func TestClassifyUnparseableReplyIsError(t *testing.T) {
	mock := &mockClient{response: "I think this is about an elderly person."}
	if _, err := New(mock).Classify(context.Background(), "text"); err == nil {
		t.Fatal("expected error for non-JSON reply")
	}
}

func TestClassifyPropagatesClientError(t *testing.T) {
	wantErr := errors.New("connection refused")
	mock := &mockClient{err: wantErr}
	_, err := New(mock).Classify(context.Background(), "text")
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected client error propagated, got %v", err)
	}
}

func TestClassifyTruncatesLongInput(t *testing.T) {
	mock := &mockClient{response: jsonReply(t, map[string]any{"label": "uncertain"})}
	long := strings.Repeat("a", 10000)

	if _, err := New(mock).Classify(context.Background(), long); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(mock.lastPrompt, strings.Repeat("a", 4000)) {
		t.Error("expected truncated text in prompt")
	}
	if strings.Contains(mock.lastPrompt, strings.Repeat("a", 4001)) {
		t.Error("expected input truncated to 4000 chars")
	}
}

func TestClassifyTruncationKeepsRuneBoundary(t *testing.T) {
	mock := &mockClient{response: jsonReply(t, map[string]any{"label": "uncertain"})}
	// Three bytes per rune, so the 4000-byte limit lands mid-rune.
	long := strings.Repeat("寿", 2000)

	if _, err := New(mock).Classify(context.Background(), long); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !utf8.ValidString(mock.lastPrompt) {
		t.Error("expected truncated prompt to remain valid UTF-8")
	}
	if strings.ContainsRune(mock.lastPrompt, utf8.RuneError) {
		t.Error("expected no replacement character in truncated prompt")
	}
}

func TestClassifyNormalizesLabelCase(t *testing.T) {
	mock := &mockClient{response: jsonReply(t, map[string]any{"label": "Elderly", "confidence": 0.7})}
	result, err := New(mock).Classify(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Label != LabelElderly {
		t.Errorf("expected lowercased label, got %q", result.Label)
	}
}
