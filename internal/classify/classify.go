// Package classify asks the LLM whether a record describes an elderly
// self-disclosure or care scenario.
package classify

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mkoessler/eldersift/internal/llm"
)

// The three labels a record can receive.
const (
	LabelElderly    = "elderly"
	LabelNotElderly = "not_elderly"
	LabelUncertain  = "uncertain"
)

// maxInputChars bounds request size and cost; longer texts are truncated
// silently.
const maxInputChars = 4000

const systemPrompt = "You are a precise classifier. Determine if a text is about " +
	"*elderly self-disclosure or elderly-related scenarios*. " +
	"Return only JSON with: label, confidence (0-1), reason (<=30 words)."

const userInstructions = `Classify TEXT into one of three labels:
- "elderly": elderly self-disclosure (age >=60) OR elderly-care scenario (e.g., nursing home, dementia).
- "not_elderly": unrelated to elderly.
- "uncertain": insufficient info.

TEXT:
%s`

// Result is a classification fragment; the orchestrator attaches row
// identity before committing it.
type Result struct {
	Label      string
	Confidence float64
	Reason     string
}

// ChatClient is the slice of the LLM client the classifier needs.
type ChatClient interface {
	ChatJSON(ctx context.Context, messages []llm.Message) (string, error)
}

// Classifier classifies record text via a chat-completion endpoint.
type Classifier struct {
	client ChatClient
}

// New creates a classifier on top of the given client.
func New(client ChatClient) *Classifier {
	return &Classifier{client: client}
}

// Classify sends the text to the LLM and parses the strict-JSON verdict.
// Errors (network, non-2xx, unparseable reply) are transient from the
// caller's perspective and eligible for retry.
func (c *Classifier) Classify(ctx context.Context, text string) (*Result, error) {
	if len(text) > maxInputChars {
		cut := maxInputChars
		// Back up to a rune boundary so the cut never splits a character.
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf(userInstructions, text)},
	}

	content, err := c.client.ChatJSON(ctx, messages)
	if err != nil {
		return nil, err
	}

	parsed := llm.ParseJSONResponse(content)
	if parsed == nil {
		return nil, fmt.Errorf("classifier reply is not valid JSON: %q", truncateForError(content))
	}

	label := strings.ToLower(getString(parsed, "label", LabelUncertain))
	// Labels outside the enum are coerced rather than passed through.
	if label != LabelElderly && label != LabelNotElderly && label != LabelUncertain {
		label = LabelUncertain
	}

	confidence := getFloat(parsed, "confidence", 0)
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	return &Result{
		Label:      label,
		Confidence: confidence,
		Reason:     getString(parsed, "reason", ""),
	}, nil
}

func truncateForError(s string) string {
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}

func getString(m map[string]any, key, fallback string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

func getFloat(m map[string]any, key string, fallback float64) float64 {
	if v, ok := m[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return fallback
}
