// Package translate renders English record content into Chinese using the
// same chat client, retry policy, and resume-by-row_id strategy as the
// classification pipeline.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mkoessler/eldersift/internal/checkpoint"
	"github.com/mkoessler/eldersift/internal/dataset"
	"github.com/mkoessler/eldersift/internal/llm"
	"github.com/mkoessler/eldersift/internal/retry"
)

const translatePrompt = `Translate the following English mental-health text into Chinese. Keep it professional and accurate, add nothing, and return only the translation:

%s`

// header is the column layout of the translation output file. Like the
// classification output, the file doubles as the resumption checkpoint.
var header = []string{"row_id", "title", "content", "translated"}

// ChatClient is the slice of the LLM client the translator needs.
type ChatClient interface {
	Chat(ctx context.Context, messages []llm.Message) (string, error)
}

// Translator translates record text via a chat-completion endpoint.
type Translator struct {
	client ChatClient
	retry  retry.Config
}

// New creates a translator.
func New(client ChatClient, retryCfg retry.Config) *Translator {
	return &Translator{client: client, retry: retryCfg}
}

// Translate translates a single text. Empty input short-circuits to empty
// output without an API call.
func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	messages := []llm.Message{
		{Role: "user", Content: fmt.Sprintf(translatePrompt, text)},
	}
	reply, err := t.client.Chat(ctx, messages)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// Result holds the counters of a translation run.
type Result struct {
	Total       int
	AlreadyDone int
	Translated  int
	Failed      int
}

// TranslateFile translates the content column of a dataset CSV, appending
// one row per record. Rows already present in the output are skipped, so an
// interrupted run resumes where it stopped. A row whose retries are
// exhausted keeps its original text and is counted as failed rather than
// aborting the run.
func (t *Translator) TranslateFile(ctx context.Context, inPath, outPath string) (*Result, error) {
	records, err := dataset.Load(inPath)
	if err != nil {
		return nil, err
	}

	done, err := checkpoint.LoadDoneIDs(outPath)
	if err != nil {
		return nil, err
	}

	w, err := checkpoint.NewWriter(outPath, header)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	r := &Result{Total: len(records)}
	for _, rec := range records {
		if _, ok := done[rec.RowID]; ok {
			r.AlreadyDone++
			continue
		}

		translated, err := retry.Do(ctx, t.retry, func() (string, error) {
			return t.Translate(ctx, rec.Content)
		})
		if err != nil {
			var exhausted *retry.ExhaustedError
			if !errors.As(err, &exhausted) {
				return r, err
			}
			slog.Warn("translation retries exhausted, keeping original text",
				"row_id", rec.RowID, "error", exhausted.Err)
			translated = rec.Content
			r.Failed++
		} else {
			r.Translated++
		}

		row := []string{strconv.FormatInt(rec.RowID, 10), rec.Title, rec.Content, translated}
		if err := w.Append(row); err != nil {
			return r, fmt.Errorf("committing row %d: %w", rec.RowID, err)
		}
	}

	slog.Info("translation complete",
		"total", r.Total, "already_done", r.AlreadyDone,
		"translated", r.Translated, "failed", r.Failed)
	return r, nil
}
