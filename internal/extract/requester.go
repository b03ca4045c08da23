// Package extract builds the extraction chat request and hands the model's
// answer back unmodified apart from stripping markdown fences.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/pricingextractor/internal/apperr"
	"github.com/Lllllllleong/pricingextractor/internal/models"
	"github.com/Lllllllleong/pricingextractor/internal/publish"
	"github.com/Lllllllleong/pricingextractor/internal/retry"
)

// ErrTransient marks upstream failures worth another attempt. ChatModel
// implementations wrap rate limits and unavailability with it.
var ErrTransient = errors.New("transient upstream error")

// Result is the model's answer. Raw is what the HTTP layer returns.
type Result struct {
	Raw         string
	Extraction  *models.Extraction
	SchemaValid bool
	SchemaError string
	Model       string
}

type Requester struct {
	model  ChatModel
	policy retry.Policy
}

func NewRequester(model ChatModel, maxAttempts int) *Requester {
	policy := retry.DefaultPolicy
	policy.MaxAttempts = max(maxAttempts, 1)
	return &Requester{model: model, policy: policy}
}

// WithRetryPolicy replaces the backoff policy, keeping the attempt cap when
// p leaves it unset.
func (r *Requester) WithRetryPolicy(p retry.Policy) *Requester {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = r.policy.MaxAttempts
	}
	r.policy = p
	return r
}

// BuildRequest assembles one system message and one user message. The user
// message labels every image with its page number before the image itself.
func BuildRequest(refs []publish.Reference) *ChatRequest {
	user := Message{Role: RoleUser, Parts: make([]Part, 0, 1+2*len(refs))}
	user.Parts = append(user.Parts, Part{Text: UserPrompt})
	for i := range refs {
		ref := refs[i]
		user.Parts = append(user.Parts,
			Part{Text: fmt.Sprintf("Page %d of %d:", ref.PageIndex+1, len(refs))},
			Part{Image: &ref},
		)
	}

	return &ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Parts: []Part{{Text: SystemPrompt}}},
			user,
		},
		Temperature: 0,
		JSONOutput:  true,
	}
}

// Extract sends exactly one logical request (retried only on transient
// errors) and returns the answer.
func (r *Requester) Extract(ctx context.Context, refs []publish.Reference) (*Result, error) {
	if len(refs) == 0 {
		return nil, apperr.Decode("extract", errors.New("document has no pages to extract from"))
	}
	req := BuildRequest(refs)
	logCtx := slog.With("model", r.model.Name(), "imageCount", len(refs))
	logCtx.Info("Requesting extraction.")

	var text string
	err := retry.Do(ctx, r.policy, "chat "+r.model.Name(), func(err error) bool {
		return errors.Is(err, ErrTransient)
	}, func(ctx context.Context) error {
		var err error
		text, err = r.model.Generate(ctx, req)
		return err
	})
	if err != nil {
		logCtx.Error("Call to chat model failed", "error", err)
		return nil, apperr.LLM("extract", err)
	}

	raw := StripFences(text)
	if raw == "" {
		return nil, apperr.LLM("extract", errors.New("model returned an empty response"))
	}

	res := &Result{Raw: raw, Model: r.model.Name()}
	ext, err := ParseExtraction(raw)
	if err != nil {
		logCtx.Warn("Model output does not match the extraction schema.", "error", err)
		res.SchemaError = err.Error()
	} else {
		res.Extraction = ext
		res.SchemaValid = true
	}
	logCtx.Info("Extraction complete.", "schemaValid", res.SchemaValid)
	return res, nil
}

// StripFences removes a surrounding ```json ... ``` block, if any.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
