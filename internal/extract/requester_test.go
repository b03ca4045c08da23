package extract_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Lllllllleong/pricingextractor/internal/apperr"
	"github.com/Lllllllleong/pricingextractor/internal/extract"
	"github.com/Lllllllleong/pricingextractor/internal/extract/extracttest"
	"github.com/Lllllllleong/pricingextractor/internal/publish"
	"github.com/Lllllllleong/pricingextractor/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validAnswer = `{
  "basis": {"author": "Acme GmbH", "date": "2024-03-01", "number": "Q-17", "type": "quote", "delivery_condition": "DAP"},
  "currency": "EUR",
  "total_including_tax": 119.0,
  "items": [
    {"description": "Bolt M8", "extra_info": "zinc", "quantity": "100", "unit": "pcs", "unit_price": 1.0, "discount": 0, "discounted_price": 1.0}
  ]
}`

func refs(n int) []publish.Reference {
	out := make([]publish.Reference, n)
	for i := range out {
		out[i] = publish.Reference{PageIndex: i, MIMEType: publish.PNGMIMEType, URI: fmt.Sprintf("https://blob/page_%d.png", i)}
	}
	return out
}

func TestBuildRequestShape(t *testing.T) {
	req := extract.BuildRequest(refs(3))

	require.Len(t, req.Messages, 2)
	var system, user int
	for _, m := range req.Messages {
		switch m.Role {
		case extract.RoleSystem:
			system++
		case extract.RoleUser:
			user++
		}
	}
	assert.Equal(t, 1, system)
	assert.Equal(t, 1, user)
	assert.Equal(t, extract.SystemPrompt, req.System())
	assert.Equal(t, float32(0), req.Temperature)
	assert.True(t, req.JSONOutput)

	userMsg := req.Messages[1]
	assert.Equal(t, extract.UserPrompt, userMsg.Parts[0].Text)

	var images []*publish.Reference
	for i, p := range userMsg.Parts {
		if p.Image != nil {
			images = append(images, p.Image)
			assert.Equal(t, fmt.Sprintf("Page %d of 3:", len(images)), userMsg.Parts[i-1].Text, "each image is preceded by its label")
		}
	}
	require.Len(t, images, 3)
	for i, img := range images {
		assert.Equal(t, i, img.PageIndex)
	}
}

func TestExtractReturnsRawTextAndParse(t *testing.T) {
	chat := &extracttest.Chat{Responses: []string{"```json\n" + validAnswer + "\n```"}}

	res, err := extract.NewRequester(chat, 1).Extract(context.Background(), refs(2))
	require.NoError(t, err)

	assert.Equal(t, validAnswer, res.Raw)
	assert.True(t, res.SchemaValid)
	require.NotNil(t, res.Extraction)
	assert.Equal(t, "EUR", res.Extraction.Currency)
	assert.Equal(t, 100.0, float64(*res.Extraction.Items[0].Quantity))
	assert.Equal(t, 1, chat.Calls())
	assert.Equal(t, float32(0), chat.Requests()[0].Temperature)
}

func TestExtractPassesThroughUnexpectedShapes(t *testing.T) {
	chat := &extracttest.Chat{Responses: []string{`{"total": "lots"}`}}

	res, err := extract.NewRequester(chat, 1).Extract(context.Background(), refs(1))
	require.NoError(t, err)

	assert.Equal(t, `{"total": "lots"}`, res.Raw)
	assert.False(t, res.SchemaValid)
	assert.NotEmpty(t, res.SchemaError)
	assert.Nil(t, res.Extraction)
}

func TestExtractEmptyAnswerIsAnLLMError(t *testing.T) {
	chat := &extracttest.Chat{Responses: []string{"  "}}

	_, err := extract.NewRequester(chat, 1).Extract(context.Background(), refs(1))
	assert.Equal(t, apperr.KindLLM, apperr.KindOf(err))
}

func TestExtractRetriesTransientErrorsOnly(t *testing.T) {
	transient := &extracttest.Chat{
		Errs:      []error{fmt.Errorf("429: %w", extract.ErrTransient), nil},
		Responses: []string{"", validAnswer},
	}
	fast := retry.Policy{InitialBackoff: time.Millisecond}
	res, err := extract.NewRequester(transient, 2).WithRetryPolicy(fast).Extract(context.Background(), refs(1))
	require.NoError(t, err)
	assert.True(t, res.SchemaValid)
	assert.Equal(t, 2, transient.Calls())

	permanent := &extracttest.Chat{Errs: []error{errors.New("401 unauthorized")}}
	_, err = extract.NewRequester(permanent, 3).WithRetryPolicy(fast).Extract(context.Background(), refs(1))
	require.Error(t, err)
	assert.Equal(t, apperr.KindLLM, apperr.KindOf(err))
	assert.Equal(t, http.StatusBadGateway, apperr.StatusOf(err))
	assert.Equal(t, 1, permanent.Calls())
}

func TestExtractTimeoutMapsToGatewayTimeout(t *testing.T) {
	chat := &extracttest.Chat{Block: true}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := extract.NewRequester(chat, 1).Extract(ctx, refs(1))
	require.Error(t, err)
	assert.Equal(t, apperr.KindLLM, apperr.KindOf(err))
	assert.Equal(t, http.StatusGatewayTimeout, apperr.StatusOf(err))
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extract.StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, extract.StripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, extract.StripFences("  {\"a\":1}  "))
}
