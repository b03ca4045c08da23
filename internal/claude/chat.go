// Package claude sends extraction requests to Anthropic's Messages API.
package claude

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Lllllllleong/pricingextractor/internal/extract"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type Config struct {
	APIKey    string
	Model     string
	MaxTokens int64
	// BaseURL overrides the API endpoint; empty uses the SDK default.
	BaseURL string
}

type Chat struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func New(cfg Config) (*Chat, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("claude.New: API key cannot be empty")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Retries are owned by the extraction requester.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	return &Chat{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

func (c *Chat) Name() string { return "anthropic/" + c.model }

func (c *Chat) Generate(ctx context.Context, req *extract.ChatRequest) (string, error) {
	params := messageParams(c.model, c.maxTokens, req)

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", classifyError(ctx, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

func messageParams(model string, maxTokens int64, req *extract.ChatRequest) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(float64(req.Temperature)),
	}
	for _, m := range req.Messages {
		if m.Role == extract.RoleSystem {
			for _, p := range m.Parts {
				params.System = append(params.System, anthropic.TextBlockParam{Text: p.Text})
			}
			continue
		}
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Parts))
		for _, p := range m.Parts {
			switch {
			case p.Image == nil:
				blocks = append(blocks, anthropic.NewTextBlock(p.Text))
			case p.Image.Inline():
				blocks = append(blocks, anthropic.NewImageBlockBase64(p.Image.MIMEType, base64.StdEncoding.EncodeToString(p.Image.Data)))
			default:
				blocks = append(blocks, anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: p.Image.URI}))
			}
		}
		params.Messages = append(params.Messages, anthropic.NewUserMessage(blocks...))
	}
	return params
}

func classifyError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("claude messages: %w: %w", ctxErr, err)
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests, apiErr.StatusCode >= 500:
			return fmt.Errorf("claude messages: %w: %w", extract.ErrTransient, err)
		}
	}
	return fmt.Errorf("claude messages: %w", err)
}
