package gcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/Lllllllleong/pricingextractor/internal/extract"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// VertexChat sends extraction requests to a Gemini model on Vertex AI.
type VertexChat struct {
	client    *genai.Client
	modelName string
}

// NewVertexChat creates the Vertex AI client once; models are configured per
// request because the system instruction travels with the request.
func NewVertexChat(ctx context.Context, projectID, region, modelName string) (*VertexChat, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexChat: projectID and region cannot be empty")
	}

	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &VertexChat{client: client, modelName: modelName}, nil
}

func (c *VertexChat) Name() string { return "vertex/" + c.modelName }

func (c *VertexChat) Generate(ctx context.Context, req *extract.ChatRequest) (string, error) {
	model := c.client.GenerativeModel(c.modelName)
	system, parts := vertexContent(req)
	model.SystemInstruction = system
	model.GenerationConfig = vertexGenerationConfig(req)
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", classifyVertexError(ctx, err)
	}
	return vertexText(resp)
}

func (c *VertexChat) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func vertexGenerationConfig(req *extract.ChatRequest) genai.GenerationConfig {
	cfg := genai.GenerationConfig{
		Temperature: genai.Ptr[float32](req.Temperature),
	}
	if req.JSONOutput {
		// Force JSON output.
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

// vertexContent maps the system message to a system instruction and the user
// message to content parts. Inline images become blobs, remote ones file data.
func vertexContent(req *extract.ChatRequest) (*genai.Content, []genai.Part) {
	var system *genai.Content
	var parts []genai.Part
	for _, m := range req.Messages {
		converted := make([]genai.Part, 0, len(m.Parts))
		for _, p := range m.Parts {
			switch {
			case p.Image == nil:
				converted = append(converted, genai.Text(p.Text))
			case p.Image.Inline():
				converted = append(converted, genai.Blob{MIMEType: p.Image.MIMEType, Data: p.Image.Data})
			default:
				converted = append(converted, genai.FileData{MIMEType: p.Image.MIMEType, FileURI: p.Image.URI})
			}
		}
		if m.Role == extract.RoleSystem {
			system = &genai.Content{Parts: converted}
			continue
		}
		parts = append(parts, converted...)
	}
	return system, parts
}

// vertexText concatenates the text parts of the first candidate.
func vertexText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	cand := resp.Candidates[0]
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if b.Len() == 0 && cand.FinishReason != genai.FinishReasonStop {
		return "", fmt.Errorf("gemini stopped without text (finish reason %v)", cand.FinishReason)
	}
	return b.String(), nil
}

func classifyVertexError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("vertex generate: %w: %w", ctxErr, err)
	}
	switch status.Code(err) {
	case codes.DeadlineExceeded:
		return fmt.Errorf("vertex generate: %w: %w", context.DeadlineExceeded, err)
	case codes.ResourceExhausted, codes.Unavailable, codes.Aborted:
		return fmt.Errorf("vertex generate: %w: %w", extract.ErrTransient, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("vertex generate: %w", err)
	}
	return fmt.Errorf("failed to generate content from gemini: %w", err)
}
