package extract

import (
	"context"

	"github.com/Lllllllleong/pricingextractor/internal/publish"
)

type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Part is one element of a message: text, or an image reference.
type Part struct {
	Text  string
	Image *publish.Reference
}

type Message struct {
	Role  Role
	Parts []Part
}

// ChatRequest is a provider-neutral chat completion request.
type ChatRequest struct {
	Messages    []Message
	Temperature float32
	// JSONOutput asks the provider for a JSON response where it supports it.
	JSONOutput bool
}

// System returns the concatenated text of the system message.
func (r *ChatRequest) System() string {
	for _, m := range r.Messages {
		if m.Role == RoleSystem {
			var s string
			for _, p := range m.Parts {
				s += p.Text
			}
			return s
		}
	}
	return ""
}

// ChatModel sends one chat request and returns the completion text.
type ChatModel interface {
	Generate(ctx context.Context, req *ChatRequest) (string, error)
	Name() string
}
