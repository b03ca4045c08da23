// Package extracttest provides a scripted ChatModel for tests.
package extracttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/Lllllllleong/pricingextractor/internal/extract"
)

// Chat records every request and answers from Responses/Errs in call order;
// the last entry repeats. With Block set it waits for the context instead.
type Chat struct {
	mu        sync.Mutex
	Responses []string
	Errs      []error
	Block     bool
	requests  []*extract.ChatRequest
}

func (c *Chat) Name() string { return "fake-chat" }

func (c *Chat) Generate(ctx context.Context, req *extract.ChatRequest) (string, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	n := len(c.requests)
	c.mu.Unlock()

	if c.Block {
		<-ctx.Done()
		return "", fmt.Errorf("fake chat: %w", ctx.Err())
	}
	if len(c.Errs) > 0 {
		if err := c.Errs[min(n, len(c.Errs))-1]; err != nil {
			return "", err
		}
	}
	if len(c.Responses) == 0 {
		return "", nil
	}
	return c.Responses[min(n, len(c.Responses))-1], nil
}

func (c *Chat) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *Chat) Requests() []*extract.ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*extract.ChatRequest(nil), c.requests...)
}
