package ai

import (
	"context"

	"github.com/spigell/resume-chat/internal/conversation"
)

// Request is a single role-tagged exchange sent to a chat model.
type Request struct {
	System      string
	Messages    []conversation.Message
	Temperature *float32
}

// Reply is the text answer of a chat model with optional token counters.
type Reply struct {
	Text  string
	Usage *conversation.Usage
}

type ChatModel interface {
	Send(ctx context.Context, req Request) (*Reply, error)
}

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Temperature is a helper for filling Request.Temperature.
func Temperature(v float32) *float32 {
	return &v
}
