package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/spigell/resume-chat/internal/ai"
	"github.com/spigell/resume-chat/internal/conversation"
)

// ErrEmptyReply is returned when a model answers with no text.
var ErrEmptyReply = errors.New("model returned an empty reply")

// Handler produces the answer of a turn. It returns a new state and leaves
// the given one untouched.
type Handler interface {
	Handle(ctx context.Context, s conversation.State) (conversation.State, error)
}

func checkReply(reply *ai.Reply) error {
	if reply == nil || strings.TrimSpace(reply.Text) == "" {
		return ErrEmptyReply
	}
	return nil
}
