package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/resume-chat/internal/ai"
	"github.com/spigell/resume-chat/internal/conversation"
)

// ChatHandler answers general questions without touching the resume index.
type ChatHandler struct {
	model  ai.ChatModel
	window int
	logger *zap.Logger
}

func NewChatHandler(model ai.ChatModel, window int, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{model: model, window: window, logger: logger}
}

func (h *ChatHandler) Handle(ctx context.Context, s conversation.State) (conversation.State, error) {
	reply, err := h.model.Send(ctx, ai.Request{
		System:      chatPrompt,
		Messages:    s.Window(h.window),
		Temperature: ai.Temperature(0.7),
	})
	if err != nil {
		return s, fmt.Errorf("generate chat answer: %w", err)
	}
	if err := checkReply(reply); err != nil {
		return s, fmt.Errorf("generate chat answer: %w", err)
	}

	h.logger.Debug("chat answer generated")

	return s.
		WithMessage(conversation.AssistantMessage(reply.Text, reply.Usage)).
		WithUsage(reply.Usage), nil
}
