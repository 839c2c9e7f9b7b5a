package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/resume-chat/internal/ai"
	"github.com/spigell/resume-chat/internal/conversation"
	"github.com/spigell/resume-chat/internal/retrieval"
)

type Retriever interface {
	Search(ctx context.Context, query string, topK int) (*retrieval.Result, error)
}

// ResumeHandler answers from retrieved resume chunks and keeps track of the
// resumes the user is currently talking about.
type ResumeHandler struct {
	model     ai.ChatModel
	retriever Retriever
	topK      int
	logger    *zap.Logger
}

func NewResumeHandler(model ai.ChatModel, retriever Retriever, topK int, logger *zap.Logger) *ResumeHandler {
	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}
	return &ResumeHandler{model: model, retriever: retriever, topK: topK, logger: logger}
}

func (h *ResumeHandler) Handle(ctx context.Context, s conversation.State) (conversation.State, error) {
	last, ok := s.Last()
	if !ok || !last.IsUser() {
		h.logger.Warn("resume handler invoked without a trailing user message")
		return s.WithUsage(nil), nil
	}

	question := last.Content
	query, rewritten := resolveFollowUp(question, s.FocusIDs)
	if rewritten {
		h.logger.Debug("resolved follow-up reference",
			zap.Int64s("focus_ids", s.FocusIDs),
			zap.String("query", query),
		)
	}

	result, err := h.retriever.Search(ctx, query, h.topK)
	if err != nil {
		return s, fmt.Errorf("retrieve resume context: %w", err)
	}

	resumeContext := result.Context()
	found := result.ResumeIDs()

	reply, err := h.model.Send(ctx, ai.Request{
		System: resumePrompt,
		Messages: []conversation.Message{
			conversation.UserMessage(buildResumeQuestion(question, query, resumeContext)),
		},
		Temperature: ai.Temperature(0.2),
	})
	if err != nil {
		return s, fmt.Errorf("generate resume answer: %w", err)
	}
	if err := checkReply(reply); err != nil {
		return s, fmt.Errorf("generate resume answer: %w", err)
	}

	h.logger.Info("resume answer generated",
		zap.String("mode", result.Mode.String()),
		zap.Int64s("found_ids", found),
	)

	return s.
		WithMessage(conversation.AssistantMessage(reply.Text, reply.Usage)).
		WithUsage(reply.Usage).
		WithFocus(found).
		WithRoute(conversation.RouteResume), nil
}
