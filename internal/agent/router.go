package agent

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/resume-chat/internal/ai"
	"github.com/spigell/resume-chat/internal/conversation"
	"github.com/spigell/resume-chat/internal/utils"
)

const resumeMarker = "RESUME"

// Router asks a policy model which handler should answer the latest message.
type Router struct {
	model  ai.ChatModel
	window int
	logger *zap.Logger
}

func NewRouter(model ai.ChatModel, window int, logger *zap.Logger) *Router {
	return &Router{model: model, window: window, logger: logger}
}

// Decide never fails: any model error or unexpected output routes to chat.
func (r *Router) Decide(ctx context.Context, history []conversation.Message) conversation.Route {
	if r.window > 0 && len(history) > r.window {
		history = history[len(history)-r.window:]
	}

	reply, err := r.model.Send(ctx, ai.Request{
		System:      routerPrompt,
		Messages:    history,
		Temperature: ai.Temperature(0),
	})
	if err == nil && reply == nil {
		err = ErrEmptyReply
	}
	if err != nil {
		r.logger.Warn("routing failed, falling back to chat", zap.Error(err))
		return conversation.RouteChat
	}

	route := parseRoute(reply.Text)
	r.logger.Debug("routing decision",
		zap.String("route", string(route)),
		zap.String("decision", utils.TruncateForLog(reply.Text, 50)),
	)

	return route
}

func parseRoute(decision string) conversation.Route {
	if strings.Contains(strings.ToUpper(strings.TrimSpace(decision)), resumeMarker) {
		return conversation.RouteResume
	}
	return conversation.RouteChat
}
