package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/resume-chat/internal/conversation"
)

var ErrEmptyMessage = errors.New("message must not be empty")

type Decider interface {
	Decide(ctx context.Context, history []conversation.Message) conversation.Route
}

// Orchestrator runs one user turn: route, then exactly one handler.
type Orchestrator struct {
	router Decider
	resume Handler
	chat   Handler
	logger *zap.Logger
}

func NewOrchestrator(router Decider, resume, chat Handler, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{router: router, resume: resume, chat: chat, logger: logger}
}

// Advance appends text as a user message and returns the state after the
// turn. On error the returned state is s itself, so a failed turn never
// leaks partial history or focus changes.
func (o *Orchestrator) Advance(ctx context.Context, s conversation.State, text string) (conversation.State, error) {
	if strings.TrimSpace(text) == "" {
		return s, ErrEmptyMessage
	}

	started := time.Now()
	pending := s.WithMessage(conversation.UserMessage(text))

	route := o.router.Decide(ctx, pending.History)
	pending = pending.WithRoute(route)

	handler := o.chat
	if route == conversation.RouteResume {
		handler = o.resume
	}

	next, err := handler.Handle(ctx, pending)
	if err != nil {
		o.logger.Error("turn failed", zap.String("route", string(route)), zap.Error(err))
		return s, err
	}

	o.logger.Info("turn completed",
		zap.String("route", string(route)),
		zap.Int("history", len(next.History)),
		zap.Int64s("focus_ids", next.FocusIDs),
		zap.Duration("elapsed", time.Since(started)),
	)

	return next, nil
}
