package gemini

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/resume-chat/internal/ai"
	"github.com/spigell/resume-chat/internal/conversation"
	"github.com/spigell/resume-chat/internal/logger"
	"github.com/spigell/resume-chat/internal/utils"
)

const (
	defaultModel      = "gemini-2.5-flash"
	defaultMaxRetries = 3
	defaultLogLength  = 200
	// Quota errors asking to wait longer than this are returned immediately.
	maxRetryDelay = 30 * time.Second
)

// wait is replaced in tests.
var wait = utils.WaitFor

var retryDelayPattern = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*s`)

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type clientChats struct {
	chats *genai.Chats
}

func (c clientChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	chat, err := c.chats.Create(ctx, model, config, history)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// NewClient creates a Google GenAI client for the Gemini API backend.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return client, nil
}

// Generator sends role-tagged conversations to a Gemini model.
type Generator struct {
	chats      chatCreator
	model      string
	maxRetries int
	maxLogLen  int
	logger     *zap.Logger
}

var _ ai.ChatModel = (*Generator)(nil)

// NewGenerator returns a Generator bound to the given model.
func NewGenerator(client *genai.Client, model string, maxRetries int, log *zap.Logger) *Generator {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	return &Generator{
		chats:      clientChats{chats: client.Chats},
		model:      model,
		maxRetries: maxRetries,
		maxLogLen:  defaultLogLength,
		logger:     logger.WithCommonFields(log, "gemini", model),
	}
}

// WithMaxLogLength sets how many runes of prompts and replies are logged at
// debug level. Non-positive values keep the default.
func (g *Generator) WithMaxLogLength(n int) *Generator {
	if n > 0 {
		g.maxLogLen = n
	}
	return g
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// Send replays req.Messages as chat history and sends the trailing user
// message, retrying temporary API failures.
func (g *Generator) Send(ctx context.Context, req ai.Request) (*ai.Reply, error) {
	if g == nil || g.chats == nil {
		return nil, errors.New("gemini generator is not initialized")
	}

	system, history, last, err := splitMessages(req)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{Temperature: req.Temperature}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	g.logger.Debug("gemini send message request",
		zap.Int("history_length", len(history)),
		zap.Int("message_length", utf8.RuneCountInString(last)),
		zap.String("message_preview", utils.TruncateForLog(last, g.maxLogLen)),
	)

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := g.sendOnce(ctx, config, history, last)
		if err == nil {
			reply, perr := parseReply(resp)
			if perr != nil {
				return nil, perr
			}
			g.logger.Debug("gemini send message response",
				zap.Int("attempt", attempt),
				zap.Int("response_length", utf8.RuneCountInString(reply.Text)),
				zap.String("response_preview", utils.TruncateForLog(reply.Text, g.maxLogLen)),
			)
			return reply, nil
		}

		lastErr = err
		delay, retry := retryDelay(err, attempt)
		if !retry || attempt == g.maxRetries {
			break
		}

		g.logger.Warn("gemini request failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
		)
		if err := wait(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("gemini send message: %w", lastErr)
}

func (g *Generator) sendOnce(ctx context.Context, config *genai.GenerateContentConfig, history []*genai.Content, message string) (*genai.GenerateContentResponse, error) {
	chat, err := g.chats.Create(ctx, g.model, config, history)
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return chat.SendMessage(ctx, genai.Part{Text: message})
}

// splitMessages folds system messages into the instruction, converts the rest
// into Gemini history and returns the trailing user message separately.
func splitMessages(req ai.Request) (string, []*genai.Content, string, error) {
	system := []string{}
	if s := strings.TrimSpace(req.System); s != "" {
		system = append(system, s)
	}

	var turns []conversation.Message
	for _, m := range req.Messages {
		if m.Role == conversation.RoleSystem {
			if s := strings.TrimSpace(m.Content); s != "" {
				system = append(system, s)
			}
			continue
		}
		turns = append(turns, m)
	}

	if len(turns) == 0 {
		return "", nil, "", errors.New("request has no messages")
	}

	last := turns[len(turns)-1]
	if !last.IsUser() {
		return "", nil, "", errors.New("last message in request is not from user")
	}

	// Gemini history has to open with a user turn.
	prior := turns[:len(turns)-1]
	for len(prior) > 0 && prior[0].Role != conversation.RoleUser {
		prior = prior[1:]
	}

	history := make([]*genai.Content, 0, len(prior))
	for _, m := range prior {
		role := string(genai.RoleUser)
		if m.Role == conversation.RoleAssistant {
			role = string(genai.RoleModel)
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}

	return strings.Join(system, "\n\n"), history, last.Content, nil
}

func parseReply(resp *genai.GenerateContentResponse) (*ai.Reply, error) {
	if resp == nil {
		return nil, errors.New("gemini api returned empty response")
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return nil, errors.New("gemini api returned empty response")
	}

	reply := &ai.Reply{Text: output}
	if md := resp.UsageMetadata; md != nil {
		reply.Usage = &conversation.Usage{
			InputTokens:  int(md.PromptTokenCount),
			OutputTokens: int(md.CandidatesTokenCount),
			TotalTokens:  int(md.TotalTokenCount),
		}
	}

	return reply, nil
}

// retryDelay decides whether err is temporary and how long to wait before the
// next attempt.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var apiErrPtr *genai.APIError
		if !errors.As(err, &apiErrPtr) || apiErrPtr == nil {
			return 0, false
		}
		apiErr = *apiErrPtr
	}

	backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		if delay, ok := quotaDelay(apiErr.Message); ok {
			if delay > maxRetryDelay {
				return 0, false
			}
			return delay, true
		}
		return backoff, true
	case apiErr.Code >= http.StatusInternalServerError:
		return backoff, true
	default:
		return 0, false
	}
}

func quotaDelay(message string) (time.Duration, bool) {
	match := retryDelayPattern.FindStringSubmatch(message)
	if len(match) < 2 {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}
