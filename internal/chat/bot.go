package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/llm"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/session"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/storage"
)

const (
	FallbackResponse = "I'm experiencing some technical difficulties right now. Please try again in a moment, or feel free to browse our products while I get back online!"
	EmptyResponse    = "I'm sorry, I didn't understand that. How can I help you?"

	AnonymousUser = "anonymous"

	// One system message, ten history turns and the current message.
	maxPromptMessages = 12
)

type LogSink interface {
	RecordChat(ctx context.Context, entry storage.ChatLogEntry) error
	ChatHistory(ctx context.Context, sessionID string) ([]storage.ChatLogEntry, error)
}

type Request struct {
	Message   string
	UserID    string
	SessionID string
}

type Reply struct {
	Response           string              `json:"response"`
	Model              string              `json:"model,omitempty"`
	Usage              *storage.TokenUsage `json:"usage,omitempty"`
	Timestamp          time.Time           `json:"timestamp"`
	Success            bool                `json:"success"`
	ConversationLength int                 `json:"conversationLength"`
}

func DefaultParams(model string) llm.Params {
	if model == "" {
		model = llm.DefaultModel
	}
	return llm.Params{
		Model:       model,
		Temperature: 0.5,
		TopP:        1,
		MaxTokens:   500,
	}
}

// Bot answers one chat message per call. The session only changes after a successful
// completion, and every call is written to the log sink.
type Bot struct {
	builder  *ContextBuilder
	sessions session.Store
	client   llm.Client
	sink     LogSink
	params   llm.Params
	logger   *zap.Logger
	timeNow  func() time.Time
}

func NewBot(builder *ContextBuilder, sessions session.Store, client llm.Client, sink LogSink, params llm.Params, logger *zap.Logger) *Bot {
	return &Bot{
		builder:  builder,
		sessions: sessions,
		client:   client,
		sink:     sink,
		params:   params,
		logger:   logger.With(zap.String("component", "chatbot")),
		timeNow:  time.Now,
	}
}

func (b *Bot) Chat(ctx context.Context, req Request) (*Reply, error) {
	if req.Message == "" {
		return nil, apperr.Validation("Message is required")
	}
	if req.UserID == "" {
		req.UserID = AnonymousUser
	}

	contextData := b.builder.Build(ctx, req.Message)

	var history []session.Turn
	if req.SessionID != "" {
		turns, err := b.sessions.Turns(ctx, req.SessionID)
		if err != nil {
			b.logger.Warn("Failed to read session, answering without history",
				zap.String("session_id", req.SessionID), zap.Error(err))
		}
		history = turns
	}

	messages := buildMessages(systemMessage(contextData), history, req.Message)

	start := time.Now()
	completion, err := b.client.Complete(ctx, messages, b.params)
	metrics.CompletionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		b.logger.Error("Completion failed", zap.String("session_id", req.SessionID), zap.Error(err))
		metrics.ChatRequestsTotal.WithLabelValues("fallback").Inc()

		reply := &Reply{
			Response:  FallbackResponse,
			Timestamp: b.timeNow().UTC(),
			Success:   false,
		}
		b.record(ctx, req, reply)
		return reply, nil
	}

	text := completion.Text
	if text == "" {
		text = EmptyResponse
	}

	reply := &Reply{
		Response:  text,
		Model:     completion.Model,
		Usage:     toTokenUsage(completion.Usage),
		Timestamp: b.timeNow().UTC(),
		Success:   true,
	}

	if req.SessionID != "" {
		err := b.sessions.Append(ctx, req.SessionID,
			session.Turn{Role: session.RoleUser, Content: req.Message},
			session.Turn{Role: session.RoleAssistant, Content: text},
		)
		if err != nil {
			b.logger.Warn("Failed to update session", zap.String("session_id", req.SessionID), zap.Error(err))
		}
		if turns, err := b.sessions.Turns(ctx, req.SessionID); err == nil {
			reply.ConversationLength = len(turns)
		}
	}

	metrics.ChatRequestsTotal.WithLabelValues("success").Inc()
	b.record(ctx, req, reply)
	return reply, nil
}

func (b *Bot) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return apperr.Validation("Session ID is required")
	}
	if err := b.sessions.Clear(ctx, sessionID); err != nil {
		return err
	}
	metrics.SessionsCleared.Inc()
	return nil
}

func (b *Bot) History(ctx context.Context, sessionID string) ([]storage.ChatLogEntry, error) {
	return b.sink.ChatHistory(ctx, sessionID)
}

func (b *Bot) record(ctx context.Context, req Request, reply *Reply) {
	entry := storage.ChatLogEntry{
		ID:          uuid.New().String(),
		Timestamp:   reply.Timestamp,
		UserID:      req.UserID,
		SessionID:   req.SessionID,
		UserMessage: req.Message,
		BotResponse: reply.Response,
		Model:       reply.Model,
		Usage:       reply.Usage,
		Success:     reply.Success,
	}
	if err := b.sink.RecordChat(ctx, entry); err != nil {
		b.logger.Warn("Failed to log chat", zap.String("session_id", req.SessionID), zap.Error(err))
	}
}

// buildMessages drops the oldest history first so the system and current messages always fit.
func buildMessages(system string, history []session.Turn, current string) []llm.Message {
	if keep := maxPromptMessages - 2; len(history) > keep {
		history = history[len(history)-keep:]
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: llm.Role(turn.Role), Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: current})
	return messages
}

func toTokenUsage(u llm.Usage) *storage.TokenUsage {
	return &storage.TokenUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}
