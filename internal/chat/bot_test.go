package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/llm"
	mock_llm "gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/llm/mocks"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/session"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/storage"
)

type memorySink struct {
	mu      sync.Mutex
	entries []storage.ChatLogEntry
	err     error
}

func (s *memorySink) RecordChat(_ context.Context, entry storage.ChatLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memorySink) ChatHistory(_ context.Context, sessionID string) ([]storage.ChatLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.ChatLogEntry
	for _, e := range s.entries {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

type botFixture struct {
	bot      *Bot
	client   *mock_llm.MockClient
	sessions *session.MemoryStore
	sink     *memorySink
}

func newBotFixture(t *testing.T) *botFixture {
	ctrl := gomock.NewController(t)

	f := &botFixture{
		client:   mock_llm.NewMockClient(ctrl),
		sessions: session.NewMemoryStore(session.DefaultWindow),
		sink:     &memorySink{},
	}
	builder := newBuilder(&stubProducts{}, &stubOrders{})
	f.bot = NewBot(builder, f.sessions, f.client, f.sink, DefaultParams(""), zap.NewNop())
	return f
}

func TestBot_Chat(t *testing.T) {
	ctx := context.Background()

	t.Run("success appends both turns", func(t *testing.T) {
		f := newBotFixture(t)

		f.client.EXPECT().Complete(gomock.Any(), gomock.Any(), DefaultParams("")).DoAndReturn(
			func(_ context.Context, messages []llm.Message, _ llm.Params) (*llm.Completion, error) {
				require.Len(t, messages, 2)
				assert.Equal(t, llm.RoleSystem, messages[0].Role)
				assert.Contains(t, messages[0].Content, "Current context data:\n"+sampleOrdersBlock)
				assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "Where is my order?"}, messages[1])
				return &llm.Completion{Text: "Let me check.", Model: llm.DefaultModel, Usage: llm.Usage{TotalTokens: 42}}, nil
			})

		reply, err := f.bot.Chat(ctx, Request{Message: "Where is my order?", SessionID: "s1"})
		require.NoError(t, err)
		assert.True(t, reply.Success)
		assert.Equal(t, "Let me check.", reply.Response)
		assert.Equal(t, 2, reply.ConversationLength)
		assert.Equal(t, 42, reply.Usage.TotalTokens)

		turns, _ := f.sessions.Turns(ctx, "s1")
		assert.Equal(t, []session.Turn{
			{Role: session.RoleUser, Content: "Where is my order?"},
			{Role: session.RoleAssistant, Content: "Let me check."},
		}, turns)

		require.Len(t, f.sink.entries, 1)
		entry := f.sink.entries[0]
		assert.Equal(t, AnonymousUser, entry.UserID)
		assert.Equal(t, "s1", entry.SessionID)
		assert.True(t, entry.Success)
		assert.NotEmpty(t, entry.ID)
	})

	t.Run("failure returns fallback and leaves session untouched", func(t *testing.T) {
		f := newBotFixture(t)
		require.NoError(t, f.sessions.Append(ctx, "s1", session.Turn{Role: session.RoleUser, Content: "earlier"}))

		f.client.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))

		reply, err := f.bot.Chat(ctx, Request{Message: "hi", UserID: "u1", SessionID: "s1"})
		require.NoError(t, err)
		assert.False(t, reply.Success)
		assert.Equal(t, FallbackResponse, reply.Response)

		turns, _ := f.sessions.Turns(ctx, "s1")
		assert.Len(t, turns, 1)

		require.Len(t, f.sink.entries, 1)
		assert.False(t, f.sink.entries[0].Success)
		assert.Equal(t, "u1", f.sink.entries[0].UserID)
	})

	t.Run("empty completion uses the default reply", func(t *testing.T) {
		f := newBotFixture(t)

		f.client.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).Return(&llm.Completion{Model: llm.DefaultModel}, nil)

		reply, err := f.bot.Chat(ctx, Request{Message: "hmm", SessionID: "s1"})
		require.NoError(t, err)
		assert.Equal(t, EmptyResponse, reply.Response)

		turns, _ := f.sessions.Turns(ctx, "s1")
		assert.Equal(t, EmptyResponse, turns[1].Content)
	})

	t.Run("history is capped at twelve messages", func(t *testing.T) {
		f := newBotFixture(t)
		f.bot.sessions = session.NewMemoryStore(20)

		for i := 0; i < 8; i++ {
			require.NoError(t, f.bot.sessions.Append(ctx, "s1",
				session.Turn{Role: session.RoleUser, Content: fmt.Sprintf("q%d", i)},
				session.Turn{Role: session.RoleAssistant, Content: fmt.Sprintf("a%d", i)},
			))
		}

		f.client.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, messages []llm.Message, _ llm.Params) (*llm.Completion, error) {
				require.Len(t, messages, maxPromptMessages)
				assert.Equal(t, llm.RoleSystem, messages[0].Role)
				assert.Equal(t, "q3", messages[1].Content)
				assert.Equal(t, "a7", messages[10].Content)
				assert.Equal(t, "latest", messages[11].Content)
				return &llm.Completion{Text: "ok"}, nil
			})

		_, err := f.bot.Chat(ctx, Request{Message: "latest", SessionID: "s1"})
		require.NoError(t, err)
	})

	t.Run("window keeps the last ten turns", func(t *testing.T) {
		f := newBotFixture(t)

		f.client.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&llm.Completion{Text: "ok"}, nil).Times(6)

		var reply *Reply
		for i := 0; i < 6; i++ {
			var err error
			reply, err = f.bot.Chat(ctx, Request{Message: fmt.Sprintf("q%d", i), SessionID: "s1"})
			require.NoError(t, err)
		}
		assert.Equal(t, session.DefaultWindow, reply.ConversationLength)

		turns, _ := f.sessions.Turns(ctx, "s1")
		assert.Equal(t, "q1", turns[0].Content)
	})

	t.Run("no session id is stateless", func(t *testing.T) {
		f := newBotFixture(t)

		f.client.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).Return(&llm.Completion{Text: "ok"}, nil)

		reply, err := f.bot.Chat(ctx, Request{Message: "hi"})
		require.NoError(t, err)
		assert.Equal(t, 0, reply.ConversationLength)
		assert.Equal(t, 0, f.sessions.Len())
	})

	t.Run("sink failure does not fail the request", func(t *testing.T) {
		f := newBotFixture(t)
		f.sink.err = errors.New("disk full")

		f.client.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).Return(&llm.Completion{Text: "ok"}, nil)

		reply, err := f.bot.Chat(ctx, Request{Message: "hi", SessionID: "s1"})
		require.NoError(t, err)
		assert.True(t, reply.Success)
	})

	t.Run("empty message is rejected", func(t *testing.T) {
		f := newBotFixture(t)

		_, err := f.bot.Chat(ctx, Request{SessionID: "s1"})
		assert.ErrorIs(t, err, apperr.ErrValidation)
		assert.Empty(t, f.sink.entries)
	})
}

func TestBot_Clear(t *testing.T) {
	ctx := context.Background()
	f := newBotFixture(t)

	require.NoError(t, f.sessions.Append(ctx, "s1", session.Turn{Role: session.RoleUser, Content: "hi"}))
	require.NoError(t, f.bot.Clear(ctx, "s1"))

	turns, _ := f.sessions.Turns(ctx, "s1")
	assert.Empty(t, turns)

	f.client.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, messages []llm.Message, _ llm.Params) (*llm.Completion, error) {
			require.Len(t, messages, 2)
			assert.Equal(t, "again", messages[1].Content)
			return &llm.Completion{Text: "fresh"}, nil
		})
	reply, err := f.bot.Chat(ctx, Request{Message: "again", SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 2, reply.ConversationLength)

	assert.ErrorIs(t, f.bot.Clear(ctx, ""), apperr.ErrValidation)
}

func TestBot_History(t *testing.T) {
	ctx := context.Background()
	f := newBotFixture(t)

	f.client.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).Return(&llm.Completion{Text: "ok"}, nil).Times(2)

	_, _ = f.bot.Chat(ctx, Request{Message: "one", SessionID: "s1"})
	_, _ = f.bot.Chat(ctx, Request{Message: "two", SessionID: "s2"})

	history, err := f.bot.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "one", history[0].UserMessage)
}
