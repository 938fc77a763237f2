package postgresql

import (
	"context"

	"github.com/google/uuid"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/storage"
)

type ChatLogRepo struct {
	db db.DB
}

func NewChatLogRepo(db db.DB) storage.ChatLogRepository {
	return &ChatLogRepo{db: db}
}

func (r *ChatLogRepo) Create(ctx context.Context, log *repository.ChatLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, `
        INSERT INTO chat_logs (
            id, session_id, user_id, user_message, bot_response, model,
            prompt_tokens, completion_tokens, total_tokens, success, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `, log.ID, log.SessionID, log.UserID, log.UserMessage, log.BotResponse, log.Model,
		log.PromptTokens, log.CompletionTokens, log.TotalTokens, log.Success, log.CreatedAt)
	return err
}

func (r *ChatLogRepo) GetBySessionID(ctx context.Context, sessionID string) ([]*repository.ChatLog, error) {
	var logs []*repository.ChatLog
	err := r.db.Select(ctx, &logs, `
        SELECT * FROM chat_logs
        WHERE session_id = $1
        ORDER BY created_at ASC
    `, sessionID)
	return logs, err
}
