package session

import (
	"context"
	"errors"
)

const DefaultWindow = 10

var ErrInvalidID = errors.New("invalid session id")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Store keeps a sliding window of the most recent turns per session.
type Store interface {
	Append(ctx context.Context, sessionID string, turns ...Turn) error
	Turns(ctx context.Context, sessionID string) ([]Turn, error)
	Clear(ctx context.Context, sessionID string) error
}
