package repository

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrObjectNotFound = errors.New("not found")
	ErrObjectExists   = errors.New("already exists")
)

type Product struct {
	ID          string  `db:"id"`
	Name        string  `db:"name"`
	Price       float64 `db:"price"`
	Category    string  `db:"category"`
	Stock       int     `db:"stock"`
	Image       string  `db:"image"`
	Description string  `db:"description"`
}

type Order struct {
	ID                string     `db:"id"`
	UserID            string     `db:"user_id"`
	Total             float64    `db:"total"`
	Status            string     `db:"status"`
	ShippingAddress   string     `db:"shipping_address"`
	PaymentMethod     string     `db:"payment_method"`
	TrackingNumber    string     `db:"tracking_number"`
	EstimatedDelivery string     `db:"estimated_delivery"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         *time.Time `db:"updated_at"`
	ShippedAt         *time.Time `db:"shipped_at"`
	DeliveredAt       *time.Time `db:"delivered_at"`
}

type OrderItem struct {
	ID        int64   `db:"id"`
	OrderID   string  `db:"order_id"`
	ProductID string  `db:"product_id"`
	Name      string  `db:"name"`
	Price     float64 `db:"price"`
	Quantity  int     `db:"quantity"`
	Total     float64 `db:"total"`
}

type ReturnEntry struct {
	ID        string          `db:"id"`
	OrderID   string          `db:"order_id"`
	Reason    string          `db:"reason"`
	Items     json.RawMessage `db:"items"`
	Status    string          `db:"status"`
	CreatedAt time.Time       `db:"created_at"`
}

type HistoryEntry struct {
	ID        int64     `db:"id"`
	OrderID   string    `db:"order_id"`
	Status    string    `db:"status"`
	ChangedAt time.Time `db:"changed_at"`
}

type ChatLog struct {
	ID               uuid.UUID `db:"id"`
	SessionID        string    `db:"session_id"`
	UserID           string    `db:"user_id"`
	UserMessage      string    `db:"user_message"`
	BotResponse      string    `db:"bot_response"`
	Model            string    `db:"model"`
	PromptTokens     int       `db:"prompt_tokens"`
	CompletionTokens int       `db:"completion_tokens"`
	TotalTokens      int       `db:"total_tokens"`
	Success          bool      `db:"success"`
	CreatedAt        time.Time `db:"created_at"`
}

type User struct {
	ID        string     `db:"id"`
	Email     string     `db:"email"`
	Name      string     `db:"name"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt *time.Time `db:"updated_at"`
}
