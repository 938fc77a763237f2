package storage

import (
	"context"
	"time"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/apperr"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

var validStatuses = map[OrderStatus]struct{}{
	StatusPending:    {},
	StatusProcessing: {},
	StatusShipped:    {},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

func ParseStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if _, ok := validStatuses[status]; !ok {
		return "", apperr.Validation("Invalid status")
	}
	return status, nil
}

// Terminal reports whether automatic fulfilment must leave the order alone.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Returnable reports whether a return request may be opened in this status.
func (s OrderStatus) Returnable() bool {
	return s == StatusShipped || s == StatusDelivered
}

type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Stock       int     `json:"stock"`
	Image       string  `json:"image,omitempty"`
	Description string  `json:"description,omitempty"`
}

type OrderLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type OrderItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Total     float64 `json:"total"`
}

type ReturnRequest struct {
	ID        string      `json:"id"`
	OrderID   string      `json:"orderId"`
	Reason    string      `json:"reason"`
	Items     []OrderItem `json:"items"`
	Status    string      `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
}

type Order struct {
	ID                string          `json:"id"`
	UserID            string          `json:"userId"`
	Items             []OrderItem     `json:"items"`
	Total             float64         `json:"total"`
	Status            OrderStatus     `json:"status"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         *time.Time      `json:"updatedAt,omitempty"`
	ShippedAt         *time.Time      `json:"shippedAt,omitempty"`
	DeliveredAt       *time.Time      `json:"deliveredAt,omitempty"`
	ShippingAddress   string          `json:"shippingAddress"`
	PaymentMethod     string          `json:"paymentMethod"`
	EstimatedDelivery string          `json:"estimatedDelivery"`
	TrackingNumber    string          `json:"trackingNumber"`
	Returns           []ReturnRequest `json:"returns,omitempty"`
}

func (o *Order) clone() Order {
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	c.Returns = append([]ReturnRequest(nil), o.Returns...)
	return c
}

type HistoryEntry struct {
	OrderID   string      `json:"orderId"`
	Status    OrderStatus `json:"status"`
	ChangedAt time.Time   `json:"changedAt"`
}

// User is a demo customer profile. There are no credentials; login is a lookup by email.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatLogEntry struct {
	ID          string      `json:"id"`
	Timestamp   time.Time   `json:"timestamp"`
	UserID      string      `json:"userId"`
	SessionID   string      `json:"sessionId"`
	UserMessage string      `json:"userMessage"`
	BotResponse string      `json:"botResponse"`
	Model       string      `json:"model,omitempty"`
	Usage       *TokenUsage `json:"usage,omitempty"`
	Success     bool        `json:"success"`
}

type EventType string

const (
	EventOrderCreated         EventType = "order.created"
	EventOrderStatusChanged   EventType = "order.status_changed"
	EventOrderReturnRequested EventType = "order.return_requested"
)

// OrderEvent is what gets published for downstream consumers after an order write commits.
type OrderEvent struct {
	Type       EventType   `json:"type"`
	OrderID    string      `json:"order_id"`
	UserID     string      `json:"user_id"`
	Status     OrderStatus `json:"status"`
	OldStatus  OrderStatus `json:"old_status,omitempty"`
	ReturnID   string      `json:"return_id,omitempty"`
	Total      float64     `json:"total,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// OrderBuilder turns the priced lines of a checkout into the order to persist.
// It runs inside the store's critical section, after every line passed the stock check.
type OrderBuilder func(items []OrderItem) (*Order, error)

// OrderMutation edits an order in place while the store holds it exclusively.
type OrderMutation func(order *Order) error

type UserMutation func(user *User) error

// Storage is the contract shared by the file and Postgres backends.
type Storage interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, productID string) (*Product, error)
	PlaceOrder(ctx context.Context, lines []OrderLine, build OrderBuilder) (*Order, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	UpdateOrder(ctx context.Context, orderID string, mutate OrderMutation) (*Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
	GetUserOrders(ctx context.Context, userID string) ([]Order, error)
	GetActiveOrders(ctx context.Context) ([]Order, error)
	GetOrderHistory(ctx context.Context, orderID string) ([]HistoryEntry, error)
	RecordChat(ctx context.Context, entry ChatLogEntry) error
	ChatHistory(ctx context.Context, sessionID string) ([]ChatLogEntry, error)
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, userID string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, userID string, mutate UserMutation) (*User, error)
}
