package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/apperr"
)

const (
	shopFileName    = "shop.json"
	chatLogFileName = "chat_logs.json"

	DefaultChatLogLimit = 1000
)

type fileData struct {
	Products []Product      `json:"products"`
	Orders   []Order        `json:"orders"`
	History  []HistoryEntry `json:"history"`
	Users    []User         `json:"users"`
}

// FileStorage keeps the catalog, orders and status history in one JSON document so that a
// checkout's stock decrement and order append land in a single rename. Chat logs live in a
// separate file because they are written on every chat message.
type FileStorage struct {
	dir       string
	mu        sync.Mutex
	chatMu    sync.Mutex
	chatLimit int
	logger    *zap.Logger
	timeNow   func() time.Time
}

var _ Storage = (*FileStorage)(nil)

func NewFileStorage(dir string, logger *zap.Logger) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	fs := &FileStorage{
		dir:       dir,
		chatLimit: DefaultChatLogLimit,
		logger:    logger,
		timeNow:   time.Now,
	}
	return fs, fs.seed()
}

func (fs *FileStorage) seed() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := fs.load()
	if err != nil {
		return fmt.Errorf("failed to load data: %w", err)
	}
	if len(data.Products) > 0 && len(data.Users) > 0 {
		return nil
	}

	if len(data.Products) == 0 {
		data.Products = DefaultCatalog()
		fs.logger.Info("Seeded product catalog", zap.Int("products", len(data.Products)))
	}
	if len(data.Users) == 0 {
		demo := DemoUser()
		demo.CreatedAt = fs.timeNow().UTC()
		data.Users = append(data.Users, demo)
	}

	if err := fs.save(data); err != nil {
		return fmt.Errorf("failed to seed data: %w", err)
	}
	return nil
}

// load must be called with fs.mu held.
func (fs *FileStorage) load() (*fileData, error) {
	data := &fileData{}
	if err := readJSON(filepath.Join(fs.dir, shopFileName), data); err != nil {
		return nil, err
	}
	return data, nil
}

// save must be called with fs.mu held.
func (fs *FileStorage) save(data *fileData) error {
	return writeJSON(filepath.Join(fs.dir, shopFileName), data)
}

func readJSON(path string, v any) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (fs *FileStorage) ListProducts(_ context.Context) ([]Product, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := fs.load()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve products: %w", err)
	}
	return data.Products, nil
}

func (fs *FileStorage) GetProduct(_ context.Context, productID string) (*Product, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := fs.load()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve product: %w", err)
	}

	for _, p := range data.Products {
		if p.ID == productID {
			return &p, nil
		}
	}
	return nil, apperr.ProductNotFound(productID)
}

func (fs *FileStorage) PlaceOrder(_ context.Context, lines []OrderLine, build OrderBuilder) (*Order, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := fs.load()
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	products := make(map[string]*Product, len(data.Products))
	for i := range data.Products {
		products[data.Products[i].ID] = &data.Products[i]
	}

	items, err := reserveLines(lines, products)
	if err != nil {
		return nil, err
	}

	order, err := build(items)
	if err != nil {
		return nil, err
	}

	data.Orders = append(data.Orders, order.clone())
	data.History = append(data.History, HistoryEntry{
		OrderID:   order.ID,
		Status:    order.Status,
		ChangedAt: order.CreatedAt,
	})

	if err := fs.save(data); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	fs.logEvent(OrderEvent{
		Type:       EventOrderCreated,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		Total:      order.Total,
		OccurredAt: order.CreatedAt,
	})
	return order, nil
}

func (fs *FileStorage) GetOrder(_ context.Context, orderID string) (*Order, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := fs.load()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}

	for i := range data.Orders {
		if data.Orders[i].ID == orderID {
			o := data.Orders[i].clone()
			return &o, nil
		}
	}
	return nil, apperr.ErrOrderNotFound
}

func (fs *FileStorage) UpdateOrder(_ context.Context, orderID string, mutate OrderMutation) (*Order, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := fs.load()
	if err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	idx := -1
	for i := range data.Orders {
		if data.Orders[i].ID == orderID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, apperr.ErrOrderNotFound
	}

	order := &data.Orders[idx]
	oldStatus := order.Status
	oldReturns := len(order.Returns)

	if err := mutate(order); err != nil {
		return nil, err
	}

	now := fs.timeNow().UTC()
	var events []OrderEvent
	if order.Status != oldStatus {
		data.History = append(data.History, HistoryEntry{
			OrderID:   order.ID,
			Status:    order.Status,
			ChangedAt: now,
		})
		events = append(events, OrderEvent{
			Type:       EventOrderStatusChanged,
			OrderID:    order.ID,
			UserID:     order.UserID,
			Status:     order.Status,
			OldStatus:  oldStatus,
			OccurredAt: now,
		})
	}
	for _, ret := range order.Returns[oldReturns:] {
		events = append(events, OrderEvent{
			Type:       EventOrderReturnRequested,
			OrderID:    order.ID,
			UserID:     order.UserID,
			Status:     order.Status,
			ReturnID:   ret.ID,
			OccurredAt: ret.CreatedAt,
		})
	}

	if err := fs.save(data); err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	for _, e := range events {
		fs.logEvent(e)
	}

	o := order.clone()
	return &o, nil
}

func (fs *FileStorage) ListOrders(_ context.Context) ([]Order, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := fs.load()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve orders: %w", err)
	}
	return data.Orders, nil
}

func (fs *FileStorage) GetUserOrders(_ context.Context, userID string) ([]Order, error) {
	return fs.filterOrders(func(o *Order) bool { return o.UserID == userID }, "failed to retrieve user orders")
}

func (fs *FileStorage) GetActiveOrders(_ context.Context) ([]Order, error) {
	return fs.filterOrders(func(o *Order) bool { return !o.Status.Terminal() }, "failed to retrieve active orders")
}

func (fs *FileStorage) filterOrders(keep func(o *Order) bool, failure string) ([]Order, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := fs.load()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", failure, err)
	}

	orders := []Order{}
	for i := range data.Orders {
		if keep(&data.Orders[i]) {
			orders = append(orders, data.Orders[i])
		}
	}
	return orders, nil
}

func (fs *FileStorage) GetOrderHistory(_ context.Context, orderID string) ([]HistoryEntry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := fs.load()
	if err != nil {
		return nil, fmt.Errorf("failed to get order history: %w", err)
	}

	history := []HistoryEntry{}
	for _, h := range data.History {
		if h.OrderID == orderID {
			history = append(history, h)
		}
	}
	return history, nil
}

func (fs *FileStorage) RecordChat(_ context.Context, entry ChatLogEntry) error {
	fs.chatMu.Lock()
	defer fs.chatMu.Unlock()

	path := filepath.Join(fs.dir, chatLogFileName)

	var logs []ChatLogEntry
	if err := readJSON(path, &logs); err != nil {
		// A corrupt log file is replaced rather than blocking new entries.
		fs.logger.Warn("Chat log unreadable, starting a new one", zap.Error(err))
		logs = nil
	}

	logs = append(logs, entry)
	if len(logs) > fs.chatLimit {
		logs = logs[len(logs)-fs.chatLimit:]
	}

	if err := writeJSON(path, logs); err != nil {
		return fmt.Errorf("failed to record chat: %w", err)
	}
	return nil
}

func (fs *FileStorage) ChatHistory(_ context.Context, sessionID string) ([]ChatLogEntry, error) {
	fs.chatMu.Lock()
	defer fs.chatMu.Unlock()

	var logs []ChatLogEntry
	if err := readJSON(filepath.Join(fs.dir, chatLogFileName), &logs); err != nil {
		return nil, fmt.Errorf("failed to retrieve chat history: %w", err)
	}

	history := []ChatLogEntry{}
	for _, entry := range logs {
		if entry.SessionID == sessionID {
			history = append(history, entry)
		}
	}
	return history, nil
}

func (fs *FileStorage) CreateUser(_ context.Context, user *User) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := fs.load()
	if err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}

	for _, u := range data.Users {
		if u.Email == user.Email {
			return apperr.ErrUserExists
		}
	}

	data.Users = append(data.Users, *user)
	if err := fs.save(data); err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}
	return nil
}

func (fs *FileStorage) GetUser(_ context.Context, userID string) (*User, error) {
	return fs.findUser(func(u *User) bool { return u.ID == userID })
}

func (fs *FileStorage) GetUserByEmail(_ context.Context, email string) (*User, error) {
	return fs.findUser(func(u *User) bool { return u.Email == email })
}

func (fs *FileStorage) findUser(match func(u *User) bool) (*User, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := fs.load()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}

	for i := range data.Users {
		if match(&data.Users[i]) {
			u := data.Users[i]
			return &u, nil
		}
	}
	return nil, apperr.ErrUserNotFound
}

func (fs *FileStorage) UpdateUser(_ context.Context, userID string, mutate UserMutation) (*User, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := fs.load()
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	for i := range data.Users {
		if data.Users[i].ID != userID {
			continue
		}

		u := data.Users[i]
		if err := mutate(&u); err != nil {
			return nil, err
		}
		u.ID, u.Email = data.Users[i].ID, data.Users[i].Email
		data.Users[i] = u

		if err := fs.save(data); err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
		return &u, nil
	}
	return nil, apperr.ErrUserNotFound
}

func (fs *FileStorage) logEvent(e OrderEvent) {
	fs.logger.Info("Order event",
		zap.String("type", string(e.Type)),
		zap.String("order_id", e.OrderID),
		zap.String("status", string(e.Status)),
		zap.String("old_status", string(e.OldStatus)),
		zap.String("return_id", e.ReturnID),
	)
}
