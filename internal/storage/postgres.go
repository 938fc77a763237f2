package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/repository"
)

type Repositories struct {
	Products ProductRepository
	Orders   OrderRepository
	Returns  ReturnRepository
	History  HistoryRepository
	ChatLogs ChatLogRepository
	Outbox   OutboxTaskRepository
	Users    UserRepository
}

// PostgresStorage persists through the repositories and records an outbox task in the same
// transaction as every order write, so events are published only for committed changes.
type PostgresStorage struct {
	db          db.DB
	repos       Repositories
	eventsTopic string
	logger      *zap.Logger
	timeNow     func() time.Time
}

var _ Storage = (*PostgresStorage)(nil)

func NewPostgresStorage(database db.DB, repos Repositories, eventsTopic string, logger *zap.Logger) *PostgresStorage {
	return &PostgresStorage{
		db:          database,
		repos:       repos,
		eventsTopic: eventsTopic,
		logger:      logger,
		timeNow:     time.Now,
	}
}

func (s *PostgresStorage) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.repos.Products.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve products: %w", err)
	}

	products := make([]Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, productFromRow(row))
	}
	return products, nil
}

func (s *PostgresStorage) GetProduct(ctx context.Context, productID string) (*Product, error) {
	row, err := s.repos.Products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			return nil, apperr.ProductNotFound(productID)
		}
		return nil, fmt.Errorf("failed to retrieve product: %w", err)
	}
	p := productFromRow(row)
	return &p, nil
}

func (s *PostgresStorage) PlaceOrder(ctx context.Context, lines []OrderLine, build OrderBuilder) (*Order, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.Background())
	}()

	// Rows are locked in id order so concurrent checkouts cannot deadlock on each other.
	ids := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	sort.Strings(ids)

	products := make(map[string]*Product, len(ids))
	for _, id := range ids {
		row, err := s.repos.Products.GetByIDForUpdateTx(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repository.ErrObjectNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to lock product %s: %w", id, err)
		}
		p := productFromRow(row)
		products[id] = &p
	}

	items, err := reserveLines(lines, products)
	if err != nil {
		return nil, err
	}

	order, err := build(items)
	if err != nil {
		return nil, err
	}

	itemRows := make([]*repository.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		itemRows = append(itemRows, &repository.OrderItem{
			OrderID:   order.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Total:     item.Total,
		})
	}
	if err := s.repos.Orders.CreateTx(ctx, tx, orderToRow(order), itemRows); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	for _, id := range ids {
		p, ok := products[id]
		if !ok {
			continue
		}
		if err := s.repos.Products.UpdateStockTx(ctx, tx, id, p.Stock); err != nil {
			return nil, fmt.Errorf("failed to update stock for product %s: %w", id, err)
		}
	}

	if err := s.repos.History.CreateTx(ctx, tx, &repository.HistoryEntry{
		OrderID:   order.ID,
		Status:    string(order.Status),
		ChangedAt: order.CreatedAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to add order history entry: %w", err)
	}

	event := OrderEvent{
		Type:       EventOrderCreated,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		Total:      order.Total,
		OccurredAt: order.CreatedAt,
	}
	if err := s.enqueueEvent(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}
	return order, nil
}

func (s *PostgresStorage) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	row, err := s.repos.Orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			return nil, apperr.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}

	orders, err := s.hydrate(ctx, []*repository.Order{row})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}
	return &orders[0], nil
}

func (s *PostgresStorage) UpdateOrder(ctx context.Context, orderID string, mutate OrderMutation) (*Order, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.Background())
	}()

	row, err := s.repos.Orders.GetByIDForUpdateTx(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			return nil, apperr.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	// Items never change after checkout and returns are only appended under the row lock
	// held above, so reading them outside the transaction is safe.
	hydrated, err := s.hydrate(ctx, []*repository.Order{row})
	if err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	order := &hydrated[0]
	oldStatus := order.Status
	oldReturns := len(order.Returns)

	if err := mutate(order); err != nil {
		return nil, err
	}

	if err := s.repos.Orders.UpdateTx(ctx, tx, orderToRow(order)); err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	now := s.timeNow().UTC()
	if order.Status != oldStatus {
		if err := s.repos.History.CreateTx(ctx, tx, &repository.HistoryEntry{
			OrderID:   order.ID,
			Status:    string(order.Status),
			ChangedAt: now,
		}); err != nil {
			return nil, fmt.Errorf("failed to add order history entry: %w", err)
		}
		if err := s.enqueueEvent(ctx, tx, OrderEvent{
			Type:       EventOrderStatusChanged,
			OrderID:    order.ID,
			UserID:     order.UserID,
			Status:     order.Status,
			OldStatus:  oldStatus,
			OccurredAt: now,
		}); err != nil {
			return nil, err
		}
	}

	for _, ret := range order.Returns[oldReturns:] {
		retRow, err := returnToRow(ret)
		if err != nil {
			return nil, err
		}
		if err := s.repos.Returns.CreateTx(ctx, tx, retRow); err != nil {
			return nil, fmt.Errorf("failed to create return: %w", err)
		}
		if err := s.enqueueEvent(ctx, tx, OrderEvent{
			Type:       EventOrderReturnRequested,
			OrderID:    order.ID,
			UserID:     order.UserID,
			Status:     order.Status,
			ReturnID:   ret.ID,
			OccurredAt: ret.CreatedAt,
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order update: %w", err)
	}
	return order, nil
}

func (s *PostgresStorage) ListOrders(ctx context.Context) ([]Order, error) {
	rows, err := s.repos.Orders.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve orders: %w", err)
	}
	return s.hydrate(ctx, rows)
}

func (s *PostgresStorage) GetUserOrders(ctx context.Context, userID string) ([]Order, error) {
	rows, err := s.repos.Orders.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve user orders: %w", err)
	}
	return s.hydrate(ctx, rows)
}

func (s *PostgresStorage) GetActiveOrders(ctx context.Context) ([]Order, error) {
	rows, err := s.repos.Orders.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, rows)
}

func (s *PostgresStorage) GetOrderHistory(ctx context.Context, orderID string) ([]HistoryEntry, error) {
	rows, err := s.repos.History.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order history: %w", err)
	}

	history := make([]HistoryEntry, 0, len(rows))
	for _, row := range rows {
		history = append(history, HistoryEntry{
			OrderID:   row.OrderID,
			Status:    OrderStatus(row.Status),
			ChangedAt: row.ChangedAt,
		})
	}
	return history, nil
}

func (s *PostgresStorage) RecordChat(ctx context.Context, entry ChatLogEntry) error {
	row := &repository.ChatLog{
		SessionID:   entry.SessionID,
		UserID:      entry.UserID,
		UserMessage: entry.UserMessage,
		BotResponse: entry.BotResponse,
		Model:       entry.Model,
		Success:     entry.Success,
		CreatedAt:   entry.Timestamp,
	}
	if id, err := uuid.Parse(entry.ID); err == nil {
		row.ID = id
	}
	if entry.Usage != nil {
		row.PromptTokens = entry.Usage.PromptTokens
		row.CompletionTokens = entry.Usage.CompletionTokens
		row.TotalTokens = entry.Usage.TotalTokens
	}

	if err := s.repos.ChatLogs.Create(ctx, row); err != nil {
		return fmt.Errorf("failed to record chat: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ChatHistory(ctx context.Context, sessionID string) ([]ChatLogEntry, error) {
	rows, err := s.repos.ChatLogs.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve chat history: %w", err)
	}

	history := make([]ChatLogEntry, 0, len(rows))
	for _, row := range rows {
		entry := ChatLogEntry{
			ID:          row.ID.String(),
			Timestamp:   row.CreatedAt,
			UserID:      row.UserID,
			SessionID:   row.SessionID,
			UserMessage: row.UserMessage,
			BotResponse: row.BotResponse,
			Model:       row.Model,
			Success:     row.Success,
		}
		if row.TotalTokens > 0 {
			entry.Usage = &TokenUsage{
				PromptTokens:     row.PromptTokens,
				CompletionTokens: row.CompletionTokens,
				TotalTokens:      row.TotalTokens,
			}
		}
		history = append(history, entry)
	}
	return history, nil
}

func (s *PostgresStorage) enqueueEvent(ctx context.Context, tx db.Tx, event OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}

	task := &repository.OutboxTask{
		Payload: payload,
		Topic:   s.eventsTopic,
		Key:     event.OrderID,
	}
	if err := s.repos.Outbox.CreateTx(ctx, tx, task); err != nil {
		return fmt.Errorf("failed to enqueue %s event: %w", event.Type, err)
	}

	s.logger.Debug("Order event enqueued",
		zap.String("type", string(event.Type)),
		zap.String("order_id", event.OrderID),
		zap.Stringer("task_id", task.ID),
	)
	return nil
}

// hydrate attaches items and returns to the order rows with two batched queries.
func (s *PostgresStorage) hydrate(ctx context.Context, rows []*repository.Order) ([]Order, error) {
	orders := make([]Order, 0, len(rows))
	if len(rows) == 0 {
		return orders, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	items, err := s.repos.Orders.GetItems(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	returns, err := s.repos.Returns.GetByOrderIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get order returns: %w", err)
	}

	itemsByOrder := make(map[string][]OrderItem, len(rows))
	for _, item := range items {
		itemsByOrder[item.OrderID] = append(itemsByOrder[item.OrderID], OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Total:     item.Total,
		})
	}

	returnsByOrder := make(map[string][]ReturnRequest)
	for _, ret := range returns {
		r, err := returnFromRow(ret)
		if err != nil {
			return nil, err
		}
		returnsByOrder[ret.OrderID] = append(returnsByOrder[ret.OrderID], r)
	}

	for _, row := range rows {
		order := orderFromRow(row)
		order.Items = itemsByOrder[row.ID]
		if order.Items == nil {
			order.Items = []OrderItem{}
		}
		order.Returns = returnsByOrder[row.ID]
		orders = append(orders, order)
	}
	return orders, nil
}

func (s *PostgresStorage) CreateUser(ctx context.Context, user *User) error {
	err := s.repos.Users.Create(ctx, &repository.User{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt,
	})
	if err != nil {
		if errors.Is(err, repository.ErrObjectExists) {
			return apperr.ErrUserExists
		}
		return fmt.Errorf("failed to register user: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetUser(ctx context.Context, userID string) (*User, error) {
	return userLookup(s.repos.Users.GetByID(ctx, userID))
}

func (s *PostgresStorage) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return userLookup(s.repos.Users.GetByEmail(ctx, email))
}

func userLookup(row *repository.User, err error) (*User, error) {
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}
	u := userFromRow(row)
	return &u, nil
}

func (s *PostgresStorage) UpdateUser(ctx context.Context, userID string, mutate UserMutation) (*User, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.Background())
	}()

	row, err := s.repos.Users.GetByIDForUpdateTx(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	user := userFromRow(row)
	if err := mutate(&user); err != nil {
		return nil, err
	}
	user.ID, user.Email = row.ID, row.Email

	if err := s.repos.Users.UpdateTx(ctx, tx, &repository.User{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit user update: %w", err)
	}
	return &user, nil
}

func userFromRow(row *repository.User) User {
	return User{
		ID:        row.ID,
		Email:     row.Email,
		Name:      row.Name,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func productFromRow(row *repository.Product) Product {
	return Product{
		ID:          row.ID,
		Name:        row.Name,
		Price:       row.Price,
		Category:    row.Category,
		Stock:       row.Stock,
		Image:       row.Image,
		Description: row.Description,
	}
}

func orderFromRow(row *repository.Order) Order {
	return Order{
		ID:                row.ID,
		UserID:            row.UserID,
		Total:             row.Total,
		Status:            OrderStatus(row.Status),
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
		ShippedAt:         row.ShippedAt,
		DeliveredAt:       row.DeliveredAt,
		ShippingAddress:   row.ShippingAddress,
		PaymentMethod:     row.PaymentMethod,
		EstimatedDelivery: row.EstimatedDelivery,
		TrackingNumber:    row.TrackingNumber,
	}
}

func orderToRow(order *Order) *repository.Order {
	return &repository.Order{
		ID:                order.ID,
		UserID:            order.UserID,
		Total:             order.Total,
		Status:            string(order.Status),
		ShippingAddress:   order.ShippingAddress,
		PaymentMethod:     order.PaymentMethod,
		TrackingNumber:    order.TrackingNumber,
		EstimatedDelivery: order.EstimatedDelivery,
		CreatedAt:         order.CreatedAt,
		UpdatedAt:         order.UpdatedAt,
		ShippedAt:         order.ShippedAt,
		DeliveredAt:       order.DeliveredAt,
	}
}

func returnToRow(ret ReturnRequest) (*repository.ReturnEntry, error) {
	items, err := json.Marshal(ret.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal return items: %w", err)
	}
	return &repository.ReturnEntry{
		ID:        ret.ID,
		OrderID:   ret.OrderID,
		Reason:    ret.Reason,
		Items:     items,
		Status:    ret.Status,
		CreatedAt: ret.CreatedAt,
	}, nil
}

func returnFromRow(row *repository.ReturnEntry) (ReturnRequest, error) {
	ret := ReturnRequest{
		ID:        row.ID,
		OrderID:   row.OrderID,
		Reason:    row.Reason,
		Status:    row.Status,
		CreatedAt: row.CreatedAt,
		Items:     []OrderItem{},
	}
	if len(row.Items) > 0 {
		if err := json.Unmarshal(row.Items, &ret.Items); err != nil {
			return ReturnRequest{}, fmt.Errorf("failed to unmarshal items of return %s: %w", row.ID, err)
		}
	}
	return ret, nil
}
