package cache

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/storage"
)

type ActiveOrderSource interface {
	GetActiveOrders(ctx context.Context) ([]storage.Order, error)
}

// OrderCache holds orders that can still change status. Terminal orders are evicted on Set.
type OrderCache struct {
	mu     sync.RWMutex
	cache  map[string]*storage.Order
	source ActiveOrderSource
	logger *zap.Logger
}

func NewOrderCache(source ActiveOrderSource, logger *zap.Logger) *OrderCache {
	return &OrderCache{
		cache:  make(map[string]*storage.Order),
		source: source,
		logger: logger,
	}
}

func (c *OrderCache) LoadInitialData(ctx context.Context) error {
	c.logger.Info("Loading initial data into order cache...")
	orders, err := c.source.GetActiveOrders(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range orders {
		order := orders[i]
		c.cache[order.ID] = &order
	}
	metrics.OrderCacheItems.Set(float64(len(c.cache)))
	c.logger.Info("Loaded active orders into cache", zap.Int("orders", len(c.cache)))
	return nil
}

func (c *OrderCache) Get(orderID string) (*storage.Order, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	order, found := c.cache[orderID]
	if !found {
		return nil, false
	}
	orderCopy := copyOrder(order)
	return &orderCopy, true
}

func (c *OrderCache) Set(order *storage.Order) {
	if order.Status.Terminal() {
		c.Delete(order.ID)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	orderCopy := copyOrder(order)
	c.cache[order.ID] = &orderCopy
	metrics.OrderCacheItems.Set(float64(len(c.cache)))
	c.logger.Debug("Cache: set order", zap.String("order_id", order.ID), zap.String("status", string(order.Status)))
}

func (c *OrderCache) Delete(orderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, found := c.cache[orderID]; found {
		delete(c.cache, orderID)
		metrics.OrderCacheItems.Set(float64(len(c.cache)))
		c.logger.Debug("Cache: deleted order", zap.String("order_id", orderID))
	}
}

func (c *OrderCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func copyOrder(o *storage.Order) storage.Order {
	c := *o
	c.Items = append([]storage.OrderItem(nil), o.Items...)
	c.Returns = append([]storage.ReturnRequest(nil), o.Returns...)
	return c
}
