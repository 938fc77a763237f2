package order

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/scheduler"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/storage"
)

const (
	DefaultShippingAddress = "Demo Address, Demo City, DC 12345"
	DefaultPaymentMethod   = "Demo Payment"

	deliveryWindow = 7 * 24 * time.Hour
	returnPending  = "pending"
)

var errSkipTransition = errors.New("automatic transition not applicable")

type Config struct {
	ProcessingDelay time.Duration
	ShippingDelay   time.Duration
}

func DefaultConfig() Config {
	return Config{
		ProcessingDelay: 5 * time.Second,
		ShippingDelay:   15 * time.Second,
	}
}

type Cache interface {
	Get(orderID string) (*storage.Order, bool)
	Set(order *storage.Order)
}

type CreateOrderRequest struct {
	UserID          string
	Items           []storage.OrderLine
	ShippingAddress string
	PaymentMethod   string
}

type ReturnRequest struct {
	Reason string
	Items  []storage.OrderItem
}

// Service owns every write to order status and product stock.
type Service struct {
	store     storage.Storage
	cache     Cache
	scheduler scheduler.Scheduler
	ids       IDGenerator
	cfg       Config
	locks     orderLocks
	logger    *zap.Logger
	timeNow   func() time.Time
}

func NewService(store storage.Storage, cache Cache, sched scheduler.Scheduler, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		cache:     cache,
		scheduler: sched,
		ids:       RandomIDs{},
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "order")),
		timeNow:   time.Now,
	}
}

func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*storage.Order, error) {
	if req.UserID == "" || len(req.Items) == 0 {
		return nil, apperr.Validation("Invalid order data")
	}
	for _, line := range req.Items {
		if line.ProductID == "" || line.Quantity <= 0 {
			return nil, apperr.Validation("Invalid order data")
		}
	}

	shippingAddress := req.ShippingAddress
	if shippingAddress == "" {
		shippingAddress = DefaultShippingAddress
	}
	paymentMethod := req.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = DefaultPaymentMethod
	}

	order, err := s.store.PlaceOrder(ctx, req.Items, func(items []storage.OrderItem) (*storage.Order, error) {
		now := s.timeNow().UTC()

		var total float64
		for _, item := range items {
			total += item.Total
		}

		return &storage.Order{
			ID:                s.ids.OrderID(now),
			UserID:            req.UserID,
			Items:             items,
			Total:             storage.RoundCents(total),
			Status:            storage.StatusPending,
			CreatedAt:         now,
			ShippingAddress:   shippingAddress,
			PaymentMethod:     paymentMethod,
			EstimatedDelivery: now.Add(deliveryWindow).Format(time.DateOnly),
			TrackingNumber:    s.ids.TrackingNumber(),
		}, nil
	})
	if err != nil {
		if !apperr.IsDomain(err) {
			metrics.OperationErrorsTotal.WithLabelValues("create_order").Inc()
			s.logger.Error("Failed to create order", zap.String("user_id", req.UserID), zap.Error(err))
		}
		return nil, err
	}

	metrics.OrdersCreatedTotal.Inc()
	s.cache.Set(order)
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.Float64("total", order.Total),
	)

	s.scheduleAdvance(order.ID, s.cfg.ProcessingDelay, storage.StatusProcessing)
	s.scheduleAdvance(order.ID, s.cfg.ShippingDelay, storage.StatusShipped)

	return order, nil
}

func (s *Service) UpdateStatus(ctx context.Context, orderID, status string) (*storage.Order, error) {
	newStatus, err := storage.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return s.applyStatus(ctx, orderID, newStatus, "manual", nil)
}

func (s *Service) RequestReturn(ctx context.Context, orderID string, req ReturnRequest) (*storage.ReturnRequest, error) {
	var created storage.ReturnRequest

	unlock := s.locks.lock(orderID)
	defer unlock()

	order, err := s.store.UpdateOrder(ctx, orderID, func(o *storage.Order) error {
		if !o.Status.Returnable() {
			return apperr.ErrReturnNotAvailable
		}

		items := req.Items
		if len(items) == 0 {
			items = append([]storage.OrderItem(nil), o.Items...)
		}

		now := s.timeNow().UTC()
		created = storage.ReturnRequest{
			ID:        s.ids.ReturnID(now),
			OrderID:   o.ID,
			Reason:    req.Reason,
			Items:     items,
			Status:    returnPending,
			CreatedAt: now,
		}
		o.Returns = append(o.Returns, created)
		return nil
	})
	if err != nil {
		if !apperr.IsDomain(err) {
			metrics.OperationErrorsTotal.WithLabelValues("request_return").Inc()
			s.logger.Error("Failed to process return request", zap.String("order_id", orderID), zap.Error(err))
		}
		return nil, err
	}

	metrics.ReturnsAcceptedTotal.Inc()
	s.cache.Set(order)
	s.logger.Info("Return requested", zap.String("order_id", orderID), zap.String("return_id", created.ID))
	return &created, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*storage.Order, error) {
	if order, ok := s.cache.Get(orderID); ok {
		return order, nil
	}
	return s.store.GetOrder(ctx, orderID)
}

func (s *Service) ListOrders(ctx context.Context) ([]storage.Order, error) {
	return s.store.ListOrders(ctx)
}

func (s *Service) GetUserOrders(ctx context.Context, userID string) ([]storage.Order, error) {
	return s.store.GetUserOrders(ctx, userID)
}

func (s *Service) GetOrderHistory(ctx context.Context, orderID string) ([]storage.HistoryEntry, error) {
	if _, err := s.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.store.GetOrderHistory(ctx, orderID)
}

func (s *Service) scheduleAdvance(orderID string, delay time.Duration, target storage.OrderStatus) {
	s.scheduler.After(delay, func(ctx context.Context) {
		s.advance(ctx, orderID, target)
	})
}

// advance moves an order forward on the fulfilment path. Terminal orders and orders already
// at or past target are left alone.
func (s *Service) advance(ctx context.Context, orderID string, target storage.OrderStatus) {
	_, err := s.applyStatus(ctx, orderID, target, "automatic", func(o *storage.Order) error {
		if o.Status.Terminal() || fulfilmentRank(o.Status) >= fulfilmentRank(target) {
			return errSkipTransition
		}
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, errSkipTransition):
		s.logger.Debug("Automatic transition skipped", zap.String("order_id", orderID), zap.String("target", string(target)))
	case errors.Is(err, apperr.ErrOrderNotFound):
		s.logger.Debug("Automatic transition for missing order", zap.String("order_id", orderID))
	default:
		s.logger.Error("Automatic transition failed",
			zap.String("order_id", orderID),
			zap.String("target", string(target)),
			zap.Error(err),
		)
	}
}

func (s *Service) applyStatus(ctx context.Context, orderID string, status storage.OrderStatus, trigger string, guard func(*storage.Order) error) (*storage.Order, error) {
	unlock := s.locks.lock(orderID)
	defer unlock()

	order, err := s.store.UpdateOrder(ctx, orderID, func(o *storage.Order) error {
		if guard != nil {
			if err := guard(o); err != nil {
				return err
			}
		}

		now := s.timeNow().UTC()
		o.Status = status
		o.UpdatedAt = &now
		switch status {
		case storage.StatusShipped:
			o.ShippedAt = &now
		case storage.StatusDelivered:
			o.DeliveredAt = &now
		}
		return nil
	})
	if err != nil {
		if !apperr.IsDomain(err) && !errors.Is(err, errSkipTransition) {
			metrics.OperationErrorsTotal.WithLabelValues("update_status").Inc()
		}
		return nil, err
	}

	metrics.StatusTransitionsTotal.WithLabelValues(string(status), trigger).Inc()
	s.cache.Set(order)
	s.logger.Info("Order status updated",
		zap.String("order_id", orderID),
		zap.String("status", string(status)),
		zap.String("trigger", trigger),
	)
	return order, nil
}

func fulfilmentRank(status storage.OrderStatus) int {
	switch status {
	case storage.StatusPending:
		return 0
	case storage.StatusProcessing:
		return 1
	case storage.StatusShipped:
		return 2
	default:
		return 3
	}
}
