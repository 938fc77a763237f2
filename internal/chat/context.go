package chat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/storage"
)

const (
	productSampleSize = 5

	sampleOrdersBlock = "Sample Recent Orders:\n" +
		"- Order #ORD-1234567891234-PV5EO: Shipped, arriving tomorrow\n" +
		"- Order #ORD-1752612878561-ABC12: Processing, estimated delivery in 2-3 days"

	productsUnavailable  = "Product catalog temporarily unavailable"
	inventoryUnavailable = "Inventory information temporarily unavailable"
	orderUnavailable     = "Order information temporarily unavailable"
)

var orderIDPattern = regexp.MustCompile(`(?i)ORD-\d{13}-[A-Z0-9]{5}`)

type ProductSource interface {
	ListProducts(ctx context.Context) ([]storage.Product, error)
}

type OrderLookup interface {
	GetOrder(ctx context.Context, orderID string) (*storage.Order, error)
}

// ContextBuilder turns a user message into grounding facts for the model. It never fails:
// lookup errors degrade to fallback phrases.
type ContextBuilder struct {
	classifier Classifier
	products   ProductSource
	orders     OrderLookup
	logger     *zap.Logger
}

func NewContextBuilder(classifier Classifier, products ProductSource, orders OrderLookup, logger *zap.Logger) *ContextBuilder {
	return &ContextBuilder{
		classifier: classifier,
		products:   products,
		orders:     orders,
		logger:     logger,
	}
}

func (b *ContextBuilder) Build(ctx context.Context, message string) string {
	topics := b.classifier.Classify(message)

	var blocks []string
	if topics.Has(TopicOrder) {
		blocks = append(blocks, b.orderBlock(ctx, message))
	}

	// Product and inventory blocks share one catalog read.
	if topics.Has(TopicProduct) || topics.Has(TopicInventory) {
		products, err := b.products.ListProducts(ctx)
		if err != nil {
			b.logger.Warn("Failed to read catalog for chat context", zap.Error(err))
		}
		if topics.Has(TopicProduct) {
			blocks = append(blocks, "Available Products (sample):\n"+productLines(products, err))
		}
		if topics.Has(TopicInventory) {
			blocks = append(blocks, "Inventory Status:\n"+inventoryLine(products, err))
		}
	}

	return strings.Join(blocks, "\n\n")
}

func (b *ContextBuilder) orderBlock(ctx context.Context, message string) string {
	orderID := orderIDPattern.FindString(message)
	if orderID == "" {
		return sampleOrdersBlock
	}
	orderID = strings.ToUpper(orderID)

	order, err := b.orders.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperr.ErrOrderNotFound) {
			return "Order Information:\nNo order found with number " + orderID
		}
		b.logger.Warn("Failed to read order for chat context", zap.String("order_id", orderID), zap.Error(err))
		return "Order Information:\n" + orderUnavailable
	}
	return "Order Information:\n" + FormatOrder(order)
}

// FormatOrder renders the one-line order summary the model sees.
func FormatOrder(o *storage.Order) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Order #%s: Status: %s, Total: $%s, Items: %d items",
		o.ID, o.Status, formatPrice(o.Total), len(o.Items))
	if o.TrackingNumber != "" {
		sb.WriteString(", Tracking: " + o.TrackingNumber)
	}
	if o.EstimatedDelivery != "" {
		sb.WriteString(", Est. Delivery: " + o.EstimatedDelivery)
	}
	if o.DeliveredAt != nil {
		sb.WriteString(", Delivered: " + o.DeliveredAt.Format(time.DateOnly))
	}
	return sb.String()
}

func productLines(products []storage.Product, err error) string {
	if err != nil {
		return productsUnavailable
	}

	if len(products) > productSampleSize {
		products = products[:productSampleSize]
	}
	lines := make([]string, 0, len(products))
	for _, p := range products {
		lines = append(lines, fmt.Sprintf("- %s: $%s (%d in stock)", p.Name, formatPrice(p.Price), p.Stock))
	}
	return strings.Join(lines, "\n")
}

func inventoryLine(products []storage.Product, err error) string {
	if err != nil {
		return inventoryUnavailable
	}

	var inStock, outOfStock int
	for _, p := range products {
		if p.Stock > 0 {
			inStock++
		} else {
			outOfStock++
		}
	}
	return fmt.Sprintf("%d products in stock, %d out of stock", inStock, outOfStock)
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
