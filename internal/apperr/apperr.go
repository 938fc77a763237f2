package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrProductNotFound    = errors.New("product not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrReturnNotAvailable = errors.New("return not available for this order status")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("User already exists with this email")
)

// StockError reports a line whose quantity exceeds the product's current stock.
type StockError struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("Insufficient stock for %s. Available: %d, Requested: %d",
		e.ProductName, e.Available, e.Requested)
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}

// Validation wraps ErrValidation with a human-readable message.
func Validation(format string, args ...any) error {
	return &messageError{msg: fmt.Sprintf(format, args...), kind: ErrValidation}
}

func ProductNotFound(productID string) error {
	return &messageError{msg: "Product not found: " + productID, kind: ErrProductNotFound}
}

// messageError keeps the caller-facing message while still matching its sentinel via errors.Is.
type messageError struct {
	msg  string
	kind error
}

func (e *messageError) Error() string { return e.msg }

func (e *messageError) Unwrap() error { return e.kind }

func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrValidation):
		return "validation"

	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"

	case errors.Is(err, ErrOrderNotFound):
		return "order_not_found"

	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"

	case errors.Is(err, ErrReturnNotAvailable):
		return "return_not_available"

	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"

	case errors.Is(err, ErrUserExists):
		return "user_exists"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, context.Canceled):
		return "canceled"

	default:
		return "internal"
	}
}

func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrReturnNotAvailable),
		errors.Is(err, ErrUserExists):
		return http.StatusBadRequest

	case errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	default:
		return http.StatusInternalServerError
	}
}

// IsDomain reports whether err carries a message that is safe to show to the caller.
// Context errors come from the transport, not the domain, and are never shown.
func IsDomain(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return HTTPStatus(err) < http.StatusInternalServerError
}
