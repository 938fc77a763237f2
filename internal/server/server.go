//go:generate mockgen -source ./server.go -destination=./mocks/server.go -package=mock_server
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/catalog"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/chat"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/order"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/storage"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/user"
)

type OrderService interface {
	CreateOrder(ctx context.Context, req order.CreateOrderRequest) (*storage.Order, error)
	UpdateStatus(ctx context.Context, orderID, status string) (*storage.Order, error)
	RequestReturn(ctx context.Context, orderID string, req order.ReturnRequest) (*storage.ReturnRequest, error)
	GetOrder(ctx context.Context, orderID string) (*storage.Order, error)
	ListOrders(ctx context.Context) ([]storage.Order, error)
	GetUserOrders(ctx context.Context, userID string) ([]storage.Order, error)
	GetOrderHistory(ctx context.Context, orderID string) ([]storage.HistoryEntry, error)
}

type ProductCatalog interface {
	List(ctx context.Context) ([]storage.Product, error)
	Get(ctx context.Context, productID string) (*storage.Product, error)
	Search(ctx context.Context, query string) ([]storage.Product, error)
	ByCategory(ctx context.Context, category string) ([]storage.Product, error)
	Availability(ctx context.Context, productID string) (*catalog.Availability, error)
}

type Chatbot interface {
	Chat(ctx context.Context, req chat.Request) (*chat.Reply, error)
	Clear(ctx context.Context, sessionID string) error
	History(ctx context.Context, sessionID string) ([]storage.ChatLogEntry, error)
}

type UserService interface {
	Register(ctx context.Context, email, name string) (*storage.User, error)
	Login(ctx context.Context, email string) (*storage.User, error)
	GetUser(ctx context.Context, userID string) (*storage.User, error)
	UpdateProfile(ctx context.Context, userID string, update user.ProfileUpdate) (*storage.User, error)
}

type Server struct {
	orders       OrderService
	products     ProductCatalog
	chatbot      Chatbot
	users        UserService
	logger       *zap.Logger
	AuditManager *AuditManager

	mu       sync.Mutex
	server   *http.Server
	shutdown bool
}

func New(orders OrderService, products ProductCatalog, chatbot Chatbot, users UserService, logger *zap.Logger) *Server {
	return &Server{
		orders:       orders,
		products:     products,
		chatbot:      chatbot,
		users:        users,
		logger:       logger,
		AuditManager: NewAuditManager(2, 5, 500*time.Millisecond, logger.Named("audit")),
	}
}

// Run serves until Shutdown is called. A clean shutdown returns nil.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.server = srv
	s.mu.Unlock()

	s.AuditManager.Start(ctx)

	s.logger.Info("HTTP server starting", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	s.mu.Lock()
	s.shutdown = true
	srv := s.server
	s.mu.Unlock()

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			return err
		}
	}

	s.AuditManager.Shutdown(ctx)
	s.logger.Info("HTTP server shutdown completed")
	return nil
}

func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.auditLogMiddleware)

	products := api.PathPrefix("/products").Subrouter()
	products.HandleFunc("", s.handleListProducts).Methods(http.MethodGet)
	products.HandleFunc("/search/{query}", s.handleSearchProducts).Methods(http.MethodGet)
	products.HandleFunc("/category/{category}", s.handleProductsByCategory).Methods(http.MethodGet)
	products.HandleFunc("/{productId}", s.handleGetProduct).Methods(http.MethodGet)
	products.HandleFunc("/{productId}/availability", s.handleProductAvailability).Methods(http.MethodGet)

	orders := api.PathPrefix("/orders").Subrouter()
	orders.HandleFunc("", s.handleListOrders).Methods(http.MethodGet)
	orders.HandleFunc("", s.handleCreateOrder).Methods(http.MethodPost)
	orders.HandleFunc("/user/{userId}", s.handleUserOrders).Methods(http.MethodGet)
	orders.HandleFunc("/{orderId}", s.handleGetOrder).Methods(http.MethodGet)
	orders.HandleFunc("/{orderId}/status", s.handleUpdateOrderStatus).Methods(http.MethodPatch)
	orders.HandleFunc("/{orderId}/return", s.handleRequestReturn).Methods(http.MethodPost)
	orders.HandleFunc("/{orderId}/history", s.handleOrderHistory).Methods(http.MethodGet)

	chatbot := api.PathPrefix("/chatbot").Subrouter()
	chatbot.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	chatbot.HandleFunc("/clear", s.handleClearChat).Methods(http.MethodPost)
	chatbot.HandleFunc("/history/{sessionId}", s.handleChatHistory).Methods(http.MethodGet)

	users := api.PathPrefix("/users").Subrouter()
	users.HandleFunc("/register", s.handleRegisterUser).Methods(http.MethodPost)
	users.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	users.HandleFunc("/{userId}", s.handleGetUser).Methods(http.MethodGet)
	users.HandleFunc("/{userId}", s.handleUpdateUser).Methods(http.MethodPatch)

	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
