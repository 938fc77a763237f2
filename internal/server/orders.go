package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/order"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/storage"
)

type createOrderRequest struct {
	UserID          string              `json:"userId"`
	Items           []storage.OrderLine `json:"items"`
	ShippingAddress string              `json:"shippingAddress"`
	PaymentMethod   string              `json:"paymentMethod"`
}

type returnRequestBody struct {
	Reason string              `json:"reason"`
	Items  []storage.OrderItem `json:"items"`
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orders.ListOrders(r.Context())
	if err != nil {
		s.respondFailure(w, err, "Failed to retrieve orders")
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (s *Server) handleUserOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orders.GetUserOrders(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		s.respondFailure(w, err, "Failed to retrieve user orders")
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.orders.GetOrder(r.Context(), mux.Vars(r)["orderId"])
	if err != nil {
		s.respondFailure(w, err, "Failed to retrieve order")
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order data")
		return
	}

	created, err := s.orders.CreateOrder(r.Context(), order.CreateOrderRequest{
		UserID:          req.UserID,
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		s.respondFailure(w, err, "Failed to create order")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Order created successfully",
		"order":   created,
	})
}

func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := s.orders.UpdateStatus(r.Context(), mux.Vars(r)["orderId"], req.Status)
	if err != nil {
		s.respondFailure(w, err, "Failed to update order status")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Order status updated",
		"order":   updated,
	})
}

func (s *Server) handleRequestReturn(w http.ResponseWriter, r *http.Request) {
	var req returnRequestBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	ret, err := s.orders.RequestReturn(r.Context(), mux.Vars(r)["orderId"], order.ReturnRequest{
		Reason: req.Reason,
		Items:  req.Items,
	})
	if err != nil {
		s.respondFailure(w, err, "Failed to process return request")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "Return request initiated successfully",
		"returnRequest": ret,
	})
}

func (s *Server) handleOrderHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.orders.GetOrderHistory(r.Context(), mux.Vars(r)["orderId"])
	if err != nil {
		s.respondFailure(w, err, "Failed to get order history")
		return
	}
	respondJSON(w, http.StatusOK, history)
}
