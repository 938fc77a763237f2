package server

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/apperr"
)

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.products.List(r.Context())
	if err != nil {
		s.respondFailure(w, err, "Failed to retrieve products")
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.products.Get(r.Context(), mux.Vars(r)["productId"])
	if err != nil {
		if errors.Is(err, apperr.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "Product not found")
			return
		}
		s.respondFailure(w, err, "Failed to retrieve product")
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (s *Server) handleSearchProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.products.Search(r.Context(), mux.Vars(r)["query"])
	if err != nil {
		s.respondFailure(w, err, "Failed to search products")
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (s *Server) handleProductsByCategory(w http.ResponseWriter, r *http.Request) {
	products, err := s.products.ByCategory(r.Context(), mux.Vars(r)["category"])
	if err != nil {
		s.respondFailure(w, err, "Failed to retrieve products by category")
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (s *Server) handleProductAvailability(w http.ResponseWriter, r *http.Request) {
	availability, err := s.products.Availability(r.Context(), mux.Vars(r)["productId"])
	if err != nil {
		if errors.Is(err, apperr.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "Product not found")
			return
		}
		s.respondFailure(w, err, "Failed to check availability")
		return
	}
	respondJSON(w, http.StatusOK, availability)
}
