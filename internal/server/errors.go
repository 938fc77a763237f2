package server

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/apperr"
)

// respondFailure writes the caller-facing message for domain errors and a fixed message for
// everything else, so infrastructure details never leak into responses.
func (s *Server) respondFailure(w http.ResponseWriter, err error, internalMessage string) {
	status := apperr.HTTPStatus(err)

	switch {
	case errors.Is(err, apperr.ErrOrderNotFound):
		respondError(w, status, "Order not found")

	case errors.Is(err, apperr.ErrUserNotFound):
		respondError(w, status, "User not found")

	case apperr.IsDomain(err):
		respondError(w, status, err.Error())

	default:
		s.logger.Error(internalMessage, zap.Error(err))
		respondError(w, status, internalMessage)
	}
}
