package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/chat"
)

const aiEngine = "groq-llama-3.3-70b"

type chatResponse struct {
	*chat.Reply
	AIEngine string `json:"aiEngine"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message   string `json:"message"`
		UserID    string `json:"userId"`
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	reply, err := s.chatbot.Chat(r.Context(), chat.Request{
		Message:   req.Message,
		UserID:    req.UserID,
		SessionID: req.SessionID,
	})
	if err != nil {
		if apperr.IsDomain(err) {
			respondError(w, apperr.HTTPStatus(err), err.Error())
			return
		}
		s.logger.Error("Chat endpoint error", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":    "Internal server error",
			"response": "I'm experiencing technical difficulties. Please try again in a moment.",
			"success":  false,
		})
		return
	}

	respondJSON(w, http.StatusOK, chatResponse{Reply: reply, AIEngine: aiEngine})
}

func (s *Server) handleClearChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.chatbot.Clear(r.Context(), req.SessionID); err != nil {
		s.respondFailure(w, err, "Failed to clear conversation context")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message":   "Conversation context cleared successfully",
		"sessionId": req.SessionID,
	})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.chatbot.History(r.Context(), mux.Vars(r)["sessionId"])
	if err != nil {
		s.respondFailure(w, err, "Failed to retrieve chat history")
		return
	}
	respondJSON(w, http.StatusOK, history)
}
