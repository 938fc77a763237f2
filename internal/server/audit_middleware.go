package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

// Bodies beyond this size are cut in the audit log.
const maxAuditBody = 4 << 10

func (s *Server) auditLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		vars := mux.Vars(r)

		entry := AuditLogEntry{
			Timestamp: start.UTC(),
			Method:    r.Method,
			Path:      r.URL.Path,
			Handler:   routeName(r),
			UserID:    vars["userId"],
			OrderID:   vars["orderId"],
			SessionID: vars["sessionId"],
		}

		skipRequestBody := strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data")
		if !skipRequestBody && r.Body != nil {
			requestBody, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(requestBody))
			entry.Request = truncate(requestBody)

			if entry.OrderID != "" && strings.HasSuffix(r.URL.Path, "/status") {
				var statusRequest struct {
					Status string `json:"status"`
				}
				if err := json.Unmarshal(requestBody, &statusRequest); err == nil {
					if o, err := s.orders.GetOrder(r.Context(), entry.OrderID); err == nil {
						entry.OldStatus = string(o.Status)
						entry.NewStatus = statusRequest.Status
					}
				}
			}
		}

		wrw := newResponseWriterWrapper(w)

		next.ServeHTTP(wrw, r)

		entry.StatusCode = wrw.GetStatusCode()
		entry.Response = truncate(wrw.GetBody())
		entry.Duration = time.Since(start)

		s.AuditManager.LogEntry(r.Context(), entry)
	})
}

func routeName(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return "unknown"
	}
	tpl, err := route.GetPathTemplate()
	if err != nil {
		return "unknown"
	}
	return r.Method + " " + tpl
}

func truncate(body []byte) string {
	if len(body) > maxAuditBody {
		return string(body[:maxAuditBody]) + "...(truncated)"
	}
	return string(body)
}
