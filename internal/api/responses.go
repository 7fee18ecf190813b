package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/novatrust/bio-gateway/internal/log"
)

// ErrorResponse is the uniform error body
type ErrorResponse struct {
	Message string `json:"message"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error(ctx, "writing response body", "err", err)
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, msg string) {
	writeJSON(ctx, w, status, ErrorResponse{Message: msg})
}
