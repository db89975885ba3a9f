package middleware

import (
	"encoding/json"
	"net/http"

	"go-org-access/internal/model"
)

// errorBody is the failure envelope shared with the handlers.
func errorBody(code string, message string) model.APIResponse {
	return model.APIResponse{
		Success: false,
		Error:   &model.APIError{Code: code, Message: message},
	}
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody(code, message))
}
