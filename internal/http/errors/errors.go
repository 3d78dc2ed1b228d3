// Package errors define el catálogo de errores de la API y cómo se escriben.
package errors

import (
	"encoding/json"
	"net/http"
)

// errorResponse es el cuerpo de todo error: siempre success=false.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Detail  string `json:"detail,omitempty"`
}

// WriteError escribe err como JSON. Lo que no es *AppError sale como 500
// sin exponer la causa.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Success: false,
		Error:   appErr.Message,
		Code:    appErr.Code,
		Detail:  appErr.Detail,
	})
}
