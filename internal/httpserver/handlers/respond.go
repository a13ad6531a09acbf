package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strings"

	"github.com/axondata/go-supervise"
	"github.com/axondata/go-supervise/internal/httpserver/deps"
	"github.com/axondata/go-supervise/internal/logger"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, d deps.Deps, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		d.Logger.Debug("failed to write response", logger.Error(err))
	}
}

// StatusCode maps a supervise error onto an HTTP status
func StatusCode(err error) int {
	switch {
	case errors.Is(err, supervise.ErrEmptyName),
		errors.Is(err, supervise.ErrUnknownOperation),
		errors.Is(err, errInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, supervise.ErrMalformedRecord):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusServiceUnavailable
	}
}

func writeError(w http.ResponseWriter, d deps.Deps, err error) {
	code := StatusCode(err)
	if code >= http.StatusInternalServerError {
		d.Logger.Warn("supervise request failed", logger.Error(err), logger.Int("status", code))
	}
	writeJSON(w, d, code, errorResponse{Error: err.Error()})
}

var errInvalidName = errors.New("invalid service name")

// checkName rejects names that would escape the service directory
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return errInvalidName
	}
	return nil
}
