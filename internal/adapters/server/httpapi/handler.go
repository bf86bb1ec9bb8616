// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/evanschultz/atlascope/internal/adapters/server/common"
	"github.com/evanschultz/atlascope/internal/domain"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	scopes common.ScopeService
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over the scope service.
func NewHandler(scopes common.ScopeService) *Handler {
	return &Handler{scopes: scopes}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.scopes == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "scope service is not configured",
		})
		return
	}

	path := normalizePath(r.URL.EscapedPath())
	switch {
	case path == "scopes":
		switch r.Method {
		case http.MethodGet:
			h.handleListScopes(w, r)
		case http.MethodPost:
			h.handleCreateScope(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
		return
	case strings.HasPrefix(path, "articles/"):
		scope, ok := resolveSegment(strings.TrimPrefix(path, "articles/"))
		if !ok {
			writeNotFound(w)
			return
		}
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListArticles(w, r, scope)
		return
	}

	id, sub, ok := resolveScopePath(path)
	if !ok {
		writeNotFound(w)
		return
	}
	switch sub {
	case "":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleGetScope(w, r, id)
	case "operations":
		switch r.Method {
		case http.MethodGet:
			h.handleListOperations(w, r, id)
		case http.MethodPost:
			h.handleUpdateScope(w, r, id)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case "replay":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleReplayScope(w, r, id)
	default:
		writeNotFound(w)
	}
}

// handleListScopes serves GET `/scopes`.
func (h *Handler) handleListScopes(w http.ResponseWriter, r *http.Request) {
	docs, err := h.scopes.ListScopes(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scopes": docs,
	})
}

// handleCreateScope serves POST `/scopes`. An empty body creates an empty scope.
func (h *Handler) handleCreateScope(w http.ResponseWriter, r *http.Request) {
	var req common.CreateScopeRequest
	if err := decodeOptionalJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	doc, err := h.scopes.CreateScope(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// handleGetScope serves GET `/scopes/{id}`.
func (h *Handler) handleGetScope(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := h.scopes.GetScope(r.Context(), id)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleListOperations serves GET `/scopes/{id}/operations`.
func (h *Handler) handleListOperations(w http.ResponseWriter, r *http.Request, id string) {
	ops, err := h.scopes.ListOperations(r.Context(), id)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documentId": id,
		"operations": ops,
	})
}

// handleUpdateScope serves POST `/scopes/{id}/operations` with an UPDATE_SCOPE input body.
func (h *Handler) handleUpdateScope(w http.ResponseWriter, r *http.Request, id string) {
	var input domain.UpdateScopeInput
	if err := decodeJSONBody(r.Context(), w, r, &input); err != nil {
		writeErrorFrom(w, err)
		return
	}
	result, err := h.scopes.UpdateScope(r.Context(), common.UpdateScopeRequest{
		DocumentID: id,
		Input:      input,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// handleReplayScope serves GET `/scopes/{id}/replay`.
func (h *Handler) handleReplayScope(w http.ResponseWriter, r *http.Request, id string) {
	result, err := h.scopes.ReplayScope(r.Context(), id)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleListArticles serves GET `/articles/{scope}`.
func (h *Handler) handleListArticles(w http.ResponseWriter, r *http.Request, scope string) {
	articles, err := h.scopes.ListArticles(r.Context(), scope)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scope":    scope,
		"articles": articles,
	})
}

// resolveScopePath parses `scopes/{id}` and `scopes/{id}/{sub}`.
func resolveScopePath(path string) (string, string, bool) {
	const prefix = "scopes/"
	if !strings.HasPrefix(path, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(path, prefix)
	rawID, sub, _ := strings.Cut(rest, "/")
	id, ok := resolveSegment(rawID)
	if !ok || strings.Contains(sub, "/") {
		return "", "", false
	}
	return id, sub, true
}

// resolveSegment unescapes one path segment and rejects blanks and nested paths.
func resolveSegment(raw string) (string, bool) {
	if raw == "" || strings.Contains(raw, "/") {
		return "", false
	}
	value, err := url.PathUnescape(raw)
	if err != nil {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// writeNotFound writes the structured unknown-endpoint response.
func writeNotFound(w http.ResponseWriter) {
	writeJSONError(w, http.StatusNotFound, APIError{
		Code:    "not_found",
		Message: "endpoint not found",
	})
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "conflict",
			Message: err.Error(),
			Hint:    "Reload the scope and retry against its current revision.",
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrServiceUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}

// decodeOptionalJSONBody decodes one optional JSON body and ignores empty payloads.
func decodeOptionalJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(out)
	if err == nil {
		select {
		case <-ctx.Done():
			return fmt.Errorf("request canceled: %w", ctx.Err())
		default:
			return nil
		}
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
}
