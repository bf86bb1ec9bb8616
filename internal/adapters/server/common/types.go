// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"

	"github.com/evanschultz/atlascope/internal/app"
	"github.com/evanschultz/atlascope/internal/domain"
)

// ErrInvalidRequest reports malformed or rejected transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrConflict reports a write that lost a revision race.
var ErrConflict = errors.New("conflict")

// ErrServiceUnavailable reports a transport mounted without its backing service.
var ErrServiceUnavailable = errors.New("service unavailable")

// CreateScopeRequest stores transport input for creating one scope document.
type CreateScopeRequest struct {
	Name    string `json:"name"`
	DocNo   string `json:"docNo"`
	Content string `json:"content"`
}

// UpdateScopeRequest stores transport input for applying one UPDATE_SCOPE operation.
// Input keeps absent fields nil so partial updates survive decoding.
type UpdateScopeRequest struct {
	DocumentID string                  `json:"documentId"`
	Input      domain.UpdateScopeInput `json:"input"`
}

// UpdateScopeResult reports the post-apply document and the stored operation.
type UpdateScopeResult struct {
	Document  domain.Document  `json:"document"`
	Operation domain.Operation `json:"operation"`
}

// ScopeService is the scope surface consumed by the REST and MCP adapters.
type ScopeService interface {
	ListScopes(context.Context) ([]domain.Document, error)
	GetScope(context.Context, string) (domain.Document, error)
	CreateScope(context.Context, CreateScopeRequest) (domain.Document, error)
	UpdateScope(context.Context, UpdateScopeRequest) (UpdateScopeResult, error)
	ListOperations(context.Context, string) ([]domain.Operation, error)
	ReplayScope(context.Context, string) (app.ReplayResult, error)
	ListArticles(context.Context, string) ([]domain.Article, error)
}
