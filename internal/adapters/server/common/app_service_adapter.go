package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/evanschultz/atlascope/internal/app"
	"github.com/evanschultz/atlascope/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service scope APIs.
type AppServiceAdapter struct {
	service *app.Service
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// ListScopes lists every stored scope document.
func (a *AppServiceAdapter) ListScopes(ctx context.Context) ([]domain.Document, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	docs, err := a.service.ListScopes(ctx)
	if err != nil {
		return nil, mapAppError("list scopes", err)
	}
	return docs, nil
}

// GetScope returns one scope document.
func (a *AppServiceAdapter) GetScope(ctx context.Context, id string) (domain.Document, error) {
	if err := a.ready(); err != nil {
		return domain.Document{}, err
	}
	doc, err := a.service.GetScope(ctx, id)
	if err != nil {
		return domain.Document{}, mapAppError("get scope", err)
	}
	return doc, nil
}

// CreateScope creates one scope document.
func (a *AppServiceAdapter) CreateScope(ctx context.Context, in CreateScopeRequest) (domain.Document, error) {
	if err := a.ready(); err != nil {
		return domain.Document{}, err
	}
	doc, err := a.service.CreateScope(ctx, app.CreateScopeInput{
		Name:    in.Name,
		DocNo:   in.DocNo,
		Content: in.Content,
	})
	if err != nil {
		return domain.Document{}, mapAppError("create scope", err)
	}
	return doc, nil
}

// UpdateScope applies one UPDATE_SCOPE operation.
func (a *AppServiceAdapter) UpdateScope(ctx context.Context, in UpdateScopeRequest) (UpdateScopeResult, error) {
	if err := a.ready(); err != nil {
		return UpdateScopeResult{}, err
	}
	documentID := strings.TrimSpace(in.DocumentID)
	if documentID == "" {
		documentID = strings.TrimSpace(in.Input.ID)
	}
	if documentID == "" {
		return UpdateScopeResult{}, fmt.Errorf("update scope: document id is required: %w", ErrInvalidRequest)
	}
	doc, op, err := a.service.UpdateScope(ctx, documentID, in.Input)
	if err != nil {
		return UpdateScopeResult{}, mapAppError("update scope", err)
	}
	return UpdateScopeResult{Document: doc, Operation: op}, nil
}

// ListOperations returns one document's operation log.
func (a *AppServiceAdapter) ListOperations(ctx context.Context, documentID string) ([]domain.Operation, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	ops, err := a.service.ListOperations(ctx, documentID)
	if err != nil {
		return nil, mapAppError("list operations", err)
	}
	return ops, nil
}

// ReplayScope folds one document's log and compares it with the stored state.
func (a *AppServiceAdapter) ReplayScope(ctx context.Context, documentID string) (app.ReplayResult, error) {
	if err := a.ready(); err != nil {
		return app.ReplayResult{}, err
	}
	result, err := a.service.ReplayScope(ctx, documentID)
	if err != nil {
		return app.ReplayResult{}, mapAppError("replay scope", err)
	}
	return result, nil
}

// ListArticles returns articles for one scope name. Upstream failures surface as an empty list.
func (a *AppServiceAdapter) ListArticles(ctx context.Context, scope string) ([]domain.Article, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(scope) == "" {
		return nil, fmt.Errorf("list articles: scope is required: %w", ErrInvalidRequest)
	}
	return a.service.ListArticles(ctx, scope), nil
}

// ready reports whether the adapter has a backing service.
func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrServiceUnavailable)
	}
	return nil
}

// mapAppError joins app and domain failures with the matching transport sentinel.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrConflict),
		errors.Is(err, domain.ErrInvalidOperationIndex):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidGlobalTag),
		errors.Is(err, domain.ErrInvalidValidationMode),
		errors.Is(err, domain.ErrUnknownOperation),
		errors.Is(err, app.ErrInvalidSnapshot):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
