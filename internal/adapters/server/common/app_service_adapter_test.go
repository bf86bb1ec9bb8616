package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/evanschultz/atlascope/internal/adapters/storage/sqlite"
	"github.com/evanschultz/atlascope/internal/app"
	"github.com/evanschultz/atlascope/internal/domain"
)

// stubArticleSource returns fixed articles for adapter tests.
type stubArticleSource struct {
	articles  []domain.Article
	lastScope string
}

// FetchArticles records the scope and returns the fixture list.
func (s *stubArticleSource) FetchArticles(_ context.Context, scope string) []domain.Article {
	s.lastScope = scope
	return s.articles
}

// newAdapterFixture wires one adapter over an in-memory sqlite service.
func newAdapterFixture(t *testing.T, mode domain.ValidationMode, articles app.ArticleSource) *AppServiceAdapter {
	t.Helper()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	n := 0
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc := app.NewService(repo, func() string {
		n++
		return fmt.Sprintf("doc-%d", n)
	}, func() time.Time {
		now = now.Add(time.Second)
		return now
	}, app.ServiceConfig{ValidationMode: mode, Articles: articles})
	return NewAppServiceAdapter(svc)
}

func TestAppServiceAdapterScopeLifecycle(t *testing.T) {
	ctx := context.Background()
	adapter := newAdapterFixture(t, domain.ValidationLenient, nil)

	doc, err := adapter.CreateScope(ctx, CreateScopeRequest{Name: "Governance", DocNo: "A.1"})
	if err != nil {
		t.Fatalf("CreateScope() error = %v", err)
	}
	if doc.ID != "doc-1" || doc.State.Name != "Governance" || doc.Revision != 1 {
		t.Fatalf("unexpected created document %#v", doc)
	}

	result, err := adapter.UpdateScope(ctx, UpdateScopeRequest{
		DocumentID: doc.ID,
		Input: domain.UpdateScopeInput{
			GlobalTags: []domain.GlobalTag{domain.TagCAIS},
		},
	})
	if err != nil {
		t.Fatalf("UpdateScope() error = %v", err)
	}
	if result.Operation.Index != 1 || result.Document.Revision != 2 {
		t.Fatalf("unexpected update result %#v", result)
	}
	if result.Document.State.Name != "Governance" {
		t.Fatalf("expected absent name to be preserved, got %q", result.Document.State.Name)
	}

	docs, err := adapter.ListScopes(ctx)
	if err != nil {
		t.Fatalf("ListScopes() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 scope, got %d", len(docs))
	}
	ops, err := adapter.ListOperations(ctx, doc.ID)
	if err != nil {
		t.Fatalf("ListOperations() error = %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(ops))
	}
	replay, err := adapter.ReplayScope(ctx, doc.ID)
	if err != nil {
		t.Fatalf("ReplayScope() error = %v", err)
	}
	if !replay.Matches {
		t.Fatalf("expected replay to match stored state, got %#v", replay)
	}
}

func TestAppServiceAdapterErrorMapping(t *testing.T) {
	ctx := context.Background()
	adapter := newAdapterFixture(t, domain.ValidationStrict, nil)

	if _, err := adapter.GetScope(ctx, "missing"); !errors.Is(err, ErrNotFound) || !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected joined not found error, got %v", err)
	}
	if _, err := adapter.GetScope(ctx, " "); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request for blank id, got %v", err)
	}
	if _, err := adapter.UpdateScope(ctx, UpdateScopeRequest{}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request for missing document id, got %v", err)
	}

	doc, err := adapter.CreateScope(ctx, CreateScopeRequest{})
	if err != nil {
		t.Fatalf("CreateScope() error = %v", err)
	}
	_, err = adapter.UpdateScope(ctx, UpdateScopeRequest{
		DocumentID: doc.ID,
		Input:      domain.UpdateScopeInput{GlobalTags: []domain.GlobalTag{"NOT_A_TAG"}},
	})
	if !errors.Is(err, ErrInvalidRequest) || !errors.Is(err, domain.ErrInvalidGlobalTag) {
		t.Fatalf("expected strict tag rejection, got %v", err)
	}

	if _, err := adapter.UpdateScope(ctx, UpdateScopeRequest{Input: domain.UpdateScopeInput{ID: doc.ID}}); err != nil {
		t.Fatalf("UpdateScope() with input id error = %v", err)
	}
}

func TestMapAppErrorConflictAndPassthrough(t *testing.T) {
	err := mapAppError("update scope", fmt.Errorf("wrapped: %w", app.ErrConflict))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	plain := errors.New("disk full")
	err = mapAppError("list scopes", plain)
	if !errors.Is(err, plain) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected unmapped passthrough, got %v", err)
	}
	if mapAppError("noop", nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestAppServiceAdapterListArticles(t *testing.T) {
	source := &stubArticleSource{articles: []domain.Article{{ID: "a1", Title: "Intro"}}}
	adapter := newAdapterFixture(t, domain.ValidationLenient, source)

	articles, err := adapter.ListArticles(context.Background(), "governance")
	if err != nil {
		t.Fatalf("ListArticles() error = %v", err)
	}
	if len(articles) != 1 || source.lastScope != "governance" {
		t.Fatalf("unexpected articles %#v for scope %q", articles, source.lastScope)
	}
	if _, err := adapter.ListArticles(context.Background(), ""); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request for blank scope, got %v", err)
	}
}

func TestAppServiceAdapterRequiresService(t *testing.T) {
	var adapter *AppServiceAdapter
	if _, err := adapter.ListScopes(context.Background()); !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}
