package app

import (
	"context"

	"github.com/evanschultz/atlascope/internal/domain"
)

// Repository persists scope documents with their operation logs.
type Repository interface {
	CreateDocument(context.Context, domain.Document, []domain.Operation) error
	GetDocument(context.Context, string) (domain.Document, error)
	ListDocuments(context.Context) ([]domain.Document, error)
	// AppendOperation stores op and the post-apply document atomically.
	// It fails with ErrConflict unless the stored revision equals op.Index.
	AppendOperation(context.Context, domain.Document, domain.Operation) error
	ListOperations(context.Context, string) ([]domain.Operation, error)
	// ReplaceDocuments overwrites every listed document and its whole log in one transaction.
	ReplaceDocuments(context.Context, []domain.DocumentLog) error
}

// ArticleSource lists articles for one scope. Implementations never fail; they return an empty list instead.
type ArticleSource interface {
	FetchArticles(context.Context, string) []domain.Article
}
