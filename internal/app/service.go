package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/evanschultz/atlascope/internal/domain"
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	ValidationMode domain.ValidationMode
	Articles       ArticleSource
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service coordinates scope documents, their operation logs, and article lookups.
type Service struct {
	repo     Repository
	idGen    IDGenerator
	clock    Clock
	articles ArticleSource

	mu   sync.RWMutex
	mode domain.ValidationMode
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.ValidationMode == "" {
		cfg.ValidationMode = domain.ValidationLenient
	}
	return &Service{
		repo:     repo,
		idGen:    idGen,
		clock:    clock,
		articles: cfg.Articles,
		mode:     cfg.ValidationMode,
	}
}

// ValidationMode returns the active validation mode.
func (s *Service) ValidationMode() domain.ValidationMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetValidationMode swaps the validation mode used by later updates.
func (s *Service) SetValidationMode(mode domain.ValidationMode) error {
	parsed, err := domain.ParseValidationMode(string(mode))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.mode = parsed
	s.mu.Unlock()
	return nil
}

// CreateScopeInput holds input values for create scope operations.
type CreateScopeInput struct {
	Name    string
	DocNo   string
	Content string
}

// CreateScope creates one scope document.
// Non-empty initial values are recorded as the first UPDATE_SCOPE operation so replay reproduces them.
func (s *Service) CreateScope(ctx context.Context, in CreateScopeInput) (domain.Document, error) {
	now := s.clock()
	doc, err := domain.NewDocument(s.idGen(), now)
	if err != nil {
		return domain.Document{}, err
	}

	ops := make([]domain.Operation, 0, 1)
	seed := domain.UpdateScopeInput{ID: doc.ID}
	if name := strings.TrimSpace(in.Name); name != "" {
		seed.Name = domain.StringPtr(name)
	}
	if docNo := strings.TrimSpace(in.DocNo); docNo != "" {
		seed.DocNo = domain.StringPtr(docNo)
	}
	if in.Content != "" {
		seed.Content = domain.StringPtr(in.Content)
	}
	if !seed.IsEmpty() {
		op, err := doc.ApplyUpdate(seed, now)
		if err != nil {
			return domain.Document{}, err
		}
		ops = append(ops, op)
	}

	if err := s.repo.CreateDocument(ctx, doc, ops); err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

// GetScope returns one scope document.
func (s *Service) GetScope(ctx context.Context, id string) (domain.Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Document{}, domain.ErrInvalidID
	}
	return s.repo.GetDocument(ctx, id)
}

// ListScopes returns every scope document ordered by creation time.
func (s *Service) ListScopes(ctx context.Context) ([]domain.Document, error) {
	return s.repo.ListDocuments(ctx)
}

// EnsureScope returns the first stored scope, creating an empty one when none exists.
func (s *Service) EnsureScope(ctx context.Context) (domain.Document, error) {
	docs, err := s.repo.ListDocuments(ctx)
	if err != nil {
		return domain.Document{}, err
	}
	if len(docs) > 0 {
		return docs[0], nil
	}
	return s.CreateScope(ctx, CreateScopeInput{})
}

// UpdateScope validates in, applies it at the next operation index, and persists document and operation together.
func (s *Service) UpdateScope(ctx context.Context, documentID string, in domain.UpdateScopeInput) (domain.Document, domain.Operation, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return domain.Document{}, domain.Operation{}, domain.ErrInvalidID
	}
	if err := in.Validate(s.ValidationMode()); err != nil {
		return domain.Document{}, domain.Operation{}, err
	}
	in = in.Clone()
	if strings.TrimSpace(in.ID) == "" {
		in.ID = documentID
	}

	doc, err := s.repo.GetDocument(ctx, documentID)
	if err != nil {
		return domain.Document{}, domain.Operation{}, err
	}
	op, err := doc.ApplyUpdate(in, s.clock())
	if err != nil {
		return domain.Document{}, domain.Operation{}, err
	}
	if err := s.repo.AppendOperation(ctx, doc, op); err != nil {
		return domain.Document{}, domain.Operation{}, err
	}
	return doc, op, nil
}

// ListOperations returns the operation log of one document in index order.
func (s *Service) ListOperations(ctx context.Context, documentID string) ([]domain.Operation, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, domain.ErrInvalidID
	}
	if _, err := s.repo.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return s.repo.ListOperations(ctx, documentID)
}

// ReplayResult reports one log replay.
type ReplayResult struct {
	DocumentID string            `json:"documentId"`
	State      domain.ScopeState `json:"state"`
	Revision   int               `json:"revision"`
	Hash       string            `json:"hash"`
	StoredHash string            `json:"storedHash"`
	Matches    bool              `json:"matches"`
}

// ReplayScope folds the stored log from an empty state and compares it with the stored state.
func (s *Service) ReplayScope(ctx context.Context, documentID string) (ReplayResult, error) {
	doc, err := s.GetScope(ctx, documentID)
	if err != nil {
		return ReplayResult{}, err
	}
	ops, err := s.repo.ListOperations(ctx, doc.ID)
	if err != nil {
		return ReplayResult{}, err
	}
	state, err := domain.Fold(domain.NewScopeState(), ops)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay %s: %w", doc.ID, err)
	}
	hash, err := domain.StateHash(state)
	if err != nil {
		return ReplayResult{}, err
	}
	stored, err := doc.Hash()
	if err != nil {
		return ReplayResult{}, err
	}
	return ReplayResult{
		DocumentID: doc.ID,
		State:      state,
		Revision:   len(ops),
		Hash:       hash,
		StoredHash: stored,
		Matches:    hash == stored && len(ops) == doc.Revision,
	}, nil
}

// ListArticles returns articles for one scope. A missing source or any fetch failure yields an empty list.
func (s *Service) ListArticles(ctx context.Context, scope string) []domain.Article {
	scope = strings.TrimSpace(scope)
	if s.articles == nil || scope == "" {
		return []domain.Article{}
	}
	articles := s.articles.FetchArticles(ctx, scope)
	if articles == nil {
		return []domain.Article{}
	}
	return articles
}
