package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/evanschultz/atlascope/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "atlascope.snapshot.v1"

// Snapshot represents snapshot data used by this package.
type Snapshot struct {
	Version    string             `json:"version"`
	ExportedAt time.Time          `json:"exported_at"`
	Documents  []SnapshotDocument `json:"documents"`
}

// SnapshotDocument is one document with its complete operation log.
type SnapshotDocument struct {
	ID         string             `json:"id"`
	State      domain.ScopeState  `json:"state"`
	Revision   int                `json:"revision"`
	Hash       string             `json:"hash"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
	Operations []domain.Operation `json:"operations"`
}

// ExportSnapshot exports every document and its log.
func (s *Service) ExportSnapshot(ctx context.Context) (Snapshot, error) {
	docs, err := s.repo.ListDocuments(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Documents:  make([]SnapshotDocument, 0, len(docs)),
	}
	for _, doc := range docs {
		ops, err := s.repo.ListOperations(ctx, doc.ID)
		if err != nil {
			return Snapshot{}, err
		}
		hash, err := doc.Hash()
		if err != nil {
			return Snapshot{}, err
		}
		snap.Documents = append(snap.Documents, SnapshotDocument{
			ID:         doc.ID,
			State:      doc.State,
			Revision:   doc.Revision,
			Hash:       hash,
			CreatedAt:  doc.CreatedAt.UTC(),
			UpdatedAt:  doc.UpdatedAt.UTC(),
			Operations: ops,
		})
	}
	snap.sort()
	return snap, nil
}

// ImportSnapshot re-folds every document log and replaces stored documents with the result.
// Any index gap, hash mismatch, state mismatch, or input rejected by the active validation mode
// fails the whole snapshot, and all documents are written in one repository transaction.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	snap.sort()

	mode := s.ValidationMode()
	logs := make([]domain.DocumentLog, 0, len(snap.Documents))
	for _, sd := range snap.Documents {
		doc, ops, err := sd.refold(mode)
		if err != nil {
			return err
		}
		logs = append(logs, domain.DocumentLog{Document: doc, Operations: ops})
	}
	return s.repo.ReplaceDocuments(ctx, logs)
}

// Validate validates the requested operation.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("%w: unsupported snapshot version: %q", ErrInvalidSnapshot, s.Version)
	}
	ids := map[string]struct{}{}
	for i, d := range s.Documents {
		if strings.TrimSpace(d.ID) == "" {
			return fmt.Errorf("%w: documents[%d].id is required", ErrInvalidSnapshot, i)
		}
		if d.CreatedAt.IsZero() || d.UpdatedAt.IsZero() {
			return fmt.Errorf("%w: documents[%d] timestamps are required", ErrInvalidSnapshot, i)
		}
		if d.Revision != len(d.Operations) {
			return fmt.Errorf("%w: documents[%d] revision %d does not match %d operations", ErrInvalidSnapshot, i, d.Revision, len(d.Operations))
		}
		if _, exists := ids[d.ID]; exists {
			return fmt.Errorf("%w: duplicate document id: %q", ErrInvalidSnapshot, d.ID)
		}
		ids[d.ID] = struct{}{}
	}
	return nil
}

// refold rebuilds one document from its log, validating each input under mode,
// and checks every recorded hash plus the recorded state.
func (d SnapshotDocument) refold(mode domain.ValidationMode) (domain.Document, []domain.Operation, error) {
	doc, err := domain.NewDocument(d.ID, d.CreatedAt)
	if err != nil {
		return domain.Document{}, nil, err
	}
	ops := make([]domain.Operation, 0, len(d.Operations))
	for i, op := range d.Operations {
		if op.Index != i {
			return domain.Document{}, nil, fmt.Errorf("%w: document %q: %w: expected %d got %d", ErrInvalidSnapshot, d.ID, domain.ErrOperationIndexGap, i, op.Index)
		}
		if err := op.Input.Validate(mode); err != nil {
			return domain.Document{}, nil, fmt.Errorf("%w: document %q operation %d: %w", ErrInvalidSnapshot, d.ID, i, err)
		}
		applied, err := doc.Apply(op)
		if err != nil {
			return domain.Document{}, nil, fmt.Errorf("%w: document %q: %w", ErrInvalidSnapshot, d.ID, err)
		}
		if op.Hash != "" && op.Hash != applied.Hash {
			return domain.Document{}, nil, fmt.Errorf("%w: document %q operation %d hash mismatch", ErrInvalidSnapshot, d.ID, i)
		}
		ops = append(ops, applied)
	}
	hash, err := doc.Hash()
	if err != nil {
		return domain.Document{}, nil, err
	}
	if d.Hash != "" && d.Hash != hash {
		return domain.Document{}, nil, fmt.Errorf("%w: document %q state hash mismatch", ErrInvalidSnapshot, d.ID)
	}
	if !doc.State.Equal(d.State) {
		return domain.Document{}, nil, fmt.Errorf("%w: document %q state does not match its operation log", ErrInvalidSnapshot, d.ID)
	}
	doc.UpdatedAt = d.UpdatedAt.UTC()
	return doc, ops, nil
}

// sort orders documents by creation time then id.
func (s *Snapshot) sort() {
	sort.SliceStable(s.Documents, func(i, j int) bool {
		a, b := s.Documents[i], s.Documents[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
