package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OperationType identifies one accepted document operation.
type OperationType string

// OperationUpdateScope is the only operation a scope document accepts.
const OperationUpdateScope OperationType = "UPDATE_SCOPE"

// Operation is one entry in a document's ordered operation log.
type Operation struct {
	Index     int              `json:"index"`
	Type      OperationType    `json:"type"`
	Input     UpdateScopeInput `json:"input"`
	Hash      string           `json:"hash"`
	Timestamp time.Time        `json:"timestamp"`
}

// Document is one scope document with its folded state.
type Document struct {
	ID        string     `json:"id"`
	State     ScopeState `json:"state"`
	Revision  int        `json:"revision"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// DocumentLog pairs a document with its complete operation log.
type DocumentLog struct {
	Document   Document
	Operations []Operation
}

// NewDocument constructs an empty scope document at revision zero.
func NewDocument(id string, now time.Time) (Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Document{}, ErrInvalidID
	}
	return Document{
		ID:        id,
		State:     NewScopeState(),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// Hash returns the current state hash.
func (d Document) Hash() (string, error) {
	return StateHash(d.State)
}

// Apply folds one logged operation into the document.
// The operation index must equal the current revision. The returned copy carries the resulting state hash.
func (d *Document) Apply(op Operation) (Operation, error) {
	if op.Type != OperationUpdateScope {
		return Operation{}, fmt.Errorf("%w: %q", ErrUnknownOperation, op.Type)
	}
	if op.Index != d.Revision {
		return Operation{}, fmt.Errorf("%w: expected %d got %d", ErrInvalidOperationIndex, d.Revision, op.Index)
	}
	next := d.State.Clone()
	ApplyUpdateScope(&next, op.Input)
	hash, err := StateHash(next)
	if err != nil {
		return Operation{}, err
	}

	d.State = next
	d.Revision++
	if !op.Timestamp.IsZero() {
		d.UpdatedAt = op.Timestamp.UTC()
	}
	op.Input = op.Input.Clone()
	op.Hash = hash
	return op, nil
}

// ApplyUpdate appends a new UPDATE_SCOPE operation at the next index.
func (d *Document) ApplyUpdate(in UpdateScopeInput, now time.Time) (Operation, error) {
	return d.Apply(Operation{
		Index:     d.Revision,
		Type:      OperationUpdateScope,
		Input:     in,
		Timestamp: now.UTC(),
	})
}

// Fold rebuilds state by applying ops in index order starting at zero.
func Fold(initial ScopeState, ops []Operation) (ScopeState, error) {
	doc := Document{State: initial.Clone()}
	for i, op := range ops {
		if op.Index != i {
			return ScopeState{}, fmt.Errorf("%w: expected %d got %d", ErrOperationIndexGap, i, op.Index)
		}
		if _, err := doc.Apply(op); err != nil {
			return ScopeState{}, err
		}
	}
	return doc.State, nil
}

// StateHash returns a stable sha256 hex digest of the JSON-encoded state.
func StateHash(state ScopeState) (string, error) {
	encoded, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("marshal scope state: %w", err)
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}
