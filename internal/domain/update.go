package domain

import (
	"fmt"
	"strings"
)

// UpdateScopeInput is the UPDATE_SCOPE operation payload.
// A nil pointer or nil slice marks the field as absent; an empty string or empty slice is present.
type UpdateScopeInput struct {
	ID                  string      `json:"id"`
	Name                *string     `json:"name,omitempty"`
	DocNo               *string     `json:"docNo,omitempty"`
	Content             *string     `json:"content,omitempty"`
	MasterStatus        []Status    `json:"masterStatus"`
	GlobalTags          []GlobalTag `json:"globalTags"`
	OriginalContextData []string    `json:"originalContextData"`
	Provenance          *string     `json:"provenance,omitempty"`
}

// ApplyUpdateScope merges one update into state in place.
// Every present field replaces the stored value wholesale; sequences are copied, never appended to.
// Status and tag values are not checked against their vocabularies here.
func ApplyUpdateScope(state *ScopeState, in UpdateScopeInput) {
	if state == nil {
		return
	}
	if in.Name != nil {
		state.Name = *in.Name
	}
	if in.DocNo != nil {
		state.DocNo = *in.DocNo
	}
	if in.Content != nil {
		state.Content = *in.Content
	}
	if in.MasterStatus != nil {
		state.MasterStatus = cloneSlice(in.MasterStatus)
	}
	if in.GlobalTags != nil {
		state.GlobalTags = cloneSlice(in.GlobalTags)
	}
	if in.OriginalContextData != nil {
		state.OriginalContextData = cloneSlice(in.OriginalContextData)
	}
	if in.Provenance != nil {
		state.Provenance = *in.Provenance
	}
}

// Clone returns a deep copy of the input.
func (in UpdateScopeInput) Clone() UpdateScopeInput {
	out := in
	out.Name = clonePtr(in.Name)
	out.DocNo = clonePtr(in.DocNo)
	out.Content = clonePtr(in.Content)
	out.Provenance = clonePtr(in.Provenance)
	out.MasterStatus = cloneSlice(in.MasterStatus)
	out.GlobalTags = cloneSlice(in.GlobalTags)
	out.OriginalContextData = cloneSlice(in.OriginalContextData)
	return out
}

// IsEmpty reports whether the input carries no field besides the correlation id.
func (in UpdateScopeInput) IsEmpty() bool {
	return in.Name == nil &&
		in.DocNo == nil &&
		in.Content == nil &&
		in.Provenance == nil &&
		in.MasterStatus == nil &&
		in.GlobalTags == nil &&
		in.OriginalContextData == nil
}

// ValidationMode controls how status and tag values are checked before reduction.
type ValidationMode string

// ValidationMode values.
const (
	ValidationLenient ValidationMode = "lenient"
	ValidationStrict  ValidationMode = "strict"
)

// ParseValidationMode normalizes one configured validation mode. Empty input means lenient.
func ParseValidationMode(raw string) (ValidationMode, error) {
	switch mode := ValidationMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case "":
		return ValidationLenient, nil
	case ValidationLenient, ValidationStrict:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidValidationMode, raw)
	}
}

// Validate checks status and tag membership when mode is strict. Lenient mode accepts any value.
func (in UpdateScopeInput) Validate(mode ValidationMode) error {
	if mode != ValidationStrict {
		return nil
	}
	for _, status := range in.MasterStatus {
		if !IsValidStatus(status) {
			return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
		}
	}
	for _, tag := range in.GlobalTags {
		if !IsValidGlobalTag(tag) {
			return fmt.Errorf("%w: %q", ErrInvalidGlobalTag, tag)
		}
	}
	return nil
}

// StringPtr returns a pointer to a copy of value.
func StringPtr(value string) *string {
	return &value
}

// clonePtr copies one optional value.
func clonePtr[T any](in *T) *T {
	if in == nil {
		return nil
	}
	out := *in
	return &out
}
