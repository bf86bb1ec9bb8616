package editor

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/evanschultz/atlascope/internal/domain"
)

var (
	// ErrUnknownTab indicates a tab outside the fixed tab set.
	ErrUnknownTab = errors.New("unknown tab")
	// ErrUnknownChange indicates an unsupported staged change kind.
	ErrUnknownChange = errors.New("unknown change")
	// ErrInvalidReference indicates an empty context reference or provenance link.
	ErrInvalidReference = errors.New("invalid reference")
)

// Tab identifies one scope tab in the editor.
type Tab string

// Tab values in display order.
const (
	TabGovernance    Tab = "Governance"
	TabSupport       Tab = "Support"
	TabStability     Tab = "Stability"
	TabProtocol      Tab = "Protocol"
	TabAccessibility Tab = "Accessibility"
)

var tabs = []Tab{TabGovernance, TabSupport, TabStability, TabProtocol, TabAccessibility}

// Tabs returns every tab in display order.
func Tabs() []Tab {
	return append([]Tab(nil), tabs...)
}

// ParseTab resolves one tab name case-insensitively.
func ParseTab(raw string) (Tab, error) {
	raw = strings.TrimSpace(raw)
	for _, tab := range tabs {
		if strings.EqualFold(string(tab), raw) {
			return tab, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTab, raw)
}

// TabValues holds the status and tag selection for one tab.
type TabValues struct {
	Status domain.Status
	Tags   []domain.GlobalTag
}

func (v TabValues) clone() TabValues {
	return TabValues{Status: v.Status, Tags: append([]domain.GlobalTag{}, v.Tags...)}
}

func (v TabValues) equal(other TabValues) bool {
	return v.Status == other.Status && slices.Equal(v.Tags, other.Tags)
}

// ChangeKind identifies one stageable edit.
type ChangeKind string

// ChangeKind values.
const (
	ChangeSetStatus ChangeKind = "set_status"
	ChangeAddTag    ChangeKind = "add_tag"
	ChangeRemoveTag ChangeKind = "remove_tag"
)

// Change is one staged edit against the active tab.
type Change struct {
	Kind   ChangeKind
	Status domain.Status
	Tag    domain.GlobalTag
}

// SetStatus stages a replacement status.
func SetStatus(status domain.Status) Change {
	return Change{Kind: ChangeSetStatus, Status: status}
}

// AddTag stages one tag addition.
func AddTag(tag domain.GlobalTag) Change {
	return Change{Kind: ChangeAddTag, Tag: tag}
}

// RemoveTag stages one tag removal.
func RemoveTag(tag domain.GlobalTag) Change {
	return Change{Kind: ChangeRemoveTag, Tag: tag}
}

// Confirmer decides whether pending changes are applied before leaving a tab.
type Confirmer interface {
	ConfirmApply(from, to Tab) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(from, to Tab) bool

// ConfirmApply calls f.
func (f ConfirmFunc) ConfirmApply(from, to Tab) bool {
	return f(from, to)
}

// Session is a two-phase edit session over one scope document.
// Stage writes only the pending buffer; Commit promotes pending to applied and yields the intent to dispatch.
// A Session is not safe for concurrent use.
type Session struct {
	docID      string
	active     Tab
	name       string
	provenance []string
	applied    map[Tab]TabValues
	pending    map[Tab]TabValues
}

// NewSession seeds every tab from the document state.
func NewSession(docID string, state domain.ScopeState) *Session {
	s := &Session{docID: strings.TrimSpace(docID), active: TabGovernance}
	s.Reset(state)
	return s
}

// Reset reseeds buffers, name, and provenance links from state. The active tab is kept.
func (s *Session) Reset(state domain.ScopeState) {
	seed := TabValues{
		Status: state.PrimaryStatus(),
		Tags:   append([]domain.GlobalTag{}, state.GlobalTags...),
	}
	s.applied = make(map[Tab]TabValues, len(tabs))
	s.pending = make(map[Tab]TabValues, len(tabs))
	for _, tab := range tabs {
		s.applied[tab] = seed.clone()
		s.pending[tab] = seed.clone()
	}
	s.name = state.Name
	s.provenance = nil
	if state.Provenance != "" {
		s.provenance = []string{state.Provenance}
	}
}

// DocumentID returns the document id used as correlation id on every intent.
func (s *Session) DocumentID() string {
	return s.docID
}

// ActiveTab returns the current tab.
func (s *Session) ActiveTab() Tab {
	return s.active
}

// Applied returns the applied values of the active tab.
func (s *Session) Applied() TabValues {
	return s.applied[s.active].clone()
}

// Pending returns the pending values of the active tab.
func (s *Session) Pending() TabValues {
	return s.pending[s.active].clone()
}

// Name returns the working document name.
func (s *Session) Name() string {
	return s.name
}

// ProvenanceLinks returns the provenance links added in this session, oldest first.
func (s *Session) ProvenanceLinks() []string {
	return append([]string(nil), s.provenance...)
}

// Stage records one change in the active tab's pending buffer.
func (s *Session) Stage(change Change) error {
	values := s.pending[s.active].clone()
	switch change.Kind {
	case ChangeSetStatus:
		values.Status = change.Status
	case ChangeAddTag:
		if change.Tag == "" || slices.Contains(values.Tags, change.Tag) {
			return nil
		}
		values.Tags = append(values.Tags, change.Tag)
	case ChangeRemoveTag:
		values.Tags = slices.DeleteFunc(values.Tags, func(tag domain.GlobalTag) bool {
			return tag == change.Tag
		})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownChange, change.Kind)
	}
	s.pending[s.active] = values
	return nil
}

// HasPendingChanges reports whether the active tab's pending values differ from applied.
func (s *Session) HasPendingChanges() bool {
	return !s.pending[s.active].equal(s.applied[s.active])
}

// Commit promotes pending values to applied for every tab and returns the full replacement intent.
func (s *Session) Commit(state domain.ScopeState) domain.UpdateScopeInput {
	for _, tab := range tabs {
		s.applied[tab] = s.pending[tab].clone()
	}
	values := s.applied[s.active]
	return s.intent(state, values.Status, values.Tags, state.OriginalContextData, s.lastProvenance())
}

// Discard resets every pending buffer to its applied values.
func (s *Session) Discard() {
	for _, tab := range tabs {
		s.pending[tab] = s.applied[tab].clone()
	}
}

// SwitchTab moves to tab. When the active tab has pending changes the confirmer decides between
// commit and discard; on commit the returned intent must be dispatched and ok is true.
// The switch happens in both cases.
func (s *Session) SwitchTab(tab Tab, state domain.ScopeState, confirm Confirmer) (domain.UpdateScopeInput, bool, error) {
	if !slices.Contains(tabs, tab) {
		return domain.UpdateScopeInput{}, false, fmt.Errorf("%w: %q", ErrUnknownTab, tab)
	}
	var (
		intent domain.UpdateScopeInput
		ok     bool
	)
	if s.HasPendingChanges() {
		if confirm != nil && confirm.ConfirmApply(s.active, tab) {
			intent = s.Commit(state)
			ok = true
		}
	}
	s.Discard()
	s.active = tab
	return intent, ok, nil
}

// Rename sets the working name and returns the intent carrying it.
func (s *Session) Rename(state domain.ScopeState, name string) domain.UpdateScopeInput {
	s.name = name
	return s.incremental(state, state.OriginalContextData, s.lastProvenance())
}

// AddContextReference appends one reference to the document's context data.
func (s *Session) AddContextReference(state domain.ScopeState, ref string) (domain.UpdateScopeInput, error) {
	ref = strings.TrimSpace(ref)
	if !ValidReference(ref) {
		return domain.UpdateScopeInput{}, ErrInvalidReference
	}
	refs := append(append([]string{}, state.OriginalContextData...), ref)
	return s.incremental(state, refs, s.lastProvenance()), nil
}

// RemoveContextReference drops every occurrence of ref from the document's context data.
func (s *Session) RemoveContextReference(state domain.ScopeState, ref string) domain.UpdateScopeInput {
	refs := slices.DeleteFunc(append([]string{}, state.OriginalContextData...), func(existing string) bool {
		return existing == ref
	})
	return s.incremental(state, refs, s.lastProvenance())
}

// AddProvenance records one provenance link; the newest link becomes the document provenance.
func (s *Session) AddProvenance(state domain.ScopeState, link string) (domain.UpdateScopeInput, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return domain.UpdateScopeInput{}, ErrInvalidReference
	}
	s.provenance = append(s.provenance, link)
	return s.incremental(state, state.OriginalContextData, link), nil
}

// RemoveProvenance drops link; the previous link, or "", becomes the document provenance.
func (s *Session) RemoveProvenance(state domain.ScopeState, link string) domain.UpdateScopeInput {
	s.provenance = slices.DeleteFunc(s.provenance, func(existing string) bool {
		return existing == link
	})
	return s.incremental(state, state.OriginalContextData, s.lastProvenance())
}

// incremental builds an intent from applied tab values and the document's stored tags.
func (s *Session) incremental(state domain.ScopeState, refs []string, provenance string) domain.UpdateScopeInput {
	return s.intent(state, s.applied[s.active].Status, state.GlobalTags, refs, provenance)
}

func (s *Session) intent(state domain.ScopeState, status domain.Status, tags []domain.GlobalTag, refs []string, provenance string) domain.UpdateScopeInput {
	return domain.UpdateScopeInput{
		ID:                  s.docID,
		Name:                domain.StringPtr(s.name),
		DocNo:               domain.StringPtr(state.DocNo),
		Content:             domain.StringPtr(state.Content),
		MasterStatus:        []domain.Status{status},
		GlobalTags:          append([]domain.GlobalTag{}, tags...),
		OriginalContextData: append([]string{}, refs...),
		Provenance:          domain.StringPtr(provenance),
	}
}

func (s *Session) lastProvenance() string {
	if len(s.provenance) == 0 {
		return ""
	}
	return s.provenance[len(s.provenance)-1]
}
