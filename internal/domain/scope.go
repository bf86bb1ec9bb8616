package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Status identifies one master-status value of a scope document.
type Status string

// Status values.
const (
	StatusPlaceholder Status = "PLACEHOLDER"
	StatusProvisional Status = "PROVISIONAL"
	StatusApproved    Status = "APPROVED"
	StatusDeferred    Status = "DEFERRED"
	StatusArchived    Status = "ARCHIVED"
)

// validStatuses stores all supported status values in display order.
var validStatuses = []Status{
	StatusPlaceholder,
	StatusProvisional,
	StatusApproved,
	StatusDeferred,
	StatusArchived,
}

// GlobalTag identifies one classification label from the closed tag vocabulary.
type GlobalTag string

// GlobalTag values.
const (
	TagRecursiveImprovement  GlobalTag = "RECURSIVE_IMPROVEMENT"
	TagScopeAdvisor          GlobalTag = "SCOPE_ADVISOR"
	TagDAOToolkit            GlobalTag = "DAO_TOOLKIT"
	TagPurposeSystem         GlobalTag = "PURPOSE_SYSTEM"
	TagMLLowPriority         GlobalTag = "ML_-_LOW_PRIORITY"
	TagExternalReference     GlobalTag = "EXTERNAL_REFERENCE"
	TagMLDefer               GlobalTag = "ML_-_DEFER"
	TagSubDAOIncubation      GlobalTag = "SUBDAO_INCUBATION"
	TagV1MIP                 GlobalTag = "V1_-_MIP"
	TagMLHighPriority        GlobalTag = "ML_-__HIGH_PRIORITY"
	TagEcosystemIntelligence GlobalTag = "ECOSYSTEM_INTELLIGENCE"
	TagLegacyTermUseApproved GlobalTag = "LEGACY_TERM_-_USE_APPROVED"
	TagCAIS                  GlobalTag = "CAIS"
	TagInternalReference     GlobalTag = "INTERNAL_REFERENCE"
	TagFacilitatorDAO        GlobalTag = "FACILITATORDAO"
	TagMLMedPriority         GlobalTag = "ML_-__MED_PRIORITY"
	TagAVC                   GlobalTag = "AVC"
	TagP0HubEntryNeeded      GlobalTag = "P0_HUB_ENTRY_NEEDED"
	TagAnonWorkforce         GlobalTag = "ANON_WORKFORCE"
	TagNewChain              GlobalTag = "NEWCHAIN"
	TagMLSupportDocsNeeded   GlobalTag = "ML_-_SUPPORT._DOCS_NEEDED"
	TagSubDAORewards         GlobalTag = "SUBDAO_REWARDS"
	TagTwoStageBridge        GlobalTag = "TWO-STAGE_BRIDGE"
)

// validGlobalTags stores the tag vocabulary in picker order.
var validGlobalTags = []GlobalTag{
	TagRecursiveImprovement,
	TagScopeAdvisor,
	TagDAOToolkit,
	TagPurposeSystem,
	TagMLLowPriority,
	TagExternalReference,
	TagMLDefer,
	TagSubDAOIncubation,
	TagV1MIP,
	TagMLHighPriority,
	TagEcosystemIntelligence,
	TagLegacyTermUseApproved,
	TagCAIS,
	TagInternalReference,
	TagFacilitatorDAO,
	TagMLMedPriority,
	TagAVC,
	TagP0HubEntryNeeded,
	TagAnonWorkforce,
	TagNewChain,
	TagMLSupportDocsNeeded,
	TagSubDAORewards,
	TagTwoStageBridge,
}

// Statuses returns all supported status values in display order.
func Statuses() []Status {
	return append([]Status(nil), validStatuses...)
}

// GlobalTags returns the full tag vocabulary in picker order.
func GlobalTags() []GlobalTag {
	return append([]GlobalTag(nil), validGlobalTags...)
}

// IsValidStatus reports whether a status belongs to the status enum.
func IsValidStatus(status Status) bool {
	return slices.Contains(validStatuses, status)
}

// IsValidGlobalTag reports whether a tag belongs to the tag vocabulary.
func IsValidGlobalTag(tag GlobalTag) bool {
	return slices.Contains(validGlobalTags, tag)
}

// ParseStatus validates one raw status value. Matching is exact after trimming whitespace.
func ParseStatus(raw string) (Status, error) {
	status := Status(strings.TrimSpace(raw))
	if !IsValidStatus(status) {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return status, nil
}

// ParseGlobalTag validates one raw tag value. Matching is exact after trimming whitespace.
func ParseGlobalTag(raw string) (GlobalTag, error) {
	tag := GlobalTag(strings.TrimSpace(raw))
	if !IsValidGlobalTag(tag) {
		return "", fmt.Errorf("%w: %q", ErrInvalidGlobalTag, raw)
	}
	return tag, nil
}

// ScopeState is the global state of one scope document.
type ScopeState struct {
	Name                string      `json:"name"`
	DocNo               string      `json:"docNo"`
	Content             string      `json:"content"`
	MasterStatus        []Status    `json:"masterStatus"`
	GlobalTags          []GlobalTag `json:"globalTags"`
	OriginalContextData []string    `json:"originalContextData"`
	Provenance          string      `json:"provenance"`
}

// NewScopeState returns the empty initial state for a new scope document.
func NewScopeState() ScopeState {
	return ScopeState{
		MasterStatus:        []Status{},
		GlobalTags:          []GlobalTag{},
		OriginalContextData: []string{},
	}
}

// Clone returns a deep copy so callers never share slice backing arrays with stored state.
func (s ScopeState) Clone() ScopeState {
	out := s
	out.MasterStatus = cloneSlice(s.MasterStatus)
	out.GlobalTags = cloneSlice(s.GlobalTags)
	out.OriginalContextData = cloneSlice(s.OriginalContextData)
	return out
}

// Equal reports whether two states hold the same values. A nil list equals an empty one.
func (s ScopeState) Equal(other ScopeState) bool {
	return s.Name == other.Name &&
		s.DocNo == other.DocNo &&
		s.Content == other.Content &&
		s.Provenance == other.Provenance &&
		slices.Equal(s.MasterStatus, other.MasterStatus) &&
		slices.Equal(s.GlobalTags, other.GlobalTags) &&
		slices.Equal(s.OriginalContextData, other.OriginalContextData)
}

// PrimaryStatus returns the first master status, or PLACEHOLDER when none is set.
func (s ScopeState) PrimaryStatus() Status {
	if len(s.MasterStatus) == 0 || s.MasterStatus[0] == "" {
		return StatusPlaceholder
	}
	return s.MasterStatus[0]
}

// cloneSlice copies one slice and keeps nil-vs-empty distinction.
func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
