package editor

import (
	"strings"

	"github.com/evanschultz/atlascope/internal/domain"
)

const (
	phidPrefix        = "phd://"
	phidAddressPrefix = "phd:eip155:"
	addressExplorer   = "https://etherscan.io/address/"
)

// ValidReference reports whether a context reference can be stored.
// PHIDs and plain document names are both accepted; only blank input is rejected.
func ValidReference(ref string) bool {
	return strings.TrimSpace(ref) != ""
}

// ReferenceURL resolves a context reference to a browsable link, or "#" when none exists.
func ReferenceURL(ref string) string {
	switch {
	case strings.HasPrefix(ref, phidPrefix):
		return ref
	case strings.HasPrefix(ref, phidAddressPrefix):
		parts := strings.Split(ref, ":")
		if len(parts) < 4 || parts[3] == "" {
			return "#"
		}
		return addressExplorer + parts[3]
	default:
		return "#"
	}
}

// governanceArticles is the built-in article index shown for the Governance tab.
var governanceArticles = []domain.Article{
	{ID: "A.1.1", Title: "Spirit of the Atlas | ARTICLE", Scope: string(TabGovernance)},
	{ID: "A.1.2", Title: "Atlas Documents | ARTICLE", Scope: string(TabGovernance)},
	{ID: "A.1.3", Title: "Governance Accessibility | ARTICLE", Scope: string(TabGovernance)},
	{ID: "A.1.4", Title: "Alignment Conservers | ARTICLE", Scope: string(TabGovernance)},
	{ID: "A.1.5", Title: "Aligned Delegates | ARTICLE", Scope: string(TabGovernance)},
	{ID: "A.1.6", Title: "Facilitators | ARTICLE", Scope: string(TabGovernance)},
	{ID: "A.1.7", Title: "Professional Ecosystem Actors | ARTICLE", Scope: string(TabGovernance)},
	{ID: "A.1.8", Title: "Emergency Response System | ARTICLE", Scope: string(TabGovernance)},
	{ID: "A.1.9", Title: "Sky Core Governance Security | ARTICLE", Scope: string(TabGovernance)},
	{ID: "A.1.10", Title: "Weekly Governance Cycle | ARTICLE", Scope: string(TabGovernance)},
	{ID: "A.1.11", Title: "Monthly Governance Cycle | ARTICLE", Scope: string(TabGovernance)},
	{ID: "A.1.12", Title: "Updating Active Data | ARTICLE", Scope: string(TabGovernance)},
	{ID: "A.1.13", Title: "Scope Bootstrapping | ARTICLE", Scope: string(TabGovernance)},
}

const placeholderDescription = "No description yet. It will be filled from live scope data."

var tabDescriptions = map[Tab]string{
	TabGovernance: "The Governance Scope regulates the governance processes and balance of power of the Sky Ecosystem. " +
		"The Governance Scope must ensure that the resilient equilibrium of Sky Governance remains protected " +
		"against all potential direct and indirect threats.",
}

// Description returns the summary text for one tab.
func Description(tab Tab) string {
	if text, ok := tabDescriptions[tab]; ok {
		return text
	}
	return placeholderDescription
}

// DefaultArticles returns the built-in article index for one tab. Only Governance has entries.
func DefaultArticles(tab Tab) []domain.Article {
	if tab != TabGovernance {
		return []domain.Article{}
	}
	return append([]domain.Article(nil), governanceArticles...)
}
