package tui

import (
	"fmt"
	"image/color"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/evanschultz/atlascope/internal/domain"
	"github.com/evanschultz/atlascope/internal/editor"
)

// View renders the current model state.
func (m Model) View() tea.View {
	v := tea.NewView(m.renderScreen())
	v.AltScreen = true
	return v
}

// renderScreen renders the full screen as one string.
func (m Model) renderScreen() string {
	if m.err != nil {
		return "error: " + m.err.Error() + "\n\npress r to retry • q quit\n"
	}
	if !m.ready || m.session == nil {
		return "loading..."
	}

	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	hintStyle := lipgloss.NewStyle().Foreground(muted)

	state := m.doc.State
	name := strings.TrimSpace(state.Name)
	if name == "" {
		name = "(unnamed scope)"
	}
	header := titleStyle.Render("atlascope") + "  " + name
	if state.DocNo != "" {
		header += statusStyle.Render("  " + state.DocNo)
	}
	header += statusStyle.Render(fmt.Sprintf("  rev %d", m.doc.Revision))
	if m.session.HasPendingChanges() {
		header += statusStyle.Render("  [pending]")
	}

	bodyWidth := max(24, m.width-2)
	sections := []string{
		header,
		m.renderTabs(accent, dim),
		"",
		hintStyle.Render(truncate(editor.Description(m.session.ActiveTab()), bodyWidth*3)),
		"",
	}
	sections = append(sections, m.renderSelection(sectionStyle, hintStyle)...)
	sections = append(sections, "")
	sections = append(sections, m.renderReferences(sectionStyle, hintStyle, bodyWidth)...)
	sections = append(sections, "")
	sections = append(sections, m.renderArticles(sectionStyle, hintStyle, bodyWidth)...)
	if content := m.markdown.render(state.Content, bodyWidth); content != "" {
		sections = append(sections, "", sectionStyle.Render("Content"), content)
	}
	if m.mode != modeNone && m.mode != modeConfirmSwitch {
		sections = append(sections, "", m.input.View())
	}
	if strings.TrimSpace(m.status) != "" && m.status != "ready" {
		sections = append(sections, "", statusStyle.Render(m.status))
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))
	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}
	fullContent := content + "\n" + helpLine
	if overlay := m.renderConfirmOverlay(accent, muted, m.width-8); overlay != "" {
		overlayHeight := lipgloss.Height(fullContent)
		if m.height > 0 {
			overlayHeight = m.height
		}
		fullContent = overlayOnContent(fullContent, overlay, max(1, m.width), max(1, overlayHeight))
	}
	return fullContent
}

// renderTabs renders the tab bar with the active tab bracketed.
func (m Model) renderTabs(accent, dim color.Color) string {
	active := lipgloss.NewStyle().Bold(true).Foreground(accent)
	inactive := lipgloss.NewStyle().Foreground(dim)
	parts := make([]string, 0, len(editor.Tabs()))
	for _, tab := range editor.Tabs() {
		if tab == m.session.ActiveTab() {
			parts = append(parts, active.Render("["+string(tab)+"]"))
			continue
		}
		parts = append(parts, inactive.Render(string(tab)))
	}
	return strings.Join(parts, "  ")
}

// renderSelection renders applied and pending status and tags for the active tab.
func (m Model) renderSelection(sectionStyle, hintStyle lipgloss.Style) []string {
	applied := m.session.Applied()
	pending := m.session.Pending()
	status := string(applied.Status)
	if pending.Status != applied.Status {
		status += " → " + string(pending.Status)
	}
	lines := []string{
		sectionStyle.Render("Status"),
		status,
		"",
		sectionStyle.Render("Tags"),
	}
	if len(pending.Tags) == 0 {
		lines = append(lines, hintStyle.Render("(none)"))
	} else {
		lines = append(lines, joinTags(pending.Tags))
	}
	lines = append(lines, hintStyle.Render("candidate: "+string(m.currentTagCandidate())))
	return lines
}

// renderReferences renders context references with the selected row marked, then provenance.
func (m Model) renderReferences(sectionStyle, hintStyle lipgloss.Style, width int) []string {
	selected := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	lines := []string{sectionStyle.Render("Context References")}
	refs := m.doc.State.OriginalContextData
	if len(refs) == 0 {
		lines = append(lines, hintStyle.Render("(none)"))
	}
	for idx, ref := range refs {
		row := truncate(ref, width-4)
		if link := editor.ReferenceURL(ref); link != "#" && link != ref {
			row = truncate(ref+"  "+link, width-4)
		}
		if idx == clamp(m.refIndex, 0, len(refs)-1) {
			lines = append(lines, selected.Render("› "+row))
			continue
		}
		lines = append(lines, "  "+row)
	}
	provenance := m.doc.State.Provenance
	if provenance == "" {
		provenance = "(none)"
	}
	lines = append(lines, "", sectionStyle.Render("Provenance"), truncate(provenance, width))
	return lines
}

// renderArticles renders the article index for the active tab.
func (m Model) renderArticles(sectionStyle, hintStyle lipgloss.Style, width int) []string {
	lines := []string{sectionStyle.Render("Articles")}
	articles := m.visibleArticles()
	if len(articles) == 0 {
		return append(lines, hintStyle.Render("(no articles)"))
	}
	for _, article := range articles {
		lines = append(lines, truncate(article.ID+"  "+article.Title, width))
	}
	return lines
}

// renderConfirmOverlay renders the apply-before-switch prompt.
func (m Model) renderConfirmOverlay(accent, muted color.Color, maxWidth int) string {
	if m.mode != modeConfirmSwitch {
		return ""
	}
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1)
	if maxWidth > 0 {
		style = style.Width(clamp(maxWidth, 36, 88))
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	hintStyle := lipgloss.NewStyle().Foreground(muted)
	applyStyle := lipgloss.NewStyle().Foreground(muted)
	discardStyle := lipgloss.NewStyle().Foreground(muted)
	if m.confirmChoice == 0 {
		applyStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	} else {
		discardStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	}
	lines := []string{
		titleStyle.Render("Unapplied Changes"),
		fmt.Sprintf("%s → %s", m.session.ActiveTab(), m.pendingTab),
		applyStyle.Render("[apply]") + "  " + discardStyle.Render("[discard]"),
		hintStyle.Render("enter choose • h/l switch • y apply • n discard"),
	}
	return style.Render(strings.Join(lines, "\n"))
}

// joinTags renders tags as a comma-separated list.
func joinTags(tags []domain.GlobalTag) string {
	parts := make([]string, 0, len(tags))
	for _, tag := range tags {
		parts = append(parts, string(tag))
	}
	return strings.Join(parts, ", ")
}

// fitLines fits lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		padding := make([]string, maxLines-len(lines))
		lines = append(lines, padding...)
	}
	return strings.Join(lines, "\n")
}

// overlayOnContent overlays on content.
func overlayOnContent(base, overlay string, width, height int) string {
	if width <= 0 || height <= 0 {
		if strings.TrimSpace(overlay) == "" {
			return base
		}
		return overlay + "\n\n" + base
	}

	base = fitLines(base, height)
	canvas := lipgloss.NewCanvas(width, height)
	baseLayer := lipgloss.NewLayer(base).X(0).Y(0).Z(0)
	centeredOverlay := lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, overlay)
	overlayLayer := lipgloss.NewLayer(centeredOverlay).X(0).Y(0).Z(10)

	canvas.Compose(baseLayer)
	canvas.Compose(overlayLayer)
	return canvas.Render()
}

// truncate shortens s to limit runes with a trailing ellipsis.
func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	if limit <= 1 {
		return string(rs[:limit])
	}
	return string(rs[:limit-1]) + "…"
}
