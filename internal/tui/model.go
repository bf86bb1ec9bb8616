package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/atotto/clipboard"
	"github.com/evanschultz/atlascope/internal/domain"
	"github.com/evanschultz/atlascope/internal/editor"
)

// Service represents service data used by this package.
type Service interface {
	GetScope(context.Context, string) (domain.Document, error)
	EnsureScope(context.Context) (domain.Document, error)
	UpdateScope(context.Context, string, domain.UpdateScopeInput) (domain.Document, domain.Operation, error)
	ListArticles(context.Context, string) []domain.Article
}

// inputMode represents a selectable mode.
type inputMode int

// modeNone and related constants define package defaults.
const (
	modeNone inputMode = iota
	modeConfirmSwitch
	modeAddReference
	modeAddProvenance
	modeRename
)

// Model represents model data used by this package.
type Model struct {
	svc Service

	ready  bool
	width  int
	height int
	err    error

	status string

	help help.Model
	keys keyMap

	docID    string
	doc      domain.Document
	session  *editor.Session
	articles []domain.Article

	mode          inputMode
	input         textinput.Model
	pendingTab    editor.Tab
	confirmChoice int

	tagCandidate int
	refIndex     int

	markdown *markdownRenderer
	copyText func(string) error
}

// loadedMsg carries one freshly loaded document.
type loadedMsg struct {
	doc domain.Document
	err error
}

// articlesMsg carries the article list fetched for one tab.
type articlesMsg struct {
	tab      editor.Tab
	articles []domain.Article
}

// savedMsg carries the result of one dispatched UPDATE_SCOPE intent.
type savedMsg struct {
	doc    domain.Document
	status string
	err    error
}

// NewModel constructs a new value for this package.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		svc:      svc,
		status:   "loading...",
		help:     h,
		keys:     newKeyMap(),
		input:    newModalInput("", "", "", 512),
		markdown: &markdownRenderer{style: defaultMarkdownStyle},
		copyText: clipboard.WriteAll,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init handles init.
func (m Model) Init() tea.Cmd {
	return m.loadData
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.doc = msg.doc
		m.docID = msg.doc.ID
		if m.session == nil || m.session.DocumentID() != msg.doc.ID {
			m.session = editor.NewSession(msg.doc.ID, msg.doc.State)
		} else {
			m.session.Reset(msg.doc.State)
		}
		m.refIndex = clamp(m.refIndex, 0, len(m.doc.State.OriginalContextData)-1)
		if m.status == "" || m.status == "loading..." || m.status == "reloading..." {
			m.status = "ready"
		}
		return m, m.loadArticles(m.session.ActiveTab())

	case articlesMsg:
		if m.session == nil || msg.tab != m.session.ActiveTab() {
			return m, nil
		}
		m.articles = msg.articles
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.status = "save failed: " + msg.err.Error()
			return m, m.loadData
		}
		m.doc = msg.doc
		m.refIndex = clamp(m.refIndex, 0, len(m.doc.State.OriginalContextData)-1)
		m.status = msg.status
		return m, nil

	case tea.KeyPressMsg:
		if m.mode != modeNone {
			return m.handleInputModeKey(msg)
		}
		return m.handleNormalModeKey(msg)

	default:
		return m, nil
	}
}

// loadData loads the requested document, or the first stored one when none was requested.
func (m Model) loadData() tea.Msg {
	ctx := context.Background()
	if m.docID == "" {
		doc, err := m.svc.EnsureScope(ctx)
		return loadedMsg{doc: doc, err: err}
	}
	doc, err := m.svc.GetScope(ctx, m.docID)
	return loadedMsg{doc: doc, err: err}
}

// loadArticles fetches live articles for tab. The service already degrades failures to an empty list.
func (m Model) loadArticles(tab editor.Tab) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		return articlesMsg{tab: tab, articles: svc.ListArticles(context.Background(), string(tab))}
	}
}

// dispatch sends one intent to the service.
func (m Model) dispatch(in domain.UpdateScopeInput, status string) tea.Cmd {
	svc := m.svc
	docID := m.doc.ID
	return func() tea.Msg {
		doc, _, err := svc.UpdateScope(context.Background(), docID, in)
		if err != nil {
			return savedMsg{err: err}
		}
		return savedMsg{doc: doc, status: status}
	}
}

// newModalInput constructs modal input.
func newModalInput(prompt, placeholder, value string, limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = prompt
	in.Placeholder = placeholder
	in.CharLimit = limit
	if value != "" {
		in.SetValue(value)
	}
	return in
}

// startInput opens one single-line prompt.
func (m *Model) startInput(mode inputMode, prompt, placeholder, value string) tea.Cmd {
	m.mode = mode
	m.input = newModalInput(prompt, placeholder, value, 512)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.quit) {
		return m, tea.Quit
	}
	if key.Matches(msg, m.keys.toggleHelp) {
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	if key.Matches(msg, m.keys.reload) {
		m.status = "reloading..."
		return m, m.loadData
	}
	if m.session == nil {
		return m, nil
	}
	state := m.doc.State

	switch {
	case key.Matches(msg, m.keys.nextTab):
		return m.switchTab(1)
	case key.Matches(msg, m.keys.prevTab):
		return m.switchTab(-1)
	case key.Matches(msg, m.keys.nextStatus):
		return m.cycleStatus(1)
	case key.Matches(msg, m.keys.prevStatus):
		return m.cycleStatus(-1)
	case key.Matches(msg, m.keys.nextTag):
		m.tagCandidate = wrapIndex(m.tagCandidate, 1, len(domain.GlobalTags()))
		m.status = "tag candidate: " + string(m.currentTagCandidate())
		return m, nil
	case key.Matches(msg, m.keys.addTag):
		tag := m.currentTagCandidate()
		_ = m.session.Stage(editor.AddTag(tag))
		m.status = "staged tag " + string(tag)
		return m, nil
	case key.Matches(msg, m.keys.removeTag):
		tags := m.session.Pending().Tags
		if len(tags) == 0 {
			m.status = "no tags to remove"
			return m, nil
		}
		last := tags[len(tags)-1]
		_ = m.session.Stage(editor.RemoveTag(last))
		m.status = "unstaged tag " + string(last)
		return m, nil
	case key.Matches(msg, m.keys.apply):
		if !m.session.HasPendingChanges() {
			m.status = "no pending changes"
			return m, nil
		}
		intent := m.session.Commit(state)
		m.status = "applying..."
		return m, m.dispatch(intent, "applied "+string(m.session.ActiveTab()))
	case key.Matches(msg, m.keys.discard):
		if m.help.ShowAll {
			m.help.ShowAll = false
			return m, nil
		}
		m.session.Discard()
		m.status = "changes discarded"
		return m, nil
	case key.Matches(msg, m.keys.refDown):
		m.refIndex = clamp(m.refIndex+1, 0, len(state.OriginalContextData)-1)
		return m, nil
	case key.Matches(msg, m.keys.refUp):
		m.refIndex = clamp(m.refIndex-1, 0, len(state.OriginalContextData)-1)
		return m, nil
	case key.Matches(msg, m.keys.addRef):
		m.status = "add context reference"
		return m, m.startInput(modeAddReference, "ref: ", "phd:…", "")
	case key.Matches(msg, m.keys.removeRef):
		ref, ok := m.selectedReference()
		if !ok {
			m.status = "no reference selected"
			return m, nil
		}
		intent := m.session.RemoveContextReference(state, ref)
		return m, m.dispatch(intent, "removed reference "+ref)
	case key.Matches(msg, m.keys.copyRef):
		ref, ok := m.selectedReference()
		if !ok {
			m.status = "no reference selected"
			return m, nil
		}
		if err := m.copyText(ref); err != nil {
			m.status = "copy failed: " + err.Error()
			return m, nil
		}
		m.status = "copied " + ref
		return m, nil
	case key.Matches(msg, m.keys.addProvenance):
		m.status = "add provenance link"
		return m, m.startInput(modeAddProvenance, "link: ", "https://…", "")
	case key.Matches(msg, m.keys.dropProvenance):
		links := m.session.ProvenanceLinks()
		if len(links) == 0 {
			m.status = "no provenance links"
			return m, nil
		}
		link := links[len(links)-1]
		intent := m.session.RemoveProvenance(state, link)
		return m, m.dispatch(intent, "removed provenance "+link)
	case key.Matches(msg, m.keys.rename):
		m.status = "rename scope"
		return m, m.startInput(modeRename, "name: ", "scope name", m.session.Name())
	}
	return m, nil
}

func (m Model) handleInputModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if m.mode == modeConfirmSwitch {
		switch msg.String() {
		case "h", "left", "l", "right":
			m.confirmChoice = 1 - m.confirmChoice
			return m, nil
		case "y":
			return m.finishSwitch(true)
		case "n", "esc":
			return m.finishSwitch(false)
		case "enter":
			return m.finishSwitch(m.confirmChoice == 0)
		default:
			return m, nil
		}
	}

	switch msg.String() {
	case "esc":
		m.mode = modeNone
		m.input.Blur()
		m.status = "cancelled"
		return m, nil
	case "enter":
		return m.submitInputMode()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submitInputMode submits input mode.
func (m Model) submitInputMode() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	mode := m.mode
	m.mode = modeNone
	m.input.Blur()
	state := m.doc.State

	switch mode {
	case modeAddReference:
		intent, err := m.session.AddContextReference(state, value)
		if err != nil {
			m.status = "invalid reference"
			return m, nil
		}
		m.refIndex = len(state.OriginalContextData)
		return m, m.dispatch(intent, "added reference "+value)
	case modeAddProvenance:
		intent, err := m.session.AddProvenance(state, value)
		if errors.Is(err, editor.ErrInvalidReference) {
			m.status = "provenance link is required"
			return m, nil
		}
		return m, m.dispatch(intent, "added provenance "+value)
	case modeRename:
		intent := m.session.Rename(state, value)
		return m, m.dispatch(intent, "renamed to "+value)
	}
	return m, nil
}

// switchTab moves delta tabs, asking for confirmation first when the active tab has pending changes.
func (m Model) switchTab(delta int) (tea.Model, tea.Cmd) {
	tabs := editor.Tabs()
	current := slices.Index(tabs, m.session.ActiveTab())
	target := tabs[wrapIndex(current, delta, len(tabs))]
	if m.session.HasPendingChanges() {
		m.mode = modeConfirmSwitch
		m.pendingTab = target
		m.confirmChoice = 0
		m.status = fmt.Sprintf("apply %s changes before switching?", m.session.ActiveTab())
		return m, nil
	}
	return m.applySwitch(target, nil)
}

// finishSwitch resolves the confirmation overlay.
func (m Model) finishSwitch(apply bool) (tea.Model, tea.Cmd) {
	m.mode = modeNone
	target := m.pendingTab
	m.pendingTab = ""
	m.confirmChoice = 0
	return m.applySwitch(target, editor.ConfirmFunc(func(_, _ editor.Tab) bool { return apply }))
}

// applySwitch performs the session tab switch and dispatches the commit intent when one was produced.
func (m Model) applySwitch(target editor.Tab, confirm editor.Confirmer) (tea.Model, tea.Cmd) {
	from := m.session.ActiveTab()
	intent, ok, err := m.session.SwitchTab(target, m.doc.State, confirm)
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.articles = nil
	cmds := []tea.Cmd{m.loadArticles(target)}
	m.status = string(target)
	if ok {
		m.status = "applying " + string(from) + "..."
		cmds = append(cmds, m.dispatch(intent, "applied "+string(from)))
	} else if confirm != nil {
		m.status = "discarded " + string(from) + " changes"
	}
	return m, tea.Batch(cmds...)
}

// cycleStatus stages the next or previous status for the active tab.
func (m Model) cycleStatus(delta int) (tea.Model, tea.Cmd) {
	statuses := domain.Statuses()
	current := slices.Index(statuses, m.session.Pending().Status)
	next := statuses[wrapIndex(max(current, 0), delta, len(statuses))]
	if current < 0 {
		next = statuses[0]
	}
	_ = m.session.Stage(editor.SetStatus(next))
	m.status = "staged status " + string(next)
	return m, nil
}

// currentTagCandidate returns the tag the add-tag key would stage.
func (m Model) currentTagCandidate() domain.GlobalTag {
	tags := domain.GlobalTags()
	return tags[clamp(m.tagCandidate, 0, len(tags)-1)]
}

// selectedReference returns the highlighted context reference.
func (m Model) selectedReference() (string, bool) {
	refs := m.doc.State.OriginalContextData
	if len(refs) == 0 {
		return "", false
	}
	return refs[clamp(m.refIndex, 0, len(refs)-1)], true
}

// visibleArticles returns live articles, or the built-in list for the tab when none were fetched.
func (m Model) visibleArticles() []domain.Article {
	if len(m.articles) > 0 {
		return m.articles
	}
	if m.session == nil {
		return nil
	}
	return editor.DefaultArticles(m.session.ActiveTab())
}

// wrapIndex wraps current+delta into [0,total).
func wrapIndex(current int, delta int, total int) int {
	if total <= 0 {
		return 0
	}
	next := (current + delta) % total
	if next < 0 {
		next += total
	}
	return next
}

// clamp clamps the requested operation.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}
