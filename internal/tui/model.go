package tui

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/theakshaypant/today/internal/auth"
	"github.com/theakshaypant/today/internal/core"
	"github.com/theakshaypant/today/internal/live"
	"github.com/theakshaypant/today/internal/timeline"
)

// KeyMap defines the keybindings for the TUI
type KeyMap struct {
	Up         key.Binding
	Down       key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Join       key.Binding
	ViewEvent  key.Binding
	Refresh    key.Binding
	Logout     key.Binding
	Tab        key.Binding
	Quit       key.Binding
	Help       key.Binding
}

var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓", "down"),
	),
	ScrollUp: key.NewBinding(
		key.WithKeys("ctrl+u", "pgup"),
		key.WithHelp("ctrl+u", "scroll up"),
	),
	ScrollDown: key.NewBinding(
		key.WithKeys("ctrl+d", "pgdown"),
		key.WithHelp("ctrl+d", "scroll down"),
	),
	Join: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "join"),
	),
	ViewEvent: key.NewBinding(
		key.WithKeys("v"),
		key.WithHelp("v", "view event"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Logout: key.NewBinding(
		key.WithKeys("L"),
		key.WithHelp("L", "sign in again"),
	),
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "switch panel"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
}

// Controller is the live set the model renders. *live.Controller satisfies it.
type Controller interface {
	Updates() <-chan live.Snapshot
	Snapshot() live.Snapshot
	RequestRefresh() bool
}

// IconFetcher is satisfied by *icon.Cache.
type IconFetcher interface {
	Lookup(uri string) (image.Image, bool)
	Fetch(ctx context.Context, uri string) (image.Image, bool)
}

// Options holds the optional collaborators of the model.
type Options struct {
	Icons IconFetcher
	// Logout discards the credential and signs in again.
	Logout func(ctx context.Context) (*auth.Session, error)
	Now    func() time.Time
}

// PanelFocus selects the panel shown in compact mode
type PanelFocus int

const (
	FocusList PanelFocus = iota
	FocusDetail
)

// Model is the Bubble Tea model of the live view
type Model struct {
	ctrl   Controller
	icons  IconFetcher
	logout func(context.Context) (*auth.Session, error)
	now    func() time.Time

	snap        live.Snapshot
	received    bool
	selectedIdx int
	selectedKey string
	status      string
	pendingIcon map[string]bool
	// Icons that failed since the last sync or selection change
	failedIcon map[string]bool

	width         int
	height        int
	listWidth     int
	detailWidth   int
	contentHeight int
	keys          KeyMap
	listView      viewport.Model
	detailView    viewport.Model
	bar           progress.Model
	viewportReady bool
	compactMode   bool
	focusedPanel  PanelFocus
	showHelp      bool
}

// NewModel creates the model. The controller must already be running.
func NewModel(ctrl Controller, opts Options) Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return Model{
		ctrl:        ctrl,
		icons:       opts.Icons,
		logout:      opts.Logout,
		now:         opts.Now,
		snap:        ctrl.Snapshot(),
		keys:        DefaultKeyMap,
		bar:         progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		pendingIcon: make(map[string]bool),
		failedIcon:  make(map[string]bool),
	}
}

// Messages
type snapshotMsg live.Snapshot

type iconMsg struct {
	uri string
	ok  bool
}

type logoutMsg struct{ err error }

// Commands
func waitForSnapshot(ch <-chan live.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg(snap)
	}
}

func (m Model) fetchIcon(uri string) tea.Cmd {
	icons := m.icons
	return func() tea.Msg {
		_, ok := icons.Fetch(context.Background(), uri)
		return iconMsg{uri: uri, ok: ok}
	}
}

func (m Model) runLogout() tea.Cmd {
	logout := m.logout
	return func() tea.Msg {
		_, err := logout(context.Background())
		return logoutMsg{err: err}
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return waitForSnapshot(m.ctrl.Updates())
}

func (m Model) states() []timeline.State { return m.snap.States }

func (m Model) selected() (timeline.State, bool) {
	s := m.states()
	if m.selectedIdx < 0 || m.selectedIdx >= len(s) {
		return timeline.State{}, false
	}
	return s[m.selectedIdx], true
}

func eventKey(e core.Event) string { return e.CalendarID + "/" + e.ID }

// reselect keeps the cursor on the same event across set swaps.
func (m *Model) reselect() {
	states := m.states()
	for i, st := range states {
		if eventKey(st.Event) == m.selectedKey {
			m.selectedIdx = i
			return
		}
	}
	if m.selectedIdx >= len(states) {
		m.selectedIdx = max(len(states)-1, 0)
	}
	if st, ok := m.selected(); ok {
		m.selectedKey = eventKey(st.Event)
	}
}

func (m *Model) selectIdx(i int) {
	m.selectedIdx = i
	if st, ok := m.selected(); ok {
		m.selectedKey = eventKey(st.Event)
	}
}

// iconCmd starts a fetch for the selected event's conference icon.
func (m *Model) iconCmd() tea.Cmd {
	if m.icons == nil {
		return nil
	}
	st, ok := m.selected()
	if !ok || st.Event.Conference == nil || st.Event.Conference.IconURI == "" {
		return nil
	}
	uri := st.Event.Conference.IconURI
	if _, ok := m.icons.Lookup(uri); ok || m.pendingIcon[uri] || m.failedIcon[uri] {
		return nil
	}
	m.pendingIcon[uri] = true
	return m.fetchIcon(uri)
}

// calculateLayout calculates responsive layout dimensions
func (m *Model) calculateLayout() {
	height := max(m.height, 10)
	// Header, banner, help and padding
	m.contentHeight = max(height-7, 5)

	m.compactMode = m.width < 70
	if m.compactMode {
		m.listWidth = max(m.width-4, 20)
		m.detailWidth = m.listWidth
		return
	}

	switch {
	case m.width < 100:
		m.listWidth = m.width * 45 / 100
	case m.width < 140:
		m.listWidth = m.width * 40 / 100
	default:
		m.listWidth = min(m.width*35/100, 60)
	}
	m.listWidth = max(m.listWidth, 34)
	m.detailWidth = max(m.width-m.listWidth-5, 35)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.calculateLayout()

		listW, listH := max(m.listWidth-4, 10), max(m.contentHeight-4, 1)
		detailW, detailH := max(m.detailWidth-6, 10), max(m.contentHeight-5, 1)
		if !m.viewportReady {
			m.listView = viewport.New(listW, listH)
			m.detailView = viewport.New(detailW, detailH)
			m.viewportReady = true
		} else {
			m.listView.Width, m.listView.Height = listW, listH
			m.detailView.Width, m.detailView.Height = detailW, detailH
		}
		m.bar.Width = max(detailW-8, 10)
		m.updateListContent()
		m.updateDetailContent()
		return m, nil

	case snapshotMsg:
		first := !m.received
		m.received = true
		if !msg.LastSync.Equal(m.snap.LastSync) {
			clear(m.failedIcon)
		}
		m.snap = live.Snapshot(msg)
		if first {
			m.selectIdx(firstLive(m.states()))
		} else {
			m.reselect()
		}
		m.updateListContent()
		m.updateDetailContent()
		return m, tea.Batch(waitForSnapshot(m.ctrl.Updates()), m.iconCmd())

	case iconMsg:
		delete(m.pendingIcon, msg.uri)
		if !msg.ok {
			m.failedIcon[msg.uri] = true
		}
		m.updateDetailContent()
		return m, nil

	case logoutMsg:
		if msg.err != nil {
			m.status = "Sign-in failed: " + msg.err.Error()
		} else {
			m.status = "Signed in again"
			m.ctrl.RequestRefresh()
		}
		return m, nil

	case tea.KeyMsg:
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.showHelp = true
			return m, nil

		case key.Matches(msg, m.keys.Up):
			if m.selectedIdx > 0 {
				m.selectIdx(m.selectedIdx - 1)
				m.afterMove()
			}
			return m, m.iconCmd()

		case key.Matches(msg, m.keys.Down):
			if m.selectedIdx < len(m.states())-1 {
				m.selectIdx(m.selectedIdx + 1)
				m.afterMove()
			}
			return m, m.iconCmd()

		case key.Matches(msg, m.keys.ScrollUp):
			if m.compactMode && m.focusedPanel == FocusList {
				m.listView.ViewUp()
			} else {
				m.detailView.ViewUp()
			}
			return m, nil

		case key.Matches(msg, m.keys.ScrollDown):
			if m.compactMode && m.focusedPanel == FocusList {
				m.listView.ViewDown()
			} else {
				m.detailView.ViewDown()
			}
			return m, nil

		case key.Matches(msg, m.keys.Tab):
			if m.focusedPanel == FocusList {
				m.focusedPanel = FocusDetail
			} else {
				m.focusedPanel = FocusList
			}
			return m, nil

		case key.Matches(msg, m.keys.Refresh):
			if m.ctrl.RequestRefresh() {
				m.status = ""
			} else {
				m.status = "Refresh already queued"
			}
			return m, nil

		case key.Matches(msg, m.keys.Logout):
			if m.logout == nil {
				return m, nil
			}
			m.status = "Signing in again, check your browser…"
			return m, m.runLogout()

		case key.Matches(msg, m.keys.Join):
			if st, ok := m.selected(); ok {
				if uri := st.Event.Conference.VideoURI(); uri != "" {
					return m, openURL(uri)
				}
			}
			return m, nil

		case key.Matches(msg, m.keys.ViewEvent):
			if st, ok := m.selected(); ok && st.Event.HTMLLink != "" {
				return m, openURL(st.Event.HTMLLink)
			}
			return m, nil
		}
	}
	return m, nil
}

func (m *Model) afterMove() {
	clear(m.failedIcon)
	m.updateListContent()
	m.scrollListToSelection()
	m.updateDetailContent()
	m.detailView.GotoTop()
}

// firstLive prefers the first event in progress, then the first one.
func firstLive(states []timeline.State) int {
	for i, st := range states {
		if st.Phase == timeline.InProgress {
			return i
		}
	}
	return 0
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := m.renderHeader()
	banner := m.renderBanner()

	var content string
	switch {
	case !m.received && m.snap.LastSync.IsZero():
		content = lipgloss.NewStyle().
			Width(m.width-4).
			Height(m.contentHeight).
			Align(lipgloss.Center, lipgloss.Center).
			Render("Loading today's events...")
	case m.compactMode:
		switch {
		case m.showHelp:
			content = m.renderHelpPanel()
		case m.focusedPanel == FocusList:
			content = m.renderListPanel()
		default:
			content = m.renderDetailPanel()
		}
	default:
		right := m.renderDetailPanel()
		if m.showHelp {
			right = m.renderHelpPanel()
		}
		content = lipgloss.JoinHorizontal(lipgloss.Top, m.renderListPanel(), " ", right)
	}

	return AppStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left, header, banner, content, m.renderHelp()),
	)
}

func (m Model) renderHeader() string {
	now := m.now()
	title := HeaderStyle.Render("📅 today")
	date := lipgloss.NewStyle().Foreground(mutedColor).Render(now.Format("Monday, January 2, 2006"))

	var sync string
	switch {
	case m.snap.Syncing:
		sync = SyncStyle.Render("syncing…")
	case !m.snap.LastSync.IsZero():
		sync = SyncStyle.Render("synced " + m.snap.LastSync.Local().Format("15:04:05"))
	}

	panel := ""
	if m.compactMode {
		name := " [Events]"
		if m.focusedPanel == FocusDetail {
			name = " [Details]"
		}
		panel = PanelTitleStyle.Render(name)
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", date, "  ", sync, panel)
}

// renderBanner reports the last refresh failure, or a status message.
func (m Model) renderBanner() string {
	width := max(m.width-4, 10)
	switch {
	case m.snap.NeedsAuth:
		return ErrBannerStyle.Render(truncate("⚠ Sign-in required. Press L to sign in again.", width))
	case m.snap.Err != nil:
		msg := fmt.Sprintf("⚠ Refresh failed (%s), showing the previous events", m.snap.Err)
		return WarnBannerStyle.Render(truncate(msg, width))
	case m.status != "":
		return SyncStyle.Render(truncate(m.status, width))
	}
	return ""
}

// updateListContent updates the list viewport with the live states
func (m *Model) updateListContent() {
	if !m.viewportReady {
		return
	}
	states := m.states()
	if len(states) == 0 {
		m.listView.SetContent(EmptyStyle.Render("Nothing left today"))
		return
	}

	items := make([]string, 0, len(states))
	for i, st := range states {
		items = append(items, m.renderListItem(st, i == m.selectedIdx, m.listView.Width))
	}
	m.listView.SetContent(strings.Join(items, "\n"))
}

// scrollListToSelection keeps the selected row inside the list viewport
func (m *Model) scrollListToSelection() {
	if !m.viewportReady {
		return
	}
	top := m.selectedIdx
	if top < m.listView.YOffset {
		m.listView.SetYOffset(top)
	}
	if top+1 > m.listView.YOffset+m.listView.Height {
		m.listView.SetYOffset(top + 1 - m.listView.Height)
	}
}

func (m Model) renderListPanel() string {
	header := PanelTitleStyle.Render("Events")
	if n := len(m.states()); n > 0 && m.viewportReady && m.listView.TotalLineCount() > m.listView.Height {
		header += EmptyStyle.Render(fmt.Sprintf(" (%d/%d)", m.selectedIdx+1, n))
	}
	return ListPanelStyle.Width(m.listWidth).Height(m.contentHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, header, m.listView.View()),
	)
}

func (m Model) renderListItem(st timeline.State, selected bool, maxWidth int) string {
	timeStr := TimeStyle.Render(st.Event.Start.Local().Format("15:04"))

	countdown := CountdownStyle.Render(st.Label())
	if st.Phase == timeline.InProgress {
		countdown = LiveCountdownStyle.Render(st.Label())
	}

	meeting := ""
	if st.Event.Conference.VideoURI() != "" {
		meeting = " 📹"
	}

	// Time (6) + countdown (10) + icon and padding
	title := truncate(st.Event.Summary, max(maxWidth-22, 10))
	line := fmt.Sprintf("%s %s %s%s", timeStr, countdown, title, meeting)

	if selected {
		return SelectedItemStyle.Render(line)
	}
	return NormalItemStyle.Render(line)
}

// updateDetailContent renders the selected event into the detail viewport
func (m *Model) updateDetailContent() {
	if !m.viewportReady {
		return
	}
	st, ok := m.selected()
	if !ok {
		m.detailView.SetContent("")
		return
	}
	e := st.Event
	width := m.detailView.Width
	var lines []string

	lines = append(lines, TitleStyle.Render(ansi.Wordwrap(e.Summary, width, "")))
	lines = append(lines, renderField("🕐 When", timeline.FormatSpan(e.Start.Local(), e.End.Local())))

	switch st.Phase {
	case timeline.InProgress:
		lines = append(lines, "")
		lines = append(lines, InProgressStyle.Render("🟢 IN PROGRESS • "+st.Label()))
		if st.HasProgress {
			lines = append(lines, m.bar.ViewAs(st.Progress))
		}
	case timeline.Upcoming:
		lines = append(lines, "")
		lines = append(lines, UpcomingStyle.Render("⏳ Starts "+st.Label()))
	}
	lines = append(lines, "")

	if e.Location != "" {
		lines = append(lines, renderWrappedField("📍 Location", e.Location, width))
	}
	if o := e.Organizer; o != nil {
		lines = append(lines, renderField("👤 Organizer", personName(o)))
	}
	if len(e.Attendees) > 0 {
		lines = append(lines, renderField("📊 Response", formatStatus(e.Attendees[0].ResponseStatus)))
	}
	if c := e.Conference; c != nil {
		lines = append(lines, m.renderConference(c, width)...)
	}
	if e.HTMLLink != "" {
		view := hyperlink(e.HTMLLink, LinkStyle.Render("open in calendar"))
		lines = append(lines, renderField("🔗 Event", view))
	}

	if e.Description != "" {
		lines = append(lines, "")
		lines = append(lines, LabelStyle.Render("📝 Description"))
		lines = append(lines, ValueStyle.Render(ansi.Wordwrap(descriptionText(e.Description, width), width, "")))
	}

	m.detailView.SetContent(strings.Join(lines, "\n"))
}

func (m Model) renderConference(c *core.Conference, width int) []string {
	var lines []string
	name := c.SolutionName
	if name == "" {
		name = "Conference"
	}
	if m.icons != nil && c.IconURI != "" {
		if img, ok := m.icons.Lookup(c.IconURI); ok {
			lines = append(lines, renderIcon(img, 4, 2))
		}
	}
	if uri := c.VideoURI(); uri != "" {
		labelWidth := lipgloss.Width(LabelStyle.Render("📹 Join")) + 1
		text := LinkStyle.Render(truncate(uri, width-labelWidth))
		lines = append(lines, renderField("📹 "+name, hyperlink(uri, text)))
	} else {
		lines = append(lines, renderField("📹 Meeting", name))
	}
	for _, ep := range c.EntryPoints {
		if ep.Type == "phone" {
			lines = append(lines, renderField("📞 Phone", ep.Label+" "+HintStyle.Render(ep.URI)))
		}
	}
	return lines
}

func (m Model) renderDetailPanel() string {
	if _, ok := m.selected(); !ok {
		return DetailPanelStyle.Width(m.detailWidth).Height(m.contentHeight).Render(
			EmptyStyle.Render("No event selected"),
		)
	}

	header := PanelTitleStyle.Render("Event Details")
	if m.viewportReady && m.detailView.TotalLineCount() > m.detailView.Height {
		header += EmptyStyle.Render(fmt.Sprintf(" (%d%%)", int(m.detailView.ScrollPercent()*100)))
	}
	return DetailPanelStyle.Width(m.detailWidth).Height(m.contentHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, header, "", m.detailView.View()),
	)
}

func (m Model) renderHelp() string {
	keys := []string{
		HelpKeyStyle.Render("↑/↓") + " nav",
		HelpKeyStyle.Render("tab") + " panel",
		HelpKeyStyle.Render("enter") + " join",
		HelpKeyStyle.Render("v") + " view",
		HelpKeyStyle.Render("r") + " refresh",
		HelpKeyStyle.Render("L") + " sign in",
		HelpKeyStyle.Render("q") + " quit",
	}
	full := strings.Join(keys, "  •  ")
	if lipgloss.Width(full) > m.width-4 {
		return HelpStyle.Render(HelpKeyStyle.Render("?") + " help")
	}
	return HelpStyle.Render(full)
}

func (m Model) renderHelpPanel() string {
	lines := []string{
		PanelTitleStyle.Render("Keyboard Shortcuts"),
		"",
		HelpKeyStyle.Render("  ↑ / k      ") + " Move up",
		HelpKeyStyle.Render("  ↓ / j      ") + " Move down",
		HelpKeyStyle.Render("  ctrl+u/d   ") + " Scroll detail panel",
		HelpKeyStyle.Render("  tab        ") + " Switch panel",
		HelpKeyStyle.Render("  enter      ") + " Join the video call",
		HelpKeyStyle.Render("  v          ") + " View event in calendar",
		HelpKeyStyle.Render("  r          ") + " Refresh now",
		HelpKeyStyle.Render("  L          ") + " Sign out and sign in again",
		HelpKeyStyle.Render("  q / ctrl+c ") + " Quit",
		"",
		HintStyle.Render("  Press any key to close"),
	}

	width := m.detailWidth
	if m.compactMode {
		width = m.listWidth
	}
	return DetailPanelStyle.Width(width).Height(m.contentHeight).Render(strings.Join(lines, "\n"))
}

func renderField(label, value string) string {
	return LabelStyle.Render(label) + " " + ValueStyle.Render(value)
}

// renderWrappedField word-wraps value and indents continuation lines under it.
func renderWrappedField(label, value string, maxWidth int) string {
	rendered := LabelStyle.Render(label)
	labelWidth := lipgloss.Width(rendered) + 1
	wrapped := strings.Split(ansi.Wordwrap(value, max(maxWidth-labelWidth, 10), ""), "\n")
	indent := strings.Repeat(" ", labelWidth)
	for i := 1; i < len(wrapped); i++ {
		wrapped[i] = indent + wrapped[i]
	}
	return rendered + " " + ValueStyle.Render(strings.Join(wrapped, "\n"))
}

func personName(p *core.Person) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Email
}

func formatStatus(status string) string {
	switch status {
	case core.ResponseAccepted:
		return StatusAcceptedStyle.Render("Accepted ✓")
	case core.ResponseTentative:
		return StatusPendingStyle.Render("Tentative ?")
	case core.ResponseNeedsAction:
		return StatusPendingStyle.Render("Awaiting response")
	default:
		return EmptyStyle.Render(status)
	}
}

// openURL opens a URL in the default browser
func openURL(url string) tea.Cmd {
	return func() tea.Msg {
		_ = auth.OpenBrowser(url)
		return nil
	}
}
