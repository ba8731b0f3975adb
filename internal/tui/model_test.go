package tui

import (
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theakshaypant/today/internal/core"
	"github.com/theakshaypant/today/internal/live"
	"github.com/theakshaypant/today/internal/timeline"
)

var t0 = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

type fakeController struct {
	updates   chan live.Snapshot
	refreshes int
	queued    bool
}

func newFakeController() *fakeController {
	return &fakeController{updates: make(chan live.Snapshot, 1)}
}

func (f *fakeController) Updates() <-chan live.Snapshot { return f.updates }
func (f *fakeController) Snapshot() live.Snapshot       { return live.Snapshot{} }
func (f *fakeController) RequestRefresh() bool {
	f.refreshes++
	if f.queued {
		return false
	}
	f.queued = true
	return true
}

func states(phases map[string]timeline.Phase, order ...string) []timeline.State {
	out := make([]timeline.State, 0, len(order))
	for i, name := range order {
		start := t0.Add(time.Duration(i) * time.Hour)
		out = append(out, timeline.State{
			Event:     core.Event{ID: name, CalendarID: "primary", Summary: name, Start: start, End: start.Add(30 * time.Minute)},
			Phase:     phases[name],
			Remaining: 10 * time.Minute,
		})
	}
	return out
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(t *testing.T, ctrl *fakeController) Model {
	m := NewModel(ctrl, Options{Now: func() time.Time { return t0 }})
	return update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
}

func selectedSummary(m Model) string {
	st, _ := m.selected()
	return st.Event.Summary
}

func TestModel_FirstSnapshotSelectsInProgress(t *testing.T) {
	m := newTestModel(t, newFakeController())

	m = update(t, m, snapshotMsg(live.Snapshot{
		States: states(map[string]timeline.Phase{"b": timeline.InProgress}, "a", "b", "c"),
	}))

	assert.Equal(t, "b", selectedSummary(m))
}

func TestModel_KeepsSelectionAcrossSwaps(t *testing.T) {
	m := newTestModel(t, newFakeController())
	m = update(t, m, snapshotMsg(live.Snapshot{States: states(nil, "a", "b", "c")}))
	m = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	require.Equal(t, "c", selectedSummary(m))

	m = update(t, m, snapshotMsg(live.Snapshot{States: states(nil, "x", "c")}))
	assert.Equal(t, "c", selectedSummary(m))
	assert.Equal(t, 1, m.selectedIdx)

	m = update(t, m, snapshotMsg(live.Snapshot{States: states(nil, "y")}))
	assert.Equal(t, "y", selectedSummary(m), "cursor clamps when the event is gone")
}

func TestModel_RefreshKey(t *testing.T) {
	ctrl := newFakeController()
	m := newTestModel(t, ctrl)

	m = update(t, m, runes("r"))
	assert.Empty(t, m.status)
	m = update(t, m, runes("r"))
	assert.Equal(t, "Refresh already queued", m.status)
	assert.Equal(t, 2, ctrl.refreshes)
}

func TestModel_BannerKeepsOldEvents(t *testing.T) {
	m := newTestModel(t, newFakeController())
	m = update(t, m, snapshotMsg(live.Snapshot{
		States:   states(nil, "Standup"),
		LastSync: t0,
		Err:      core.Wrap(core.KindSyncListFailed, "list events primary", errors.New("boom")),
	}))

	view := m.View()
	assert.Contains(t, view, "Refresh failed")
	assert.Contains(t, view, "Standup")
}

func TestModel_NeedsAuthBanner(t *testing.T) {
	m := newTestModel(t, newFakeController())
	m = update(t, m, snapshotMsg(live.Snapshot{NeedsAuth: true, Err: core.ErrAuthUnrecoverable}))

	assert.Contains(t, m.View(), "Sign-in required")
}

func TestModel_EmptyDay(t *testing.T) {
	m := newTestModel(t, newFakeController())
	m = update(t, m, snapshotMsg(live.Snapshot{LastSync: t0}))

	assert.Contains(t, m.View(), "Nothing left today")
}

func TestModel_LogoutResult(t *testing.T) {
	ctrl := newFakeController()
	m := newTestModel(t, ctrl)

	m = update(t, m, logoutMsg{})
	assert.Equal(t, "Signed in again", m.status)
	assert.Equal(t, 1, ctrl.refreshes)

	m = update(t, m, logoutMsg{err: errors.New("denied")})
	assert.True(t, strings.HasPrefix(m.status, "Sign-in failed"))
}

type failingIcons struct{ fetches int }

func (f *failingIcons) Lookup(string) (image.Image, bool) { return nil, false }
func (f *failingIcons) Fetch(context.Context, string) (image.Image, bool) {
	f.fetches++
	return nil, false
}

// runCmd executes cmd and everything it batches, returning the messages.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	switch msg := cmd().(type) {
	case nil:
		return nil
	case tea.BatchMsg:
		var out []tea.Msg
		for _, c := range msg {
			out = append(out, runCmd(c)...)
		}
		return out
	default:
		return []tea.Msg{msg}
	}
}

// send delivers msg and feeds back the messages of the returned commands.
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	for _, out := range runCmd(cmd) {
		model = send(t, model, out)
	}
	return model
}

func TestModel_FailedIconNotRetriedEveryTick(t *testing.T) {
	ctrl := newFakeController()
	// Closed updates make waitForSnapshot return immediately.
	close(ctrl.updates)
	icons := &failingIcons{}
	m := NewModel(ctrl, Options{Icons: icons, Now: func() time.Time { return t0 }})
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})

	sts := states(map[string]timeline.Phase{"standup": timeline.InProgress}, "standup")
	sts[0].Event.Conference = &core.Conference{IconURI: "https://icons.test/meet.png"}

	for range 60 {
		m = send(t, m, snapshotMsg(live.Snapshot{States: sts, LastSync: t0}))
	}
	assert.Equal(t, 1, icons.fetches)

	// A new sync may try again.
	m = send(t, m, snapshotMsg(live.Snapshot{States: sts, LastSync: t0.Add(time.Minute)}))
	assert.Equal(t, 2, icons.fetches)
}

func TestRenderIcon(t *testing.T) {
	solid := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := range 4 {
		for y := range 4 {
			solid.Set(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	out := renderIcon(solid, 2, 1)
	assert.Equal(t, 2, strings.Count(out, "▀"))

	clear := image.NewRGBA(image.Rect(0, 0, 4, 4))
	assert.Equal(t, "  \n  ", renderIcon(clear, 2, 2))
	assert.Empty(t, renderIcon(nil, 2, 2))
}

func TestDescriptionText(t *testing.T) {
	in := `Join <b>here</b>: <a href="https://www.google.com/url?q=https://docs.test/agenda&amp;sa=D">the doc</a><br>Agenda<ul><li>one</li><li> two </li></ul>`

	got := descriptionText(in, 0)

	want := "Join here: " + hyperlink("https://docs.test/agenda", "the doc") + "\nAgenda\n  • one\n  • two"
	assert.Equal(t, want, got)
	assert.Equal(t, "plain text", descriptionText("  plain text \n", 0))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 5))
	assert.Equal(t, "hel…", truncate("hello", 4))
	assert.Equal(t, "…", truncate("hello", 1))
	assert.Equal(t, "hello", truncate("hello", 0))
}
